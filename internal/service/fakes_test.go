package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go-time-archive/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memTree is an in-memory FileTree keyed by owner and path.
type memTree struct {
	mu     sync.Mutex
	nextID int64
	nodes  map[int64]*model.Node
	paths  map[string]map[string]int64

	locked      map[int64]int
	failCreate  map[string]bool
	extraMounts map[int64][]string
	views       map[string]map[int64]model.Node

	moveCalls    int
	getByIDCalls int
}

func newMemTree(users ...string) *memTree {
	t := &memTree{
		nextID:      100,
		nodes:       map[int64]*model.Node{},
		paths:       map[string]map[string]int64{},
		locked:      map[int64]int{},
		failCreate:  map[string]bool{},
		extraMounts: map[int64][]string{},
		views:       map[string]map[int64]model.Node{},
	}
	for _, user := range users {
		t.addUser(user)
	}
	return t
}

func (t *memTree) addUser(user string) {
	t.paths[user] = map[string]int64{}
	t.insert(model.Node{Path: "/", OwnerID: user, IsFolder: true, Updatable: true})
}

func (t *memTree) insert(n model.Node) model.Node {
	t.nextID++
	n.ID = t.nextID
	if n.Path != "/" {
		n.Name = pathBase(n.Path)
		n.ParentID = t.paths[n.OwnerID][parentOf(n.Path)]
		n.Deletable = true
		n.Updatable = true
	}
	t.nodes[n.ID] = &n
	t.paths[n.OwnerID][n.Path] = n.ID
	return n
}

// addFile creates p with every missing parent folder, all with modTime.
func (t *memTree) addFile(user string, p string, modTime time.Time) model.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mkdirs(user, parentOf(p), modTime)
	return t.insert(model.Node{Path: p, OwnerID: user, ModTime: modTime, Size: 1})
}

func (t *memTree) addFolder(user string, p string, modTime time.Time) model.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mkdirs(user, p, modTime)
	return *t.nodes[t.paths[user][p]]
}

func (t *memTree) mkdirs(user string, p string, modTime time.Time) {
	current := "/"
	for _, segment := range model.SplitPath(p) {
		current = model.JoinPath(current, segment)
		if _, ok := t.paths[user][current]; ok {
			continue
		}
		t.insert(model.Node{Path: current, OwnerID: user, IsFolder: true, ModTime: modTime})
	}
}

func (t *memTree) node(user string, p string) (model.Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.paths[user][p]
	if !ok {
		return model.Node{}, false
	}
	return *t.nodes[id], true
}

func (t *memTree) has(user string, p string) bool {
	_, ok := t.node(user, p)
	return ok
}

func (t *memTree) lock(id int64, failures int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locked[id] = failures
}

func (t *memTree) UserRoot(_ context.Context, userID string) (model.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.paths[userID]["/"]
	if !ok {
		return model.Node{}, fmt.Errorf("%w: %s", model.ErrUserNotFound, userID)
	}
	return *t.nodes[id], nil
}

func (t *memTree) ListChildren(_ context.Context, folder model.Node) ([]model.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.paths[folder.OwnerID][folder.Path]; !ok {
		return nil, model.ErrNodeNotFound
	}

	children := make([]model.Node, 0)
	for p, id := range t.paths[folder.OwnerID] {
		if p != "/" && parentOf(p) == folder.Path {
			children = append(children, *t.nodes[id])
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (t *memTree) Get(_ context.Context, parent model.Node, name string) (model.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.paths[parent.OwnerID][model.JoinPath(parent.Path, name)]
	if !ok {
		return model.Node{}, model.ErrNodeNotFound
	}
	return *t.nodes[id], nil
}

func (t *memTree) Exists(ctx context.Context, parent model.Node, name string) (bool, error) {
	_, err := t.Get(ctx, parent, name)
	if errors.Is(err, model.ErrNodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *memTree) CreateFolder(_ context.Context, parent model.Node, name string) (model.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := model.JoinPath(parent.Path, name)
	if t.failCreate[p] {
		return model.Node{}, fmt.Errorf("%w: create %s", model.ErrNotPermitted, p)
	}
	if _, exists := t.paths[parent.OwnerID][p]; exists {
		return model.Node{}, model.ErrPathConflict
	}
	return t.insert(model.Node{Path: p, OwnerID: parent.OwnerID, IsFolder: true, ModTime: time.Now()}), nil
}

func (t *memTree) Move(_ context.Context, node model.Node, destPath string) (model.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.moveCalls++

	current, ok := t.nodes[node.ID]
	if !ok || t.paths[node.OwnerID][node.Path] != node.ID {
		return model.Node{}, model.ErrNodeNotFound
	}
	if remaining, isLocked := t.locked[node.ID]; isLocked && remaining != 0 {
		t.locked[node.ID] = remaining - 1
		return model.Node{}, model.ErrLocked
	}
	if _, exists := t.paths[node.OwnerID][destPath]; exists {
		return model.Node{}, model.ErrPathConflict
	}
	parentID, ok := t.paths[node.OwnerID][parentOf(destPath)]
	if !ok || !t.nodes[parentID].IsFolder {
		return model.Node{}, model.ErrNodeNotFound
	}

	oldPath := current.Path
	affected := make(map[string]int64)
	for p, id := range t.paths[node.OwnerID] {
		if p == oldPath || strings.HasPrefix(p, oldPath+"/") {
			affected[p] = id
		}
	}
	for p := range affected {
		delete(t.paths[node.OwnerID], p)
	}
	for p, id := range affected {
		moved := t.nodes[id]
		moved.Path = destPath + strings.TrimPrefix(p, oldPath)
		moved.Name = pathBase(moved.Path)
		t.paths[node.OwnerID][moved.Path] = id
	}
	current.ParentID = parentID
	return *current, nil
}

func (t *memTree) GetByID(_ context.Context, userID string, id int64) ([]model.Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getByIDCalls++

	if view, ok := t.views[userID][id]; ok {
		return []model.Node{view}, nil
	}
	n, ok := t.nodes[id]
	if !ok || n.OwnerID != userID {
		return nil, nil
	}
	return []model.Node{*n}, nil
}

func (t *memTree) MountsForFile(_ context.Context, id int64) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := slices.Clone(t.extraMounts[id])
	if n, ok := t.nodes[id]; ok {
		users = append(users, n.OwnerID)
	}
	return users, nil
}

func (t *memTree) ForEachUser(ctx context.Context, fn func(ctx context.Context, userID string) error) error {
	t.mu.Lock()
	users := make([]string, 0, len(t.paths))
	for user := range t.paths {
		users = append(users, user)
	}
	t.mu.Unlock()

	sort.Strings(users)
	for _, user := range users {
		if err := fn(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

func parentOf(p string) string {
	return model.Node{Path: p}.ParentPath()
}

func pathBase(p string) string {
	segments := model.SplitPath(p)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// memTags is an in-memory TagGateway.
type memTags struct {
	mu       sync.Mutex
	nextID   int64
	tags     []model.Tag
	mappings map[int64][]int64

	failAssign   bool
	failUnassign bool
	failCreate   bool
	dropAssign   bool
	pageCalls    int
}

func newMemTags(tags ...model.Tag) *memTags {
	t := &memTags{nextID: 1000, mappings: map[int64][]int64{}}
	t.tags = append(t.tags, tags...)
	return t
}

func (t *memTags) ObjectIDsForTag(_ context.Context, tagID int64, limit int, after int64) ([]int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageCalls++

	ids := make([]int64, 0)
	for objectID, tagIDs := range t.mappings {
		if objectID > after && slices.Contains(tagIDs, tagID) {
			ids = append(ids, objectID)
		}
	}
	slices.Sort(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (t *memTags) TagIDsForObject(_ context.Context, objectID int64) ([]int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.mappings[objectID]), nil
}

func (t *memTags) Assign(_ context.Context, objectID int64, tagID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failAssign {
		return errors.New("assign refused")
	}
	if t.dropAssign {
		return nil
	}
	if !slices.Contains(t.mappings[objectID], tagID) {
		t.mappings[objectID] = append(t.mappings[objectID], tagID)
	}
	return nil
}

func (t *memTags) Unassign(_ context.Context, objectID int64, tagID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failUnassign {
		return errors.New("unassign refused")
	}
	t.mappings[objectID] = slices.DeleteFunc(t.mappings[objectID], func(id int64) bool { return id == tagID })
	return nil
}

func (t *memTags) Get(_ context.Context, id int64) (model.Tag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tag := range t.tags {
		if tag.ID == id {
			return tag, nil
		}
	}
	return model.Tag{}, model.ErrTagNotFound
}

func (t *memTags) All(_ context.Context) ([]model.Tag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.tags), nil
}

func (t *memTags) Create(_ context.Context, name string, visible bool, assignable bool) (model.Tag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failCreate {
		return model.Tag{}, errors.New("create refused")
	}
	t.nextID++
	tag := model.Tag{ID: t.nextID, Name: name, UserVisible: visible, UserAssignable: assignable}
	t.tags = append(t.tags, tag)
	return tag, nil
}

func (t *memTags) tagged(objectID int64, tagID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Contains(t.mappings[objectID], tagID)
}

// memShares reports the node ids in shared as having a user share.
type memShares struct {
	mu     sync.Mutex
	shared map[int64]bool
	err    error
	calls  int
}

func (s *memShares) SharesBy(_ context.Context, ownerID string, shareType model.ShareType, nodeID int64) ([]model.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if shareType == model.ShareTypeUser && s.shared[nodeID] {
		return []model.Share{{OwnerID: ownerID, ShareType: shareType, NodeID: nodeID}}, nil
	}
	return nil, nil
}

// memRules is an in-memory RuleStore.
type memRules struct {
	rules []model.ArchiveRule
	err   error
}

func (r *memRules) Get(_ context.Context, id int64) (model.ArchiveRule, error) {
	if r.err != nil {
		return model.ArchiveRule{}, r.err
	}
	for _, rule := range r.rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return model.ArchiveRule{}, model.ErrRuleNotFound
}

func (r *memRules) GetByTag(_ context.Context, tagID int64) ([]model.ArchiveRule, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]model.ArchiveRule, 0)
	for _, rule := range r.rules {
		if rule.TagID != nil && *rule.TagID == tagID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func int64Ptr(v int64) *int64 {
	return &v
}

func (r *memRules) List(_ context.Context) ([]model.ArchiveRule, error) {
	if r.err != nil {
		return nil, r.err
	}
	return slices.Clone(r.rules), nil
}

func (r *memRules) Insert(_ context.Context, rule model.ArchiveRule) (model.ArchiveRule, error) {
	if r.err != nil {
		return model.ArchiveRule{}, r.err
	}
	rule.ID = int64(len(r.rules) + 1)
	r.rules = append(r.rules, rule)
	return rule, nil
}

func (r *memRules) Delete(_ context.Context, id int64) error {
	before := len(r.rules)
	r.rules = slices.DeleteFunc(r.rules, func(rule model.ArchiveRule) bool { return rule.ID == id })
	if len(r.rules) == before {
		return model.ErrRuleNotFound
	}
	return nil
}

// memSchedule is an in-memory ScheduleStore.
type memSchedule struct {
	mu      sync.Mutex
	jobs    map[string]model.ScheduledJob
	listErr error
}

func newMemSchedule(keys ...model.RuleKey) *memSchedule {
	s := &memSchedule{jobs: map[string]model.ScheduledJob{}}
	for _, key := range keys {
		_ = s.Add(context.Background(), key)
	}
	return s
}

func (s *memSchedule) Add(_ context.Context, key model.RuleKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[key.String()]; !exists {
		s.jobs[key.String()] = model.ScheduledJob{ID: int64(len(s.jobs) + 1), Key: key}
	}
	return nil
}

func (s *memSchedule) Has(_ context.Context, key model.RuleKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.jobs[key.String()]
	return exists, nil
}

func (s *memSchedule) Remove(_ context.Context, key model.RuleKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, key.String())
	return nil
}

func (s *memSchedule) List(_ context.Context) ([]model.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memSchedule) ListDue(ctx context.Context, notAfter time.Time) ([]model.ScheduledJob, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	all, _ := s.List(ctx)
	return slices.DeleteFunc(all, func(job model.ScheduledJob) bool {
		return job.LastRunAt != nil && job.LastRunAt.After(notAfter)
	}), nil
}

func (s *memSchedule) MarkRun(_ context.Context, key model.RuleKey, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, exists := s.jobs[key.String()]; exists {
		job.LastRunAt = &at
		s.jobs[key.String()] = job
	}
	return nil
}

func (s *memSchedule) lastRun(key model.RuleKey) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[key.String()].LastRunAt
}

// memRuns records inserted runs.
type memRuns struct {
	mu   sync.Mutex
	runs []model.RunRecord
}

func (r *memRuns) Insert(_ context.Context, run model.RunRecord) (model.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return run, nil
}

func (r *memRuns) List(_ context.Context, ruleKey string, page int, limit int) ([]model.RunRecord, model.Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.RunRecord, 0)
	for _, run := range r.runs {
		if ruleKey == "" || run.RuleKey == ruleKey {
			out = append(out, run)
		}
	}
	return out, model.NewMeta(page, limit, len(out)), nil
}

func (r *memRuns) all() []model.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.runs)
}

// memAudit records logged entries.
type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	err     error
	queries []model.AuditQuery
}

func (a *memAudit) Log(_ context.Context, entry model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *memAudit) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, query)
	return slices.Clone(a.entries), model.NewMeta(query.Page, query.Limit, len(a.entries)), nil
}

func (a *memAudit) all() []model.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.entries)
}
