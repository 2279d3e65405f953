package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"go-time-archive/internal/model"
)

// userFilesDir is the per-user subdirectory holding the visible tree:
// <root>/<userID>/files.
const userFilesDir = "files"

const idCacheSize = 8192

type idCacheKey struct {
	userID string
	id     int64
}

// Storage serves per-user file trees from a local directory. Node ids are
// inode numbers, so they survive renames and moves within one filesystem.
type Storage struct {
	validator *PathValidator
	ids       *lru.Cache[idCacheKey, string]
}

func New(root string) (*Storage, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	ids, err := lru.New[idCacheKey, string](idCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create id cache: %w", err)
	}

	return &Storage{validator: validator, ids: ids}, nil
}

func (s *Storage) RootAbs() string {
	return s.validator.RootAbs()
}

func (s *Storage) userRootAbs(userID string) (string, error) {
	if !ValidUserID(userID) {
		return "", fmt.Errorf("%w: %q", model.ErrUserNotFound, userID)
	}
	return filepath.Join(s.validator.RootAbs(), userID, userFilesDir), nil
}

// resolve maps a user-relative path to an absolute one.
func (s *Storage) resolve(userID string, userPath string) (string, error) {
	if _, err := s.userRootAbs(userID); err != nil {
		return "", err
	}
	return s.validator.ResolvePath(userID + "/" + userFilesDir + model.JoinPath(userPath))
}

func (s *Storage) UserRoot(_ context.Context, userID string) (model.Node, error) {
	abs, err := s.userRootAbs(userID)
	if err != nil {
		return model.Node{}, err
	}

	node, err := s.nodeAt(userID, "/", abs)
	if errors.Is(err, model.ErrNodeNotFound) {
		return model.Node{}, fmt.Errorf("%w: %s", model.ErrUserNotFound, userID)
	}
	return node, err
}

// EnsureUser creates the tree root for userID if missing.
func (s *Storage) EnsureUser(userID string) error {
	abs, err := s.userRootAbs(userID)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o755)
}

// ForEachUser calls fn for every user directory that has a files tree, in
// name order. It stops at the first error fn returns.
func (s *Storage) ForEachUser(ctx context.Context, fn func(ctx context.Context, userID string) error) error {
	entries, err := os.ReadDir(s.validator.RootAbs())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() || !ValidUserID(entry.Name()) {
			continue
		}

		info, err := os.Stat(filepath.Join(s.validator.RootAbs(), entry.Name(), userFilesDir))
		if err != nil || !info.IsDir() {
			continue
		}

		if err := fn(ctx, entry.Name()); err != nil {
			return err
		}
	}

	return nil
}

// ListChildren returns the folder's direct children in name order. Entries
// that are neither regular files nor directories are left out.
func (s *Storage) ListChildren(_ context.Context, folder model.Node) ([]model.Node, error) {
	if !folder.IsFolder {
		return nil, fmt.Errorf("%w: %s", model.ErrNotAFolder, folder.Path)
	}

	abs, err := s.resolve(folder.OwnerID, folder.Path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrNodeNotFound, folder.Path)
		}
		return nil, fmt.Errorf("list %q: %w", folder.Path, err)
	}

	children := make([]model.Node, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && !entry.Type().IsRegular() {
			continue
		}
		child, err := s.nodeAt(folder.OwnerID, model.JoinPath(folder.Path, entry.Name()), filepath.Join(abs, entry.Name()))
		if errors.Is(err, model.ErrNodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return children, nil
}

// Get returns the child called name inside parent.
func (s *Storage) Get(_ context.Context, parent model.Node, name string) (model.Node, error) {
	childPath := model.JoinPath(parent.Path, name)
	abs, err := s.resolve(parent.OwnerID, childPath)
	if err != nil {
		return model.Node{}, err
	}
	return s.nodeAt(parent.OwnerID, childPath, abs)
}

func (s *Storage) Exists(ctx context.Context, parent model.Node, name string) (bool, error) {
	_, err := s.Get(ctx, parent, name)
	if errors.Is(err, model.ErrNodeNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CreateFolder makes parent/name. It fails with ErrPathConflict when any node
// already occupies the name.
func (s *Storage) CreateFolder(_ context.Context, parent model.Node, name string) (model.Node, error) {
	if err := ValidateName(name); err != nil {
		return model.Node{}, err
	}

	childPath := model.JoinPath(parent.Path, name)
	abs, err := s.resolve(parent.OwnerID, childPath)
	if err != nil {
		return model.Node{}, err
	}

	if err := os.Mkdir(abs, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return model.Node{}, fmt.Errorf("%w: %s", model.ErrPathConflict, childPath)
		}
		if errors.Is(err, fs.ErrPermission) {
			return model.Node{}, fmt.Errorf("%w: create %s", model.ErrNotPermitted, childPath)
		}
		return model.Node{}, fmt.Errorf("create folder %q: %w", childPath, err)
	}

	return s.nodeAt(parent.OwnerID, childPath, abs)
}

// Move relocates node to destPath within the owner's tree. The destination
// parent must exist and the destination itself must not. Held locks surface
// as ErrLocked.
func (s *Storage) Move(_ context.Context, node model.Node, destPath string) (model.Node, error) {
	if node.IsRoot() {
		return model.Node{}, fmt.Errorf("%w: cannot move root", model.ErrNotPermitted)
	}

	src, err := s.resolve(node.OwnerID, node.Path)
	if err != nil {
		return model.Node{}, err
	}
	dst, err := s.resolve(node.OwnerID, destPath)
	if err != nil {
		return model.Node{}, err
	}

	if !node.IsFolder {
		if lockErr := checkLock(src); lockErr != nil {
			return model.Node{}, fmt.Errorf("%w: %s: %v", model.ErrLocked, node.Path, lockErr)
		}
	}

	if err := renameNoReplace(src, dst); err != nil {
		switch {
		case isLockErrno(err):
			return model.Node{}, fmt.Errorf("%w: %s: %v", model.ErrLocked, node.Path, err)
		case isExistErrno(err):
			return model.Node{}, fmt.Errorf("%w: %s", model.ErrPathConflict, destPath)
		case errors.Is(err, fs.ErrNotExist):
			return model.Node{}, fmt.Errorf("%w: %s", model.ErrNodeNotFound, node.Path)
		case errors.Is(err, fs.ErrPermission):
			return model.Node{}, fmt.Errorf("%w: move %s", model.ErrNotPermitted, node.Path)
		default:
			return model.Node{}, fmt.Errorf("move %q to %q: %w", node.Path, destPath, err)
		}
	}

	moved, err := s.nodeAt(node.OwnerID, model.JoinPath(destPath), dst)
	if err != nil {
		return model.Node{}, err
	}
	s.ids.Add(idCacheKey{userID: node.OwnerID, id: moved.ID}, moved.Path)

	return moved, nil
}

// GetByID finds every node of userID's tree carrying id. A local tree has at
// most one, but the result stays a slice so shared mounts fit the same shape.
func (s *Storage) GetByID(ctx context.Context, userID string, id int64) ([]model.Node, error) {
	rootAbs, err := s.userRootAbs(userID)
	if err != nil {
		return nil, err
	}

	key := idCacheKey{userID: userID, id: id}
	if cached, ok := s.ids.Get(key); ok {
		abs, resolveErr := s.resolve(userID, cached)
		if resolveErr == nil {
			if node, nodeErr := s.nodeAt(userID, cached, abs); nodeErr == nil && node.ID == id {
				return []model.Node{node}, nil
			}
		}
		s.ids.Remove(key)
	}

	var found []model.Node
	walkErr := filepath.WalkDir(rootAbs, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			if abs == rootAbs {
				return err
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		st, statErr := statPath(abs)
		if statErr != nil || int64(st.inode) != id {
			return nil
		}

		rel, relErr := filepath.Rel(rootAbs, abs)
		if relErr != nil {
			return nil
		}
		userPath := model.JoinPath("/", filepath.ToSlash(rel))
		node, nodeErr := s.nodeAt(userID, userPath, abs)
		if nodeErr != nil {
			return nil
		}
		found = append(found, node)
		s.ids.Add(key, userPath)
		return fs.SkipAll
	})
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("find node %d: %w", id, walkErr)
	}

	return found, nil
}

// MountsForFile lists users whose tree contains id.
func (s *Storage) MountsForFile(ctx context.Context, id int64) ([]string, error) {
	users := make([]string, 0, 1)
	err := s.ForEachUser(ctx, func(ctx context.Context, userID string) error {
		nodes, err := s.GetByID(ctx, userID, id)
		if err != nil {
			return err
		}
		if len(nodes) > 0 {
			users = append(users, userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(users)
	return users, nil
}

func (s *Storage) nodeAt(userID string, userPath string, abs string) (model.Node, error) {
	st, err := statPath(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Node{}, fmt.Errorf("%w: %s", model.ErrNodeNotFound, userPath)
		}
		return model.Node{}, fmt.Errorf("stat %q: %w", userPath, err)
	}

	node := model.Node{
		ID:         int64(st.inode),
		Name:       filepath.Base(abs),
		Path:       model.JoinPath(userPath),
		OwnerID:    userID,
		IsFolder:   st.isDir,
		ModTime:    st.modTime,
		UploadTime: st.uploadTime,
		Updatable:  writable(abs),
		MimeType:   detectMIME(abs, st.isDir),
		Size:       st.size,
		ETag:       strconv.FormatInt(st.modTime.UnixNano(), 16) + "-" + strconv.FormatInt(st.size, 16),
	}
	if node.IsRoot() {
		node.Name = ""
	} else {
		parentAbs := filepath.Dir(abs)
		node.Deletable = writable(parentAbs)
		if parent, parentErr := statPath(parentAbs); parentErr == nil {
			node.ParentID = int64(parent.inode)
		}
	}

	return node, nil
}
