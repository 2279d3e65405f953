package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TimeUnit values keep the numeric codes persisted in archive_rules.time_unit.
type TimeUnit int

const (
	UnitDay    TimeUnit = 0
	UnitWeek   TimeUnit = 1
	UnitMonth  TimeUnit = 2
	UnitYear   TimeUnit = 3
	UnitMinute TimeUnit = 4
	UnitHour   TimeUnit = 5
)

var timeUnitNames = map[TimeUnit]string{
	UnitMinute: "minute",
	UnitHour:   "hour",
	UnitDay:    "day",
	UnitWeek:   "week",
	UnitMonth:  "month",
	UnitYear:   "year",
}

func (u TimeUnit) Valid() bool {
	_, ok := timeUnitNames[u]
	return ok
}

func (u TimeUnit) String() string {
	if name, ok := timeUnitNames[u]; ok {
		return name
	}
	return "unit(" + strconv.Itoa(int(u)) + ")"
}

// ParseTimeUnit accepts either a unit name ("month") or its numeric code ("2").
func ParseTimeUnit(raw string) (TimeUnit, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	for unit, name := range timeUnitNames {
		if name == trimmed || name+"s" == trimmed {
			return unit, nil
		}
	}

	code, err := strconv.Atoi(trimmed)
	if err == nil && TimeUnit(code).Valid() {
		return TimeUnit(code), nil
	}

	return 0, fmt.Errorf("%w: unknown time unit %q", ErrInvalidInput, raw)
}

// UnmarshalJSON accepts the numeric code or the unit name. Unknown codes are
// kept so validation can report them.
func (u *TimeUnit) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		*u = TimeUnit(code)
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("%w: time unit must be a number or a name", ErrInvalidInput)
	}

	parsed, err := ParseTimeUnit(name)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// TimeAfter selects which node timestamp is compared against the cutoff.
type TimeAfter int

const (
	CreationTime     TimeAfter = 0
	ModificationTime TimeAfter = 1
)

func (a TimeAfter) Valid() bool {
	return a == CreationTime || a == ModificationTime
}

func (a TimeAfter) String() string {
	switch a {
	case CreationTime:
		return "creation"
	case ModificationTime:
		return "modification"
	default:
		return "time_after(" + strconv.Itoa(int(a)) + ")"
	}
}

type ArchiveRule struct {
	ID         int64     `json:"id"`
	TagID      *int64    `json:"tag_id"`
	TimeUnit   TimeUnit  `json:"time_unit"`
	TimeAmount int       `json:"time_amount"`
	TimeAfter  TimeAfter `json:"time_after"`
	// CreatedAsTag records the trigger mode chosen at creation. It never
	// changes, so a row that lost its tag is recognisable.
	CreatedAsTag bool `json:"created_as_tag"`
}

func (r ArchiveRule) IsTagRule() bool {
	return r.TagID != nil
}

// Orphaned reports a tag rule whose tag reference is gone. Such a rule must
// never run as a time rule.
func (r ArchiveRule) Orphaned() bool {
	return r.CreatedAsTag && r.TagID == nil
}

// Key returns the scheduler key this rule is invoked under.
func (r ArchiveRule) Key() RuleKey {
	if r.TagID != nil {
		return TagKey(*r.TagID)
	}
	return RuleIDKey(r.ID)
}

// RuleKey identifies one recurring invocation: a tag id for tag rules, a rule id
// for time rules. Exactly one of the two is set.
type RuleKey struct {
	TagID  *int64 `json:"tag,omitempty"`
	RuleID *int64 `json:"rule,omitempty"`
}

func TagKey(tagID int64) RuleKey {
	return RuleKey{TagID: &tagID}
}

func RuleIDKey(ruleID int64) RuleKey {
	return RuleKey{RuleID: &ruleID}
}

func (k RuleKey) IsTag() bool {
	return k.TagID != nil
}

func (k RuleKey) Valid() bool {
	return (k.TagID == nil) != (k.RuleID == nil)
}

func (k RuleKey) String() string {
	switch {
	case k.TagID != nil:
		return "tag:" + strconv.FormatInt(*k.TagID, 10)
	case k.RuleID != nil:
		return "rule:" + strconv.FormatInt(*k.RuleID, 10)
	default:
		return "invalid"
	}
}

// Mode reports "tag" or "time" for logs and metric labels.
func (k RuleKey) Mode() string {
	if k.TagID != nil {
		return "tag"
	}
	return "time"
}

type CreateRuleRequest struct {
	TagID      *int64   `json:"tag_id"`
	TimeUnit   TimeUnit `json:"time_unit"`
	TimeAmount int      `json:"time_amount"`
	TimeAfter  *int     `json:"time_after"`
}
