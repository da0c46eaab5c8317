// Package units holds the unit record shared by video and batch work items and the
// store contract every backend implements.
//
// A unit is keyed by a single string. Video units carry segment_count and
// segments_processed; batch units carry remaining and failed_members. Both share
// one namespace and are told apart only by which optional fields are set.
package units

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further status transition is valid.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var (
	ErrNotFound        = errors.New("units: not found")
	ErrConditionFailed = errors.New("units: condition failed")
)

type Unit struct {
	ID                string    `json:"id"`
	Status            Status    `json:"status"`
	SegmentCount      *int64    `json:"segment_count,omitempty"`
	SegmentsProcessed int64     `json:"segments_processed"`
	Remaining         *int64    `json:"remaining,omitempty"`
	FailedMembers     int64     `json:"failed_members,omitempty"`
	BatchKey          string    `json:"batch_key,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsBatch reports whether u tracks a collection rather than a single video.
func (u Unit) IsBatch() bool {
	return u.Remaining != nil
}

// NewVideo returns an IN_PROGRESS video unit expecting segmentCount segments.
func NewVideo(id string, segmentCount int64, batchKey string) Unit {
	return Unit{
		ID:           id,
		Status:       StatusInProgress,
		SegmentCount: &segmentCount,
		BatchKey:     batchKey,
	}
}

// NewBatch returns an IN_PROGRESS batch unit waiting on members units.
func NewBatch(id string, members int64) Unit {
	return Unit{
		ID:        id,
		Status:    StatusInProgress,
		Remaining: &members,
	}
}

// Validate checks the fields a caller may set on create.
func (u Unit) Validate() error {
	if u.ID == "" {
		return errors.New("units: id is required")
	}
	if !u.Status.Valid() {
		return fmt.Errorf("units: invalid status %q", u.Status)
	}
	if u.SegmentCount != nil && *u.SegmentCount < 0 {
		return errors.New("units: segment_count must not be negative")
	}
	if u.SegmentCount != nil && u.SegmentsProcessed > *u.SegmentCount {
		return errors.New("units: segments_processed exceeds segment_count")
	}
	if u.SegmentsProcessed < 0 {
		return errors.New("units: segments_processed must not be negative")
	}
	return nil
}

type Field string

const (
	FieldSegmentsProcessed Field = "segments_processed"
	FieldRemaining         Field = "remaining"
	FieldFailedMembers     Field = "failed_members"
)

func (f Field) Valid() bool {
	switch f {
	case FieldSegmentsProcessed, FieldRemaining, FieldFailedMembers:
		return true
	}
	return false
}

// Mutation lists the fields a ConditionalUpdate writes. Zero values leave a field untouched.
type Mutation struct {
	Status       Status
	SegmentCount *int64
	LastError    *string
}

// Condition is the predicate evaluated against the stored status at write time.
// An empty StatusIn matches any status.
type Condition struct {
	StatusIn    []Status
	StatusNotIn []Status
}

// Matches reports whether s satisfies c.
func (c Condition) Matches(s Status) bool {
	if len(c.StatusIn) > 0 && !slices.Contains(c.StatusIn, s) {
		return false
	}
	return !slices.Contains(c.StatusNotIn, s)
}

// Guarded returns c extended with the status ordering rule for m: once a unit is terminal,
// no mutation that writes a status applies, so IN_PROGRESS never downgrades a terminal unit
// and a terminal status is never replaced by the other one.
func (c Condition) Guarded(m Mutation) Condition {
	if m.Status == "" {
		return c
	}
	out := Condition{
		StatusIn:    slices.Clone(c.StatusIn),
		StatusNotIn: slices.Clone(c.StatusNotIn),
	}
	for _, s := range []Status{StatusCompleted, StatusFailed} {
		if !slices.Contains(out.StatusNotIn, s) {
			out.StatusNotIn = append(out.StatusNotIn, s)
		}
	}
	return out
}

// Strings returns the statuses as plain strings; never nil.
func Strings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// Increment describes an atomic counter change.
//
// Floor clamps the post value from below. A non-empty DedupeKey makes the increment
// idempotent per unit: once a key has been applied, repeating it changes nothing.
// Increments of segments_processed never move it past segment_count.
type Increment struct {
	Field     Field
	Delta     int64
	Floor     *int64
	DedupeKey string
}

// Apply computes the post value of cur under inc. ok is false when the segment ceiling
// would be crossed.
func (inc Increment) Apply(cur int64, segmentCount *int64) (next int64, ok bool) {
	next = cur + inc.Delta
	if inc.Floor != nil && next < *inc.Floor {
		next = *inc.Floor
	}
	if inc.Field == FieldSegmentsProcessed && segmentCount != nil && next > *segmentCount {
		return cur, false
	}
	return next, true
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}
