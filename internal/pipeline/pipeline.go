// Package pipeline holds the coordination logic of the transcription pipeline: routing
// submissions, seeding video units, crediting segment results, and folding finalized
// videos into their batch. Media handling is delegated to the collaborators below.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a submitted reference.
type Kind string

const (
	KindSingle   Kind = "single"
	KindChannel  Kind = "channel"
	KindPlaylist Kind = "playlist"
)

// Collection reports whether k expands into many items.
func (k Kind) Collection() bool {
	return k == KindChannel || k == KindPlaylist
}

// Reference is a classified submission. ItemID is set for single items, BatchKey for collections.
type Reference struct {
	Kind     Kind
	URL      string
	ItemID   string
	BatchKey string
}

type Item struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Resolver interface {
	// Classify is a pure function of the reference's shape.
	Classify(raw string) (Reference, error)
	// Resolve returns the ordered items of a collection, at most limit when limit > 0.
	Resolve(ctx context.Context, ref Reference, limit int) ([]Item, error)
}

// Metadata describes the source item of a video unit.
type Metadata struct {
	Title           string `json:"title,omitempty"`
	ChannelID       string `json:"channel_id,omitempty"`
	ChannelName     string `json:"channel_name,omitempty"`
	Platform        string `json:"platform,omitempty"`
	UploadDate      string `json:"upload_date,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// Acquisition is the result of fetching and splitting one item.
type Acquisition struct {
	Segments        []string
	SegmentDuration time.Duration
	Metadata        Metadata
}

type Acquirer interface {
	Acquire(ctx context.Context, item Item) (Acquisition, error)
}

type Line struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

type Transcript struct {
	Language string `json:"language"`
	Lines    []Line `json:"lines"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, artifactKey string) (Transcript, error)
}

// SegmentResult is one transcribed segment ready for the result store.
// Line timings are relative to the segment; OffsetMs places the segment in the source.
type SegmentResult struct {
	VideoID      string
	SegmentIndex int
	OffsetMs     int64
	SourceURL    string
	Metadata     Metadata
	Transcript   Transcript
}

// ResultSink stores segment results. Writing the same segment twice must be safe.
// Errors are redelivered unless they wrap ErrResultRejected.
type ResultSink interface {
	SaveSegment(ctx context.Context, r SegmentResult) error
}

var (
	ErrInvalidReference = errors.New("pipeline: invalid reference")
	ErrEmptyCollection  = errors.New("pipeline: collection resolved to no items")
	ErrResultRejected   = errors.New("pipeline: result store rejected segment")
)

// ProcessingError is a terminal failure of one item or segment. It is recorded on the
// unit as FAILED and the triggering message is acknowledged.
type ProcessingError struct {
	Stage string
	ID    string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.ID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as an infrastructure failure: the message is redelivered
// instead of failing the unit.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// IsTransient reports whether err, or anything it wraps, was marked with Transient.
func IsTransient(err error) bool {
	var t transientError
	return errors.As(err, &t)
}
