package units

import "context"

// Store is a keyed table of unit records. Every method is linearizable per id;
// nothing spans two ids.
type Store interface {
	// CreateIfAbsent inserts u unless a record with u.ID exists. created is false on the no-op.
	CreateIfAbsent(ctx context.Context, u Unit) (created bool, err error)

	// ConditionalUpdate applies m only if cond (guarded by the status ordering rule) holds
	// for the stored record at write time. It returns ErrConditionFailed with no effect
	// when the predicate does not hold and ErrNotFound when the record is absent.
	ConditionalUpdate(ctx context.Context, id string, m Mutation, cond Condition) (Unit, error)

	// Increment atomically changes a counter and returns its post value. applied is false
	// when the dedupe key was already recorded or the segment ceiling would be crossed;
	// value is then the unchanged current value.
	Increment(ctx context.Context, id string, inc Increment) (value int64, applied bool, err error)

	// Get returns the current snapshot or ErrNotFound.
	Get(ctx context.Context, id string) (Unit, error)
}
