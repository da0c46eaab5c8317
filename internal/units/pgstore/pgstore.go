// Package pgstore implements units.Store on the Postgres units table.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"thirdcoast.systems/scribe/internal/db"
	"thirdcoast.systems/scribe/internal/units"
)

type Store struct {
	dbc *db.DatabaseConnection
}

var _ units.Store = (*Store)(nil)

func New(dbc *db.DatabaseConnection) *Store {
	return &Store{dbc: dbc}
}

func (s *Store) CreateIfAbsent(ctx context.Context, u units.Unit) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}

	n, err := s.dbc.Queries(ctx).CreateUnitIfAbsent(ctx, &db.CreateUnitIfAbsentParams{
		ID:                u.ID,
		Status:            db.UnitStatus(u.Status),
		SegmentCount:      u.SegmentCount,
		SegmentsProcessed: u.SegmentsProcessed,
		Remaining:         u.Remaining,
		FailedMembers:     u.FailedMembers,
		BatchKey:          nilIfEmpty(u.BatchKey),
		LastError:         nilIfEmpty(u.LastError),
	})
	if err != nil {
		return false, fmt.Errorf("create unit %s: %w", u.ID, err)
	}
	return n == 1, nil
}

func (s *Store) ConditionalUpdate(ctx context.Context, id string, m units.Mutation, cond units.Condition) (units.Unit, error) {
	cond = cond.Guarded(m)

	params := &db.ConditionalUpdateUnitParams{
		ID:           id,
		SegmentCount: m.SegmentCount,
		LastError:    m.LastError,
		StatusIn:     units.Strings(cond.StatusIn),
		StatusNotIn:  units.Strings(cond.StatusNotIn),
	}
	if m.Status != "" {
		params.Status = db.NullUnitStatus{UnitStatus: db.UnitStatus(m.Status), Valid: true}
	}

	q := s.dbc.Queries(ctx)
	row, err := q.ConditionalUpdateUnit(ctx, params)
	if err == nil {
		return fromRow(row), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return units.Unit{}, fmt.Errorf("update unit %s: %w", id, err)
	}

	// No row matched: tell "absent" from "predicate false".
	if _, err := q.GetUnit(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return units.Unit{}, units.ErrNotFound
		}
		return units.Unit{}, fmt.Errorf("get unit %s: %w", id, err)
	}
	return units.Unit{}, units.ErrConditionFailed
}

// Increment locks the unit row for the duration of a short transaction so the dedupe
// insert, the ceiling check and the counter write are one atomic step per key.
func (s *Store) Increment(ctx context.Context, id string, inc units.Increment) (int64, bool, error) {
	if !inc.Field.Valid() {
		return 0, false, fmt.Errorf("units: invalid field %q", inc.Field)
	}

	var (
		value   int64
		applied bool
	)
	err := s.dbc.InTx(ctx, func(q *db.Queries) error {
		row, err := q.LockUnit(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return units.ErrNotFound
			}
			return fmt.Errorf("lock unit %s: %w", id, err)
		}

		u := fromRow(row)
		value = current(u, inc.Field)
		if _, ok := inc.Apply(value, u.SegmentCount); !ok {
			return nil
		}

		if inc.DedupeKey != "" {
			n, err := q.InsertUnitCredit(ctx, &db.InsertUnitCreditParams{UnitID: id, CreditKey: inc.DedupeKey})
			if err != nil {
				return fmt.Errorf("record credit %s/%s: %w", id, inc.DedupeKey, err)
			}
			if n == 0 {
				return nil
			}
		}

		value, err = apply(ctx, q, id, inc)
		if err != nil {
			return fmt.Errorf("increment %s.%s: %w", id, inc.Field, err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return value, applied, nil
}

func (s *Store) Get(ctx context.Context, id string) (units.Unit, error) {
	row, err := s.dbc.Queries(ctx).GetUnit(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return units.Unit{}, units.ErrNotFound
		}
		return units.Unit{}, fmt.Errorf("get unit %s: %w", id, err)
	}
	return fromRow(row), nil
}

func apply(ctx context.Context, q *db.Queries, id string, inc units.Increment) (int64, error) {
	switch inc.Field {
	case units.FieldSegmentsProcessed:
		return q.IncrementSegmentsProcessed(ctx, &db.IncrementSegmentsProcessedParams{ID: id, Delta: inc.Delta, Floor: inc.Floor})
	case units.FieldRemaining:
		v, err := q.IncrementRemaining(ctx, &db.IncrementRemainingParams{ID: id, Delta: inc.Delta, Floor: inc.Floor})
		if err != nil || v == nil {
			return 0, err
		}
		return *v, nil
	case units.FieldFailedMembers:
		return q.IncrementFailedMembers(ctx, &db.IncrementFailedMembersParams{ID: id, Delta: inc.Delta, Floor: inc.Floor})
	}
	return 0, fmt.Errorf("units: invalid field %q", inc.Field)
}

func current(u units.Unit, f units.Field) int64 {
	switch f {
	case units.FieldSegmentsProcessed:
		return u.SegmentsProcessed
	case units.FieldRemaining:
		if u.Remaining != nil {
			return *u.Remaining
		}
	case units.FieldFailedMembers:
		return u.FailedMembers
	}
	return 0
}

func fromRow(r *db.Unit) units.Unit {
	u := units.Unit{
		ID:                r.ID,
		Status:            units.Status(r.Status),
		SegmentCount:      r.SegmentCount,
		SegmentsProcessed: r.SegmentsProcessed,
		Remaining:         r.Remaining,
		FailedMembers:     r.FailedMembers,
		CreatedAt:         r.CreatedAt.Time,
		UpdatedAt:         r.UpdatedAt.Time,
	}
	if r.BatchKey != nil {
		u.BatchKey = *r.BatchKey
	}
	if r.LastError != nil {
		u.LastError = *r.LastError
	}
	return u
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
