// Package redisstore implements units.Store on Redis. Each unit is a hash at unit:<id>
// and its applied dedupe keys a set at unit:<id>:credits. Every mutation runs as a
// single Lua script so it is atomic per key.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"thirdcoast.systems/scribe/internal/units"
)

const (
	errNotFound  = "NOT_FOUND"
	errCondition = "CONDITION_FAILED"
	errCeiling   = "BELOW_PROCESSED"
)

var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// KEYS[1] unit hash
// ARGV[1] comma separated status_in, ARGV[2] comma separated status_not_in, ARGV[3] now,
// ARGV[4..] field/value pairs to write
var updateScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return redis.error_reply('NOT_FOUND')
end
local function contains(csv, s)
  for item in string.gmatch(csv, '([^,]+)') do
    if item == s then return true end
  end
  return false
end
if ARGV[1] ~= '' and not contains(ARGV[1], status) then
  return redis.error_reply('CONDITION_FAILED')
end
if contains(ARGV[2], status) then
  return redis.error_reply('CONDITION_FAILED')
end
for i = 4, #ARGV, 2 do
  if ARGV[i] == 'segment_count' then
    local processed = tonumber(redis.call('HGET', KEYS[1], 'segments_processed') or '0')
    if tonumber(ARGV[i + 1]) < processed then
      return redis.error_reply('BELOW_PROCESSED')
    end
  end
end
for i = 4, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
return redis.call('HGETALL', KEYS[1])
`)

// KEYS[1] unit hash, KEYS[2] credits set
// ARGV[1] field, ARGV[2] delta, ARGV[3] floor or '', ARGV[4] dedupe key or '', ARGV[5] now
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return redis.error_reply('NOT_FOUND')
end
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if ARGV[4] ~= '' and redis.call('SISMEMBER', KEYS[2], ARGV[4]) == 1 then
  return {0, cur}
end
local nextv = cur + tonumber(ARGV[2])
if ARGV[3] ~= '' and nextv < tonumber(ARGV[3]) then
  nextv = tonumber(ARGV[3])
end
if ARGV[1] == 'segments_processed' then
  local count = redis.call('HGET', KEYS[1], 'segment_count')
  if count and nextv > tonumber(count) then
    return {0, cur}
  end
end
redis.call('HSET', KEYS[1], ARGV[1], nextv, 'updated_at', ARGV[5])
if ARGV[4] ~= '' then
  redis.call('SADD', KEYS[2], ARGV[4])
end
return {1, nextv}
`)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ units.Store = (*Store)(nil)

// New returns a store keeping units under prefix ("" means "unit:").
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "unit:"
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) creditsKey(id string) string {
	return s.prefix + id + ":credits"
}

func (s *Store) CreateIfAbsent(ctx context.Context, u units.Unit) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}

	now := s.stamp()
	args := []any{
		"id", u.ID,
		"status", string(u.Status),
		"segments_processed", u.SegmentsProcessed,
		"failed_members", u.FailedMembers,
		"created_at", now,
		"updated_at", now,
	}
	if u.SegmentCount != nil {
		args = append(args, "segment_count", *u.SegmentCount)
	}
	if u.Remaining != nil {
		args = append(args, "remaining", *u.Remaining)
	}
	if u.BatchKey != "" {
		args = append(args, "batch_key", u.BatchKey)
	}
	if u.LastError != "" {
		args = append(args, "last_error", u.LastError)
	}

	n, err := createScript.Run(ctx, s.rdb, []string{s.key(u.ID)}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("create unit %s: %w", u.ID, err)
	}
	return n == 1, nil
}

func (s *Store) ConditionalUpdate(ctx context.Context, id string, m units.Mutation, cond units.Condition) (units.Unit, error) {
	cond = cond.Guarded(m)

	args := []any{
		strings.Join(units.Strings(cond.StatusIn), ","),
		strings.Join(units.Strings(cond.StatusNotIn), ","),
		s.stamp(),
	}
	if m.Status != "" {
		args = append(args, "status", string(m.Status))
	}
	if m.SegmentCount != nil {
		args = append(args, "segment_count", *m.SegmentCount)
	}
	if m.LastError != nil {
		args = append(args, "last_error", *m.LastError)
	}

	res, err := updateScript.Run(ctx, s.rdb, []string{s.key(id)}, args...).StringSlice()
	if err != nil {
		return units.Unit{}, mapScriptErr(id, err)
	}
	return parsePairs(res)
}

func (s *Store) Increment(ctx context.Context, id string, inc units.Increment) (int64, bool, error) {
	if !inc.Field.Valid() {
		return 0, false, fmt.Errorf("units: invalid field %q", inc.Field)
	}

	floor := ""
	if inc.Floor != nil {
		floor = strconv.FormatInt(*inc.Floor, 10)
	}
	res, err := incrementScript.Run(ctx, s.rdb,
		[]string{s.key(id), s.creditsKey(id)},
		string(inc.Field), inc.Delta, floor, inc.DedupeKey, s.stamp(),
	).Int64Slice()
	if err != nil {
		return 0, false, mapScriptErr(id, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("increment %s: unexpected reply %v", id, res)
	}
	return res[1], res[0] == 1, nil
}

func (s *Store) Get(ctx context.Context, id string) (units.Unit, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return units.Unit{}, fmt.Errorf("get unit %s: %w", id, err)
	}
	if len(m) == 0 {
		return units.Unit{}, units.ErrNotFound
	}
	return parseHash(m)
}

func (s *Store) stamp() string {
	return strconv.FormatInt(s.now().UTC().UnixNano(), 10)
}

func mapScriptErr(id string, err error) error {
	switch {
	case strings.Contains(err.Error(), errNotFound):
		return units.ErrNotFound
	case strings.Contains(err.Error(), errCondition):
		return units.ErrConditionFailed
	case strings.Contains(err.Error(), errCeiling):
		return fmt.Errorf("units: segment_count below segments_processed for %s", id)
	}
	return fmt.Errorf("unit %s: %w", id, err)
}

func parsePairs(kv []string) (units.Unit, error) {
	if len(kv)%2 != 0 {
		return units.Unit{}, errors.New("redisstore: odd HGETALL reply")
	}
	m := make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return parseHash(m)
}

func parseHash(m map[string]string) (units.Unit, error) {
	u := units.Unit{
		ID:        m["id"],
		Status:    units.Status(m["status"]),
		BatchKey:  m["batch_key"],
		LastError: m["last_error"],
	}

	var err error
	if u.SegmentsProcessed, err = parseInt(m, "segments_processed"); err != nil {
		return units.Unit{}, err
	}
	if u.FailedMembers, err = parseInt(m, "failed_members"); err != nil {
		return units.Unit{}, err
	}
	if _, ok := m["segment_count"]; ok {
		v, err := parseInt(m, "segment_count")
		if err != nil {
			return units.Unit{}, err
		}
		u.SegmentCount = &v
	}
	if _, ok := m["remaining"]; ok {
		v, err := parseInt(m, "remaining")
		if err != nil {
			return units.Unit{}, err
		}
		u.Remaining = &v
	}
	if v, err := parseInt(m, "created_at"); err == nil && v > 0 {
		u.CreatedAt = time.Unix(0, v).UTC()
	}
	if v, err := parseInt(m, "updated_at"); err == nil && v > 0 {
		u.UpdatedAt = time.Unix(0, v).UTC()
	}
	return u, nil
}

func parseInt(m map[string]string, field string) (int64, error) {
	raw, ok := m[field]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redisstore: field %s: %w", field, err)
	}
	return v, nil
}
