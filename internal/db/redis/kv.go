package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docvault/internal/db"
)

// casScript swaps KEYS[1] to ARGV[3] when it currently holds ARGV[2],
// or when it is absent and ARGV[1] is "1".
const casScript = `local cur = redis.call('GET', KEYS[1])
if ARGV[1] == '1' then
  if cur then return 0 end
elseif cur ~= ARGV[2] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[3])
return 1`

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, db.Wrap(db.OpGet, key, err)
	}
	return data, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Set().Key(key).Value(string(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return db.Wrap(db.OpSet, key, err)
	}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(string(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return db.Wrap(db.OpSet, key, err)
	}
	return nil
}

// CompareAndSwap atomically replaces the value at key when it still equals expected.
// The comparison and the write run server-side in one Lua script.
func (s *Store) CompareAndSwap(ctx context.Context, key string, expected, value []byte) (bool, error) {
	absent := "0"
	if expected == nil {
		absent = "1"
	}
	cmd := s.b().Eval().Script(casScript).Numkeys(1).Key(key).
		Arg(absent, string(expected), string(value)).Build()
	swapped, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, db.Wrap(db.OpEval, key, err)
	}
	return swapped == 1, nil
}
