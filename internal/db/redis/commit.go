package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/shopsync/internal/db"
)

// Atomic change-log commits run as Lua scripts so the snapshot and the
// reflection can never diverge: Redis executes a script as a single unit.

// KEYS: snapshot, reflections. ARGV: snapshot JSON, reflection JSON, retain.
var commitUpdateScript = rueidis.NewLuaScript(`
redis.call('SET', KEYS[1], ARGV[1])
redis.call('RPUSH', KEYS[2], ARGV[2])
local retain = tonumber(ARGV[3])
if retain > 0 then
  redis.call('LTRIM', KEYS[2], -retain, -1)
end
return 'OK'
`)

// KEYS: snapshot, tombstone, reflections. ARGV: reflection JSON, retain.
var commitDeleteScript = rueidis.NewLuaScript(`
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[2], '1')
redis.call('RPUSH', KEYS[3], ARGV[1])
local retain = tonumber(ARGV[2])
if retain > 0 then
  redis.call('LTRIM', KEYS[3], -retain, -1)
end
return 'OK'
`)

// CommitUpdate atomically writes a snapshot and appends its reflection.
func (s *Store) CommitUpdate(
	ctx context.Context, snapKey string, snapJSON []byte, reflKey string, reflJSON []byte, retain int,
) error {
	res := commitUpdateScript.Exec(ctx, s.client,
		[]string{snapKey, reflKey},
		[]string{string(snapJSON), string(reflJSON), strconv.Itoa(retain)},
	)
	if err := res.Error(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	return nil
}

// CommitDelete atomically removes a snapshot, marks the tombstone, and
// appends the terminal reflection.
func (s *Store) CommitDelete(
	ctx context.Context, snapKey, tombKey, reflKey string, reflJSON []byte, retain int,
) error {
	res := commitDeleteScript.Exec(ctx, s.client,
		[]string{snapKey, tombKey, reflKey},
		[]string{string(reflJSON), strconv.Itoa(retain)},
	)
	if err := res.Error(); err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	return nil
}
