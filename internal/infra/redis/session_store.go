package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"gator-course-advisor/internal/domain/model"
	"gator-course-advisor/internal/domain/ports/repository"
	"gator-course-advisor/internal/infra/metrics"
)

const (
	sessionKeyPrefix = "advisor:session:"
	tombstoneRev     = "9007199254740992" // 2^53, above any session revision
)

var _ repository.SessionSnapshotStore = (*SessionStore)(nil)

// SessionStore mirrors sessions as hashes {rev, data}. Writes that arrive out
// of order are dropped by comparing revisions inside Redis. A deleted session
// keeps its key as a tombstone {rev: tombstoneRev, deleted: 1} until the TTL
// expires, so a mirror still in flight cannot bring it back.
type SessionStore struct {
	cli *redis.Client
	ttl time.Duration
}

func NewSessionStore(c *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{cli: c.cli, ttl: ttl}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

// KEYS[1]=hash ARGV[1]=revision ARGV[2]=json ARGV[3]=ttl ms
var luaSaveIfNewer = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "rev")
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "rev", ARGV[1], "data", ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[3])
end
return 1`)

func (s *SessionStore) Save(ctx context.Context, session model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	written, err := luaSaveIfNewer.Run(ctx, s.cli,
		[]string{sessionKey(session.ID)},
		session.Revision, data, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	if written == 0 {
		metrics.IncCacheRequest("session_store", "stale")
		return nil
	}
	metrics.IncCacheRequest("session_store", "write")
	return nil
}

// KEYS[1]=hash ARGV[1]=tombstone revision ARGV[2]=ttl ms
var luaTombstone = redis.NewScript(`
redis.call("HDEL", KEYS[1], "data")
redis.call("HSET", KEYS[1], "rev", ARGV[1], "deleted", "1")
if tonumber(ARGV[2]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1`)

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := luaTombstone.Run(ctx, s.cli, []string{sessionKey(id)}, tombstoneRev, s.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// LoadAll scans every mirrored session. Tombstones and entries that fail to
// decode are skipped.
func (s *SessionStore) LoadAll(ctx context.Context) ([]model.Session, error) {
	var out []model.Session
	iter := s.cli.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		vals, err := s.cli.HMGet(ctx, key, "data", "deleted").Result()
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		if vals[1] != nil {
			metrics.IncCacheRequest("session_store", "tombstone")
			continue
		}
		data, ok := vals[0].(string)
		if !ok {
			metrics.IncCacheRequest("session_store", "miss")
			continue
		}
		var session model.Session
		if err := json.Unmarshal([]byte(data), &session); err != nil || session.ID != strings.TrimPrefix(key, sessionKeyPrefix) {
			metrics.IncCacheRequest("session_store", "corrupt")
			continue
		}
		metrics.IncCacheRequest("session_store", "hit")
		out = append(out, session)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return out, nil
}
