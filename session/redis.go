package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	opStatusNotFound  int64 = 0
	opStatusSignedOut int64 = 1
	opStatusOK        int64 = 2
)

// registerScript writes a session row and repoints the agent slot. In
// single-slot mode (ARGV[6] == "1") the previous row for the agent is
// removed first.
const registerScript = `
local old = redis.call("GET", KEYS[1])
if ARGV[6] == "1" and old and old ~= "" then
  local oldRow = ARGV[1] .. old
  redis.call("DEL", oldRow)
  redis.call("SREM", KEYS[2], oldRow)
end
local row = ARGV[1] .. ARGV[2]
redis.call("DEL", row)
redis.call("HSET", row,
  "agent", ARGV[3],
  "agentd", ARGV[4],
  "digest", ARGV[2],
  "active", "1",
  "created", ARGV[5],
  "updated", ARGV[5])
redis.call("SET", KEYS[1], ARGV[2])
redis.call("SADD", KEYS[2], row)
if tonumber(ARGV[7]) > 0 then
  redis.call("EXPIRE", row, ARGV[7])
  redis.call("EXPIRE", KEYS[1], ARGV[7])
end
return 2
`

// swapScript is the rotation CAS. The row addressed by the provided token
// must exist, be active, and still hold its token; otherwise the caller
// lost the race and gets a not-found status. The winner's row is rewritten
// under the next token's digest in the same script.
const swapScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local digest = redis.call("HGET", KEYS[1], "digest")
local active = redis.call("HGET", KEYS[1], "active")
if digest == "" or active ~= "1" then
  return 0
end
local agent = redis.call("HGET", KEYS[1], "agent")
local agentd = redis.call("HGET", KEYS[1], "agentd")
local created = redis.call("HGET", KEYS[1], "created")
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[3], KEYS[1])
redis.call("HSET", KEYS[2],
  "agent", agent,
  "agentd", agentd,
  "digest", ARGV[1],
  "active", "1",
  "created", created,
  "updated", ARGV[2])
redis.call("SADD", KEYS[3], KEYS[2])
redis.call("SET", ARGV[3] .. agentd, ARGV[1])
if tonumber(ARGV[4]) > 0 then
  redis.call("EXPIRE", KEYS[2], ARGV[4])
end
return 2
`

// signOutSlotScript nulls the token of the agent slot.
const signOutSlotScript = `
local digest = redis.call("GET", KEYS[1])
if digest == false then
  return 0
end
if digest == "" then
  return 1
end
local row = ARGV[1] .. digest
redis.call("HSET", row, "digest", "", "active", "0", "updated", ARGV[2])
redis.call("SET", KEYS[1], "")
return 2
`

// signOutAppendScript flips the token-addressed row inactive.
const signOutAppendScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "active") ~= "1" then
  return 1
end
redis.call("HSET", KEYS[1], "active", "0", "updated", ARGV[1])
return 2
`

const purgeScript = `
local rows = redis.call("SMEMBERS", KEYS[1])
for _, row in ipairs(rows) do
  local agentd = redis.call("HGET", row, "agentd")
  if agentd then
    redis.call("DEL", ARGV[1] .. agentd)
  end
  redis.call("DEL", row)
end
redis.call("DEL", KEYS[1])
return #rows
`

var (
	registerLua      = redis.NewScript(registerScript)
	swapLua          = redis.NewScript(swapScript)
	signOutSlotLua   = redis.NewScript(signOutSlotScript)
	signOutAppendLua = redis.NewScript(signOutAppendScript)
	purgeLua         = redis.NewScript(purgeScript)
)

// RedisStore is the redis-backed Store. All mutations run as single Lua
// scripts so concurrent callers serialize on the server.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	lifecycle Lifecycle
	retention time.Duration
}

// NewRedisStore creates a RedisStore. retention bounds how long rows are
// kept (0 keeps them until purge).
func NewRedisStore(client redis.UniversalClient, prefix string, lifecycle Lifecycle, retention time.Duration) (*RedisStore, error) {
	if prefix == "" {
		prefix = "ds"
	}
	if !lifecycle.Valid() {
		return nil, fmt.Errorf("unknown session lifecycle %q", lifecycle)
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		lifecycle: lifecycle,
		retention: retention,
	}, nil
}

// Lifecycle reports the configured schema variant.
func (s *RedisStore) Lifecycle() Lifecycle {
	return s.lifecycle
}

func (s *RedisStore) rowPrefix(userID string) string {
	return s.prefix + ":s:" + userID + ":"
}

func (s *RedisStore) agentKey(userID, deviceAgent string) string {
	return s.prefix + ":a:" + userID + ":" + Fingerprint(deviceAgent)
}

func (s *RedisStore) agentPrefix(userID string) string {
	return s.prefix + ":a:" + userID + ":"
}

func (s *RedisStore) indexKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *RedisStore) retentionSeconds() string {
	if s.retention <= 0 {
		return "0"
	}
	return strconv.FormatInt(int64(s.retention/time.Second), 10)
}

func (s *RedisStore) Register(ctx context.Context, userID, deviceAgent, refreshToken string) (*DeviceSession, error) {
	now := time.Now()
	digest := Fingerprint(refreshToken)
	singleSlot := "0"
	if s.lifecycle == LifecycleSingleSlot {
		singleSlot = "1"
	}

	err := registerLua.Run(ctx, s.redis,
		[]string{s.agentKey(userID, deviceAgent), s.indexKey(userID)},
		s.rowPrefix(userID),
		digest,
		deviceAgent,
		Fingerprint(deviceAgent),
		strconv.FormatInt(now.Unix(), 10),
		singleSlot,
		s.retentionSeconds(),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return &DeviceSession{
		UserID:        userID,
		DeviceAgent:   deviceAgent,
		RefreshDigest: digest,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *RedisStore) FindByAgent(ctx context.Context, userID, deviceAgent string) (*DeviceSession, error) {
	digest, err := s.redis.Get(ctx, s.agentKey(userID, deviceAgent)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDeviceSessionDoesNotExist
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if digest == "" {
		// Slot exists but was signed out.
		return &DeviceSession{UserID: userID, DeviceAgent: deviceAgent}, nil
	}
	return s.readRow(ctx, userID, digest)
}

func (s *RedisStore) FindByRefreshToken(ctx context.Context, userID, refreshToken string) (*DeviceSession, error) {
	return s.readRow(ctx, userID, Fingerprint(refreshToken))
}

func (s *RedisStore) readRow(ctx context.Context, userID, digest string) (*DeviceSession, error) {
	fields, err := s.redis.HGetAll(ctx, s.rowPrefix(userID)+digest).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrDeviceSessionDoesNotExist
	}

	created, _ := strconv.ParseInt(fields["created"], 10, 64)
	updated, _ := strconv.ParseInt(fields["updated"], 10, 64)
	return &DeviceSession{
		UserID:        userID,
		DeviceAgent:   fields["agent"],
		RefreshDigest: fields["digest"],
		Active:        fields["active"] == "1",
		CreatedAt:     time.Unix(created, 0),
		UpdatedAt:     time.Unix(updated, 0),
	}, nil
}

func (s *RedisStore) Swap(ctx context.Context, userID, currentToken, nextToken string) (*DeviceSession, error) {
	now := time.Now()
	nextDigest := Fingerprint(nextToken)
	rowPrefix := s.rowPrefix(userID)

	status, err := swapLua.Run(ctx, s.redis,
		[]string{rowPrefix + Fingerprint(currentToken), rowPrefix + nextDigest, s.indexKey(userID)},
		nextDigest,
		strconv.FormatInt(now.Unix(), 10),
		s.agentPrefix(userID),
		s.retentionSeconds(),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if status != opStatusOK {
		return nil, ErrDeviceSessionDoesNotExist
	}
	return s.readRow(ctx, userID, nextDigest)
}

func (s *RedisStore) SignOut(ctx context.Context, userID, deviceAgent, refreshToken string) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	var (
		status int64
		err    error
	)
	if s.lifecycle == LifecycleSingleSlot {
		status, err = signOutSlotLua.Run(ctx, s.redis,
			[]string{s.agentKey(userID, deviceAgent)},
			s.rowPrefix(userID),
			now,
		).Int64()
	} else {
		status, err = signOutAppendLua.Run(ctx, s.redis,
			[]string{s.rowPrefix(userID) + Fingerprint(refreshToken)},
			now,
		).Int64()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	switch status {
	case opStatusNotFound:
		return ErrDeviceSessionDoesNotExist
	case opStatusSignedOut:
		return ErrUserAlreadySignedOut
	default:
		return nil
	}
}

func (s *RedisStore) PurgeUser(ctx context.Context, userID string) error {
	err := purgeLua.Run(ctx, s.redis,
		[]string{s.indexKey(userID)},
		s.agentPrefix(userID),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
