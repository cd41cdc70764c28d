package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"bookingtms/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

// Memo caches computed slot lists per (widget, config fingerprint, date, snapshot version)
// and owns the snapshot version counters.
type Memo interface {
	Version(ctx context.Context, widgetID, date string) (string, error)
	Load(ctx context.Context, widgetID, date, fingerprint, version string) ([]Slot, bool)
	Store(ctx context.Context, widgetID, date, fingerprint, version string, slots []Slot) error
	// Bump advances the snapshot version of (widget, date) and drops its memoized lists.
	// Called after every booking write that changes capacity.
	Bump(ctx context.Context, widgetID, date string) (string, error)
}

// Lua script bumping a snapshot version and dropping memoized lists atomically
var luaBumpVersion = redis.NewScript(`
-- KEYS[1] = version key
-- KEYS[2] = memo index set
-- ARGV[1] = version ttl seconds

local v = redis.call("INCR", KEYS[1])
redis.call("EXPIRE", KEYS[1], tonumber(ARGV[1]))

local cached = redis.call("SMEMBERS", KEYS[2])
for i = 1, #cached do
    redis.call("DEL", cached[i])
end
redis.call("DEL", KEYS[2])

return v
`)

// Lua script storing a slot list only if the snapshot version is still current
var luaStoreIfCurrent = redis.NewScript(`
-- KEYS[1] = version key
-- KEYS[2] = memo index set
-- KEYS[3] = slot list key
-- ARGV[1] = expected version
-- ARGV[2] = payload
-- ARGV[3] = slot list ttl seconds

local current = redis.call("GET", KEYS[1])
if not current then
    current = "0"
end
if current ~= ARGV[1] then
    return 0
end

redis.call("SET", KEYS[3], ARGV[2], "EX", tonumber(ARGV[3]))
redis.call("SADD", KEYS[2], KEYS[3])
redis.call("EXPIRE", KEYS[2], tonumber(ARGV[3]))
return 1
`)

// RedisMemo implements Memo on Redis
type RedisMemo struct {
	redis *redis.Client
}

func NewRedisMemo(client *redis.Client) *RedisMemo {
	return &RedisMemo{redis: client}
}

func (m *RedisMemo) Version(ctx context.Context, widgetID, date string) (string, error) {
	v, err := m.redis.Get(ctx, constants.BuildSnapshotVersionKey(widgetID, date)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot version: %w", err)
	}
	return v, nil
}

func (m *RedisMemo) Load(ctx context.Context, widgetID, date, fingerprint, version string) ([]Slot, bool) {
	data, err := m.redis.Get(ctx, constants.BuildSlotsKey(widgetID, date, fingerprint, version)).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (m *RedisMemo) Store(ctx context.Context, widgetID, date, fingerprint, version string, slots []Slot) error {
	payload, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to encode slots: %w", err)
	}

	keys := []string{
		constants.BuildSnapshotVersionKey(widgetID, date),
		constants.BuildSlotsIndexKey(widgetID, date),
		constants.BuildSlotsKey(widgetID, date, fingerprint, version),
	}
	ttl := strconv.Itoa(int(constants.TTL_SLOTS.Seconds()))
	if err := luaStoreIfCurrent.Run(ctx, m.redis, keys, version, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to memoize slots: %w", err)
	}
	return nil
}

func (m *RedisMemo) Bump(ctx context.Context, widgetID, date string) (string, error) {
	keys := []string{
		constants.BuildSnapshotVersionKey(widgetID, date),
		constants.BuildSlotsIndexKey(widgetID, date),
	}
	ttl := strconv.Itoa(int(constants.TTL_SNAPSHOT_VERSION.Seconds()))
	v, err := luaBumpVersion.Run(ctx, m.redis, keys, ttl).Int64()
	if err != nil {
		return "", fmt.Errorf("failed to bump snapshot version: %w", err)
	}
	return strconv.FormatInt(v, 10), nil
}

// PreloadScripts loads the Lua scripts into Redis
func (m *RedisMemo) PreloadScripts(ctx context.Context) error {
	if err := luaBumpVersion.Load(ctx, m.redis).Err(); err != nil {
		return fmt.Errorf("failed to load version bump script: %w", err)
	}
	if err := luaStoreIfCurrent.Load(ctx, m.redis).Err(); err != nil {
		return fmt.Errorf("failed to load slot store script: %w", err)
	}
	return nil
}
