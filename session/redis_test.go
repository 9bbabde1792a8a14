package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T, lifecycle Lifecycle) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, "ds", lifecycle, time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("token-a")
	if a != Fingerprint("token-a") {
		t.Fatal("fingerprint must be deterministic")
	}
	if a == Fingerprint("token-b") {
		t.Fatal("distinct tokens must not collide")
	}
	if len(a) != 64 {
		t.Fatalf("digest length = %d", len(a))
	}
}

func TestRedisRegisterAndFind(t *testing.T) {
	store := newRedisStore(t, LifecycleSingleSlot)
	ctx := context.Background()

	created, err := store.Register(ctx, "u1", "ios-app", "tok-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !created.Active || created.RefreshDigest != Fingerprint("tok-1") {
		t.Fatalf("created: %+v", created)
	}

	byAgent, err := store.FindByAgent(ctx, "u1", "ios-app")
	if err != nil {
		t.Fatalf("by agent: %v", err)
	}
	if byAgent.DeviceAgent != "ios-app" || !byAgent.Active {
		t.Fatalf("by agent: %+v", byAgent)
	}

	if _, err := store.FindByRefreshToken(ctx, "u1", "tok-1"); err != nil {
		t.Fatalf("by token: %v", err)
	}
	if _, err := store.FindByRefreshToken(ctx, "u1", "unknown"); !errors.Is(err, ErrDeviceSessionDoesNotExist) {
		t.Fatalf("unknown token: %v", err)
	}
}

func TestRedisSingleSlotOverwrites(t *testing.T) {
	store := newRedisStore(t, LifecycleSingleSlot)
	ctx := context.Background()

	if _, err := store.Register(ctx, "u1", "ios-app", "tok-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.Register(ctx, "u1", "ios-app", "tok-2"); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	if _, err := store.FindByRefreshToken(ctx, "u1", "tok-1"); !errors.Is(err, ErrDeviceSessionDoesNotExist) {
		t.Fatalf("old row must be removed, got %v", err)
	}
	if _, err := store.FindByRefreshToken(ctx, "u1", "tok-2"); err != nil {
		t.Fatalf("new row: %v", err)
	}
}

func TestRedisAppendOnlyKeepsRows(t *testing.T) {
	store := newRedisStore(t, LifecycleAppendOnly)
	ctx := context.Background()

	if _, err := store.Register(ctx, "u1", "ios-app", "tok-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.Register(ctx, "u1", "ios-app", "tok-2"); err != nil {
		t.Fatalf("register second: %v", err)
	}

	if _, err := store.FindByRefreshToken(ctx, "u1", "tok-1"); err != nil {
		t.Fatalf("first row must survive: %v", err)
	}
	if _, err := store.FindByRefreshToken(ctx, "u1", "tok-2"); err != nil {
		t.Fatalf("second row: %v", err)
	}
}

func TestRedisSwapCAS(t *testing.T) {
	store := newRedisStore(t, LifecycleSingleSlot)
	ctx := context.Background()

	if _, err := store.Register(ctx, "u1", "ios-app", "tok-old"); err != nil {
		t.Fatalf("register: %v", err)
	}

	rotated, err := store.Swap(ctx, "u1", "tok-old", "tok-new")
	if err != nil {
		t.Fatalf("winner swap: %v", err)
	}
	if rotated.RefreshDigest != Fingerprint("tok-new") {
		t.Fatalf("rotated: %+v", rotated)
	}

	// The loser presents the rotated-away token.
	if _, err := store.Swap(ctx, "u1", "tok-old", "tok-other"); !errors.Is(err, ErrDeviceSessionDoesNotExist) {
		t.Fatalf("loser must fail, got %v", err)
	}

	// The agent slot follows the rotation.
	byAgent, err := store.FindByAgent(ctx, "u1", "ios-app")
	if err != nil {
		t.Fatalf("by agent: %v", err)
	}
	if byAgent.RefreshDigest != Fingerprint("tok-new") {
		t.Fatalf("agent slot: %+v", byAgent)
	}
}

func TestRedisSignOutSingleSlot(t *testing.T) {
	store := newRedisStore(t, LifecycleSingleSlot)
	ctx := context.Background()

	if err := store.SignOut(ctx, "u1", "ios-app", "tok-1"); !errors.Is(err, ErrDeviceSessionDoesNotExist) {
		t.Fatalf("unknown slot: %v", err)
	}

	if _, err := store.Register(ctx, "u1", "ios-app", "tok-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := store.SignOut(ctx, "u1", "ios-app", "tok-1"); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if err := store.SignOut(ctx, "u1", "ios-app", "tok-1"); !errors.Is(err, ErrUserAlreadySignedOut) {
		t.Fatalf("second signout: %v", err)
	}

	// Signed-out sessions cannot rotate.
	if _, err := store.Swap(ctx, "u1", "tok-1", "tok-2"); !errors.Is(err, ErrDeviceSessionDoesNotExist) {
		t.Fatalf("swap after signout: %v", err)
	}
}

func TestRedisSignOutAppendOnly(t *testing.T) {
	store := newRedisStore(t, LifecycleAppendOnly)
	ctx := context.Background()

	if _, err := store.Register(ctx, "u1", "ios-app", "tok-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := store.SignOut(ctx, "u1", "ios-app", "tok-1"); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if err := store.SignOut(ctx, "u1", "ios-app", "tok-1"); !errors.Is(err, ErrUserAlreadySignedOut) {
		t.Fatalf("second signout: %v", err)
	}

	row, err := store.FindByRefreshToken(ctx, "u1", "tok-1")
	if err != nil {
		t.Fatalf("row must remain: %v", err)
	}
	if row.Active {
		t.Fatal("row must be inactive after signout")
	}
}

func TestRedisPurgeUser(t *testing.T) {
	store := newRedisStore(t, LifecycleAppendOnly)
	ctx := context.Background()

	if _, err := store.Register(ctx, "u1", "ios-app", "tok-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.Register(ctx, "u1", "web", "tok-2"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.Register(ctx, "u2", "web", "tok-3"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := store.PurgeUser(ctx, "u1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := store.FindByRefreshToken(ctx, "u1", "tok-1"); !errors.Is(err, ErrDeviceSessionDoesNotExist) {
		t.Fatalf("u1 rows must be gone, got %v", err)
	}
	if _, err := store.FindByRefreshToken(ctx, "u2", "tok-3"); err != nil {
		t.Fatalf("u2 must be untouched: %v", err)
	}
}
