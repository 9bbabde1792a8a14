package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*ConfirmationStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewConfirmationStore(client, "cc", 6, 3), mr
}

func TestConfirmationIssueAndVerify(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "sms", "+15551234567", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digit code, got %q", code)
	}

	if err := store.Verify(ctx, "sms", "+15551234567", code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Consumed on success.
	if err := store.Verify(ctx, "sms", "+15551234567", code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound after consume, got %v", err)
	}
}

func TestRandomDigitsShapeAndCoverage(t *testing.T) {
	seen := make(map[byte]bool)
	for i := 0; i < 200; i++ {
		code, err := randomDigits(6)
		if err != nil {
			t.Fatalf("random digits: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("length = %d", len(code))
		}
		for j := 0; j < len(code); j++ {
			if code[j] < '0' || code[j] > '9' {
				t.Fatalf("non-digit in %q", code)
			}
			seen[code[j]] = true
		}
	}
	// 1200 draws without seeing some digit would mean a broken generator.
	if len(seen) != 10 {
		t.Fatalf("digit coverage = %d of 10", len(seen))
	}
}

func TestConfirmationVerifyMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "email", "a@b.test", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := store.Verify(ctx, "email", "a@b.test", "000000"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	// Correct code still works after one miss.
	if err := store.Verify(ctx, "email", "a@b.test", code); err != nil {
		t.Fatalf("verify after miss: %v", err)
	}
}

func TestConfirmationAttemptsExceeded(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "sms", "+15550000000", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := store.Verify(ctx, "sms", "+15550000000", "999999"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("attempt 1: %v", err)
	}
	if err := store.Verify(ctx, "sms", "+15550000000", "999999"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("attempt 2: %v", err)
	}
	if err := store.Verify(ctx, "sms", "+15550000000", "999999"); !errors.Is(err, ErrCodeAttemptsExceeded) {
		t.Fatalf("attempt 3: %v", err)
	}
	// Record discarded, even the right code is gone.
	if err := store.Verify(ctx, "sms", "+15550000000", code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("after exceed: %v", err)
	}
}

func TestConfirmationExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	code, err := store.Issue(ctx, "sms", "+15551112222", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := store.Verify(ctx, "sms", "+15551112222", code); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected expired code to be gone, got %v", err)
	}
}

func TestConfirmationReissueReplaces(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Issue(ctx, "sms", "+15553334444", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := store.Issue(ctx, "sms", "+15553334444", time.Minute)
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}

	if first != second {
		if err := store.Verify(ctx, "sms", "+15553334444", first); err == nil {
			t.Fatal("stale code must not verify")
		}
	}
	if err := store.Verify(ctx, "sms", "+15553334444", second); err != nil {
		t.Fatalf("verify replacement: %v", err)
	}
}
