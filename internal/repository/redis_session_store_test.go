package repository

import (
	"context"
	"os"
	"testing"
	"time"
)

// setupRedisStore は TEST_REDIS_URL のRedisに接続する。未設定または接続不可の場合はスキップする。
func setupRedisStore(t *testing.T) *RedisSessionStore {
	t.Helper()

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL が未設定のためスキップ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	store, err := NewRedisSessionStore(ctx, redisURL)
	if err != nil {
		t.Skipf("テスト用Redisに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewRedisSessionStore_InvalidURL(t *testing.T) {
	if _, err := NewRedisSessionStore(context.Background(), "not a url"); err == nil {
		t.Error("expected error for invalid redis URL")
	}
}

func TestRedisSessionStore_CommitFindDelete(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	if err := store.CommitCtx(ctx, "redis-token", []byte("payload"), time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("CommitCtx returned error: %v", err)
	}

	b, found, err := store.FindCtx(ctx, "redis-token")
	if err != nil {
		t.Fatalf("FindCtx returned error: %v", err)
	}
	if !found || string(b) != "payload" {
		t.Errorf("FindCtx = (%q, %v), want (payload, true)", b, found)
	}

	ttl, err := store.rdb.TTL(ctx, redisSessionPrefix+"redis-token").Result()
	if err != nil {
		t.Fatalf("TTL returned error: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}

	if err := store.Delete("redis-token"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, found, _ := store.Find("redis-token"); found {
		t.Error("session should be deleted")
	}
}

func TestRedisSessionStore_CommitExpired_DeletesKey(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	_ = store.CommitCtx(ctx, "gone", []byte("x"), time.Now().Add(time.Minute))
	if err := store.CommitCtx(ctx, "gone", []byte("x"), time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("CommitCtx returned error: %v", err)
	}

	if _, found, _ := store.FindCtx(ctx, "gone"); found {
		t.Error("expired commit should remove the key")
	}
}
