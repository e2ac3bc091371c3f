package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
)

// redisSessionPrefix はセッションキーの接頭辞。
const redisSessionPrefix = "storefront:session:"

// RedisSessionStore はRedisを使用するscsのセッションストア。
// 有効期限はキーのTTLで管理するため、cleanupワーカーは不要。
type RedisSessionStore struct {
	rdb *redis.Client
}

// NewRedisSessionStore はRedisに接続し、疎通確認をしたうえでストアを返す。
func NewRedisSessionStore(ctx context.Context, redisURL string) (*RedisSessionStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisSessionStore{rdb: rdb}, nil
}

// NewRedisSessionStoreWithClient は既存のクライアントからストアを生成する。
func NewRedisSessionStoreWithClient(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

// Close はRedisクライアントを閉じる。
func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}

// FindCtx はセッションデータを取得する。キーが無い場合はfound=falseを返す。
func (s *RedisSessionStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, redisSessionPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find session: %w", err)
	}
	return b, true, nil
}

// CommitCtx はexpiryまでのTTL付きでセッションデータを保存する。
// 既に期限切れの場合はキーを削除する。
func (s *RedisSessionStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return s.DeleteCtx(ctx, token)
	}
	if err := s.rdb.Set(ctx, redisSessionPrefix+token, b, ttl).Err(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// DeleteCtx は指定トークンのセッションを削除する。
func (s *RedisSessionStore) DeleteCtx(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, redisSessionPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Find はcontextを受け取らないscs.Store向けの実装。
func (s *RedisSessionStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

// Commit はcontextを受け取らないscs.Store向けの実装。
func (s *RedisSessionStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

// Delete はcontextを受け取らないscs.Store向けの実装。
func (s *RedisSessionStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

// compile-time interface check
var _ scs.CtxStore = (*RedisSessionStore)(nil)
