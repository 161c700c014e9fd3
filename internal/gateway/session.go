package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SessionStore 保存登录随机数与会话，会话可以被主动注销
type SessionStore interface {
	// PutNonce 为地址保存一次性登录随机数，覆盖旧值
	PutNonce(ctx context.Context, address, nonce string, ttl time.Duration) error
	// TakeNonce 取出并删除随机数，保证同一个签名只能使用一次
	TakeNonce(ctx context.Context, address string) (string, bool, error)
	// PutSession 记录会话ID对应的地址
	PutSession(ctx context.Context, id, address string, ttl time.Duration) error
	// Session 查询会话是否有效
	Session(ctx context.Context, id string) (string, bool, error)
	// DeleteSession 注销会话
	DeleteSession(ctx context.Context, id string) error
	Close() error
}

func nonceKey(address string) string {
	return "nonce:" + strings.ToLower(address)
}

func sessionKey(id string) string {
	return "session:" + id
}

// MemorySessionStore 进程内会话存储
type MemorySessionStore struct {
	cache *MemoryCache
}

// NewMemorySessionStore 创建内存会话存储
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{cache: NewMemoryCache()}
}

func (s *MemorySessionStore) PutNonce(_ context.Context, address, nonce string, ttl time.Duration) error {
	s.cache.Set(nonceKey(address), nonce, ttl)
	return nil
}

func (s *MemorySessionStore) TakeNonce(_ context.Context, address string) (string, bool, error) {
	v, ok := s.cache.Take(nonceKey(address))
	return v, ok, nil
}

func (s *MemorySessionStore) PutSession(_ context.Context, id, address string, ttl time.Duration) error {
	s.cache.Set(sessionKey(id), address, ttl)
	return nil
}

func (s *MemorySessionStore) Session(_ context.Context, id string) (string, bool, error) {
	v, ok := s.cache.Get(sessionKey(id))
	return v, ok, nil
}

func (s *MemorySessionStore) DeleteSession(_ context.Context, id string) error {
	s.cache.Delete(sessionKey(id))
	return nil
}

func (s *MemorySessionStore) Close() error {
	s.cache.Close()
	return nil
}

// RedisSessionStore 使用Redis保存会话，Redis失败时回退到内存存储
type RedisSessionStore struct {
	client   *redis.Client
	fallback *MemorySessionStore
	log      *zap.Logger
}

// NewRedisSessionStore 创建Redis会话存储
func NewRedisSessionStore(client *redis.Client, log *zap.Logger) *RedisSessionStore {
	return &RedisSessionStore{
		client:   client,
		fallback: NewMemorySessionStore(),
		log:      log,
	}
}

// NewSessionStore Redis可用时使用Redis，否则使用内存存储
func NewSessionStore(client *redis.Client, log *zap.Logger) SessionStore {
	if client == nil {
		return NewMemorySessionStore()
	}
	return NewRedisSessionStore(client, log)
}

func (s *RedisSessionStore) degraded(op string, err error) {
	s.log.Warn("Redis操作失败，回退到内存存储", zap.String("op", op), zap.Error(err))
}

func (s *RedisSessionStore) PutNonce(ctx context.Context, address, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, nonceKey(address), nonce, ttl).Err(); err != nil {
		s.degraded("put_nonce", err)
		return s.fallback.PutNonce(ctx, address, nonce, ttl)
	}
	return nil
}

func (s *RedisSessionStore) TakeNonce(ctx context.Context, address string) (string, bool, error) {
	v, err := s.client.GetDel(ctx, nonceKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return s.fallback.TakeNonce(ctx, address)
	}
	if err != nil {
		s.degraded("take_nonce", err)
		return s.fallback.TakeNonce(ctx, address)
	}
	return v, true, nil
}

func (s *RedisSessionStore) PutSession(ctx context.Context, id, address string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(id), address, ttl).Err(); err != nil {
		s.degraded("put_session", err)
		return s.fallback.PutSession(ctx, id, address, ttl)
	}
	return nil
}

func (s *RedisSessionStore) Session(ctx context.Context, id string) (string, bool, error) {
	v, err := s.client.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return s.fallback.Session(ctx, id)
	}
	if err != nil {
		s.degraded("get_session", err)
		return s.fallback.Session(ctx, id)
	}
	return v, true, nil
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		s.degraded("delete_session", err)
	}
	// 同时从内存删除（如果存在）
	return s.fallback.DeleteSession(ctx, id)
}

// Close 不关闭共享的Redis客户端
func (s *RedisSessionStore) Close() error {
	return s.fallback.Close()
}
