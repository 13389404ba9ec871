package sessionstore

import (
	"context"

	"admin-auth/internal/client"
)

const sessionBlobPrefix = "admin_session:"

// RedisMedium stores the blob under one key per profile.
type RedisMedium struct {
	client *client.RedisClient
	key    string
}

// NewRedisMedium builds a redis medium for the given profile id.
func NewRedisMedium(rc *client.RedisClient, profile string) *RedisMedium {
	return &RedisMedium{client: rc, key: sessionBlobPrefix + profile}
}

func (m *RedisMedium) Write(ctx context.Context, blob []byte) error {
	return m.client.Set(ctx, m.key, blob)
}

func (m *RedisMedium) Read(ctx context.Context) ([]byte, bool, error) {
	return m.client.Get(ctx, m.key)
}

func (m *RedisMedium) Clear(ctx context.Context) error {
	return m.client.Del(ctx, m.key)
}
