package repository

import (
	"context"
	"io"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/database"
)

// AvatarStorage member avatar objects
type AvatarStorage interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// URL short lived download link, empty key gives an empty url
	URL(ctx context.Context, key string) (string, error)
}

type minioAvatarStorage struct {
	client *database.MinIOClient
	expiry time.Duration
}

// NewMinIOAvatarStorage avatars in a minio bucket, served through presigned urls
func NewMinIOAvatarStorage(client *database.MinIOClient, expiry time.Duration) AvatarStorage {
	return &minioAvatarStorage{client: client, expiry: expiry}
}

func (s *minioAvatarStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.client.PutObject(ctx, key, r, size, contentType)
}

func (s *minioAvatarStorage) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.client.PresignGetURL(ctx, key, s.expiry)
}

type disabledAvatarStorage struct{}

// NewDisabledAvatarStorage used when minio is not configured
func NewDisabledAvatarStorage() AvatarStorage {
	return disabledAvatarStorage{}
}

func (disabledAvatarStorage) Upload(context.Context, string, io.Reader, int64, string) error {
	return domain.ErrAvatarDisabled
}

func (disabledAvatarStorage) URL(context.Context, string) (string, error) {
	return "", nil
}
