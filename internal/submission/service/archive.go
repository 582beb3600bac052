package service

import (
	"bytes"
	"context"
	"fmt"

	"codearena/internal/common/storage"

	"github.com/klauspost/compress/zstd"
)

// SourceArchiver stores submitted source code in object storage so the
// submissions table only keeps the inline copy for quick listing.
type SourceArchiver interface {
	// Archive stores the source and returns the object key.
	Archive(ctx context.Context, submissionID, language, sourceCode string) (string, error)
}

// MinIOSourceArchiver writes zstd-compressed sources to a single bucket.
type MinIOSourceArchiver struct {
	storage storage.ObjectStorage
	bucket  string
	encoder *zstd.Encoder
}

func NewSourceArchiver(store storage.ObjectStorage, bucket string) (*MinIOSourceArchiver, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &MinIOSourceArchiver{
		storage: store,
		bucket:  bucket,
		encoder: encoder,
	}, nil
}

func (a *MinIOSourceArchiver) Archive(ctx context.Context, submissionID, language, sourceCode string) (string, error) {
	compressed := a.encoder.EncodeAll([]byte(sourceCode), nil)
	key := fmt.Sprintf("submissions/%s/source.%s.zst", submissionID, language)
	err := a.storage.PutObject(ctx, a.bucket, key,
		bytes.NewReader(compressed), int64(len(compressed)), "application/zstd")
	if err != nil {
		return "", fmt.Errorf("archive source %s: %w", key, err)
	}
	return key, nil
}
