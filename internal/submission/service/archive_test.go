package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"codearena/internal/common/storage"

	"github.com/klauspost/compress/zstd"
)

type fakeObjectStorage struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (s *fakeObjectStorage) PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[bucket+"/"+objectKey] = data
	s.contentTypes[bucket+"/"+objectKey] = contentType
	return nil
}

func (s *fakeObjectStorage) GetObject(ctx context.Context, bucket, objectKey string) (storage.ObjectReader, error) {
	return io.NopCloser(bytes.NewReader(s.objects[bucket+"/"+objectKey])), nil
}

func (s *fakeObjectStorage) StatObject(ctx context.Context, bucket, objectKey string) (storage.ObjectStat, error) {
	data := s.objects[bucket+"/"+objectKey]
	return storage.ObjectStat{SizeBytes: int64(len(data))}, nil
}

func (s *fakeObjectStorage) RemoveObjects(ctx context.Context, bucket string, keys []string) error {
	for _, key := range keys {
		delete(s.objects, bucket+"/"+key)
	}
	return nil
}

func TestArchiveRoundTrip(t *testing.T) {
	store := newFakeObjectStorage()
	archiver, err := NewSourceArchiver(store, "sources")
	if err != nil {
		t.Fatalf("NewSourceArchiver: %v", err)
	}

	source := "int main() { return 0; }"
	key, err := archiver.Archive(context.Background(), "sub-1", "cpp", source)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if key != "submissions/sub-1/source.cpp.zst" {
		t.Fatalf("key = %q", key)
	}
	if ct := store.contentTypes["sources/"+key]; ct != "application/zstd" {
		t.Fatalf("content type = %q", ct)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer decoder.Close()
	decoded, err := decoder.DecodeAll(store.objects["sources/"+key], nil)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if string(decoded) != source {
		t.Fatalf("decoded = %q, want %q", decoded, source)
	}
}
