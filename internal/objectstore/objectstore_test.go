// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 implements API in memory.
type fakeS3 struct {
	objects map[string][]byte
	putErr  error
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestPutUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	client := NewWithAPI(fake, Config{Bucket: "backups", Prefix: "vault/"})

	local := filepath.Join(t.TempDir(), "store.sqlite")
	if err := os.WriteFile(local, []byte("snapshot bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := client.Put(context.Background(), local, "te/did:plc:test1/store.sqlite"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := fake.objects["vault/te/did:plc:test1/store.sqlite"]
	if !ok {
		t.Fatalf("object not stored under prefixed key; have %v", keysOf(fake.objects))
	}
	if string(got) != "snapshot bytes" {
		t.Errorf("stored body = %q", got)
	}
}

func TestPutWrapsUploadError(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.putErr = errors.New("connection reset")
	client := NewWithAPI(fake, Config{Bucket: "backups"})

	local := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(local, []byte("pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := client.Put(context.Background(), local, "key.pem")
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("Put error = %v, want *UploadError", err)
	}
	if uploadErr.Key != "key.pem" {
		t.Errorf("UploadError.Key = %q", uploadErr.Key)
	}
}

func TestPutMissingLocalFile(t *testing.T) {
	t.Parallel()

	client := NewWithAPI(newFakeS3(), Config{Bucket: "backups"})

	err := client.Put(context.Background(), filepath.Join(t.TempDir(), "absent"), "k")
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("Put error = %v, want *UploadError", err)
	}
}

func TestGetRoundTrip(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.objects["vault/restore.sqlite"] = []byte("restored")
	client := NewWithAPI(fake, Config{Bucket: "backups", Prefix: "vault"})

	dest := filepath.Join(t.TempDir(), "sub", "restore.sqlite")
	if err := client.Get(context.Background(), "restore.sqlite", dest); err != nil {
		t.Fatalf("Get: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(data) != "restored" {
		t.Errorf("restored body = %q", data)
	}
}

func TestGetMissingObject(t *testing.T) {
	t.Parallel()

	client := NewWithAPI(newFakeS3(), Config{Bucket: "backups"})

	err := client.Get(context.Background(), "absent", filepath.Join(t.TempDir(), "f"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get = %v, want ErrObjectNotFound", err)
	}
}

func TestThrottledPutDeliversAllBytes(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	client := NewWithAPI(fake, Config{
		Bucket:               "backups",
		UploadBytesPerSecond: 64 * 1024 * 1024,
	})

	payload := bytes.Repeat([]byte("ab"), 32*1024)
	err := client.PutReader(context.Background(), "big", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("PutReader: %v", err)
	}
	if !bytes.Equal(fake.objects["big"], payload) {
		t.Error("throttled upload corrupted payload")
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
