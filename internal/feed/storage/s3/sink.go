// Package s3 keeps datasets as CSV objects in an S3-compatible store: inputs as
// one named object, results as one object per run.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/chenzhangda16/web3-feed/internal/feed/retry"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type Store struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

func NewStore(cfg Config, bucket string) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", storage.ErrUnsupported)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: s3 access key and secret key are required", storage.ErrUnsupported)
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", storage.ErrUnsupported)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &Store{client: client, bucket: bucket, region: region}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *Store) src(key string) string { return "s3://" + s.bucket + "/" + key }

// Put uploads content under key, retrying transient failures.
func (s *Store) Put(ctx context.Context, key, contentType string, content []byte) error {
	if err := s.ensureBucket(ctx); err != nil {
		return storage.IOError("ensure bucket", s.src(""), err)
	}
	err := retry.Do(ctx, retry.Remote(func(attempt int, wait time.Duration, err error) {
		log.Printf("[s3] put retry: key=%s attempt=%d wait=%s err=%v", key, attempt, wait, err)
	}), func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	})
	if err != nil {
		return storage.IOError("put", s.src(key), err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, storage.IOError("get", s.src(key), err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, storage.IOError("get", s.src(key), err)
	}
	return data, nil
}

// ObjectKey is <prefix>/<runID>/<name>.csv with empty parts dropped.
func ObjectKey(prefix, runID, name string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, runID} {
		if p = strings.Trim(strings.TrimSpace(p), "/"); p != "" {
			parts = append(parts, p)
		}
	}
	return path.Join(append(parts, name+".csv")...)
}

// Sink writes one dataset as a single CSV object per run.
type Sink[T any] struct {
	store *Store
	key   string
	codec storage.Codec[T]
}

func NewSink[T any](store *Store, prefix, runID, name string, codec storage.Codec[T]) *Sink[T] {
	return &Sink[T]{store: store, key: ObjectKey(prefix, runID, name), codec: codec}
}

func (s *Sink[T]) Key() string { return s.key }

func (s *Sink[T]) Save(ctx context.Context, records []T) error {
	var buf bytes.Buffer
	if err := storage.WriteCSV(ctx, &buf, s.codec, records, s.store.src(s.key)); err != nil {
		return err
	}
	return s.store.Put(ctx, s.key, "text/csv", buf.Bytes())
}

// Object is one dataset held as a single CSV object at a fixed key, used for
// inputs and for import targets.
type Object[T any] struct {
	store *Store
	key   string
	codec storage.Codec[T]
}

func NewObject[T any](store *Store, key string, codec storage.Codec[T]) (*Object[T], error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, fmt.Errorf("%w: s3 dataset needs an object key (s3://bucket/key.csv)", storage.ErrUnsupported)
	}
	return &Object[T]{store: store, key: key, codec: codec}, nil
}

func (o *Object[T]) Key() string { return o.key }

func (o *Object[T]) Load(ctx context.Context) ([]T, error) {
	data, err := o.store.Get(ctx, o.key)
	if err != nil {
		return nil, err
	}
	return storage.ReadCSV(ctx, bytes.NewReader(data), o.codec, o.store.src(o.key))
}

func (o *Object[T]) Save(ctx context.Context, records []T) error {
	var buf bytes.Buffer
	if err := storage.WriteCSV(ctx, &buf, o.codec, records, o.store.src(o.key)); err != nil {
		return err
	}
	return o.store.Put(ctx, o.key, "text/csv", buf.Bytes())
}
