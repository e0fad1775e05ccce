package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/pulsekeep/pulsekeep/internal/obs/retry"
)

type Config struct {
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Bucket    string        `mapstructure:"bucket"`
	Region    string        `mapstructure:"region"`
	Secure    bool          `mapstructure:"secure"`
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// Enabled reports whether body offloading is configured at all. Without a
// bucket the ingest path keeps bodies inline in postgres.
func (c Config) Enabled() bool { return c.Bucket != "" }

var ErrNotFound = errors.New("objectstore: object not found")

// Store offloads oversized ping bodies to S3-compatible storage. Keys are
// "<check code>/<EncodeN(n)>" so a single listing walks one check's bodies
// in descending ping order.
type Store struct {
	c       *minio.Client
	bucket  string
	timeout time.Duration
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Store, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.L()
	}
	return &Store{
		c:       cl,
		bucket:  cfg.Bucket,
		timeout: cfg.OpTimeout,
		log:     log.With(zap.String("component", "objectstore"), zap.String("bucket", cfg.Bucket)),
	}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Put stores one ping body, retrying transient backend errors.
func (s *Store) Put(ctx context.Context, code uuid.UUID, n int64, body []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := objectKey(code, n)
	pol := retry.Policy{
		Name:     "objectstore_put",
		Attempts: 3,
		Backoff:  retry.ExpoJitter{Base: 200 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.3},
		Retryable: func(err error) bool {
			return minio.ToErrorResponse(err).Code == "InternalError"
		},
		OnAttempt: func(attempt int, err error) {
			s.log.Warn("put attempt failed", zap.String("key", key), zap.Int("attempt", attempt), zap.Error(err))
		},
	}
	return retry.Do(ctx, func() error {
		_, err := s.c.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		return err
	}, pol)
}

// Get returns a stored body, or ErrNotFound when it was never stored or
// already pruned.
func (s *Store) Get(ctx context.Context, code uuid.UUID, n int64) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	obj, err := s.c.GetObject(ctx, s.bucket, objectKey(code, n), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	// GetObject is lazy; missing keys surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// RemoveUpTo deletes bodies with ping numbers at or below uptoN.
func (s *Store) RemoveUpTo(ctx context.Context, code uuid.UUID, uptoN int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	prefix := code.String() + "/"
	listing := s.c.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		StartAfter: prefix + EncodeN(uptoN+1),
		Recursive:  true,
	})

	doomed := make(chan minio.ObjectInfo)
	go func() {
		defer close(doomed)
		for obj := range listing {
			if obj.Err != nil {
				s.log.Warn("list failed", zap.String("prefix", prefix), zap.Error(obj.Err))
				return
			}
			select {
			case doomed <- obj:
			case <-ctx.Done():
				return
			}
		}
	}()

	var lastErr error
	for e := range s.c.RemoveObjects(ctx, s.bucket, doomed, minio.RemoveObjectsOptions{}) {
		s.log.Warn("remove failed", zap.String("key", e.ObjectName), zap.Error(e.Err))
		lastErr = e.Err
	}
	return lastErr
}
