package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tdnguyen/outcall/internal/core/resilience"
)

// ErrNotFound is returned when the requested object does not exist. It is
// never retried.
var ErrNotFound = errors.New("object not found")

// Config holds blob store connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Store is a bucket/key blob store backed by Redis. Every operation runs
// through the shared call executor with a per-bucket circuit breaker, so a
// single unhealthy bucket backend does not take down the others.
type Store struct {
	rdb    *redis.Client
	exec   *resilience.Executor
	policy resilience.Policy
	log    *slog.Logger
}

// StoragePolicy is the storage-client budget: two attempts with the
// standard backoff bounds.
func StoragePolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts: 2,
		Multiplier:  1 * time.Second,
		MinWait:     2 * time.Second,
		MaxWait:     10 * time.Second,
	}
}

// New creates a Store and verifies connectivity.
func New(cfg Config, exec *resilience.Executor) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse blob store URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to blob store: %w", err)
	}

	return NewWithClient(rdb, exec), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(rdb *redis.Client, exec *resilience.Executor) *Store {
	return &Store{
		rdb:    rdb,
		exec:   exec,
		policy: StoragePolicy(),
		log:    slog.Default(),
	}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Key helpers
func blobKey(bucket, key string) string {
	return fmt.Sprintf("blob:%s:%s", bucket, key)
}

func breakerKey(bucket string) string {
	return "blob:" + bucket
}

// Upload stores data under bucket/key, with an optional content type.
func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	s.log.Info("uploading object", "bucket", bucket, "key", key, "size", len(data))
	return s.guarded(ctx, "upload", bucket, func(ctx context.Context) error {
		fields := map[string]any{"data": data}
		if contentType != "" {
			fields["content_type"] = contentType
		}
		return s.rdb.HSet(ctx, blobKey(bucket, key), fields).Err()
	})
}

// Download returns the object stored under bucket/key.
func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	s.log.Info("downloading object", "bucket", bucket, "key", key)
	var data []byte
	err := s.guarded(ctx, "download", bucket, func(ctx context.Context) error {
		b, err := s.rdb.HGet(ctx, blobKey(bucket, key), "data").Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ContentType returns the stored content type for bucket/key, if any.
func (s *Store) ContentType(ctx context.Context, bucket, key string) (string, error) {
	var ct string
	err := s.guarded(ctx, "content_type", bucket, func(ctx context.Context) error {
		v, err := s.rdb.HGet(ctx, blobKey(bucket, key), "content_type").Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		ct = v
		return nil
	})
	return ct, err
}

// Delete removes the object under bucket/key. Deleting a missing object is
// not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	s.log.Info("deleting object", "bucket", bucket, "key", key)
	return s.guarded(ctx, "delete", bucket, func(ctx context.Context) error {
		return s.rdb.Del(ctx, blobKey(bucket, key)).Err()
	})
}

// Exists reports whether an object is stored under bucket/key.
func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	var found bool
	err := s.guarded(ctx, "exists", bucket, func(ctx context.Context) error {
		n, err := s.rdb.Exists(ctx, blobKey(bucket, key)).Result()
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	})
	return found, err
}

// List returns the keys in bucket that start with prefix.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	s.log.Info("listing objects", "bucket", bucket, "prefix", prefix)
	var keys []string
	err := s.guarded(ctx, "list", bucket, func(ctx context.Context) error {
		keys = keys[:0]
		pattern := blobKey(bucket, prefix) + "*"
		iter := s.rdb.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, trimBlobKey(bucket, iter.Val()))
		}
		return iter.Err()
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// HealthCheck pings the backend with the fail-fast policy.
func (s *Store) HealthCheck(ctx context.Context) bool {
	err := s.execute(ctx, "ping", "health", resilience.NoRetry(), func(ctx context.Context) error {
		return s.rdb.Ping(ctx).Err()
	})
	if err != nil {
		s.log.Warn("blob store health check failed", "error", err)
		return false
	}
	return true
}

func (s *Store) guarded(ctx context.Context, operation, bucket string, fn func(ctx context.Context) error) error {
	return s.execute(ctx, operation, bucket, s.policy, fn)
}

func (s *Store) execute(ctx context.Context, operation, bucket string, policy resilience.Policy, fn func(ctx context.Context) error) error {
	call := resilience.Call{
		Key:       breakerKey(bucket),
		Component: "objectstore",
		Operation: operation,
		Target:    bucket,
	}
	_, err := s.exec.Execute(ctx, call, func(ctx context.Context) resilience.Outcome {
		return resilience.Outcome{Err: fn(ctx)}
	}, policy)
	if err != nil {
		s.log.Warn("blob store operation failed",
			"operation", operation, "bucket", bucket, "error", err)
	}
	return err
}

func trimBlobKey(bucket, raw string) string {
	return strings.TrimPrefix(raw, fmt.Sprintf("blob:%s:", bucket))
}
