package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/0dayfall/webfinger"
	"github.com/redis/go-redis/v9"
)

// maxPutAttempts bounds the retries of Put when the subject key changes under it.
const maxPutAttempts = 3

// RedisStore keeps one JRD document per subject, plus one key per alias naming its subject.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL. A non-empty password or non-zero db overrides the URL.
func NewRedisStore(redisURL, password string, db int, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if password != "" {
		opt.Password = password
	}
	if db != 0 {
		opt.DB = db
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) Lookup(ctx context.Context, resource webfinger.Resource) (webfinger.Response, error) {
	data, err := s.client.Get(ctx, s.subjectKey(resource.String())).Bytes()
	viaAlias := false
	if errors.Is(err, redis.Nil) {
		subject, aerr := s.client.Get(ctx, s.aliasKey(resource.String())).Result()
		if errors.Is(aerr, redis.Nil) {
			return webfinger.Response{}, notFound(resource)
		}
		if aerr != nil {
			return webfinger.Response{}, fmt.Errorf("failed to get alias from Redis: %w", aerr)
		}
		data, err = s.client.Get(ctx, s.subjectKey(subject)).Bytes()
		if errors.Is(err, redis.Nil) {
			return webfinger.Response{}, notFound(resource)
		}
		viaAlias = true
	}
	if err != nil {
		return webfinger.Response{}, fmt.Errorf("failed to get record from Redis: %w", err)
	}

	resp, err := webfinger.ParseResponse(data)
	if err != nil {
		return webfinger.Response{}, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, resource, err)
	}
	// An alias key left behind by an older record must not resolve.
	if viaAlias && !hasAlias(resp, resource) {
		return webfinger.Response{}, notFound(resource)
	}
	return resp, nil
}

// Put stores resp and its alias keys. Alias keys of the previous record for the same subject
// that resp no longer lists are removed, unless another subject has claimed them since.
func (s *RedisStore) Put(ctx context.Context, resp webfinger.Response) error {
	data, err := resp.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	subject := resp.Subject().String()
	key := s.subjectKey(subject)

	put := func(tx *redis.Tx) error {
		var previous []webfinger.Resource
		old, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("failed to get record from Redis: %w", err)
		default:
			// A corrupt previous record is overwritten; its aliases fail the Lookup check.
			if prev, perr := webfinger.ParseResponse(old); perr == nil {
				previous = prev.Aliases()
			}
		}

		var owned []string
		if stale := staleAliases(previous, resp.Aliases()); len(stale) > 0 {
			keys := make([]string, len(stale))
			for i, alias := range stale {
				keys[i] = s.aliasKey(alias)
			}
			owners, err := tx.MGet(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to get aliases from Redis: %w", err)
			}
			for i, owner := range owners {
				if o, ok := owner.(string); ok && o == subject {
					owned = append(owned, keys[i])
				}
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if len(owned) > 0 {
				pipe.Del(ctx, owned...)
			}
			for _, alias := range resp.Aliases() {
				pipe.Set(ctx, s.aliasKey(alias.String()), subject, 0)
			}
			return nil
		})
		return err
	}

	for range maxPutAttempts {
		err = s.client.Watch(ctx, put, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to store record in Redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) subjectKey(subject string) string {
	return s.prefix + "subject:" + subject
}

func (s *RedisStore) aliasKey(alias string) string {
	return s.prefix + "alias:" + alias
}

// staleAliases returns the aliases in previous that current no longer lists, once each.
func staleAliases(previous, current []webfinger.Resource) []string {
	var stale []string
	for _, alias := range previous {
		if !slices.Contains(current, alias) && !slices.Contains(stale, alias.String()) {
			stale = append(stale, alias.String())
		}
	}
	return stale
}

func hasAlias(resp webfinger.Response, resource webfinger.Resource) bool {
	return slices.Contains(resp.Aliases(), resource)
}
