// Package redis owns the process-wide redis client used for resolve-result
// caching.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

var (
	client *redislib.Client
	once   sync.Once
)

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Init connects and pings with bounded retries. Safe to call more than
// once; only the first call connects.
func Init(cfg Config) (*redislib.Client, error) {
	var initErr error

	once.Do(func() {
		client = redislib.NewClient(&redislib.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		if err := pingWithRetry(client, 5, 200*time.Millisecond); err != nil {
			initErr = err
			_ = client.Close()
			client = nil
		}
	})

	if client == nil && initErr == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	return client, initErr
}

func pingWithRetry(c *redislib.Client, attempts int, backoff time.Duration) error {
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = c.Ping(ctx).Err()
		cancel()

		if err == nil {
			return nil
		}
		if attempt < attempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return err
}

func Client() *redislib.Client {
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}
