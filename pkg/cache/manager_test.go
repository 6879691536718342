package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is running.
// The integration build tag runs the same checks against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestNewManagerFromURL(t *testing.T) {
	manager, client, err := NewManagerFromURL("redis://localhost:6379/3")
	if err != nil {
		t.Fatalf("NewManagerFromURL() error = %v", err)
	}
	defer client.Close()

	if manager == nil {
		t.Fatal("manager is nil")
	}
	if client.Options().DB != 3 {
		t.Errorf("DB = %d, want 3", client.Options().DB)
	}

	if _, _, err := NewManagerFromURL("http://not-redis"); err == nil {
		t.Error("NewManagerFromURL() should reject non-redis schemes")
	}
}

// runManagerSuite exercises a Manager against a live Redis.
func runManagerSuite(t *testing.T, client *redis.Client) {
	t.Helper()
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		manager := NewManager(client)
		key := Key{Network: "eth-mainnet", Endpoint: "getNFTMetadata"}

		entry := &Entry{
			Data:       []byte(`{"title":"Punk"}`),
			StatusCode: 200,
			Expires:    time.Now().Add(5 * time.Minute),
			CachedAt:   time.Now(),
		}
		if err := manager.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		retrieved, err := manager.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(retrieved.Data) != string(entry.Data) {
			t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
		}
		if retrieved.StatusCode != entry.StatusCode {
			t.Errorf("StatusCode mismatch: got %d, want %d", retrieved.StatusCode, entry.StatusCode)
		}

		ttl, err := client.TTL(ctx, key.String()).Result()
		if err != nil {
			t.Fatalf("TTL failed: %v", err)
		}
		if ttl <= 0 || ttl > 5*time.Minute {
			t.Errorf("redis TTL = %v, want (0, 5m]", ttl)
		}
	})

	t.Run("miss", func(t *testing.T) {
		manager := NewManager(client)
		_, err := manager.Get(ctx, Key{Endpoint: "nonexistent"})
		if !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("expired entry is not stored", func(t *testing.T) {
		manager := NewManager(client)
		key := Key{Endpoint: "expired"}

		if err := manager.Set(ctx, key, &Entry{Data: []byte("x"), Expires: time.Now().Add(-time.Hour)}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
		}
	})

	t.Run("stale entry read back is a miss", func(t *testing.T) {
		manager := NewManager(client)
		key := Key{Endpoint: "stale"}

		if err := manager.Set(ctx, key, &Entry{Data: []byte("x"), Expires: time.Now().Add(time.Minute)}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		manager.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss for stale entry, got %v", err)
		}
		if n, _ := client.Exists(ctx, key.String()).Result(); n != 0 {
			t.Error("stale entry was not deleted")
		}
	})

	t.Run("delete", func(t *testing.T) {
		manager := NewManager(client)
		key := Key{Endpoint: "delete"}

		if err := manager.Set(ctx, key, &Entry{Data: []byte("x"), Expires: time.Now().Add(time.Minute)}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := manager.Delete(ctx, key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
		}
	})

	t.Run("corrupted entry", func(t *testing.T) {
		manager := NewManager(client)
		key := Key{Endpoint: "corrupt"}

		if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
			t.Fatalf("raw Set failed: %v", err)
		}
		if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
			t.Errorf("Expected ErrInvalidEntry, got %v", err)
		}
	})

	t.Run("nil entry", func(t *testing.T) {
		if err := NewManager(client).Set(ctx, Key{Endpoint: "nil"}, nil); err == nil {
			t.Error("Set with nil entry should return error")
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := NewManager(client).Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestManager_LocalRedis(t *testing.T) {
	runManagerSuite(t, setupTestRedis(t))
}

func TestManager_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	manager := NewManager(client)
	ctx := context.Background()

	if _, err := manager.Get(ctx, Key{Endpoint: "x"}); err == nil || errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want connection error", err)
	}
	if err := manager.Set(ctx, Key{Endpoint: "x"}, &Entry{Expires: time.Now().Add(time.Minute)}); err == nil {
		t.Error("Set() should fail when Redis is unreachable")
	}
	if err := manager.Ping(ctx); err == nil {
		t.Error("Ping() should fail when Redis is unreachable")
	}
}
