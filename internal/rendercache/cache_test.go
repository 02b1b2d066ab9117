package rendercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := New("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache, s
}

func TestPutAndGet(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	html := `<p>See <a href="#clause-6A.1" class="clause-ref" data-clause="6A.1">Clause 6A.1</a>.</p>`

	if err := cache.Put(ctx, "ct-1", "cl-1", "abc1234", html); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, "ct-1", "cl-1", "abc1234")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != html {
		t.Errorf("expected cached html back, got %q", got)
	}
}

func TestGetMiss(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	_, err := cache.Get(context.Background(), "ct-1", "cl-1", "missing")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestGetExpired(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache, err := New("redis://"+s.Addr(), time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Put(ctx, "ct-1", "cl-1", "abc1234", "<p>x</p>"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := cache.Get(ctx, "ct-1", "cl-1", "abc1234"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestInvalidateContract(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := cache.Put(ctx, "ct-1", "cl-1", "r1", "<p>one</p>"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Put(ctx, "ct-1", "cl-2", "r1", "<p>two</p>"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Put(ctx, "ct-2", "cl-9", "r1", "<p>other</p>"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := cache.InvalidateContract(ctx, "ct-1"); err != nil {
		t.Fatalf("InvalidateContract failed: %v", err)
	}

	if _, err := cache.Get(ctx, "ct-1", "cl-1", "r1"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ct-1/cl-1 evicted, got %v", err)
	}
	if _, err := cache.Get(ctx, "ct-1", "cl-2", "r1"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ct-1/cl-2 evicted, got %v", err)
	}

	if got, err := cache.Get(ctx, "ct-2", "cl-9", "r1"); err != nil || got != "<p>other</p>" {
		t.Errorf("expected ct-2 untouched, got %q err=%v", got, err)
	}
}

func TestInvalidateEmptyContract(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	if err := cache.InvalidateContract(context.Background(), "ct-none"); err != nil {
		t.Errorf("InvalidateContract on empty contract failed: %v", err)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	if _, err := cache.Get(ctx, "ct", "cl", "r"); !errors.Is(err, ErrMiss) {
		t.Errorf("nil cache Get: expected ErrMiss, got %v", err)
	}
	if err := cache.Put(ctx, "ct", "cl", "r", "<p>x</p>"); err != nil {
		t.Errorf("nil cache Put: expected nil, got %v", err)
	}
	if err := cache.InvalidateContract(ctx, "ct"); err != nil {
		t.Errorf("nil cache InvalidateContract: expected nil, got %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("nil cache Close: expected nil, got %v", err)
	}
}
