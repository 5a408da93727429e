package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

var errMock = errors.New("mock error")

// MockSubscriptionService implements services.SubscriptionService for testing
type MockSubscriptionService struct {
	IsProFunc func(ctx context.Context, userID string) (bool, error)
	Completed int
	Err       error
	Counts    int
}

func (m *MockSubscriptionService) IsPro(ctx context.Context, userID string) (bool, error) {
	if m.IsProFunc != nil {
		return m.IsProFunc(ctx, userID)
	}
	return false, nil
}

func (m *MockSubscriptionService) CountCompletedTasks(context.Context, string) (int, error) {
	m.Counts++
	return m.Completed, m.Err
}

// memoryCache implements Cache for testing
type memoryCache struct {
	counts map[string]int
	getErr error
	setErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{counts: make(map[string]int)}
}

func (c *memoryCache) Get(_ context.Context, userID string) (int, bool, error) {
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	n, ok := c.counts[userID]
	return n, ok, nil
}

func (c *memoryCache) Set(_ context.Context, userID string, count int) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.counts[userID] = count
	return nil
}

func TestProvider_CompletedCount(t *testing.T) {
	ctx := context.Background()

	t.Run("without cache", func(t *testing.T) {
		svc := &MockSubscriptionService{Completed: 4}
		p := NewProvider(zerolog.Nop(), svc, nil)

		for i := 0; i < 2; i++ {
			n, err := p.CompletedCount(ctx, "user-1")
			if err != nil || n != 4 {
				t.Fatalf("CompletedCount() = %d, %v, want 4", n, err)
			}
		}
		if svc.Counts != 2 {
			t.Errorf("Counts = %d, want 2", svc.Counts)
		}
	})

	t.Run("cache hit", func(t *testing.T) {
		svc := &MockSubscriptionService{Completed: 4}
		cache := newMemoryCache()
		p := NewProvider(zerolog.Nop(), svc, cache)

		if _, err := p.CompletedCount(ctx, "user-1"); err != nil {
			t.Fatalf("CompletedCount() error = %v", err)
		}
		svc.Completed = 9
		n, err := p.CompletedCount(ctx, "user-1")
		if err != nil || n != 4 {
			t.Errorf("CompletedCount() = %d, %v, want cached 4", n, err)
		}
		if svc.Counts != 1 {
			t.Errorf("Counts = %d, want 1", svc.Counts)
		}
	})

	t.Run("cache failure falls back", func(t *testing.T) {
		svc := &MockSubscriptionService{Completed: 4}
		cache := newMemoryCache()
		cache.getErr = errMock
		cache.setErr = errMock
		p := NewProvider(zerolog.Nop(), svc, cache)

		n, err := p.CompletedCount(ctx, "user-1")
		if err != nil || n != 4 {
			t.Errorf("CompletedCount() = %d, %v, want 4", n, err)
		}
	})

	t.Run("database failure", func(t *testing.T) {
		svc := &MockSubscriptionService{Err: errMock}
		p := NewProvider(zerolog.Nop(), svc, newMemoryCache())

		if _, err := p.CompletedCount(ctx, "user-1"); !errors.Is(err, errMock) {
			t.Errorf("CompletedCount() error = %v, want %v", err, errMock)
		}
	})
}

func TestProvider_Resync(t *testing.T) {
	ctx := context.Background()
	svc := &MockSubscriptionService{Completed: 4}
	cache := newMemoryCache()
	p := NewProvider(zerolog.Nop(), svc, cache)

	if _, err := p.CompletedCount(ctx, "user-1"); err != nil {
		t.Fatalf("CompletedCount() error = %v", err)
	}
	svc.Completed = 5

	n, err := p.Resync(ctx, "user-1")
	if err != nil || n != 5 {
		t.Fatalf("Resync() = %d, %v, want 5", n, err)
	}
	if cache.counts["user-1"] != 5 {
		t.Errorf("cached count = %d, want 5", cache.counts["user-1"])
	}
}

func TestProvider_IsPro(t *testing.T) {
	svc := &MockSubscriptionService{
		IsProFunc: func(_ context.Context, userID string) (bool, error) {
			return userID == "pro", nil
		},
	}
	p := NewProvider(zerolog.Nop(), svc, nil)

	if pro, _ := p.IsPro(context.Background(), "pro"); !pro {
		t.Error("IsPro(pro) = false")
	}
	if pro, _ := p.IsPro(context.Background(), "free"); pro {
		t.Error("IsPro(free) = true")
	}
}

func TestKey(t *testing.T) {
	if got := Key("user-1"); got != "taskboard:completed:user-1" {
		t.Errorf("Key() = %q", got)
	}
}
