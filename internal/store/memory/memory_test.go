package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haukened/wisp/internal/app"
	"github.com/haukened/wisp/internal/domain"
)

// tickClock implements app.Clock with a settable instant.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *tickClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testID = "0123456789abcdef0123456789abcdef"

func testRecord(clock app.Clock, ttl time.Duration) app.Record {
	now := clock.Now()
	return app.Record{
		ID:         testID,
		Nonce:      []byte("nonce"),
		Ciphertext: []byte("ciphertext"),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

func TestPutAndTake(t *testing.T) {
	clock := &tickClock{now: time.Unix(1700000000, 0).UTC()}
	s := New(clock)
	if err := s.Put(context.Background(), testRecord(clock, time.Hour)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	rec, err := s.Take(context.Background(), testID)
	if err != nil {
		t.Fatalf("Take error: %v", err)
	}
	if string(rec.Ciphertext) != "ciphertext" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := s.Take(context.Background(), testID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Take: expected ErrNotFound, got %v", err)
	}
}

func TestPutDuplicate(t *testing.T) {
	clock := &tickClock{now: time.Unix(1700000000, 0).UTC()}
	s := New(clock)
	if err := s.Put(context.Background(), testRecord(clock, time.Hour)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Put(context.Background(), testRecord(clock, time.Hour)); !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestTakeExpiredWithoutPurge(t *testing.T) {
	clock := &tickClock{now: time.Unix(1700000000, 0).UTC()}
	s := New(clock)
	if err := s.Put(context.Background(), testRecord(clock, time.Minute)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	clock.Advance(2 * time.Minute)
	// No purge ran; the logical expiry check inside Take must gate it.
	if _, err := s.Take(context.Background(), testID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	clock := &tickClock{now: time.Unix(1700000000, 0).UTC()}
	s := New(clock)
	if err := s.Put(context.Background(), testRecord(clock, time.Minute)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	other := testRecord(clock, time.Hour)
	other.ID = "ffffffffffffffffffffffffffffffff"
	if err := s.Put(context.Background(), other); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	clock.Advance(2 * time.Minute)
	n, err := s.DeleteExpired(context.Background(), clock.Now())
	if err != nil {
		t.Fatalf("DeleteExpired error: %v", err)
	}
	if n != 1 || s.Len() != 1 {
		t.Fatalf("expected 1 purged and 1 live, got n=%d len=%d", n, s.Len())
	}
}

func TestConcurrentTakeExactlyOneWinner(t *testing.T) {
	clock := &tickClock{now: time.Unix(1700000000, 0).UTC()}
	s := New(clock)
	if err := s.Put(context.Background(), testRecord(clock, time.Hour)); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		notFound int
	)
	start := make(chan struct{})
	for g := 0; g < n; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Take(context.Background(), testID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, domain.ErrNotFound):
				notFound++
			default:
				t.Errorf("unexpected Take error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	if won != 1 || notFound != n-1 {
		t.Fatalf("expected exactly 1 winner and %d not-found, got %d/%d", n-1, won, notFound)
	}
}
