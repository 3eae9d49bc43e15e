package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBatch_OrderAndGrouping(t *testing.T) {
	sleeper := &recordingSleeper{}
	items := []string{"^NSEI", "^NSEBANK", "^CNXIT", "^NSMIDCP", "^INDIAVIX", "^BSESN"}

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	got, err := Batch(context.Background(), items, func(ctx context.Context, s string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return s + "!", nil
	}, BatchOptions{Size: 2, Delay: 2 * time.Second, Sleep: sleeper.Sleep})
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}

	for i, s := range items {
		if got[i] != s+"!" {
			t.Errorf("got[%d] = %q, want %q", i, got[i], s+"!")
		}
	}
	if maxInFlight > 2 {
		t.Errorf("max concurrent = %d, want <= 2", maxInFlight)
	}

	// 3 groups, sleeps only between them
	sleeps := sleeper.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %v, want 2", sleeps)
	}
	for _, d := range sleeps {
		if d != 2*time.Second {
			t.Errorf("sleep = %v, want 2s", d)
		}
	}
}

func TestBatch_FailFast(t *testing.T) {
	sleeper := &recordingSleeper{}
	boom := errors.New("boom")

	var mu sync.Mutex
	seen := map[int]bool{}

	_, err := Batch(context.Background(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, n int) (int, error) {
		mu.Lock()
		seen[n] = true
		mu.Unlock()
		if n == 3 {
			return 0, boom
		}
		return n, nil
	}, BatchOptions{Size: 2, Delay: time.Second, Sleep: sleeper.Sleep})

	if !errors.Is(err, boom) {
		t.Fatalf("Batch() error = %v, want boom", err)
	}
	if seen[5] {
		t.Error("group after the failing group was started")
	}
}

func TestBatch_Empty(t *testing.T) {
	got, err := Batch(context.Background(), nil, func(ctx context.Context, n int) (int, error) {
		t.Error("fn called for empty input")
		return 0, nil
	}, DefaultBatchOptions())
	if err != nil || len(got) != 0 {
		t.Errorf("Batch(nil) = %v, %v, want empty, nil", got, err)
	}
}

func TestBatch_ContextCancelledBetweenGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Batch(ctx, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		calls++
		return n, nil
	}, BatchOptions{Size: 1, Delay: time.Second, Sleep: func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Batch() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDefaultBatchOptions(t *testing.T) {
	opts := DefaultBatchOptions()
	if opts.Size != 2 || opts.Delay != 2*time.Second {
		t.Errorf("DefaultBatchOptions() = %+v, want size 2 delay 2s", opts)
	}
}
