package timeseries

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

// mockClock provides deterministic time for testing.
type mockClock struct {
	mu   sync.Mutex
	time time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{time: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = c.time.Add(d)
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestHistory_Eviction(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		inserts  int
		want     []int
	}{
		{"empty", 5, 0, []int{}},
		{"under capacity", 5, 3, seq(1, 3)},
		{"exactly full", 5, 5, seq(1, 5)},
		{"one over", 5, 6, seq(2, 6)},
		{"many over", 100, 250, seq(151, 250)},
		{"capacity one", 1, 4, []int{4}},
		{"unbounded", 0, 40, seq(1, 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory[int](tt.capacity)
			for i := 1; i <= tt.inserts; i++ {
				h.Append(i)
			}

			if h.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", h.Len(), len(tt.want))
			}
			if got := h.Snapshot(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Snapshot() = %v, want %v", got, tt.want)
			}
			if tt.capacity > 0 && h.Len() > tt.capacity {
				t.Errorf("Len() %d exceeds capacity %d", h.Len(), tt.capacity)
			}
		})
	}
}

func TestHistory_Latest(t *testing.T) {
	h := NewHistory[string](2)
	if _, ok := h.Latest(); ok {
		t.Fatal("Latest() on empty history reported ok")
	}

	for _, v := range []string{"a", "b", "c"} {
		h.Append(v)
		got, ok := h.Latest()
		if !ok || got != v {
			t.Errorf("Latest() = %q, %v; want %q, true", got, ok, v)
		}
	}
}

func TestHistory_Last(t *testing.T) {
	h := NewHistory[int](4)
	for i := 1; i <= 7; i++ {
		h.Append(i)
	}

	tests := []struct {
		n    int
		want []int
	}{
		{0, []int{}},
		{1, []int{7}},
		{3, []int{5, 6, 7}},
		{10, []int{4, 5, 6, 7}},
	}
	for _, tt := range tests {
		if got := h.Last(tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Last(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	h := NewHistory[int](3)
	h.Append(1)
	snap := h.Snapshot()
	snap[0] = 99
	if got, _ := h.Latest(); got != 1 {
		t.Errorf("mutating snapshot changed history: Latest() = %d", got)
	}
}

func TestHistory_TimestampOrder(t *testing.T) {
	clock := newMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h := NewHistory[time.Time](10)
	for i := 0; i < 25; i++ {
		h.Append(clock.Now())
		clock.Advance(time.Second)
	}

	snap := h.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i].Before(snap[i-1]) {
			t.Fatalf("entry %d (%v) before entry %d (%v)", i, snap[i], i-1, snap[i-1])
		}
	}
}

func TestHistory_ConcurrentReaders(t *testing.T) {
	h := NewHistory[[2]int](50)
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			h.Append([2]int{i, i})
		}
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if v, ok := h.Latest(); ok && v[0] != v[1] {
					t.Errorf("torn read: %v", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}
