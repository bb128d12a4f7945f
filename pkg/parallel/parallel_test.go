package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMapChunks(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		threads int
		want    [][2]int
	}{
		{"even", 8, 4, [][2]int{{0, 2}, {2, 4}, {4, 6}, {6, 8}}},
		{"remainder in last chunk", 10, 3, [][2]int{{0, 3}, {3, 6}, {6, 10}}},
		{"fewer items than threads", 3, 8, [][2]int{{0, 1}, {1, 3}}},
		{"single item", 1, 16, [][2]int{{0, 1}}},
		{"single thread", 5, 1, [][2]int{{0, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			got := make(map[int][2]int)
			err := Map(context.Background(), tt.n, tt.threads, func(_ context.Context, th, start, end int) error {
				mu.Lock()
				got[th] = [2]int{start, end}
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("Map() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Map() used %d chunks, want %d: %v", len(got), len(tt.want), got)
			}
			for i, w := range tt.want {
				if got[i] != w {
					t.Errorf("chunk %d = %v, want %v", i, got[i], w)
				}
			}
		})
	}
}

func TestChunks(t *testing.T) {
	tests := []struct {
		n, threads      int
		wantT, wantSize int
	}{
		{8, 4, 4, 2},
		{3, 8, 2, 1},
		{7, 8, 4, 1},
		{1, 16, 1, 1},
		{0, 4, 1, 0},
	}
	for _, tt := range tests {
		if gotT, gotSize := Chunks(tt.n, tt.threads); gotT != tt.wantT || gotSize != tt.wantSize {
			t.Errorf("Chunks(%d, %d) = %d, %d, want %d, %d", tt.n, tt.threads, gotT, gotSize, tt.wantT, tt.wantSize)
		}
	}
}

func TestMapCoversEveryIndex(t *testing.T) {
	const n = 1001
	var seen [n]int32
	err := Map(context.Background(), n, 7, func(_ context.Context, _, start, end int) error {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, c)
		}
	}
}

func TestMapErrors(t *testing.T) {
	if err := Map(context.Background(), 10, 0, nil); !errors.Is(err, ErrInvalidThreads) {
		t.Errorf("Map() with 0 threads error = %v, want ErrInvalidThreads", err)
	}
	if err := Map(context.Background(), 0, 4, nil); err != nil {
		t.Errorf("Map() with no items error = %v, want nil", err)
	}

	boom := errors.New("boom")
	err := Map(context.Background(), 100, 4, func(ctx context.Context, th, _, _ int) error {
		if th == 2 {
			return boom
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, boom) {
		t.Errorf("Map() error = %v, want boom", err)
	}
}

func TestReduce(t *testing.T) {
	partials := [][]float64{{1, 2, 3}, nil, {4, 5, 6}, {1, 1, 1}}
	sum := func(a, b float64) float64 { return a + b }

	got := Reduce(partials, sum, func(v float64) float64 { return v / 3 })
	want := []float64{2, 8.0 / 3, 10.0 / 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Reduce()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if partials[0][0] != 1 {
		t.Errorf("Reduce() modified its input")
	}
	if got := Reduce[float64](nil, sum, nil); got != nil {
		t.Errorf("Reduce(nil) = %v, want nil", got)
	}
}
