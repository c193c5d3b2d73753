package locate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/youruser/itemart/internal/config"
)

func TestShardLayout(t *testing.T) {
	l := ShardLayout{Repositories: 4, FirstBatches: 2, BatchesPerRepo: 3, LastBatches: 5}
	got := l.Shards()

	want := []Shard{
		{1, 1}, {1, 2},
		{2, 3}, {2, 4}, {2, 5},
		{3, 6}, {3, 7}, {3, 8},
		{4, 9}, {4, 10}, {4, 11}, {4, 12}, {4, 13},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d shards, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("shard %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestShardLayoutEdges(t *testing.T) {
	if s := (ShardLayout{Repositories: 1, FirstBatches: 3, LastBatches: 9}).Shards(); len(s) != 3 {
		t.Errorf("single repository should only cover its first batches, got %v", s)
	}
	if s := (ShardLayout{Repositories: 2, FirstBatches: 1, BatchesPerRepo: 50, LastBatches: 2}).Shards(); len(s) != 3 || s[2] != (Shard{2, 3}) {
		t.Errorf("two repositories: got %v", s)
	}
	if s := (ShardLayout{}).Shards(); s != nil {
		t.Errorf("empty layout should have no shards, got %v", s)
	}
}

func TestExpand(t *testing.T) {
	got := expand("https://cdn/repo{repo}/batch{batch}/{id}.png", Shard{Repository: 2, Batch: 8}, 100)
	if got != "https://cdn/repo2/batch08/100.png" {
		t.Errorf("expand = %q", got)
	}
}

func TestDirect(t *testing.T) {
	u, err := Direct{Template: "https://img/item?id={id}"}.Find(context.Background(), 42)
	if err != nil || u != "https://img/item?id=42" {
		t.Errorf("Find = %q, %v", u, err)
	}
}

// fakeProber reports a hit for urls in present and an error for urls in broken.
type fakeProber struct {
	present map[string]bool
	broken  map[string]bool
	delay   func(url string) time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *fakeProber) Probe(ctx context.Context, url string) (bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.delay != nil {
		select {
		case <-time.After(f.delay(url)):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if f.broken[url] {
		return false, errors.New("connection reset")
	}
	return f.present[url], nil
}

var testLayout = ShardLayout{Repositories: 3, FirstBatches: 2, BatchesPerRepo: 4, LastBatches: 3}

const testTemplate = "r{repo}/b{batch}/{id}"

func TestShardProbeFirstHitWins(t *testing.T) {
	for _, par := range []int{1, 4, 16} {
		p := &fakeProber{
			present: map[string]bool{"r2/b04/7": true, "r3/b08/7": true},
			broken:  map[string]bool{"r1/b01/7": true},
		}
		sp := &ShardProbe{Layout: testLayout, Template: testTemplate, Prober: p, Parallelism: par}
		for i := 0; i < 5; i++ {
			u, err := sp.Find(context.Background(), 7)
			if err != nil {
				t.Fatalf("parallelism %d: %v", par, err)
			}
			if u != "r2/b04/7" {
				t.Fatalf("parallelism %d: got %q, want first shard in order", par, u)
			}
		}
	}
}

func TestShardProbeSequentialStopsAtHit(t *testing.T) {
	p := &fakeProber{present: map[string]bool{"r2/b03/5": true}}
	sp := &ShardProbe{Layout: testLayout, Template: testTemplate, Prober: p}
	if _, err := sp.Find(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	want := []string{"r1/b01/5", "r1/b02/5", "r2/b03/5"}
	if strings.Join(p.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", p.calls, want)
	}
}

func TestShardProbeParallelSlowEarlyHit(t *testing.T) {
	// The earliest hit answers last; it must still win.
	p := &fakeProber{
		present: map[string]bool{"r1/b02/9": true, "r3/b07/9": true},
		delay: func(url string) time.Duration {
			if url == "r1/b02/9" {
				return 50 * time.Millisecond
			}
			return 0
		},
	}
	sp := &ShardProbe{Layout: testLayout, Template: testTemplate, Prober: p, Parallelism: 8}
	u, err := sp.Find(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if u != "r1/b02/9" {
		t.Errorf("got %q, want r1/b02/9", u)
	}
}

func TestShardProbeExhausted(t *testing.T) {
	for _, par := range []int{1, 3} {
		p := &fakeProber{broken: map[string]bool{"r1/b01/1": true}}
		sp := &ShardProbe{Layout: testLayout, Template: testTemplate, Prober: p, Parallelism: par}
		_, err := sp.Find(context.Background(), 1)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("parallelism %d: expected ErrNotFound, got %v", par, err)
		}
		if len(p.calls) != len(testLayout.Shards()) {
			t.Errorf("parallelism %d: probed %d shards, want all %d", par, len(p.calls), len(testLayout.Shards()))
		}
	}
}

func TestShardProbeTimeoutIsAbsence(t *testing.T) {
	p := &fakeProber{
		present: map[string]bool{"r1/b01/3": true, "r2/b05/3": true},
		delay: func(url string) time.Duration {
			if url == "r1/b01/3" {
				return time.Second
			}
			return 0
		},
	}
	sp := &ShardProbe{Layout: testLayout, Template: testTemplate, Prober: p, ProbeTimeout: 10 * time.Millisecond}
	u, err := sp.Find(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if u != "r2/b05/3" {
		t.Errorf("slow shard should be skipped, got %q", u)
	}
}

func TestShardProbeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sp := &ShardProbe{Layout: testLayout, Template: testTemplate, Prober: &fakeProber{}}
	_, err := sp.Find(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestShardProbeDeadlineParallel(t *testing.T) {
	p := &fakeProber{
		present: map[string]bool{"r1/b02/7": true, "r2/b04/7": true},
		delay: func(url string) time.Duration {
			if url == "r2/b04/7" {
				return 0
			}
			return time.Second
		},
	}
	sp := &ShardProbe{Layout: testLayout, Template: testTemplate, Prober: p, Parallelism: 4}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	u, err := sp.Find(ctx, 7)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Find = %q, %v; want context.DeadlineExceeded", u, err)
	}
	if u != "" {
		t.Errorf("later shard %q returned although r1/b02 never answered", u)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("deadline must not be reported as not found")
	}
}

func TestHTTPProber(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			gets.Add(1)
		}
		if r.URL.Path == "/repo2/batch08/100.png" {
			w.Header().Set("Content-Type", "image/png")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := config.Default().Locator
	cfg.Shard.Template = srv.URL + "/repo{repo}/batch{batch}/{id}.png"
	cfg.Shard.Repositories = 3
	cfg.Shard.FirstBatches = 5
	cfg.Shard.BatchesPerRepo = 5
	cfg.Shard.LastBatches = 4

	loc, err := New(cfg, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	u, err := loc.Find(context.Background(), 100)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if u != srv.URL+"/repo2/batch08/100.png" {
		t.Errorf("got %q", u)
	}
	if _, err := loc.Find(context.Background(), 101); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for 101, got %v", err)
	}
	if gets.Load() != 0 {
		t.Errorf("probes must not download content, saw %d non-HEAD requests", gets.Load())
	}
}

func TestNewUnknownStrategy(t *testing.T) {
	if _, err := New(config.Locator{Strategy: "guess"}, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
	loc, err := New(config.Locator{Strategy: config.StrategyDirect, DirectTemplate: "x/{id}"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := loc.(Direct); !ok {
		t.Errorf("direct strategy built %T", loc)
	}
}
