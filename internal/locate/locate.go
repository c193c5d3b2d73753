// Package locate resolves the remote location of an item's source image,
// either from a fixed URL template or by probing sharded repositories.
package locate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/youruser/itemart/internal/config"
)

// ErrNotFound means no candidate location holds the item's image.
var ErrNotFound = errors.New("image not found in any shard")

// Locator finds the source image URL for an item id.
type Locator interface {
	Find(ctx context.Context, id int64) (string, error)
}

// Direct maps every id to a single templated URL without any network call.
type Direct struct {
	Template string
}

func (d Direct) Find(_ context.Context, id int64) (string, error) {
	return strings.ReplaceAll(d.Template, "{id}", strconv.FormatInt(id, 10)), nil
}

// ShardProbe probes every shard of Layout in canonical order and returns
// the first location that exists. A failed or timed-out probe counts as
// absent. With Parallelism > 1 probes overlap, but the earliest shard in
// canonical order still wins.
type ShardProbe struct {
	Layout       ShardLayout
	Template     string
	Prober       Prober
	Parallelism  int
	ProbeTimeout time.Duration
}

func (s *ShardProbe) Find(ctx context.Context, id int64) (string, error) {
	shards := s.Layout.Shards()
	cands := make([]string, len(shards))
	for i, sh := range shards {
		cands[i] = expand(s.Template, sh, id)
	}

	var hit int
	if s.Parallelism > 1 {
		hit = s.findParallel(ctx, cands)
	} else {
		hit = s.findSequential(ctx, cands)
	}
	// Once ctx is done an earlier shard may have gone unanswered, so a hit
	// can no longer be trusted to be the first in canonical order.
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("locating item %d: %w", id, err)
	}
	if hit < len(cands) {
		slog.Debug("Located item image", "id", id, "shard", shards[hit].String(), "url", cands[hit])
		return cands[hit], nil
	}
	return "", fmt.Errorf("item %d: %w", id, ErrNotFound)
}

// findSequential returns the index of the first hit, or len(cands).
func (s *ShardProbe) findSequential(ctx context.Context, cands []string) int {
	for i, u := range cands {
		if ctx.Err() != nil {
			break
		}
		if s.probe(ctx, u) {
			return i
		}
	}
	return len(cands)
}

// findParallel returns the smallest index whose probe succeeded, or
// len(cands). Candidates beyond the best hit so far are not probed.
func (s *ShardProbe) findParallel(ctx context.Context, cands []string) int {
	var (
		mu   sync.Mutex
		best = len(cands)
	)
	beaten := func(i int) bool {
		mu.Lock()
		defer mu.Unlock()
		return i > best
	}

	var g errgroup.Group
	g.SetLimit(s.Parallelism)
	for i, u := range cands {
		if beaten(i) || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if beaten(i) {
				return nil
			}
			if s.probe(ctx, u) {
				mu.Lock()
				if i < best {
					best = i
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return best
}

func (s *ShardProbe) probe(ctx context.Context, url string) bool {
	if s.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ProbeTimeout)
		defer cancel()
	}
	ok, err := s.Prober.Probe(ctx, url)
	if err != nil {
		slog.Debug("Probe failed, treating shard as empty", "url", url, "err", err)
		return false
	}
	return ok
}

// New builds the locator selected by cfg. client is used for shard probes.
func New(cfg config.Locator, client *http.Client) (Locator, error) {
	switch cfg.Strategy {
	case config.StrategyDirect:
		return Direct{Template: cfg.DirectTemplate}, nil
	case config.StrategyShard:
		return &ShardProbe{
			Layout: ShardLayout{
				Repositories:   cfg.Shard.Repositories,
				FirstBatches:   cfg.Shard.FirstBatches,
				BatchesPerRepo: cfg.Shard.BatchesPerRepo,
				LastBatches:    cfg.Shard.LastBatches,
			},
			Template:     cfg.Shard.Template,
			Prober:       HTTPProber{Client: client},
			Parallelism:  cfg.Shard.Parallelism,
			ProbeTimeout: cfg.Shard.ProbeTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown locator strategy %q", cfg.Strategy)
	}
}
