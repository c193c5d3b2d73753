package locate

import (
	"fmt"
	"strconv"
	"strings"
)

// Shard identifies one batch of one image repository.
type Shard struct {
	Repository int
	Batch      int
}

func (s Shard) String() string {
	return fmt.Sprintf("repo%d/batch%02d", s.Repository, s.Batch)
}

// ShardLayout describes how batches are spread over repositories.
// Repository 1 holds batches 1..FirstBatches, repositories 2..R-1 hold
// BatchesPerRepo consecutive batches each, and repository R holds the
// LastBatches batches that follow.
type ShardLayout struct {
	Repositories   int
	FirstBatches   int
	BatchesPerRepo int
	LastBatches    int
}

// Shards lists every shard in probe order: increasing repository, then batch.
func (l ShardLayout) Shards() []Shard {
	if l.Repositories < 1 || l.FirstBatches < 1 {
		return nil
	}
	var out []Shard
	for b := 1; b <= l.FirstBatches; b++ {
		out = append(out, Shard{Repository: 1, Batch: b})
	}
	next := l.FirstBatches + 1
	for r := 2; r <= l.Repositories; r++ {
		n := l.BatchesPerRepo
		if r == l.Repositories {
			n = l.LastBatches
		}
		for i := 0; i < n; i++ {
			out = append(out, Shard{Repository: r, Batch: next})
			next++
		}
	}
	return out
}

// expand fills {repo}, {batch} and {id} in tmpl.
func expand(tmpl string, s Shard, id int64) string {
	return strings.NewReplacer(
		"{repo}", strconv.Itoa(s.Repository),
		"{batch}", fmt.Sprintf("%02d", s.Batch),
		"{id}", strconv.FormatInt(id, 10),
	).Replace(tmpl)
}
