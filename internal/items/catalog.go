package items

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

var (
	// ErrNotFound is returned by Lookup for an id the dataset does not contain.
	ErrNotFound = errors.New("item not found")

	// ErrDataUnavailable is returned by every Lookup on a catalog whose
	// dataset failed to load.
	ErrDataUnavailable = errors.New("item data unavailable")
)

// Catalog is an immutable id -> Record index. It is built once and is
// safe for concurrent reads.
type Catalog struct {
	byID    map[int64]Record
	loadErr error
}

// Open loads the dataset at path. Failure does not return an error: the
// catalog is marked unavailable and Lookup reports ErrDataUnavailable.
func Open(path string) *Catalog {
	recs, err := LoadFile(path)
	if err != nil {
		slog.Error("Failed to load item data", "path", path, "err", err)
		return &Catalog{loadErr: err}
	}
	c := New(recs)
	slog.Info("Loaded item data", "path", path, "items", c.Len())
	return c
}

// New indexes recs. When an id repeats, the first record wins.
func New(recs []Record) *Catalog {
	c := &Catalog{byID: make(map[int64]Record, len(recs))}
	for _, r := range recs {
		if _, dup := c.byID[r.ID]; dup {
			slog.Warn("Duplicate item id in dataset, keeping first", "id", r.ID)
			continue
		}
		c.byID[r.ID] = r
	}
	return c
}

// Unavailable returns a catalog that fails every lookup with cause.
func Unavailable(cause error) *Catalog {
	return &Catalog{loadErr: cause}
}

// Lookup returns the record for id.
func (c *Catalog) Lookup(id int64) (Record, error) {
	if c.loadErr != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDataUnavailable, c.loadErr)
	}
	r, ok := c.byID[id]
	if !ok {
		return Record{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return r, nil
}

// Err reports why the catalog is unavailable, or nil.
func (c *Catalog) Err() error { return c.loadErr }

func (c *Catalog) Len() int { return len(c.byID) }

// All returns every record ordered by id.
func (c *Catalog) All() []Record {
	out := make([]Record, 0, len(c.byID))
	for _, r := range c.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
