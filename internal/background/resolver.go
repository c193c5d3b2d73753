// Package background maps an item rarity to the themed image composited
// behind the item.
package background

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/youruser/itemart/internal/util"
)

const DefaultName = "Default.png"

// ErrUnavailable means neither the themed nor the default background could be used.
var ErrUnavailable = errors.New("background unavailable")

// Background is a decoded background image. Image is shared between
// requests when caching is on and must not be modified.
type Background struct {
	Name     string
	Fallback bool
	Image    *image.NRGBA
}

type Options struct {
	// DefaultName is opened when no themed background exists. Defaults to Default.png.
	DefaultName string

	// Cache keeps decoded backgrounds in memory by resource name.
	Cache bool
}

type Resolver struct {
	fsys  fs.FS
	opts  Options
	cache sync.Map // name -> *image.NRGBA
}

func NewResolver(fsys fs.FS, opts Options) *Resolver {
	if opts.DefaultName == "" {
		opts.DefaultName = DefaultName
	}
	return &Resolver{fsys: fsys, opts: opts}
}

// NameFor returns the resource name for a rarity label, or "" if the
// label cannot name a resource.
func NameFor(rarity string) string {
	rarity = strings.TrimSpace(rarity)
	if rarity == "" || strings.ContainsAny(rarity, `/\`) || rarity == "." || rarity == ".." {
		return ""
	}
	name := rarity + ".png"
	if !fs.ValidPath(name) {
		return ""
	}
	return name
}

// Resolve returns the background for rarity, falling back to the default.
func (r *Resolver) Resolve(rarity string) (*Background, error) {
	if name := NameFor(rarity); name != "" {
		ok, err := util.Exists(r.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
		}
		if ok {
			return r.load(name, false)
		}
	}

	slog.Warn("No background for rarity, using default", "rarity", rarity, "default", r.opts.DefaultName)
	ok, err := util.Exists(r.fsys, r.opts.DefaultName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, r.opts.DefaultName, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: default %s missing", ErrUnavailable, r.opts.DefaultName)
	}
	return r.load(r.opts.DefaultName, true)
}

func (r *Resolver) load(name string, fallback bool) (*Background, error) {
	img, err := r.decode(name)
	if err != nil {
		return nil, err
	}
	return &Background{Name: path.Base(name), Fallback: fallback, Image: img}, nil
}

func (r *Resolver) decode(name string) (*image.NRGBA, error) {
	if r.opts.Cache {
		if v, ok := r.cache.Load(name); ok {
			return v.(*image.NRGBA), nil
		}
	}

	f, err := r.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrUnavailable, name, err)
	}
	defer f.Close()

	src, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrUnavailable, name, err)
	}
	img := imaging.Clone(src)
	if r.opts.Cache {
		v, _ := r.cache.LoadOrStore(name, img)
		img = v.(*image.NRGBA)
	}
	return img, nil
}
