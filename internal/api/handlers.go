package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/youruser/itemart/internal/background"
	imagepkg "github.com/youruser/itemart/internal/image"
	"github.com/youruser/itemart/internal/items"
	"github.com/youruser/itemart/internal/locate"
)

type Catalog interface {
	Lookup(id int64) (items.Record, error)
	All() []items.Record
	Len() int
	Err() error
}

type Backgrounds interface {
	Resolve(rarity string) (*background.Background, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*image.NRGBA, error)
}

type Compositor interface {
	Compose(bg, fg image.Image) *image.NRGBA
}

// Handler serves item images. All fields are set once at startup and
// only read afterwards.
type Handler struct {
	Catalog     Catalog
	Backgrounds Backgrounds
	Locator     locate.Locator
	Fetcher     Fetcher
	Compositor  Compositor

	SecretKey      string
	CompositePath  string
	PublicBaseURL  string
	RequestTimeout time.Duration
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

// parseID accepts a non-negative decimal integer written with digits only.
func parseID(s string) (int64, error) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}

func (h *Handler) keyValid(key string) bool {
	if h.SecretKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.SecretKey)) == 1
}

// health
func (h *Handler) health(c *gin.Context) {
	status := gin.H{"status": "ok", "items": 0}
	if err := h.Catalog.Err(); err != nil {
		status["status"] = "degraded"
		status["catalog"] = "unavailable"
	} else {
		status["items"] = h.Catalog.Len()
	}
	c.JSON(http.StatusOK, status)
}

// itemImageHandler redirects to the located source image. The key is
// checked before anything else.
func (h *Handler) itemImageHandler(c *gin.Context) {
	if !h.keyValid(c.Query("key")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid or missing key"})
		return
	}
	raw := c.Query("id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	id, err := parseID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	src, err := h.Locator.Find(ctx, id)
	if err != nil {
		writeError(c, id, err)
		return
	}
	c.Redirect(http.StatusFound, src)
}

// compositeHandler renders GET /{composite}/{id}.png.
func (h *Handler) compositeHandler(c *gin.Context) {
	id, err := parseID(strings.TrimSuffix(c.Param("file"), ".png"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.Catalog.Lookup(id)
	if err != nil {
		writeError(c, id, err)
		return
	}
	bg, err := h.Backgrounds.Resolve(rec.Rarity)
	if err != nil {
		writeError(c, id, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	src, err := h.Locator.Find(ctx, id)
	if err != nil {
		writeError(c, id, err)
		return
	}
	fg, err := h.Fetcher.Fetch(ctx, src)
	if err != nil {
		writeError(c, id, err)
		return
	}

	out := h.Compositor.Compose(bg.Image, fg)
	b, err := imagepkg.EncodePNG(out)
	if err != nil {
		writeError(c, id, err)
		return
	}
	slog.Info("Generated item image", "id", id, "rarity", rec.Rarity, "background", bg.Name, "source", src)
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="item_%d.png"`, id))
	c.Data(http.StatusOK, "image/png", b)
}

// listItemsHandler returns catalog records, optionally filtered by
// repeated rarity params and a free-text q.
func (h *Handler) listItemsHandler(c *gin.Context) {
	if err := h.Catalog.Err(); err != nil {
		writeError(c, -1, fmt.Errorf("%w: %v", items.ErrDataUnavailable, err))
		return
	}
	opt := items.FilterOptions{
		Rarities:  c.QueryArray("rarity"),
		FreeWords: c.Query("q"),
	}
	out := items.Filter(h.Catalog.All(), opt)
	c.JSON(http.StatusOK, gin.H{"count": len(out), "items": out})
}

func (h *Handler) itemHandler(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.Catalog.Lookup(id)
	if err != nil {
		writeError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":      rec,
		"image_url": h.compositeURL(c, id),
	})
}

// qrHandler returns a PNG QR code linking to the item's composite image.
func (h *Handler) qrHandler(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.Catalog.Lookup(id); err != nil {
		writeError(c, id, err)
		return
	}
	size := 0
	if s := c.Query("size"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			size = v
		}
	}
	b, err := imagepkg.ShareQR(h.compositeURL(c, id), size)
	if err != nil {
		writeError(c, id, err)
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

func (h *Handler) compositeURL(c *gin.Context, id int64) string {
	base := strings.TrimRight(h.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if p := c.GetHeader("X-Forwarded-Proto"); p == "http" || p == "https" {
			scheme = p
		}
		base = scheme + "://" + c.Request.Host
	}
	return fmt.Sprintf("%s/%s/%d.png", base, strings.Trim(h.CompositePath, "/"), id)
}
