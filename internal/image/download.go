package imagepkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// FetchKind classifies why fetching a located image failed.
type FetchKind int

const (
	KindTransport FetchKind = iota + 1 // connection or read failure
	KindRemote                         // remote answered with a non-2xx status
	KindDecode                         // body is not a decodable image
)

func (k FetchKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRemote:
		return "remote"
	case KindDecode:
		return "decode"
	}
	return "unknown"
}

// Sentinels for errors.Is against a *FetchError of the same kind.
var (
	ErrTransport = &FetchError{Kind: KindTransport}
	ErrRemote    = &FetchError{Kind: KindRemote}
	ErrDecode    = &FetchError{Kind: KindDecode}
)

type FetchError struct {
	Kind   FetchKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindRemote:
		return fmt.Sprintf("fetching %s: remote returned status %d", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("fetching %s: %s error: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetching %s: %s error", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	return ok && t.URL == "" && t.Err == nil && t.Status == 0 && t.Kind == e.Kind
}

// Fetcher downloads an image and decodes it into NRGBA.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client, MaxBytes: maxBytes}
}

// Fetch downloads url and decodes it. PNG, JPEG, GIF, BMP, TIFF and WebP
// sources all come back as straight-alpha NRGBA.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*image.NRGBA, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: url, Err: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: KindRemote, URL: url, Status: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: url, Err: err}
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, &FetchError{Kind: KindDecode, URL: url, Err: fmt.Errorf("image larger than %d bytes", f.MaxBytes)}
	}
	return DecodeBytes(data, url)
}

// DecodeBytes decodes raw image bytes into NRGBA. source only labels errors.
func DecodeBytes(data []byte, source string) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, &FetchError{Kind: KindDecode, URL: source, Err: errors.New("empty body")}
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, URL: source, Err: err}
	}
	return imaging.Clone(img), nil
}
