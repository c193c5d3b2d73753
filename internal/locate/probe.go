package locate

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Prober checks whether a candidate location exists without downloading it.
type Prober interface {
	Probe(ctx context.Context, url string) (bool, error)
}

// HTTPProber probes with a HEAD request; any 2xx status means present.
type HTTPProber struct {
	Client *http.Client
}

func (p HTTPProber) Probe(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("building probe: %w", err)
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
