package offlinestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/valyala/fasthttp"
)

var (
	errConnection   = errors.New("tile server unreachable")
	errServerStatus = errors.New("tile server error")
)

// HTTPFetcher downloads tiles over HTTP. The URL template accepts {style},
// {z}, {x}, {y} and {ratio} ("@2x" for pixel ratios of 2 and above).
type HTTPFetcher struct {
	client   *fasthttp.Client
	template string
	timeout  time.Duration
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(template string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &fasthttp.Client{
			Name:                "mapsync-offline",
			MaxConnsPerHost:     16,
			MaxIdleConnDuration: 30 * time.Second,
		},
		template: template,
		timeout:  timeout,
	}
}

// URL renders the tile URL for one tile.
func (f *HTTPFetcher) URL(styleURL string, tile maptile.Tile, pixelRatio float64) string {
	ratio := ""
	if pixelRatio >= 2 {
		ratio = "@2x"
	}
	return strings.NewReplacer(
		"{style}", url.PathEscape(styleURL),
		"{z}", strconv.FormatUint(uint64(tile.Z), 10),
		"{x}", strconv.FormatUint(uint64(tile.X), 10),
		"{y}", strconv.FormatUint(uint64(tile.Y), 10),
		"{ratio}", ratio,
	).Replace(f.template)
}

// Fetch implements ports.TileFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, styleURL string, tile maptile.Tile, pixelRatio float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(f.URL(styleURL, tile, pixelRatio))
	req.Header.SetMethod(fasthttp.MethodGet)

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := f.client.DoTimeout(req, resp, timeout); err != nil {
		return 0, fmt.Errorf("fetch tile %d/%d/%d: %w: %v", tile.Z, tile.X, tile.Y, errConnection, err)
	}
	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusNoContent || code == fasthttp.StatusNotFound:
		// Empty tiles are legitimate; the renderer draws nothing there.
		return 0, nil
	case code != fasthttp.StatusOK:
		return 0, fmt.Errorf("fetch tile %d/%d/%d: %w: status %d", tile.Z, tile.X, tile.Y, errServerStatus, code)
	}
	return len(resp.Body()), nil
}

// SyntheticFetcher pretends every tile has a fixed size. It backs the
// daemon when no tile server is configured.
type SyntheticFetcher struct {
	Size  int
	Delay time.Duration
}

// Fetch implements ports.TileFetcher.
func (f SyntheticFetcher) Fetch(ctx context.Context, styleURL string, tile maptile.Tile, pixelRatio float64) (int, error) {
	if f.Delay > 0 {
		t := time.NewTimer(f.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.C:
		}
	}
	return f.Size, ctx.Err()
}
