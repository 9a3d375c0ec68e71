// Package imagetx implements the client for the image transform service:
// fetching page bitmaps by reference and rendering crops for viewing.
//
// Crops are render-only. The stored page always keeps its original image
// reference plus a crop region, never a destructively pre-cropped file.
package imagetx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackzampolin/folio/internal/errdefs"
	"github.com/jackzampolin/folio/internal/types"
)

// Client talks to the image transform service over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a new image service client.
func NewClient(serviceURL string) *Client {
	return &Client{
		url: strings.TrimSuffix(serviceURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Fetch returns the raw bytes of the image named by ref.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	endpoint := c.url + "/images/" + url.PathEscape(ref)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errdefs.Service("image fetch failed for %s: %v", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errdefs.NotFound("image %s", ref)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.Service("image fetch for %s: status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errdefs.Service("reading image %s: %v", ref, err)
	}
	if len(data) == 0 {
		return nil, errdefs.Service("image %s: empty response", ref)
	}
	return data, nil
}

// cropRequest is the wire payload for a crop render.
type cropRequest struct {
	Ref  string           `json:"ref"`
	Crop types.CropRegion `json:"crop"`
}

// RenderCrop returns ref's image cropped to region (0-1000 normalized),
// rasterized for viewing. The stored image is not modified.
func (c *Client) RenderCrop(ctx context.Context, ref string, region types.CropRegion) ([]byte, error) {
	if region.XStart < 0 || region.XEnd > types.CoordMax || region.XStart >= region.XEnd {
		return nil, errdefs.InvalidArgument("crop region [%d, %d]", region.XStart, region.XEnd)
	}

	body, err := json.Marshal(cropRequest{Ref: ref, Crop: region})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal crop request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/crop", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errdefs.Service("crop render failed for %s: %v", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errdefs.NotFound("image %s", ref)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.Service("crop render for %s: status %d", ref, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
