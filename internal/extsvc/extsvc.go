package extsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/chartflow/import-server/internal/generators"
	"github.com/chartflow/import-server/pkg/sloger"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

// DefaultTimeout bounds a single rasterize or parse round trip. Generation
// holds a lock while calling out, so these must not hang indefinitely.
const DefaultTimeout = 5 * time.Minute

// HTTPRasterizer talks to the external document rendering service. The
// service owns the pdf heavy lifting; this side only moves bytes.
type HTTPRasterizer struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPRasterizer(baseURL string) *HTTPRasterizer {
	return &HTTPRasterizer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: DefaultTimeout},
	}
}

func (r *HTTPRasterizer) PageCount(ctx context.Context, raw []byte) (int, error) {
	var resp struct {
		PageCount int `json:"page_count"`
	}
	if err := r.post(ctx, "/page-count", raw, &resp); err != nil {
		return 0, err
	}
	return resp.PageCount, nil
}

func (r *HTTPRasterizer) RenderPages(ctx context.Context, raw []byte, start, count int) ([][]byte, error) {
	var resp struct {
		Pages [][]byte `json:"pages"`
	}
	path := fmt.Sprintf("/render?start=%d&count=%d", start, count)
	if err := r.post(ctx, path, raw, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

func (r *HTTPRasterizer) post(ctx context.Context, path string, raw []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("rasterizer unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("rasterizer returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// HTTPRecordSetParser talks to an external vendor-export parsing service.
// One client per vendor format; the vendor tag routes inside the service.
type HTTPRecordSetParser struct {
	BaseURL string
	Vendor  string
	Client  *http.Client
}

func NewHTTPRecordSetParser(baseURL, vendor string) *HTTPRecordSetParser {
	return &HTTPRecordSetParser{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Vendor:  vendor,
		Client:  &http.Client{Timeout: DefaultTimeout},
	}
}

func (p *HTTPRecordSetParser) Parse(ctx context.Context, text string) ([]generators.RecordSet, error) {
	url := fmt.Sprintf("%s/parse/%s", p.BaseURL, p.Vendor)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor parser unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("vendor parser returned %d: %s", resp.StatusCode, string(body))
	}
	var sets []generators.RecordSet
	if err := json.NewDecoder(resp.Body).Decode(&sets); err != nil {
		return nil, err
	}
	logger.Debug("vendor parse complete", "vendor", p.Vendor, "recordSets", len(sets))
	return sets, nil
}
