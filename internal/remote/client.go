// Package remote is the typed boundary to the asset inventory HTTP service.
// It is the only place that knows URLs and wire envelopes; everything above
// it works with domain types and the error taxonomy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"assetmirror/pkg/domain"
)

// ListOptions narrows a list fetch. Zero values mean "no constraint".
type ListOptions struct {
	Type     domain.AssetType
	Page     int
	PageSize int
}

// ListResult carries one page of records plus pagination metadata.
type ListResult struct {
	Assets  []domain.Asset `json:"assets"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// Client is the remote service surface the cache depends on. Implementations
// must classify failures: absent records as domain.NotFoundError, everything
// else as domain.TransportError.
type Client interface {
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, id int64) (domain.Asset, error)
	Create(ctx context.Context, input domain.NewAssetInput) (domain.Asset, error)
	Update(ctx context.Context, id int64, patch domain.AssetPatch) (domain.Asset, error)
	Delete(ctx context.Context, id int64) error
	BulkUpload(ctx context.Context, filename string, content io.Reader) (string, error)
	JobStatus(ctx context.Context, jobID string) (domain.JobStatus, error)
}

// HTTPClient implements Client over net/http.
type HTTPClient struct {
	base *url.URL
	http *http.Client
}

// NewHTTPClient constructs a client for the service at baseURL. A nil
// httpClient selects a default with a 30 second timeout.
func NewHTTPClient(baseURL string, httpClient *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{base: u, http: httpClient}, nil
}

func (c *HTTPClient) endpoint(segments ...string) string {
	u := *c.base
	u.Path, _ = url.JoinPath(u.Path, append([]string{"api", "v1"}, segments...)...)
	return u.String()
}

type assetEnvelope struct {
	Asset domain.Asset `json:"asset"`
}

type jobEnvelope struct {
	JobID string `json:"job_id"`
}

// do issues the request and decodes a 2xx body into out (when non-nil).
// 404 maps to NotFoundError, every other failure to TransportError.
func (c *HTTPClient) do(req *http.Request, op string, id int64, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NotFoundError{ID: id}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return domain.TransportError{Op: op, Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, op, endpoint string, id int64, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.TransportError{Op: op, Err: err}
	}
	return c.do(req, op, id, out)
}

func (c *HTTPClient) sendJSON(ctx context.Context, op, method, endpoint string, id int64, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.TransportError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, id, out)
}

func (c *HTTPClient) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	endpoint := c.endpoint("assets")
	q := url.Values{}
	if opts.Type != "" {
		q.Set("type", string(opts.Type))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("per_page", strconv.Itoa(opts.PageSize))
	}
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var result ListResult
	if err := c.getJSON(ctx, "list assets", endpoint, 0, &result); err != nil {
		return ListResult{}, err
	}
	return result, nil
}

func (c *HTTPClient) Get(ctx context.Context, id int64) (domain.Asset, error) {
	var env assetEnvelope
	if err := c.getJSON(ctx, "get asset", c.endpoint("assets", strconv.FormatInt(id, 10)), id, &env); err != nil {
		return domain.Asset{}, err
	}
	return env.Asset, nil
}

func (c *HTTPClient) Create(ctx context.Context, input domain.NewAssetInput) (domain.Asset, error) {
	var env assetEnvelope
	if err := c.sendJSON(ctx, "create asset", http.MethodPost, c.endpoint("assets"), 0, input, &env); err != nil {
		return domain.Asset{}, err
	}
	return env.Asset, nil
}

func (c *HTTPClient) Update(ctx context.Context, id int64, patch domain.AssetPatch) (domain.Asset, error) {
	var env assetEnvelope
	endpoint := c.endpoint("assets", strconv.FormatInt(id, 10))
	if err := c.sendJSON(ctx, "update asset", http.MethodPatch, endpoint, id, patch, &env); err != nil {
		return domain.Asset{}, err
	}
	return env.Asset, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id int64) error {
	endpoint := c.endpoint("assets", strconv.FormatInt(id, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return domain.TransportError{Op: "delete asset", Err: err}
	}
	return c.do(req, "delete asset", id, nil)
}

func (c *HTTPClient) BulkUpload(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", domain.TransportError{Op: "bulk upload", Err: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", domain.TransportError{Op: "bulk upload", Err: err}
	}
	if err := writer.Close(); err != nil {
		return "", domain.TransportError{Op: "bulk upload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("assets", "import"), &buf)
	if err != nil {
		return "", domain.TransportError{Op: "bulk upload", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var env jobEnvelope
	if err := c.do(req, "bulk upload", 0, &env); err != nil {
		return "", err
	}
	if env.JobID == "" {
		return "", domain.TransportError{Op: "bulk upload", Err: fmt.Errorf("missing job id in response")}
	}
	return env.JobID, nil
}

func (c *HTTPClient) JobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	var status domain.JobStatus
	if err := c.getJSON(ctx, "job status", c.endpoint("assets", "import", jobID), 0, &status); err != nil {
		return domain.JobStatus{}, err
	}
	return status, nil
}
