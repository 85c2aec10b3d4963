package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

// HTTPClient implements Client using the HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a client targeting baseURL (e.g.
// "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func dataPath(parts ...string) string {
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/v1/data/" + strings.Join(parts, "/")
}

// --- Keyed values ---

func (c *HTTPClient) ListNamespaces(ctx context.Context) ([]string, error) {
	var resp struct {
		Namespaces []string `json:"namespaces"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/namespaces", nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Namespaces), nil
}

func (c *HTTPClient) ListIdentities(ctx context.Context, ns string) ([]string, error) {
	var resp struct {
		Identities []string `json:"identities"`
	}
	if err := c.doJSON(ctx, http.MethodGet, dataPath(ns), nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Identities), nil
}

func (c *HTTPClient) GetValues(ctx context.Context, ns, id string) ([]*model.KeyedRecord, error) {
	var resp struct {
		Records []*model.KeyedRecord `json:"records"`
	}
	if err := c.doJSON(ctx, http.MethodGet, dataPath(ns, id), nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Records), nil
}

func (c *HTTPClient) GetValue(ctx context.Context, ns, id, key string) (*model.KeyedRecord, error) {
	var rec model.KeyedRecord
	if err := c.doJSON(ctx, http.MethodGet, dataPath(ns, id, key), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) PutValues(ctx context.Context, ns, id string, values map[string]any, replace bool) (int64, error) {
	recs, err := EncodeValues(ns, id, values)
	if err != nil {
		return 0, err
	}
	body := map[string]any{"records": recs, "replace": replace}
	var resp struct {
		Affected int64 `json:"affected"`
	}
	if err := c.doJSON(ctx, http.MethodPut, dataPath(ns, id), body, &resp); err != nil {
		return 0, err
	}
	return resp.Affected, nil
}

func (c *HTTPClient) DeleteValues(ctx context.Context, ns, id string) (int64, error) {
	var resp struct {
		Affected int64 `json:"affected"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, dataPath(ns, id), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Affected, nil
}

func (c *HTTPClient) DeleteValue(ctx context.Context, ns, id, key string) error {
	return c.doJSON(ctx, http.MethodDelete, dataPath(ns, id, key), nil, nil)
}

// --- Objects ---

func (c *HTTPClient) ListObjects(ctx context.Context, ns string) ([]string, error) {
	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/objects/"+url.PathEscape(ns), nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.IDs), nil
}

func (c *HTTPClient) GetObject(ctx context.Context, ns, id string) (*model.ObjectRecord, error) {
	var obj model.ObjectRecord
	path := "/v1/objects/" + url.PathEscape(ns) + "/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

func (c *HTTPClient) PutObject(ctx context.Context, obj *model.ObjectRecord) (*model.ObjectRecord, error) {
	body := map[string]string{"payload": obj.Payload, "format": string(obj.Format)}
	method, path := http.MethodPost, "/v1/objects/"+url.PathEscape(obj.Namespace)
	if obj.ID != "" {
		method, path = http.MethodPut, path+"/"+url.PathEscape(obj.ID)
	}
	var stored model.ObjectRecord
	if err := c.doJSON(ctx, method, path, body, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *HTTPClient) DeleteObject(ctx context.Context, ns, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/objects/"+url.PathEscape(ns)+"/"+url.PathEscape(id), nil, nil)
}

// --- Tags ---

func tagPath(ns, id string) string {
	return "/v1/tags/" + url.PathEscape(ns) + "/" + url.PathEscape(id)
}

func (c *HTTPClient) GetTags(ctx context.Context, ns, id string) (map[string]*string, error) {
	var resp struct {
		Tags map[string]*string `json:"tags"`
	}
	if err := c.doJSON(ctx, http.MethodGet, tagPath(ns, id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tags == nil {
		resp.Tags = map[string]*string{}
	}
	return resp.Tags, nil
}

func (c *HTTPClient) AddTag(ctx context.Context, ns, id, name string, value *string) error {
	body := map[string]any{"name": name, "value": value}
	return c.doJSON(ctx, http.MethodPost, tagPath(ns, id), body, nil)
}

func (c *HTTPClient) RemoveTag(ctx context.Context, ns, id, name string) error {
	return c.doJSON(ctx, http.MethodDelete, tagPath(ns, id)+"/"+url.PathEscape(name), nil, nil)
}

func (c *HTTPClient) FindTagged(ctx context.Context, ns, name string, value *string) ([]string, error) {
	q := url.Values{}
	q.Set("name", name)
	if value != nil {
		q.Set("value", *value)
	}
	var resp struct {
		Targets []string `json:"targets"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tags/"+url.PathEscape(ns)+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Targets), nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a 404.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
