package demandsdk

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

	"github.com/google/uuid"
)

// DefaultBaseURL is where dboard serve listens unless told otherwise.
const DefaultBaseURL = "http://localhost:8001/api"

// Client is a minimal demand board HTTP API client.
type Client struct {
	// BaseURL includes the API base path, e.g. http://host:8001/api.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Demand is a record as it appears on the wire. Subgroup and Responsible are
// kept raw because servers send either an array or a comma-joined string.
type Demand struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Priority     string          `json:"priority"`
	Subgroup     json.RawMessage `json:"subgroup"`
	Responsible  json.RawMessage `json:"responsible"`
	Observation  string          `json:"observation"`
	DeliveryDate string          `json:"delivery_date"`
	Category     string          `json:"category"`
	CreatedAt    string          `json:"created_at,omitempty"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
}

// DemandInput is the create payload.
type DemandInput struct {
	Description  string   `json:"description"`
	Priority     string   `json:"priority,omitempty"`
	Subgroup     []string `json:"subgroup"`
	Responsible  []string `json:"responsible"`
	Observation  string   `json:"observation,omitempty"`
	DeliveryDate string   `json:"delivery_date,omitempty"`
	Category     string   `json:"category,omitempty"`
}

// DemandPatch is the update payload; nil fields are not sent.
type DemandPatch struct {
	Description  *string  `json:"description,omitempty"`
	Priority     *string  `json:"priority,omitempty"`
	Subgroup     []string `json:"subgroup,omitempty"`
	Responsible  []string `json:"responsible,omitempty"`
	Observation  *string  `json:"observation,omitempty"`
	DeliveryDate *string  `json:"delivery_date,omitempty"`
	Category     *string  `json:"category,omitempty"`
}

// ListOptions narrows ListDemands server-side. Empty means no filter.
type ListOptions struct {
	Priority    string
	Subgroup    string
	Responsible string
	Category    string
}

// BulkDeleteResult reports how many of the requested ids were removed.
type BulkDeleteResult struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Health pings the API.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

// ListDemands fetches every demand matching opts.
func (c *Client) ListDemands(ctx context.Context, opts ListOptions) ([]Demand, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"priority":    opts.Priority,
		"subgroup":    opts.Subgroup,
		"responsible": opts.Responsible,
		"category":    opts.Category,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	endpoint := "demands"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Demand
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetDemand fetches one demand by id.
func (c *Client) GetDemand(ctx context.Context, id string) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodGet, "demands/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateDemand creates a demand and returns it with its assigned id.
func (c *Client) CreateDemand(ctx context.Context, in DemandInput) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodPost, "demands", in, &resp)
	return resp, err
}

// UpdateDemand sends only the fields set in patch.
func (c *Client) UpdateDemand(ctx context.Context, id string, patch DemandPatch) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodPut, "demands/"+url.PathEscape(id), patch, &resp)
	return resp, err
}

// DeleteDemand removes one demand.
func (c *Client) DeleteDemand(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "demands/"+url.PathEscape(id), nil, nil)
}

// BulkDelete removes the given ids.
func (c *Client) BulkDelete(ctx context.Context, ids []string) (BulkDeleteResult, error) {
	var resp BulkDeleteResult
	err := c.do(ctx, http.MethodPost, "demands/bulk-delete", map[string]any{"ids": ids}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
