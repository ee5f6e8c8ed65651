// Package attestations is a typed client for the guardians HTTP API.
package attestations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	AdminKey   string
	RequestID  func() string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

// WithAdminKey sets the key sent on routes that sign with the service wallet.
func WithAdminKey(key string) Option {
	return func(c *Client) {
		c.AdminKey = key
	}
}

func WithRequestID(fn func() string) Option {
	return func(c *Client) {
		c.RequestID = fn
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type SubmitInput struct {
	ContentFingerprint  string `json:"content_fingerprint"`
	MetadataFingerprint string `json:"metadata_fingerprint"`
	ContentType         string `json:"content_type,omitempty"`
	Title               string `json:"title,omitempty"`
	Description         string `json:"description,omitempty"`
}

type SubmitResult struct {
	Success       bool   `json:"success"`
	Action        string `json:"action,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Address       string `json:"address,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	Message       string `json:"message,omitempty"`
	Recovery      string `json:"recovery,omitempty"`
}

type Record struct {
	Address             string    `json:"address"`
	Owner               string    `json:"owner"`
	ContentFingerprint  string    `json:"content_fingerprint"`
	MetadataFingerprint string    `json:"metadata_fingerprint"`
	ContentType         string    `json:"content_type"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Revoked             bool      `json:"revoked"`
}

type License struct {
	Type               string     `json:"type"`
	RequireAttribution bool       `json:"require_attribution"`
	AllowCommercialUse bool       `json:"allow_commercial_use"`
	AllowAITraining    bool       `json:"allow_ai_training"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Fingerprint        string     `json:"fingerprint,omitempty"`
	URL                string     `json:"url,omitempty"`
}

type Verification struct {
	Status              string     `json:"status"`
	Verified            bool       `json:"verified"`
	Reason              string     `json:"reason,omitempty"`
	ContentFingerprint  string     `json:"content_fingerprint"`
	Creator             string     `json:"creator,omitempty"`
	Address             string     `json:"address,omitempty"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	Title               string     `json:"title,omitempty"`
	ContentType         string     `json:"content_type,omitempty"`
	MetadataFingerprint string     `json:"metadata_fingerprint,omitempty"`
	Network             string     `json:"network,omitempty"`
	License             *License   `json:"license,omitempty"`
}

type LicenseInput struct {
	ContentCID         string     `json:"content_cid"`
	LicenseType        string     `json:"license_type"`
	RequireAttribution *bool      `json:"require_attribution,omitempty"`
	AllowCommercialUse bool       `json:"allow_commercial_use"`
	AllowAITraining    bool       `json:"allow_ai_training"`
	ExpirationDate     *time.Time `json:"expiration_date,omitempty"`
	CustomTerms        string     `json:"custom_terms,omitempty"`
}

type Deny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type UsageDecision struct {
	Allow       bool     `json:"allow"`
	Deny        []Deny   `json:"deny,omitempty"`
	Obligations []string `json:"obligations,omitempty"`
	PolicyHash  string   `json:"policy_hash,omitempty"`
}

// APIError is returned for non-2xx responses that carry the service error body.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("guardians api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Existing returns the service wallet's record for the fingerprint, or nil.
func (c *Client) Existing(ctx context.Context, contentFingerprint string) (*Record, error) {
	var out struct {
		Record *Record `json:"record"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/attestations/"+url.PathEscape(contentFingerprint), nil, false, &out); err != nil {
		return nil, err
	}
	return out.Record, nil
}

// Submit creates or updates an attestation. A failed submission is returned
// as a result with Success false, not as an error.
func (c *Client) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	return c.submit(ctx, "/v1/attestations", in)
}

func (c *Client) Revoke(ctx context.Context, contentFingerprint string) (SubmitResult, error) {
	return c.submit(ctx, "/v1/attestations/"+url.PathEscape(contentFingerprint)+"/revoke", nil)
}

func (c *Client) submit(ctx context.Context, path string, in any) (SubmitResult, error) {
	var out SubmitResult
	err := c.do(ctx, http.MethodPost, path, in, true, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && out.ErrorKind != "" {
		return out, nil
	}
	return out, err
}

func (c *Client) Verify(ctx context.Context, contentFingerprint, owner string) (Verification, error) {
	path := "/v1/verify/" + url.PathEscape(contentFingerprint)
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var out Verification
	err := c.do(ctx, http.MethodGet, path, nil, false, &out)
	return out, err
}

func (c *Client) CreateLicense(ctx context.Context, in LicenseInput) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/v1/licenses", in, true, &out)
	return out, err
}

func (c *Client) EvaluateUsage(ctx context.Context, contentFingerprint, use string) (UsageDecision, error) {
	var out struct {
		Decision UsageDecision `json:"decision"`
	}
	path := "/v1/licenses/" + url.PathEscape(contentFingerprint) + "/evaluate?use=" + url.QueryEscape(use)
	err := c.do(ctx, http.MethodGet, path, nil, false, &out)
	return out.Decision, err
}

func (c *Client) do(ctx context.Context, method, path string, in any, admin bool, out any) error {
	if c == nil {
		return fmt.Errorf("attestations client is nil")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("guardians base URL is required")
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && c.AdminKey != "" {
		req.Header.Set("X-Admin-Key", c.AdminKey)
	}
	if c.RequestID != nil {
		req.Header.Set("X-Request-ID", c.RequestID())
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Submission failures share the result shape; decode it for the caller.
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			if apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(string(raw))
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
