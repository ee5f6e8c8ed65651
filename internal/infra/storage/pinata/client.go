// Package pinata pins files and JSON documents through the Pinata pinning API.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/ipfs/go-cid"

	"guardians/internal/domain"
)

const (
	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud/ipfs"

	maxErrorBody    = 4 * 1024
	maxResponseBody = 64 * 1024
)

type Client struct {
	apiURL     string
	gatewayURL string
	jwt        string
	httpDo     func(*http.Request) (*http.Response, error)
}

type Options struct {
	APIURL     string
	GatewayURL string
	JWT        string
	HTTPClient *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.JWT) == "" {
		return nil, errors.New("pinata jwt is required")
	}
	apiURL := strings.TrimSpace(opts.APIURL)
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	gateway := strings.TrimSpace(opts.GatewayURL)
	if gateway == "" {
		gateway = DefaultGatewayURL
	}
	doer := http.DefaultClient.Do
	if opts.HTTPClient != nil {
		doer = opts.HTTPClient.Do
	}
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gateway, "/"),
		jwt:        strings.TrimSpace(opts.JWT),
		httpDo:     doer,
	}, nil
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinOptions struct {
	CIDVersion        int  `json:"cidVersion"`
	WrapWithDirectory bool `json:"wrapWithDirectory"`
}

type pinJSONRequest struct {
	PinataOptions  pinOptions  `json:"pinataOptions"`
	PinataMetadata pinMetadata `json:"pinataMetadata"`
	PinataContent  any         `json:"pinataContent"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
	PinSize  int64  `json:"PinSize"`
}

func (c *Client) PinFile(ctx context.Context, name, contentType string, r io.Reader) (domain.PinnedObject, error) {
	if r == nil {
		return domain.PinnedObject{}, fmt.Errorf("%w: file body is required", domain.ErrValidation)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(name)))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return domain.PinnedObject{}, err
	}
	size, err := io.Copy(part, r)
	if err != nil {
		return domain.PinnedObject{}, fmt.Errorf("read upload: %w", err)
	}
	if err := writeJSONField(mw, "pinataMetadata", pinMetadata{Name: fileName(name)}); err != nil {
		return domain.PinnedObject{}, err
	}
	if err := writeJSONField(mw, "pinataOptions", pinOptions{CIDVersion: 1}); err != nil {
		return domain.PinnedObject{}, err
	}
	if err := mw.Close(); err != nil {
		return domain.PinnedObject{}, err
	}

	pinned, err := c.post(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &body)
	if err != nil {
		return domain.PinnedObject{}, err
	}
	if pinned.Size == 0 {
		pinned.Size = size
	}
	return pinned, nil
}

func (c *Client) PinJSON(ctx context.Context, name string, doc any) (domain.PinnedObject, error) {
	payload, err := json.Marshal(pinJSONRequest{
		PinataOptions:  pinOptions{CIDVersion: 1},
		PinataMetadata: pinMetadata{Name: fileName(name)},
		PinataContent:  doc,
	})
	if err != nil {
		return domain.PinnedObject{}, fmt.Errorf("%w: encode document: %v", domain.ErrValidation, err)
	}
	return c.post(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
}

// GatewayURL returns the public gateway location of a pinned fingerprint.
func (c *Client) GatewayURL(fingerprint string) string {
	return c.gatewayURL + "/" + fingerprint
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (domain.PinnedObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, body)
	if err != nil {
		return domain.PinnedObject{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.PinnedObject{}, ctx.Err()
		}
		return domain.PinnedObject{}, fmt.Errorf("%w: pinata request: %v", domain.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.PinnedObject{}, classifyStatus(resp.StatusCode, msg)
	}
	var out pinResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&out); err != nil {
		return domain.PinnedObject{}, fmt.Errorf("%w: decode pinata response: %v", domain.ErrTransientNetwork, err)
	}
	parsed, err := cid.Decode(strings.TrimSpace(out.IpfsHash))
	if err != nil {
		return domain.PinnedObject{}, fmt.Errorf("%w: pinata returned invalid cid %q", domain.ErrRejected, out.IpfsHash)
	}
	fp := parsed.String()
	return domain.PinnedObject{Fingerprint: fp, URL: c.GatewayURL(fp), Size: out.PinSize}, nil
}

func classifyStatus(code int, body []byte) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: pinata rejected credentials (%d)", domain.ErrNotReady, code)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: pinata returned %d", domain.ErrTransientNetwork, code)
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w: pinata returned 400: %s", domain.ErrValidation, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("%w: pinata returned %d: %s", domain.ErrRejected, code, strings.TrimSpace(string(body)))
	}
}

func writeJSONField(mw *multipart.Writer, field string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return mw.WriteField(field, string(raw))
}

func fileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload"
	}
	return name
}

var _ domain.ContentStorage = (*Client)(nil)
