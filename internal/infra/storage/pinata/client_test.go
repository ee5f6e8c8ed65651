package pinata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"guardians/internal/domain"
)

const testCID = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{APIURL: srv.URL, GatewayURL: "https://gw.example/ipfs/", JWT: "test-jwt", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestPinFileSendsMultipart(t *testing.T) {
	var gotName, gotBody, gotMeta, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pinning/pinFileToIPFS" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		raw, _ := io.ReadAll(file)
		gotName = header.Filename
		gotBody = string(raw)
		gotMeta = r.FormValue("pinataMetadata")
		_ = json.NewEncoder(w).Encode(map[string]any{"IpfsHash": testCID, "PinSize": 5})
	})

	pinned, err := c.PinFile(context.Background(), "sunset.png", "image/png", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("pin file: %v", err)
	}
	if gotAuth != "Bearer test-jwt" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotName != "sunset.png" || gotBody != "hello" {
		t.Fatalf("unexpected upload %q %q", gotName, gotBody)
	}
	if !strings.Contains(gotMeta, `"name":"sunset.png"`) {
		t.Fatalf("unexpected metadata field %q", gotMeta)
	}
	if pinned.Fingerprint != testCID || pinned.Size != 5 {
		t.Fatalf("unexpected pinned object %+v", pinned)
	}
	if pinned.URL != "https://gw.example/ipfs/"+testCID {
		t.Fatalf("unexpected gateway url %s", pinned.URL)
	}
}

func TestPinJSONWrapsContent(t *testing.T) {
	var req pinJSONRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pinning/pinJSONToIPFS" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"IpfsHash": testCID})
	})

	if _, err := c.PinJSON(context.Background(), "doc.json", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("pin json: %v", err)
	}
	if req.PinataMetadata.Name != "doc.json" || req.PinataOptions.CIDVersion != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	content, ok := req.PinataContent.(map[string]any)
	if !ok || content["a"] != "b" {
		t.Fatalf("unexpected content %#v", req.PinataContent)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrTransientNetwork},
		{http.StatusBadGateway, domain.ErrTransientNetwork},
		{http.StatusUnauthorized, domain.ErrNotReady},
		{http.StatusBadRequest, domain.ErrValidation},
		{http.StatusConflict, domain.ErrRejected},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})
		_, err := c.PinJSON(context.Background(), "x", map[string]string{})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestRejectsInvalidCID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"IpfsHash": "not-a-cid"})
	})
	_, err := c.PinJSON(context.Background(), "x", map[string]string{})
	if !errors.Is(err, domain.ErrRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	c, err := NewClient(Options{APIURL: "http://127.0.0.1:1", JWT: "jwt"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c.httpDo = func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset")
	}
	_, err = c.PinJSON(context.Background(), "x", map[string]string{})
	if !errors.Is(err, domain.ErrTransientNetwork) {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestNewClientRequiresJWT(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error without jwt")
	}
}
