package rpc

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"

	"guardians/internal/domain"
	"guardians/internal/infra/wallet/soft"
)

type fakeNode struct {
	t         *testing.T
	mu        sync.Mutex
	programID domain.PublicKey
	signer    domain.PublicKey
	accounts  map[string][]byte
	calls     map[string]int

	httpStatus int
	rpcErr     map[string]*rpcError
	statuses   []string
	statusErr  json.RawMessage
	lastTx     []byte
}

func newFakeNode(t *testing.T, programID domain.PublicKey) *fakeNode {
	return &fakeNode{
		t:         t,
		programID: programID,
		accounts:  make(map[string][]byte),
		calls:     make(map[string]int),
		rpcErr:    make(map[string]*rpcError),
	}
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		n.t.Errorf("decode request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	n.calls[req.Method]++
	if n.httpStatus != 0 {
		w.WriteHeader(n.httpStatus)
		return
	}
	if e, ok := n.rpcErr[req.Method]; ok {
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": e})
		return
	}
	var result any
	switch req.Method {
	case "getGenesisHash":
		result = "EtWTRABZaYq6iMfeYKouRu166VU2xqa1wcaWoxPkrZBG"
	case "getAccountInfo":
		var addr string
		_ = json.Unmarshal(req.Params[0], &addr)
		data, ok := n.accounts[addr]
		if !ok {
			result = map[string]any{"context": map[string]any{"slot": 1}, "value": nil}
			break
		}
		result = map[string]any{"context": map[string]any{"slot": 1}, "value": map[string]any{
			"data":  []string{base64.StdEncoding.EncodeToString(data), "base64"},
			"owner": n.programID.String(),
		}}
	case "getProgramAccounts":
		var cfg struct {
			Filters []struct {
				Memcmp struct {
					Offset int    `json:"offset"`
					Bytes  string `json:"bytes"`
				} `json:"memcmp"`
			} `json:"filters"`
		}
		_ = json.Unmarshal(req.Params[1], &cfg)
		items := []any{}
		for addr, data := range n.accounts {
			match := true
			for _, f := range cfg.Filters {
				want := base58.Decode(f.Memcmp.Bytes)
				end := f.Memcmp.Offset + len(want)
				if end > len(data) || string(data[f.Memcmp.Offset:end]) != string(want) {
					match = false
				}
			}
			if match {
				items = append(items, map[string]any{"pubkey": addr, "account": map[string]any{
					"data":  []string{base64.StdEncoding.EncodeToString(data), "base64"},
					"owner": n.programID.String(),
				}})
			}
		}
		result = items
	case "getLatestBlockhash":
		var hash [32]byte
		for i := range hash {
			hash[i] = 7
		}
		result = map[string]any{"value": map[string]any{"blockhash": base58.Encode(hash[:]), "lastValidBlockHeight": 100}}
	case "sendTransaction":
		var encoded string
		_ = json.Unmarshal(req.Params[0], &encoded)
		tx, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			n.t.Errorf("decode tx: %v", err)
		}
		n.lastTx = tx
		sig, msg := splitTransaction(n.t, tx)
		if err := soft.Verify(n.signer, msg, sig); err != nil {
			n.t.Errorf("verify tx signature: %v", err)
		}
		result = base58.Encode(sig)
	case "getSignatureStatuses":
		if len(n.statuses) == 0 {
			result = map[string]any{"value": []any{nil}}
			break
		}
		status := n.statuses[0]
		if len(n.statuses) > 1 {
			n.statuses = n.statuses[1:]
		}
		var errField any
		if len(n.statusErr) > 0 {
			errField = n.statusErr
		}
		result = map[string]any{"value": []any{map[string]any{"confirmationStatus": status, "err": errField}}}
	default:
		n.t.Errorf("unexpected method %s", req.Method)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func splitTransaction(t *testing.T, tx []byte) ([]byte, []byte) {
	count, n, err := readCompactU16(tx)
	if err != nil || count != 1 {
		t.Errorf("expected one signature, got %d (%v)", count, err)
		return nil, nil
	}
	return tx[n : n+64], tx[n+64:]
}

func encodeRecordAccount(rec domain.AttestationRecord) []byte {
	w := &borshWriter{}
	w.raw(recordDiscriminator[:])
	w.raw(rec.Owner[:])
	w.str(rec.ContentFingerprint)
	w.str(rec.MetadataFingerprint)
	w.str(rec.ContentType)
	w.str(rec.Title)
	w.str(rec.Description)
	w.i64(rec.CreatedAt.Unix())
	if !rec.UpdatedAt.IsZero() {
		w.i64(rec.UpdatedAt.Unix())
		w.boolean(rec.Revoked)
	}
	// unused allocated space
	w.raw(make([]byte, 64))
	return w.buf
}

func testKey(tag string) domain.PublicKey {
	return domain.PublicKey(sha256.Sum256([]byte(tag)))
}

func newTestClient(t *testing.T) (*Client, *fakeNode, *soft.Wallet) {
	t.Helper()
	w, err := soft.Generate()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	node := newFakeNode(t, testKey("program"))
	node.signer = w.PublicKey()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, node.programID,
		WithHTTPClient(srv.Client()),
		WithPollInterval(time.Millisecond),
		WithConfirmTimeout(200*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, node, w
}

func TestGetRecordNotFound(t *testing.T) {
	client, _, _ := newTestClient(t)
	_, err := client.GetRecord(context.Background(), testKey("missing"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetRecordDecodesAccount(t *testing.T) {
	client, node, w := newTestClient(t)
	addr := testKey("record")
	created := time.Unix(1700000000, 0).UTC()
	node.accounts[addr.String()] = encodeRecordAccount(domain.AttestationRecord{
		Owner:               w.PublicKey(),
		ContentFingerprint:  "cid-A",
		MetadataFingerprint: "meta-A",
		ContentType:         "image/png",
		Title:               "T",
		Description:         "D",
		CreatedAt:           created,
	})

	rec, err := client.GetRecord(context.Background(), addr)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Owner != w.PublicKey() || rec.ContentFingerprint != "cid-A" || rec.MetadataFingerprint != "meta-A" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.CreatedAt.Equal(created) || !rec.UpdatedAt.Equal(created) || rec.Revoked {
		t.Fatalf("unexpected timestamps or flags %+v", rec)
	}
	if rec.Address != addr {
		t.Fatalf("expected address to be carried")
	}
}

func TestGetRecordDecodesRevoked(t *testing.T) {
	client, node, w := newTestClient(t)
	addr := testKey("revoked")
	node.accounts[addr.String()] = encodeRecordAccount(domain.AttestationRecord{
		Owner:               w.PublicKey(),
		ContentFingerprint:  "cid",
		MetadataFingerprint: "meta",
		CreatedAt:           time.Unix(10, 0),
		UpdatedAt:           time.Unix(20, 0),
		Revoked:             true,
	})
	rec, err := client.GetRecord(context.Background(), addr)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !rec.Revoked || rec.UpdatedAt.Unix() != 20 {
		t.Fatalf("expected revoked record updated at 20, got %+v", rec)
	}
}

func TestRegisterSignsAndAwaitsConfirmation(t *testing.T) {
	client, node, w := newTestClient(t)
	node.statuses = []string{"processed", "confirmed"}
	addr := domain.RecordAddress{Key: testKey("record"), Bump: 254}

	tx, err := client.Register(context.Background(), w, addr, domain.CreateAttestation{
		Owner:               w.PublicKey(),
		ContentFingerprint:  "cid-A",
		MetadataFingerprint: "meta-A",
		ContentType:         "unknown",
		Title:               "Untitled",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	sig, msg := splitTransaction(t, node.lastTx)
	if string(tx) != base58.Encode(sig) {
		t.Fatalf("expected tx id to be the base58 signature")
	}
	if node.calls["getSignatureStatuses"] != 2 {
		t.Fatalf("expected two status polls, got %d", node.calls["getSignatureStatuses"])
	}
	if msg[0] != 1 || msg[1] != 0 || msg[2] != 2 {
		t.Fatalf("unexpected message header %v", msg[:3])
	}
	if domain.PublicKey(msg[4:36]) != w.PublicKey() {
		t.Fatalf("expected payer first")
	}
}

func TestRegisterAccountInUseIsAlreadyExists(t *testing.T) {
	client, node, w := newTestClient(t)
	node.rpcErr["sendTransaction"] = &rpcError{
		Code:    codeSendTransactionPreflightFailure,
		Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x0",
		Data:    json.RawMessage(`{"err":{"InstructionError":[0,{"Custom":0}]},"logs":["Allocate: account already in use"]}`),
	}
	_, err := client.Register(context.Background(), w, domain.RecordAddress{Key: testKey("r")}, domain.CreateAttestation{Owner: w.PublicKey()})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestUpdateUninitializedIsNotFound(t *testing.T) {
	client, node, w := newTestClient(t)
	node.rpcErr["sendTransaction"] = &rpcError{
		Code:    codeSendTransactionPreflightFailure,
		Message: "Transaction simulation failed",
		Data:    json.RawMessage(`{"err":{"InstructionError":[0,{"Custom":3012}]},"logs":[]}`),
	}
	title := "x"
	_, err := client.Update(context.Background(), w, domain.RecordAddress{Key: testKey("r")}, domain.AttestationUpdate{Title: &title})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmationFailureKeepsProgramErrorClass(t *testing.T) {
	client, node, w := newTestClient(t)
	node.statuses = []string{"confirmed"}
	node.statusErr = json.RawMessage(`{"InstructionError":[0,{"Custom":2006}]}`)
	_, err := client.Revoke(context.Background(), w, domain.RecordAddress{Key: testKey("r")})
	if !errors.Is(err, domain.ErrRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
}

func TestConfirmationTimeoutIsUnconfirmed(t *testing.T) {
	client, _, w := newTestClient(t)
	client.confirmTimeout = 20 * time.Millisecond
	_, err := client.Revoke(context.Background(), w, domain.RecordAddress{Key: testKey("r")})
	if !errors.Is(err, domain.ErrUnconfirmed) {
		t.Fatalf("expected unconfirmed, got %v", err)
	}
	if domain.IsRetryable(err) {
		t.Fatalf("expected unconfirmed not to be retryable")
	}
}

func TestHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrTransientNetwork},
		{http.StatusServiceUnavailable, domain.ErrTransientNetwork},
		{http.StatusBadGateway, domain.ErrTransientNetwork},
		{http.StatusBadRequest, domain.ErrRejected},
	}
	for _, tt := range tests {
		client, node, _ := newTestClient(t)
		node.httpStatus = tt.status
		_, err := client.GenesisHash(context.Background())
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}
}

func TestNodeUnhealthyIsTransient(t *testing.T) {
	client, node, _ := newTestClient(t)
	node.rpcErr["getAccountInfo"] = &rpcError{Code: codeNodeUnhealthy, Message: "Node is unhealthy"}
	_, err := client.GetRecord(context.Background(), testKey("x"))
	if !errors.Is(err, domain.ErrTransientNetwork) {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestDialFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client, err := NewClient(url, testKey("program"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.GenesisHash(context.Background()); !errors.Is(err, domain.ErrTransientNetwork) {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestListByOwnerFiltersOnOwner(t *testing.T) {
	client, node, w := newTestClient(t)
	other := testKey("other")
	for i, owner := range []domain.PublicKey{w.PublicKey(), w.PublicKey(), other} {
		addr := testKey(string(rune('a' + i)))
		node.accounts[addr.String()] = encodeRecordAccount(domain.AttestationRecord{
			Owner:               owner,
			ContentFingerprint:  "cid-" + string(rune('a'+i)),
			MetadataFingerprint: "meta",
			CreatedAt:           time.Unix(int64(i+1), 0),
		})
	}
	recs, err := client.ListByOwner(context.Background(), w.PublicKey())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Owner != w.PublicKey() {
			t.Fatalf("unexpected owner %s", rec.Owner)
		}
	}
}

func TestGenesisHash(t *testing.T) {
	client, _, _ := newTestClient(t)
	hash, err := client.GenesisHash(context.Background())
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if domain.NetworkForGenesis(hash) != domain.NetworkDevnet {
		t.Fatalf("expected devnet genesis, got %s", hash)
	}
}
