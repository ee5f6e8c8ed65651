// Package rpc talks to a ledger node over JSON-RPC and drives the attestation
// program with signed legacy transactions.
package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"

	"guardians/internal/domain"
)

const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"

	defaultConfirmTimeout = 30 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
	maxResponseBytes      = 8 << 20
)

type Client struct {
	endpoint       string
	programID      domain.PublicKey
	commitment     string
	confirmTimeout time.Duration
	pollInterval   time.Duration
	httpDo         func(*http.Request) (*http.Response, error)
	nextID         atomic.Uint64
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpDo = client.Do
		}
	}
}

func WithCommitment(commitment string) Option {
	return func(c *Client) {
		switch commitment {
		case CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
			c.commitment = commitment
		}
	}
}

func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.confirmTimeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func NewClient(endpoint string, programID domain.PublicKey, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("ledger rpc url is required")
	}
	if programID.IsZero() {
		return nil, errors.New("program id is required")
	}
	c := &Client{
		endpoint:       strings.TrimSpace(endpoint),
		programID:      programID,
		commitment:     CommitmentConfirmed,
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
		httpDo:         http.DefaultClient.Do,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ProgramID() domain.PublicKey {
	return c.programID
}

func (c *Client) GenesisHash(ctx context.Context) (string, error) {
	var hash string
	if err := c.call(ctx, "getGenesisHash", nil, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

type accountInfo struct {
	Data  []string `json:"data"`
	Owner string   `json:"owner"`
}

func (a accountInfo) bytes() ([]byte, error) {
	if len(a.Data) == 0 {
		return nil, errors.New("account data missing")
	}
	return base64.StdEncoding.DecodeString(a.Data[0])
}

func (c *Client) GetRecord(ctx context.Context, addr domain.PublicKey) (domain.AttestationRecord, error) {
	var out struct {
		Value *accountInfo `json:"value"`
	}
	params := []any{addr.String(), map[string]any{"encoding": "base64", "commitment": c.commitment}}
	if err := c.call(ctx, "getAccountInfo", params, &out); err != nil {
		return domain.AttestationRecord{}, err
	}
	if out.Value == nil {
		return domain.AttestationRecord{}, fmt.Errorf("%w: account %s", domain.ErrNotFound, addr)
	}
	if out.Value.Owner != c.programID.String() {
		return domain.AttestationRecord{}, fmt.Errorf("%w: account %s is not owned by the attestation program", domain.ErrRejected, addr)
	}
	data, err := out.Value.bytes()
	if err != nil {
		return domain.AttestationRecord{}, fmt.Errorf("%w: decode account %s: %v", domain.ErrRejected, addr, err)
	}
	rec, err := decodeRecord(addr, data)
	if err != nil {
		return domain.AttestationRecord{}, fmt.Errorf("%w: decode account %s: %v", domain.ErrRejected, addr, err)
	}
	return rec, nil
}

func (c *Client) ListByOwner(ctx context.Context, owner domain.PublicKey) ([]domain.AttestationRecord, error) {
	var out []struct {
		Pubkey  string      `json:"pubkey"`
		Account accountInfo `json:"account"`
	}
	filters := []any{
		map[string]any{"memcmp": map[string]any{"offset": 0, "bytes": base58.Encode(recordDiscriminator[:])}},
		map[string]any{"memcmp": map[string]any{"offset": ownerOffset, "bytes": owner.String()}},
	}
	params := []any{c.programID.String(), map[string]any{
		"encoding":   "base64",
		"commitment": c.commitment,
		"filters":    filters,
	}}
	if err := c.call(ctx, "getProgramAccounts", params, &out); err != nil {
		return nil, err
	}
	records := make([]domain.AttestationRecord, 0, len(out))
	for _, item := range out {
		addr, err := domain.ParsePublicKey(item.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: program account key %q", domain.ErrRejected, item.Pubkey)
		}
		data, err := item.Account.bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: decode account %s: %v", domain.ErrRejected, addr, err)
		}
		rec, err := decodeRecord(addr, data)
		if err != nil {
			return nil, fmt.Errorf("%w: decode account %s: %v", domain.ErrRejected, addr, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) Register(ctx context.Context, signer domain.Wallet, addr domain.RecordAddress, in domain.CreateAttestation) (domain.TransactionID, error) {
	if signer == nil {
		return "", fmt.Errorf("%w: no wallet connected", domain.ErrNotReady)
	}
	ix := recordInstruction(c.programID, addr.Key, in.Owner, encodeRegisterData(in))
	return c.submit(ctx, signer, ix)
}

func (c *Client) Update(ctx context.Context, signer domain.Wallet, addr domain.RecordAddress, upd domain.AttestationUpdate) (domain.TransactionID, error) {
	if signer == nil {
		return "", fmt.Errorf("%w: no wallet connected", domain.ErrNotReady)
	}
	ix := recordInstruction(c.programID, addr.Key, signer.PublicKey(), encodeUpdateData(upd))
	return c.submit(ctx, signer, ix)
}

func (c *Client) Revoke(ctx context.Context, signer domain.Wallet, addr domain.RecordAddress) (domain.TransactionID, error) {
	if signer == nil {
		return "", fmt.Errorf("%w: no wallet connected", domain.ErrNotReady)
	}
	ix := recordInstruction(c.programID, addr.Key, signer.PublicKey(), encodeRevokeData())
	return c.submit(ctx, signer, ix)
}

// submit signs and sends one instruction, then waits for confirmation. Errors
// before the node accepts the transaction keep their transient or semantic
// class; once accepted, a missing confirmation is reported as unconfirmed.
func (c *Client) submit(ctx context.Context, signer domain.Wallet, ix instruction) (domain.TransactionID, error) {
	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	msg, err := compileMessage(signer.PublicKey(), blockhash, ix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRejected, err)
	}
	msgBytes := msg.serialize()
	sig, err := signer.SignTransaction(ctx, msgBytes)
	if err != nil {
		if domain.IsClassified(err) {
			return "", err
		}
		return "", fmt.Errorf("%w: signing declined: %v", domain.ErrRejected, err)
	}
	tx := serializeTransaction([][]byte{sig}, msgBytes)
	localSig := base58.Encode(sig)

	var remoteSig string
	params := []any{base64.StdEncoding.EncodeToString(tx), map[string]any{
		"encoding":            "base64",
		"preflightCommitment": c.commitment,
	}}
	if err := ctx.Err(); err != nil {
		return "", classifyTransport(err)
	}
	if err := c.call(ctx, "sendTransaction", params, &remoteSig); err != nil {
		var te *transportError
		if errors.As(err, &te) && !isDialError(te.err) {
			return "", fmt.Errorf("%w: transaction %s: send outcome unknown: %v", domain.ErrUnconfirmed, localSig, te.err)
		}
		return "", err
	}
	if remoteSig == "" {
		remoteSig = localSig
	}
	if err := c.awaitConfirmation(ctx, remoteSig); err != nil {
		return "", err
	}
	return domain.TransactionID(remoteSig), nil
}

func (c *Client) latestBlockhash(ctx context.Context) ([32]byte, error) {
	var out struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	var hash [32]byte
	if err := c.call(ctx, "getLatestBlockhash", []any{map[string]any{"commitment": c.commitment}}, &out); err != nil {
		return hash, err
	}
	raw := base58.Decode(out.Value.Blockhash)
	if len(raw) != len(hash) {
		return hash, fmt.Errorf("%w: malformed blockhash %q", domain.ErrTransientNetwork, out.Value.Blockhash)
	}
	copy(hash[:], raw)
	return hash, nil
}

type signatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

func (c *Client) awaitConfirmation(ctx context.Context, sig string) error {
	deadline := time.NewTimer(c.confirmTimeout)
	defer deadline.Stop()
	for {
		var out struct {
			Value []*signatureStatus `json:"value"`
		}
		err := c.call(ctx, "getSignatureStatuses", []any{[]string{sig}, map[string]any{"searchTransactionHistory": false}}, &out)
		if err == nil && len(out.Value) == 1 && out.Value[0] != nil {
			status := out.Value[0]
			if len(status.Err) > 0 && string(status.Err) != "null" {
				return classifyTransactionError(status.Err, nil, nil)
			}
			if commitmentReached(status.ConfirmationStatus, c.commitment) {
				return nil
			}
		}

		wait := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return fmt.Errorf("%w: transaction %s: %v", domain.ErrUnconfirmed, sig, ctx.Err())
		case <-deadline.C:
			wait.Stop()
			return fmt.Errorf("%w: transaction %s not confirmed within %s", domain.ErrUnconfirmed, sig, c.confirmTimeout)
		case <-wait.C:
		}
	}
}

func commitmentReached(got, want string) bool {
	rank := map[string]int{CommitmentProcessed: 1, CommitmentConfirmed: 2, CommitmentFinalized: 3}
	return rank[got] >= rank[want] && rank[got] > 0
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// transportError keeps the raw transport failure so send can tell a request
// that never left from one whose outcome is unknown.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return e.err.Error()
}

func (e *transportError) Unwrap() error {
	return classifyTransport(e.err)
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if c == nil {
		return fmt.Errorf("%w: ledger client not configured", domain.ErrNotReady)
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &transportError{err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, payload)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("%w: malformed %s response: %v", domain.ErrTransientNetwork, method, err)
	}
	if decoded.Error != nil {
		return classifyRPCError(decoded.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("%w: malformed %s result: %v", domain.ErrRejected, method, err)
	}
	return nil
}

var _ domain.AttestationProgram = (*Client)(nil)
