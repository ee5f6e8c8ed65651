package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"guardians/internal/domain"
)

// JSON-RPC error codes reported by ledger nodes.
const (
	codeSendTransactionPreflightFailure = -32002
	codeSignatureVerificationFailure    = -32003
	codeBlockNotAvailable               = -32004
	codeNodeUnhealthy                   = -32005
	codeTransactionPrecompileFailure    = -32006
	codeSlotSkipped                     = -32007
	codeInternalError                   = -32603
)

// Program error codes surfaced through InstructionError.Custom.
const (
	customAccountAlreadyInUse   = 0
	customAccountNotInitialized = 3012
	customConstraintSeeds       = 2006
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type preflightData struct {
	Err  json.RawMessage `json:"err"`
	Logs []string        `json:"logs"`
}

func classifyRPCError(e *rpcError) error {
	switch e.Code {
	case codeBlockNotAvailable, codeNodeUnhealthy, codeSlotSkipped, codeInternalError:
		return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, e)
	case codeSendTransactionPreflightFailure:
		var data preflightData
		_ = json.Unmarshal(e.Data, &data)
		return classifyTransactionError(data.Err, data.Logs, e)
	case codeSignatureVerificationFailure, codeTransactionPrecompileFailure:
		return fmt.Errorf("%w: %v", domain.ErrRejected, e)
	}
	if e.Code <= -32000 && e.Code >= -32099 && strings.Contains(strings.ToLower(e.Message), "blockhash not found") {
		return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, e)
	}
	return fmt.Errorf("%w: %v", domain.ErrRejected, e)
}

// classifyTransactionError maps a TransactionError document, plus any program
// logs, onto the error taxonomy.
func classifyTransactionError(raw json.RawMessage, logs []string, cause error) error {
	text := strings.ToLower(string(raw) + " " + strings.Join(logs, " "))
	if cause != nil {
		text += " " + strings.ToLower(cause.Error())
	}
	if cause == nil {
		cause = fmt.Errorf("transaction failed: %s", string(raw))
	}

	if code, ok := customErrorCode(raw); ok {
		switch code {
		case customAccountAlreadyInUse:
			return fmt.Errorf("%w: %v", domain.ErrAlreadyExists, cause)
		case customAccountNotInitialized:
			return fmt.Errorf("%w: %v", domain.ErrNotFound, cause)
		case customConstraintSeeds:
			return fmt.Errorf("%w: seeds constraint violated: %v", domain.ErrRejected, cause)
		}
	}
	switch {
	case strings.Contains(text, "already in use"):
		return fmt.Errorf("%w: %v", domain.ErrAlreadyExists, cause)
	case strings.Contains(text, "accountnotinitialized"), strings.Contains(text, "accountnotfound"):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, cause)
	case strings.Contains(text, "blockhashnotfound"), strings.Contains(text, "blockhash not found"):
		return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, cause)
	}
	return fmt.Errorf("%w: %v", domain.ErrRejected, cause)
}

func customErrorCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var doc struct {
		InstructionError []json.RawMessage `json:"InstructionError"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc.InstructionError) != 2 {
		return 0, false
	}
	var inner struct {
		Custom *int `json:"Custom"`
	}
	if err := json.Unmarshal(doc.InstructionError[1], &inner); err != nil || inner.Custom == nil {
		return 0, false
	}
	return *inner.Custom, true
}

func classifyStatus(code int, body []byte) error {
	if code == http.StatusTooManyRequests || code >= 500 {
		return fmt.Errorf("%w: ledger node returned %d", domain.ErrTransientNetwork, code)
	}
	return fmt.Errorf("%w: ledger node returned %d: %s", domain.ErrRejected, code, truncate(body, 256))
}

func classifyTransport(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
}

// isDialError reports whether the request never reached the node.
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
