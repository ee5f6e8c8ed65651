package domain

import "errors"

var (
	ErrValidation       = errors.New("validation error")
	ErrNotReady         = errors.New("not ready")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
	ErrTransientNetwork = errors.New("transient network error")
	ErrNetworkMismatch  = errors.New("network mismatch")
	ErrUnconfirmed      = errors.New("transaction unconfirmed")
	ErrRejected         = errors.New("rejected by program")
)

type ErrorKind string

const (
	KindValidation      ErrorKind = "validation_error"
	KindNotReady        ErrorKind = "not_ready"
	KindAlreadyExists   ErrorKind = "already_exists"
	KindNotFound        ErrorKind = "not_found"
	KindTransient       ErrorKind = "transient_network_error"
	KindNetworkMismatch ErrorKind = "network_mismatch"
	KindUnconfirmed     ErrorKind = "unconfirmed"
	KindRejected        ErrorKind = "rejected"
	KindInternal        ErrorKind = "internal"
)

var kindBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrValidation, KindValidation},
	{ErrNotReady, KindNotReady},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrNotFound, KindNotFound},
	{ErrTransientNetwork, KindTransient},
	{ErrNetworkMismatch, KindNetworkMismatch},
	{ErrUnconfirmed, KindUnconfirmed},
	{ErrRejected, KindRejected},
}

// KindOf maps err onto the error taxonomy. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, entry := range kindBySentinel {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// IsClassified reports whether err already carries one of the taxonomy sentinels.
func IsClassified(err error) bool {
	return KindOf(err) != KindInternal && err != nil
}

// IsRetryable reports whether retrying the same operation may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}
