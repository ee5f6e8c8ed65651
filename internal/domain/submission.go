package domain

import "time"

type SubmissionAction string

const (
	ActionCreate SubmissionAction = "create"
	ActionUpdate SubmissionAction = "update"
	ActionRevoke SubmissionAction = "revoke"
)

const (
	SubmissionStatusSucceeded = "succeeded"
	SubmissionStatusFailed    = "failed"
)

// SubmissionAttempt is the audit row written for every write outcome.
type SubmissionAttempt struct {
	ID                 string           `json:"id"`
	Owner              string           `json:"owner"`
	ContentFingerprint string           `json:"content_fingerprint,omitempty"`
	Address            string           `json:"address"`
	Action             SubmissionAction `json:"action"`
	Status             string           `json:"status"`
	ErrorKind          ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	TransactionID      string           `json:"transaction_id,omitempty"`
	Attempts           int              `json:"attempts"`
	CreatedAt          time.Time        `json:"created_at"`
}
