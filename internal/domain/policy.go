package domain

// UsagePolicyInput is the document evaluated by the license usage policy.
type UsagePolicyInput struct {
	License LicenseDescriptor `json:"license"`
	Use     UsageKind         `json:"use"`
	Expired bool              `json:"expired"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type UsageDecision struct {
	Allow       bool         `json:"allow"`
	Deny        []PolicyDeny `json:"deny,omitempty"`
	Obligations []string     `json:"obligations,omitempty"`
	PolicyHash  string       `json:"policy_hash,omitempty"`
}
