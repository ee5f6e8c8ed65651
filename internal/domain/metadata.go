package domain

import "time"

// ContentMetadata is the pinned metadata document whose fingerprint is
// attested alongside the content fingerprint.
type ContentMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
	Properties  MetadataProperties  `json:"properties"`
}

type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type MetadataProperties struct {
	Files      []MetadataFile `json:"files"`
	ContentCID string         `json:"contentCid"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type MetadataFile struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

const (
	TraitContentCID      = "Content CID"
	TraitContentType     = "Content Type"
	TraitAttestationTime = "Attestation Time"
)
