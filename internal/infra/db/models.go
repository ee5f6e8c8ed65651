package db

import "time"

// AttestationIndexModel mirrors ledger records so a fingerprint can be looked
// up without knowing its owner. The ledger stays authoritative.
type AttestationIndexModel struct {
	Address             string `gorm:"primaryKey"`
	Owner               string `gorm:"index;not null"`
	ContentFingerprint  string `gorm:"index;not null"`
	MetadataFingerprint string `gorm:"not null"`
	ContentType         string `gorm:"not null"`
	Title               string `gorm:"not null"`
	Description         string
	Revoked             bool      `gorm:"not null;default:false"`
	CreatedAt           time.Time `gorm:"index;not null;autoCreateTime:false"`
	UpdatedAt           time.Time `gorm:"not null;autoUpdateTime:false"`
	IndexedAt           time.Time `gorm:"not null"`
}

func (AttestationIndexModel) TableName() string { return "attestation_index" }

type LicenseModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	ContentCID     string `gorm:"index:idx_license_cid_creator;not null"`
	Creator        string `gorm:"index:idx_license_cid_creator;not null"`
	LicenseType    string `gorm:"not null"`
	DescriptorJSON []byte `gorm:"not null"`
	Digest         string `gorm:"not null"`
	Fingerprint    string
	URL            string
	ExpiresAt      *time.Time
	CreatedAt      time.Time `gorm:"index;not null"`
}

func (LicenseModel) TableName() string { return "licenses" }

type SubmissionAttemptModel struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	Owner              string `gorm:"index"`
	Address            string `gorm:"index;not null"`
	ContentFingerprint string
	Action             string `gorm:"not null"`
	Status             string `gorm:"not null"`
	ErrorKind          string
	ErrorMessage       string
	TransactionID      string
	Attempts           int       `gorm:"not null"`
	CreatedAt          time.Time `gorm:"index;not null"`
}

func (SubmissionAttemptModel) TableName() string { return "submission_attempts" }
