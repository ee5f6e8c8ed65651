package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"

	"guardians/internal/domain"
	"guardians/internal/platform/logger"
)

// RecoveryUpdate tells the caller that the record exists and the same form
// can be resubmitted as an update.
const RecoveryUpdate = "update"

type SubmitForm struct {
	ContentFingerprint  string `json:"content_fingerprint"`
	MetadataFingerprint string `json:"metadata_fingerprint"`
	ContentType         string `json:"content_type"`
	Title               string `json:"title"`
	Description         string `json:"description"`
}

type SubmitResult struct {
	Success       bool                    `json:"success"`
	Action        domain.SubmissionAction `json:"action,omitempty"`
	TransactionID domain.TransactionID    `json:"transaction_id,omitempty"`
	Address       string                  `json:"address,omitempty"`
	ErrorKind     domain.ErrorKind        `json:"error_kind,omitempty"`
	Message       string                  `json:"message,omitempty"`
	Recovery      string                  `json:"recovery,omitempty"`

	Err error `json:"-"`
}

type normalizedForm struct {
	create   domain.CreateAttestation
	titleSet bool
	descSet  bool
	rawTitle string
	rawDesc  string
}

// LifecycleController applies the one create-or-update decision for every
// entry point. An existing record for (owner, contentFingerprint) is always
// updated, never duplicated.
type LifecycleController struct {
	Registry  AttestationRegistry
	StrictCID bool
	Logger    *logger.Logger
}

func NewLifecycleController(registry AttestationRegistry, strictCID bool, log *logger.Logger) *LifecycleController {
	return &LifecycleController{Registry: registry, StrictCID: strictCID, Logger: log}
}

// CheckExisting returns the owner's record for the fingerprint, or nil when
// there is none.
func (c *LifecycleController) CheckExisting(ctx context.Context, contentFingerprint string) (*domain.AttestationRecord, error) {
	if c == nil || c.Registry == nil {
		return nil, fmt.Errorf("%w: registry not configured", domain.ErrNotReady)
	}
	fp := domain.NormalizeFingerprint(contentFingerprint)
	if err := c.validateFingerprint("content fingerprint", fp); err != nil {
		return nil, err
	}
	owner, err := c.Registry.Owner()
	if err != nil {
		return nil, err
	}
	addr, err := c.Registry.DeriveAddress(owner, fp)
	if err != nil {
		return nil, err
	}
	rec, err := c.Registry.Fetch(ctx, addr)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *LifecycleController) Submit(ctx context.Context, form SubmitForm) SubmitResult {
	if c == nil || c.Registry == nil {
		return failure("", "", fmt.Errorf("%w: registry not configured", domain.ErrNotReady))
	}
	norm, err := c.normalize(form)
	if err != nil {
		return failure("", "", err)
	}
	owner, err := c.Registry.Owner()
	if err != nil {
		return failure("", "", err)
	}
	norm.create.Owner = owner
	addr, err := c.Registry.DeriveAddress(owner, norm.create.ContentFingerprint)
	if err != nil {
		return failure("", "", err)
	}
	log := c.Logger.With("content_fingerprint", norm.create.ContentFingerprint, "address", addr.String())

	existing, err := c.Registry.Fetch(ctx, addr)
	switch {
	case err == nil:
		log.Info("existing attestation found, routing to update")
		return c.update(ctx, addr, existing, norm)
	case errors.Is(err, domain.ErrNotFound):
		log.Info("no attestation found, creating")
		return c.create(ctx, addr, norm)
	default:
		log.Warn("existence check failed", "error", err)
		return failure("", addr.String(), err)
	}
}

// Revoke marks the owner's record for the fingerprint inactive.
func (c *LifecycleController) Revoke(ctx context.Context, contentFingerprint string) SubmitResult {
	if c == nil || c.Registry == nil {
		return failure(domain.ActionRevoke, "", fmt.Errorf("%w: registry not configured", domain.ErrNotReady))
	}
	fp := domain.NormalizeFingerprint(contentFingerprint)
	if err := c.validateFingerprint("content fingerprint", fp); err != nil {
		return failure(domain.ActionRevoke, "", err)
	}
	owner, err := c.Registry.Owner()
	if err != nil {
		return failure(domain.ActionRevoke, "", err)
	}
	addr, err := c.Registry.DeriveAddress(owner, fp)
	if err != nil {
		return failure(domain.ActionRevoke, "", err)
	}
	tx, err := c.Registry.Revoke(ctx, addr)
	if err != nil {
		return failure(domain.ActionRevoke, addr.String(), err)
	}
	return SubmitResult{Success: true, Action: domain.ActionRevoke, TransactionID: tx, Address: addr.String()}
}

func (c *LifecycleController) create(ctx context.Context, addr domain.RecordAddress, norm normalizedForm) SubmitResult {
	tx, err := c.Registry.Create(ctx, norm.create)
	if err != nil {
		res := failure(domain.ActionCreate, addr.String(), err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			res.Recovery = RecoveryUpdate
			res.Message = "an attestation for this content already exists; submit again to update it"
		}
		return res
	}
	return SubmitResult{Success: true, Action: domain.ActionCreate, TransactionID: tx, Address: addr.String()}
}

// update sends only the fields that differ from the stored record. A blank
// title or description on the form is treated as not supplied.
func (c *LifecycleController) update(ctx context.Context, addr domain.RecordAddress, existing domain.AttestationRecord, norm normalizedForm) SubmitResult {
	if existing.Revoked {
		return failure(domain.ActionUpdate, addr.String(), fmt.Errorf("%w: attestation is revoked", domain.ErrRejected))
	}
	var upd domain.AttestationUpdate
	if mf := norm.create.MetadataFingerprint; mf != existing.MetadataFingerprint {
		upd.MetadataFingerprint = &mf
	}
	if norm.titleSet && norm.rawTitle != existing.Title {
		title := norm.rawTitle
		upd.Title = &title
	}
	if norm.descSet && norm.rawDesc != existing.Description {
		desc := norm.rawDesc
		upd.Description = &desc
	}
	if norm.create.ContentType != existing.ContentType {
		c.Logger.Debug("content type is immutable, ignoring", "stored", existing.ContentType, "submitted", norm.create.ContentType)
	}
	tx, err := c.Registry.Update(ctx, addr, upd)
	if err != nil {
		return failure(domain.ActionUpdate, addr.String(), err)
	}
	return SubmitResult{Success: true, Action: domain.ActionUpdate, TransactionID: tx, Address: addr.String()}
}

func (c *LifecycleController) normalize(form SubmitForm) (normalizedForm, error) {
	var out normalizedForm
	cf := domain.NormalizeFingerprint(form.ContentFingerprint)
	mf := domain.NormalizeFingerprint(form.MetadataFingerprint)
	if err := c.validateFingerprint("content fingerprint", cf); err != nil {
		return out, err
	}
	if mf == "" {
		return out, fmt.Errorf("%w: metadata fingerprint is required", domain.ErrValidation)
	}
	if err := c.validateFingerprint("metadata fingerprint", mf); err != nil {
		return out, err
	}
	out.rawTitle = strings.TrimSpace(form.Title)
	out.rawDesc = strings.TrimSpace(form.Description)
	out.titleSet = out.rawTitle != ""
	out.descSet = out.rawDesc != ""

	contentType := strings.TrimSpace(form.ContentType)
	if contentType == "" {
		contentType = domain.DefaultContentType
	}
	title := out.rawTitle
	if title == "" {
		title = domain.DefaultTitle
	}
	out.create = domain.CreateAttestation{
		ContentFingerprint:  cf,
		MetadataFingerprint: mf,
		ContentType:         contentType,
		Title:               title,
		Description:         out.rawDesc,
	}
	if err := out.create.ValidateFields(); err != nil {
		return out, err
	}
	return out, nil
}

func (c *LifecycleController) validateFingerprint(name, fp string) error {
	if fp == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
	}
	if len(fp) > domain.MaxContentFingerprintLen {
		return fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrValidation, name, domain.MaxContentFingerprintLen)
	}
	if c != nil && c.StrictCID {
		if _, err := cid.Decode(fp); err != nil {
			return fmt.Errorf("%w: %s is not a valid CID: %v", domain.ErrValidation, name, err)
		}
	}
	return nil
}

func failure(action domain.SubmissionAction, addr string, err error) SubmitResult {
	return SubmitResult{
		Success:   false,
		Action:    action,
		Address:   addr,
		ErrorKind: domain.KindOf(err),
		Message:   err.Error(),
		Err:       err,
	}
}
