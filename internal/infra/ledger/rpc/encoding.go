package rpc

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"guardians/internal/domain"
)

const (
	ixRegister = "register_content"
	ixUpdate   = "update_attestation"
	ixRevoke   = "revoke_attestation"

	recordAccountName = "ContentAttestation"

	discriminatorSize = 8
	// ownerOffset is where the creator key starts inside record account data.
	ownerOffset = discriminatorSize

	maxDecodedString = 1024
)

var errShortAccount = errors.New("account data too short")

func discriminator(preimage string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [discriminatorSize]byte
	copy(out[:], sum[:discriminatorSize])
	return out
}

func instructionDiscriminator(name string) [discriminatorSize]byte {
	return discriminator("global:" + name)
}

var recordDiscriminator = discriminator("account:" + recordAccountName)

type borshWriter struct {
	buf []byte
}

func (w *borshWriter) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *borshWriter) str(s string) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *borshWriter) optStr(s *string) {
	if s == nil {
		w.buf = append(w.buf, 0)
		return
	}
	w.buf = append(w.buf, 1)
	w.str(*s)
}

func (w *borshWriter) i64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

func (w *borshWriter) boolean(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func encodeRegisterData(in domain.CreateAttestation) []byte {
	d := instructionDiscriminator(ixRegister)
	w := &borshWriter{}
	w.raw(d[:])
	w.str(in.ContentFingerprint)
	w.str(in.MetadataFingerprint)
	w.str(in.ContentType)
	w.str(in.Title)
	w.str(in.Description)
	return w.buf
}

func encodeUpdateData(upd domain.AttestationUpdate) []byte {
	d := instructionDiscriminator(ixUpdate)
	w := &borshWriter{}
	w.raw(d[:])
	w.optStr(upd.MetadataFingerprint)
	w.optStr(upd.Title)
	w.optStr(upd.Description)
	return w.buf
}

func encodeRevokeData() []byte {
	d := instructionDiscriminator(ixRevoke)
	return append([]byte(nil), d[:]...)
}

type borshReader struct {
	data []byte
	off  int
}

func (r *borshReader) remaining() int {
	return len(r.data) - r.off
}

func (r *borshReader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errShortAccount
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *borshReader) str() (string, error) {
	lenBytes, err := r.take(4)
	if err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBytes)
	if n > maxDecodedString {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *borshReader) i64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// decodeRecord parses record account data: discriminator, creator key, the
// five string fields, created timestamp, then the updated timestamp and the
// revoked flag. Accounts are allocated at maximum size, so the trailing
// fields read as zero on records that never changed.
func decodeRecord(addr domain.PublicKey, data []byte) (domain.AttestationRecord, error) {
	r := &borshReader{data: data}
	disc, err := r.take(discriminatorSize)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	if [discriminatorSize]byte(disc) != recordDiscriminator {
		return domain.AttestationRecord{}, errors.New("account is not an attestation record")
	}
	ownerBytes, err := r.take(domain.PublicKeySize)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	rec := domain.AttestationRecord{Address: addr}
	copy(rec.Owner[:], ownerBytes)

	fields := []*string{&rec.ContentFingerprint, &rec.MetadataFingerprint, &rec.ContentType, &rec.Title, &rec.Description}
	for _, f := range fields {
		v, err := r.str()
		if err != nil {
			return domain.AttestationRecord{}, err
		}
		*f = v
	}
	created, err := r.i64()
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	rec.CreatedAt = time.Unix(created, 0).UTC()
	rec.UpdatedAt = rec.CreatedAt
	if r.remaining() >= 8 {
		updated, _ := r.i64()
		if updated > 0 {
			rec.UpdatedAt = time.Unix(updated, 0).UTC()
		}
	}
	if r.remaining() >= 1 {
		flag, _ := r.take(1)
		rec.Revoked = flag[0] == 1
	}
	return rec, nil
}
