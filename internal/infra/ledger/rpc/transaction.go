package rpc

import (
	"errors"

	"guardians/internal/domain"
)

// systemProgramID is the all-zero key.
var systemProgramID = domain.PublicKey{}

type accountMeta struct {
	key      domain.PublicKey
	signer   bool
	writable bool
}

type instruction struct {
	programID domain.PublicKey
	accounts  []accountMeta
	data      []byte
}

type compiledInstruction struct {
	programIndex uint8
	accounts     []uint8
	data         []byte
}

// message is a legacy transaction message.
type message struct {
	numSigners          uint8
	numReadonlySigned   uint8
	numReadonlyUnsigned uint8
	keys                []domain.PublicKey
	recentBlockhash     [32]byte
	instructions        []compiledInstruction
}

// recordInstruction lists the accounts every attestation instruction takes:
// the record (writable), the owner (signer, writable payer) and the system
// program.
func recordInstruction(programID, record, owner domain.PublicKey, data []byte) instruction {
	return instruction{
		programID: programID,
		accounts: []accountMeta{
			{key: record, writable: true},
			{key: owner, signer: true, writable: true},
			{key: systemProgramID},
		},
		data: data,
	}
}

// compileMessage orders keys as the runtime requires: writable signers,
// readonly signers, writable non-signers, then readonly non-signers. The
// payer is always first.
func compileMessage(payer domain.PublicKey, blockhash [32]byte, ixs ...instruction) (message, error) {
	type flags struct {
		signer   bool
		writable bool
	}
	order := []domain.PublicKey{payer}
	seen := map[domain.PublicKey]*flags{payer: {signer: true, writable: true}}
	add := func(key domain.PublicKey, signer, writable bool) {
		f, ok := seen[key]
		if !ok {
			f = &flags{}
			seen[key] = f
			order = append(order, key)
		}
		f.signer = f.signer || signer
		f.writable = f.writable || writable
	}
	for _, ix := range ixs {
		for _, meta := range ix.accounts {
			add(meta.key, meta.signer, meta.writable)
		}
		add(ix.programID, false, false)
	}

	var groups [4][]domain.PublicKey
	for _, key := range order {
		f := seen[key]
		switch {
		case f.signer && f.writable:
			groups[0] = append(groups[0], key)
		case f.signer:
			groups[1] = append(groups[1], key)
		case f.writable:
			groups[2] = append(groups[2], key)
		default:
			groups[3] = append(groups[3], key)
		}
	}
	keys := make([]domain.PublicKey, 0, len(order))
	for _, g := range groups {
		keys = append(keys, g...)
	}
	if len(keys) > 256 {
		return message{}, errors.New("too many account keys")
	}
	index := make(map[domain.PublicKey]uint8, len(keys))
	for i, key := range keys {
		index[key] = uint8(i)
	}

	msg := message{
		numSigners:          uint8(len(groups[0]) + len(groups[1])),
		numReadonlySigned:   uint8(len(groups[1])),
		numReadonlyUnsigned: uint8(len(groups[3])),
		keys:                keys,
		recentBlockhash:     blockhash,
	}
	for _, ix := range ixs {
		compiled := compiledInstruction{programIndex: index[ix.programID], data: ix.data}
		for _, meta := range ix.accounts {
			compiled.accounts = append(compiled.accounts, index[meta.key])
		}
		msg.instructions = append(msg.instructions, compiled)
	}
	return msg, nil
}

func (m message) serialize() []byte {
	out := []byte{m.numSigners, m.numReadonlySigned, m.numReadonlyUnsigned}
	out = appendCompactU16(out, len(m.keys))
	for _, key := range m.keys {
		out = append(out, key[:]...)
	}
	out = append(out, m.recentBlockhash[:]...)
	out = appendCompactU16(out, len(m.instructions))
	for _, ix := range m.instructions {
		out = append(out, ix.programIndex)
		out = appendCompactU16(out, len(ix.accounts))
		out = append(out, ix.accounts...)
		out = appendCompactU16(out, len(ix.data))
		out = append(out, ix.data...)
	}
	return out
}

func serializeTransaction(signatures [][]byte, msg []byte) []byte {
	out := appendCompactU16(nil, len(signatures))
	for _, sig := range signatures {
		out = append(out, sig...)
	}
	return append(out, msg...)
}

func appendCompactU16(b []byte, n int) []byte {
	v := uint16(n)
	for {
		elem := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}

func readCompactU16(b []byte) (int, int, error) {
	var v, shift int
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, errors.New("truncated compact-u16")
		}
		v |= int(b[i]&0x7f) << shift
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errors.New("compact-u16 overflow")
}
