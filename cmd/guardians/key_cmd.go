package main

import (
	"flag"
	"fmt"
	"os"

	"guardians/internal/config"
	"guardians/internal/domain"
	"guardians/internal/infra/address"
	"guardians/internal/infra/wallet/soft"
)

type addressOutput struct {
	Owner              string `json:"owner"`
	ContentFingerprint string `json:"content_fingerprint"`
	ProgramID          string `json:"program_id"`
	Address            string `json:"address"`
	Bump               uint8  `json:"bump"`
}

func runAddress(args []string) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var ownerRaw string
	var cid string
	var programRaw string

	fs.StringVar(&ownerRaw, "owner", "", "owner public key (base58)")
	fs.StringVar(&cid, "cid", "", "content fingerprint")
	fs.StringVar(&programRaw, "program-id", config.DefaultProgramID, "attestation program id (base58)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if ownerRaw == "" || cid == "" {
		fmt.Fprintln(os.Stderr, "address requires --owner and --cid")
		return 1
	}
	owner, err := domain.ParsePublicKey(ownerRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse owner: %v\n", err)
		return 1
	}
	programID, err := domain.ParsePublicKey(programRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse program-id: %v\n", err)
		return 1
	}
	fp := domain.NormalizeFingerprint(cid)
	addr, err := address.DeriveRecordAddress(programID, owner, fp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "derive address: %v\n", err)
		return 1
	}
	return printJSON(addressOutput{
		Owner:              owner.String(),
		ContentFingerprint: fp,
		ProgramID:          programID.String(),
		Address:            addr.String(),
		Bump:               addr.Bump,
	})
}

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var outPath string
	var force bool
	fs.StringVar(&outPath, "out", "", "keypair output path")
	fs.BoolVar(&force, "force", false, "overwrite an existing keypair")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if outPath == "" {
		fmt.Fprintln(os.Stderr, "keygen requires --out")
		return 1
	}
	if _, err := os.Stat(outPath); err == nil && !force {
		fmt.Fprintf(os.Stderr, "%s already exists; pass --force to overwrite\n", outPath)
		return 1
	}
	w, err := soft.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate keypair: %v\n", err)
		return 1
	}
	if err := w.WriteKeypairFile(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "write keypair: %v\n", err)
		return 1
	}
	return printJSON(map[string]string{"public_key": w.PublicKey().String(), "path": outPath})
}
