package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "address":
		return runAddress(args[2:])
	case "keygen":
		return runKeygen(args[2:])
	case "attest":
		return runAttest(args[2:])
	case "revoke":
		return runRevoke(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "session":
		return runSession(args[2:])
	case "license":
		if len(args) >= 3 {
			switch args[2] {
			case "create":
				return runLicenseCreate(args[3:])
			case "evaluate":
				return runLicenseEvaluate(args[3:])
			}
		}
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "guardians"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s address --owner <pubkey> --cid <content-cid> [--program-id <pubkey>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s keygen --out <keypair.json>\n", name)
	fmt.Fprintf(os.Stderr, "  %s attest --cid <content-cid> --metadata <metadata-cid> [--content-type <type>] [--title <title>] [--description <text>] [--server <url>] [--admin-key <key>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s revoke --cid <content-cid> [--server <url>] [--admin-key <key>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s session [--ledger <rpc|memory>] [--rpc-url <url>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --cid <content-cid> [--owner <pubkey>] [--server <url>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s license create --cid <content-cid> --type <license-type> [--commercial] [--ai-training] [--no-attribution] [--expires <rfc3339>] [--terms <text>] [--server <url>] [--admin-key <key>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s license evaluate --cid <content-cid> --use <display|commercial|ai_training|research|derivative> [--server <url>]\n", name)
}
