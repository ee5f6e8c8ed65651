package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"guardians/api/clients/attestations"

	"github.com/google/uuid"
)

const defaultServerURL = "http://localhost:8080"

const requestTimeout = 90 * time.Second

type serverFlags struct {
	url      string
	adminKey string
}

func (s *serverFlags) register(fs *flag.FlagSet, admin bool) {
	url := os.Getenv("GUARDIANS_URL")
	if url == "" {
		url = defaultServerURL
	}
	fs.StringVar(&s.url, "server", url, "guardians service base URL")
	if admin {
		fs.StringVar(&s.adminKey, "admin-key", os.Getenv("ADMIN_API_KEY"), "admin API key for write routes")
	}
}

func (s *serverFlags) client() *attestations.Client {
	return attestations.NewClient(s.url,
		attestations.WithAdminKey(s.adminKey),
		attestations.WithRequestID(func() string { return uuid.NewString() }),
	)
}

func runAttest(args []string) int {
	fs := flag.NewFlagSet("attest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var srv serverFlags
	var in attestations.SubmitInput
	srv.register(fs, true)
	fs.StringVar(&in.ContentFingerprint, "cid", "", "content fingerprint")
	fs.StringVar(&in.MetadataFingerprint, "metadata", "", "metadata fingerprint")
	fs.StringVar(&in.ContentType, "content-type", "", "content media type")
	fs.StringVar(&in.Title, "title", "", "title")
	fs.StringVar(&in.Description, "description", "", "description")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if in.ContentFingerprint == "" || in.MetadataFingerprint == "" {
		fmt.Fprintln(os.Stderr, "attest requires --cid and --metadata")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	res, err := srv.client().Submit(ctx, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attest: %v\n", err)
		return 1
	}
	return submitExit(res)
}

func runRevoke(args []string) int {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var srv serverFlags
	var cid string
	srv.register(fs, true)
	fs.StringVar(&cid, "cid", "", "content fingerprint")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if cid == "" {
		fmt.Fprintln(os.Stderr, "revoke requires --cid")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	res, err := srv.client().Revoke(ctx, cid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "revoke: %v\n", err)
		return 1
	}
	return submitExit(res)
}

// submitExit prints the result and maps a failed submission to exit code 2.
func submitExit(res attestations.SubmitResult) int {
	if code := printJSON(res); code != 0 {
		return code
	}
	if !res.Success {
		if res.Recovery != "" {
			fmt.Fprintln(os.Stderr, res.Recovery)
		}
		return 2
	}
	return 0
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var srv serverFlags
	var cid string
	var owner string
	srv.register(fs, false)
	fs.StringVar(&cid, "cid", "", "content fingerprint")
	fs.StringVar(&owner, "owner", "", "expected owner public key")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if cid == "" {
		fmt.Fprintln(os.Stderr, "verify requires --cid")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	res, err := srv.client().Verify(ctx, cid, owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	if code := printJSON(res); code != 0 {
		return code
	}
	if !res.Verified {
		return 2
	}
	return 0
}

func runLicenseCreate(args []string) int {
	fs := flag.NewFlagSet("license create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var srv serverFlags
	var in attestations.LicenseInput
	var noAttribution bool
	var expires string
	srv.register(fs, true)
	fs.StringVar(&in.ContentCID, "cid", "", "content fingerprint")
	fs.StringVar(&in.LicenseType, "type", "", "license type")
	fs.BoolVar(&in.AllowCommercialUse, "commercial", false, "allow commercial use")
	fs.BoolVar(&in.AllowAITraining, "ai-training", false, "allow AI training")
	fs.BoolVar(&noAttribution, "no-attribution", false, "do not require attribution")
	fs.StringVar(&expires, "expires", "", "expiration (RFC3339)")
	fs.StringVar(&in.CustomTerms, "terms", "", "custom terms")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if in.ContentCID == "" || in.LicenseType == "" {
		fmt.Fprintln(os.Stderr, "license create requires --cid and --type")
		return 1
	}
	if noAttribution {
		attribution := false
		in.RequireAttribution = &attribution
	}
	if expires != "" {
		at, err := time.Parse(time.RFC3339, expires)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse expires: %v\n", err)
			return 1
		}
		in.ExpirationDate = &at
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	raw, err := srv.client().CreateLicense(ctx, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "license create: %v\n", err)
		return 1
	}
	if err := writeOutput("", raw); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runLicenseEvaluate(args []string) int {
	fs := flag.NewFlagSet("license evaluate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var srv serverFlags
	var cid string
	var use string
	srv.register(fs, false)
	fs.StringVar(&cid, "cid", "", "content fingerprint")
	fs.StringVar(&use, "use", "", "intended use")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if cid == "" || use == "" {
		fmt.Fprintln(os.Stderr, "license evaluate requires --cid and --use")
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	decision, err := srv.client().EvaluateUsage(ctx, cid, use)
	if err != nil {
		fmt.Fprintf(os.Stderr, "license evaluate: %v\n", err)
		return 1
	}
	if code := printJSON(decision); code != 0 {
		return code
	}
	if !decision.Allow {
		return 2
	}
	return 0
}
