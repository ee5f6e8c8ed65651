package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"guardians/internal/app"
	"guardians/internal/config"
	"guardians/internal/platform/logger"
	"guardians/internal/usecase"
)

const sessionHelp = `commands:
  cid <content-cid>                 set the content fingerprint (checked after a pause)
  submit <metadata-cid> [title...]  create or update the attestation
  status                            print the current state
  quit`

func runSession(args []string) int {
	return runSessionIO(args, os.Stdin, os.Stdout)
}

// runSessionIO drives an interactive attestation session against the ledger
// named by the service configuration, signing with the configured wallet.
func runSessionIO(args []string, in io.Reader, out io.Writer) int {
	fs := flag.NewFlagSet("session", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var ledgerMode string
	var rpcURL string
	fs.StringVar(&ledgerMode, "ledger", "", "ledger mode override (rpc|memory)")
	fs.StringVar(&rpcURL, "rpc-url", "", "ledger RPC URL override")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if ledgerMode != "" {
		cfg.LedgerMode = ledgerMode
	}
	if rpcURL != "" {
		cfg.LedgerRPCURL = rpcURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}
	registry, err := app.NewRegistry(cfg, logger.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init registry: %v\n", err)
		return 1
	}

	p := &sessionPrinter{out: out}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess := usecase.NewSession(ctx, usecase.NewLifecycleController(registry, cfg.StrictCID, logger.Nop()), usecase.SessionOptions{
		Debounce: cfg.CheckDebounce,
		OnChange: p.snapshot,
	})
	defer sess.Close()

	p.line(sessionHelp)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "cid":
			if len(fields) != 2 {
				p.line("usage: cid <content-cid>")
				continue
			}
			sess.SetContentFingerprint(fields[1])
		case "submit":
			if len(fields) < 2 {
				p.line("usage: submit <metadata-cid> [title...]")
				continue
			}
			form := usecase.SubmitForm{
				MetadataFingerprint: fields[1],
				Title:               strings.Join(fields[2:], " "),
			}
			res, err := sess.Submit(ctx, form)
			if err != nil {
				p.line("refused: " + err.Error())
				continue
			}
			if !res.Success && res.Recovery != "" {
				p.line("hint: " + res.Recovery)
			}
		case "status":
			p.snapshot(sess.Snapshot())
		case "quit", "exit":
			return 0
		default:
			p.line(sessionHelp)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 1
	}
	return 0
}

// sessionPrinter serializes output from the input loop and the session's
// check callbacks.
type sessionPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *sessionPrinter) line(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

func (p *sessionPrinter) snapshot(snap usecase.SessionSnapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", snap.State)
	if snap.ContentFingerprint != "" {
		fmt.Fprintf(&b, " cid=%s", snap.ContentFingerprint)
	}
	if snap.Existing != nil {
		fmt.Fprintf(&b, " existing title=%q metadata=%s", snap.Existing.Title, snap.Existing.MetadataFingerprint)
	}
	if snap.Result != nil && snap.Result.Success {
		fmt.Fprintf(&b, " %s tx=%s", snap.Result.Action, snap.Result.TransactionID)
	}
	if snap.Err != nil {
		fmt.Fprintf(&b, " error=%q", snap.Err.Error())
	}
	p.line(b.String())
}
