// Package policyopa evaluates license usage questions with an embedded or
// on-disk rego bundle.
package policyopa

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"guardians/internal/domain"
	"guardians/internal/usecase"
)

const licenseQuery = "data.guardians.license.result"

//go:embed policy/*.rego
var embeddedPolicy embed.FS

type Engine struct {
	query      rego.PreparedEvalQuery
	policyHash string
}

// NewEngine prepares the bundle shipped with the binary.
func NewEngine(ctx context.Context) (*Engine, error) {
	sub, err := fs.Sub(embeddedPolicy, "policy")
	if err != nil {
		return nil, err
	}
	return NewEngineFromFS(ctx, sub)
}

// NewEngineFromBundlePath prepares a bundle directory, replacing the embedded
// policy.
func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	if strings.TrimSpace(bundlePath) == "" {
		return nil, errors.New("policy bundle path is required")
	}
	return NewEngineFromFS(ctx, os.DirFS(bundlePath))
}

func NewEngineFromFS(ctx context.Context, fsys fs.FS) (*Engine, error) {
	hash, err := ComputeBundleHashFromFS(fsys, ".")
	if err != nil {
		return nil, err
	}
	files, err := collectBundleFiles(fsys, ".")
	if err != nil {
		return nil, err
	}

	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	opts := []func(*rego.Rego){
		rego.Query(licenseQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
	}
	modules := 0
	for _, f := range files {
		if !strings.HasSuffix(f.Path, ".rego") {
			continue
		}
		src, err := fs.ReadFile(fsys, f.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rego.Module(f.Path, string(src)))
		modules++
	}
	if modules == 0 {
		return nil, errors.New("policy bundle has no rego modules")
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare license policy: %w", err)
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, policyHash: hash}, nil
}

func (e *Engine) PolicyHash() string {
	if e == nil {
		return ""
	}
	return e.policyHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.UsagePolicyInput) (domain.UsageDecision, error) {
	if e == nil {
		return domain.UsageDecision{}, fmt.Errorf("%w: policy engine not configured", domain.ErrNotReady)
	}
	doc, err := toInput(input)
	if err != nil {
		return domain.UsageDecision{}, err
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return domain.UsageDecision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.UsageDecision{}, errors.New("empty policy result")
	}
	decision, err := decodeDecision(results[0].Expressions[0].Value)
	if err != nil {
		return domain.UsageDecision{}, err
	}
	sort.Slice(decision.Deny, func(i, j int) bool {
		if decision.Deny[i].Code == decision.Deny[j].Code {
			return decision.Deny[i].Message < decision.Deny[j].Message
		}
		return decision.Deny[i].Code < decision.Deny[j].Code
	})
	decision.PolicyHash = e.policyHash
	return decision, nil
}

// toInput hands rego the same JSON shape the license document is pinned in.
func toInput(input domain.UsagePolicyInput) (map[string]any, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeDecision(value any) (domain.UsageDecision, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.UsageDecision{}, err
	}
	var decision domain.UsageDecision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return domain.UsageDecision{}, fmt.Errorf("decode policy result: %w", err)
	}
	return decision, nil
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, builtin := ast.BuiltinMap[name]; !builtin {
				return false
			}
			if _, ok := allowedBuiltins[name]; !ok {
				forbidden[name] = struct{}{}
			}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}

var _ usecase.UsagePolicy = (*Engine)(nil)
