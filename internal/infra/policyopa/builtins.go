package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins keeps license evaluation deterministic: no clock, network
// or randomness. Expiry is decided by the caller and passed in the input.
var allowedBuiltins = map[string]struct{}{
	"ceil":         {},
	"concat":       {},
	"contains":     {},
	"count":        {},
	"endswith":     {},
	"eq":           {},
	"equal":        {},
	"floor":        {},
	"format_int":   {},
	"gt":           {},
	"gte":          {},
	"json.marshal": {},
	"lower":        {},
	"lt":           {},
	"lte":          {},
	"max":          {},
	"min":          {},
	"neq":          {},
	"object.get":   {},
	"object.union": {},
	"replace":      {},
	"sort":         {},
	"split":        {},
	"sprintf":      {},
	"startswith":   {},
	"substring":    {},
	"sum":          {},
	"trim":         {},
	"trim_space":   {},
	"upper":        {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(allowedBuiltins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; ok {
			allowed = append(allowed, builtin)
		}
	}
	return allowed
}
