package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
	"github.com/open-policy-agent/opa/v1/topdown"
)

// Query is the Rego rule the OPA engine evaluates.
const Query = "data.navguard.whitelisted"

var (
	// ErrNoPolicyPath is returned by NewOPAEngine for an empty path.
	ErrNoPolicyPath = errors.New("OPA policy path is empty")

	// ErrNotPrepared is returned by Whitelisted when no policy was loaded.
	ErrNotPrepared = errors.New("OPA policy not loaded")
)

// OPAEngine implements the Engine interface using embedded OPA/Rego.
type OPAEngine struct {
	mu   sync.RWMutex
	path string

	// Compiled query for evaluation
	query    rego.PreparedEvalQuery
	prepared bool
}

// NewOPAEngine creates a new OPA engine from a .rego policy file.
func NewOPAEngine(path string) (*OPAEngine, error) {
	if path == "" {
		return nil, ErrNoPolicyPath
	}
	e := &OPAEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewOPAEngineFromSource creates a new OPA engine from raw Rego source.
func NewOPAEngineFromSource(source string) (*OPAEngine, error) {
	e := &OPAEngine{}
	if err := e.loadSource(source); err != nil {
		return nil, err
	}
	return e, nil
}

// Whitelisted runs the Rego policy against the given path.
//
// The policy must live in package navguard and may define:
//
//	whitelisted: bool
//
// Input available to the policy:
//
//	input.path: string
//
// An undefined or non-boolean result means the path is not whitelisted.
func (e *OPAEngine) Whitelisted(ctx context.Context, path string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.prepared {
		return false, ErrNotPrepared
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{"path": path}))
	if err != nil {
		if topdown.IsError(err) {
			return false, fmt.Errorf("OPA evaluation error: %w", err)
		}
		return false, fmt.Errorf("OPA evaluation failed: %w", err)
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}

	ok, _ := rs[0].Expressions[0].Value.(bool)
	return ok, nil
}

// Reload re-reads the Rego policy file from disk and recompiles.
func (e *OPAEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("reading OPA policy file: %w", err)
	}
	return e.loadSource(string(data))
}

func (e *OPAEngine) loadSource(source string) error {
	// Parse to validate
	_, err := ast.ParseModuleWithOpts("policy.rego", source, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return fmt.Errorf("parsing Rego policy: %w", err)
	}

	r := rego.New(
		rego.Query(Query),
		rego.Module("policy.rego", source),
		rego.Store(inmem.New()),
	)

	query, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("preparing OPA query: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = query
	e.prepared = true

	return nil
}
