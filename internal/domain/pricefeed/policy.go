package pricefeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"catalogue/internal/core/types"
	"catalogue/pkg/logger"
)

// DefaultMarkdownExpr treats any price drop as a markdown.
const DefaultMarkdownExpr = "next < current"

// MarkdownPolicy decides whether a price change is a markdown worth recording as
// oldPrice. Expressions are CEL over int variables current and next (minor units).
// Compiled programs are cached per expression.
type MarkdownPolicy struct {
	env *cel.Env
	log *logger.Logger

	mu       sync.RWMutex
	programs map[string]cel.Program
	fallback cel.Program
}

func NewMarkdownPolicy(log *logger.Logger) (*MarkdownPolicy, error) {
	if log == nil {
		log = logger.Default()
	}
	env, err := cel.NewEnv(
		cel.Variable("current", cel.IntType),
		cel.Variable("next", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	p := &MarkdownPolicy{
		env:      env,
		log:      log.WithComponent("markdown_policy"),
		programs: make(map[string]cel.Program),
	}
	p.fallback, err = p.compile(DefaultMarkdownExpr)
	if err != nil {
		return nil, err
	}
	p.programs[DefaultMarkdownExpr] = p.fallback
	return p, nil
}

// Validate reports whether expr compiles to a boolean expression.
func (p *MarkdownPolicy) Validate(expr string) error {
	_, err := p.compile(expr)
	return err
}

// IsMarkdown evaluates expr, or the default when expr is empty or invalid.
func (p *MarkdownPolicy) IsMarkdown(ctx context.Context, expr string, current, next types.MinorUnits) bool {
	prg := p.program(ctx, expr)
	out, _, err := prg.Eval(map[string]any{
		"current": int64(current),
		"next":    int64(next),
	})
	if err != nil {
		p.log.WithContext(ctx).Warnw("markdown policy evaluation failed, using default", "expr", expr, "error", err)
		return next < current
	}
	v, ok := out.Value().(bool)
	if !ok {
		return next < current
	}
	return v
}

func (p *MarkdownPolicy) program(ctx context.Context, expr string) cel.Program {
	if expr == "" {
		return p.fallback
	}

	p.mu.RLock()
	prg, ok := p.programs[expr]
	p.mu.RUnlock()
	if ok {
		return prg
	}

	prg, err := p.compile(expr)
	if err != nil {
		p.log.WithContext(ctx).Warnw("invalid markdown policy, using default", "expr", expr, "error", err)
		prg = p.fallback
	}

	p.mu.Lock()
	p.programs[expr] = prg
	p.mu.Unlock()
	return prg
}

func (p *MarkdownPolicy) compile(expr string) (cel.Program, error) {
	ast, iss := p.env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("policy %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return prg, nil
}
