package calc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/lemonberrylabs/deskcalc/pkg/types"
)

// Engine is the capability every calculator shell depends on.
type Engine interface {
	// Evaluate returns the result of expression, or ErrorSentinel.
	Evaluate(expression string) string
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger used for evaluation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrictTokens makes the tokenizer reject unrecognized characters
// instead of dropping them.
func WithStrictTokens(strict bool) Option {
	return func(c *Calculator) {
		c.tokenizer.Strict = strict
	}
}

// Calculator is the default Engine. It is safe for concurrent use.
type Calculator struct {
	logger    *slog.Logger
	tokenizer TokenizerOptions

	mu     sync.Mutex
	exp    string
	result string
}

// New creates a Calculator.
func New(opts ...Option) *Calculator {
	c := &Calculator{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCalculator = New()

// Evaluate evaluates expression with a default Calculator.
func Evaluate(expression string) string {
	return defaultCalculator.Evaluate(expression)
}

// Evaluate returns the result of expression, or ErrorSentinel. It never panics.
func (c *Calculator) Evaluate(expression string) string {
	result, _ := c.Diagnose(expression)
	return result
}

// SetExpression evaluates s and records it together with its result, for
// shells that submit an expression and fetch the result in two steps.
func (c *Calculator) SetExpression(s string) {
	result := c.Evaluate(s)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.exp = s
	c.result = result
}

// Expression returns the expression passed to the last SetExpression call.
func (c *Calculator) Expression() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exp
}

// Result returns the result of the last SetExpression call.
func (c *Calculator) Result() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Diagnose evaluates expression like Evaluate and additionally returns a
// *types.CalcError describing the failure when the result is ErrorSentinel.
func (c *Calculator) Diagnose(expression string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ErrorSentinel
			err = types.NewStructuralError(fmt.Sprintf("internal fault: %v", r), types.NoPos)
			c.logger.Error("evaluation panicked", "expression", expression, "panic", r)
		}
	}()

	tokens := NewTokenizer(expression, c.tokenizer).Tokenize()

	postfix, err := toPostfix(tokens)
	if err != nil {
		result = ErrorSentinel
	} else {
		result, err = evaluatePostfix(postfix)
	}

	if err != nil {
		c.logger.Debug("evaluation failed",
			"expression", expression,
			"kind", types.KindOf(err),
			"error", err)
		return result, err
	}
	c.logger.Debug("evaluated", "expression", expression, "result", result)
	return result, nil
}
