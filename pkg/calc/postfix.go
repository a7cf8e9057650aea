package calc

import (
	"fmt"

	"github.com/lemonberrylabs/deskcalc/pkg/types"
)

// Balanced reports whether every ')' in tokens closes an earlier '(' and
// every '(' is closed. It does not modify tokens.
func Balanced(tokens []Token) bool {
	return unbalancedAt(tokens) < 0
}

// unbalancedAt returns the source position of the first unmatched ')', or of
// the innermost unclosed '(', or -1 when the parentheses balance.
func unbalancedAt(tokens []Token) int {
	var open []int
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLParen:
			open = append(open, tok.Pos)
		case TokenRParen:
			if len(open) == 0 {
				return tok.Pos
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return open[len(open)-1]
	}
	return -1
}

// ToPostfix converts an infix token sequence to postfix order. The boolean is
// false when the input is structurally invalid, in which case the returned
// sequence is always empty.
func ToPostfix(tokens []Token) ([]Token, bool) {
	out, err := toPostfix(tokens)
	return out, err == nil
}

// toPostfix is the shunting-yard transform. Operators of equal priority are
// popped before pushing, which makes them left-associative.
func toPostfix(tokens []Token) ([]Token, error) {
	var failure error
	if pos := unbalancedAt(tokens); pos >= 0 {
		failure = types.NewStructuralError("unbalanced parentheses", pos)
	}

	out := make([]Token, 0, len(tokens))
	var stack []Token

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenNumber:
			out = append(out, tok)
		case TokenLParen:
			stack = append(stack, tok)
		case TokenRParen:
			for len(stack) > 0 && stack[len(stack)-1].Kind != TokenLParen {
				out = append(out, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			// An unmatched ')' leaves the stack empty; the balance check
			// has already recorded the failure.
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case TokenOperator:
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.Kind != TokenOperator || top.Priority() < tok.Priority() {
					break
				}
				out = append(out, top)
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, tok)
		default:
			if failure == nil {
				failure = types.NewStructuralError(fmt.Sprintf("unexpected token %s", tok), tok.Pos)
			}
		}
	}

	for len(stack) > 0 {
		out = append(out, stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}

	if failure != nil {
		return nil, failure
	}
	return out, nil
}
