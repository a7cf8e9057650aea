// Package calc implements the desk calculator expression engine. It tokenizes
// a raw expression, checks parenthesis balance, converts the infix token
// sequence to postfix with the shunting-yard algorithm, and evaluates the
// postfix form into a numeric result string or the "Error!" sentinel.
package calc

import "fmt"

// TokenKind represents the kind of a lexical token.
type TokenKind int

const (
	TokenInvalid  TokenKind = iota // zero value, never produced by the tokenizer
	TokenNumber                    // digits and '.', optionally with a folded sign
	TokenOperator                  // + - * /
	TokenLParen                    // (
	TokenRParen                    // )
	TokenUnknown                   // unrecognized character, strict mode only
)

// Token represents a single lexical token.
type Token struct {
	Kind TokenKind
	Text string // raw text; for numbers this includes a folded sign
	Pos  int    // byte offset of the first character in the source
}

// String returns a debug-friendly representation of the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenNumber:
		return "NUMBER"
	case TokenOperator:
		return "OPERATOR"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// String returns a debug-friendly representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}

// Priority returns the binding strength of an operator token: 1 for + and -,
// 2 for * and /, and 0 for anything else.
func (t Token) Priority() int {
	if t.Kind != TokenOperator {
		return 0
	}
	switch t.Text {
	case "+", "-":
		return 1
	case "*", "/":
		return 2
	default:
		return 0
	}
}

func isDigitOrDot(r rune) bool {
	return (r >= '0' && r <= '9') || r == '.'
}

func isOperator(r rune) bool {
	return r == '+' || r == '-' || r == '*' || r == '/'
}

func isSign(r rune) bool {
	return r == '+' || r == '-'
}

func isSymbol(r rune) bool {
	return isOperator(r) || r == '(' || r == ')'
}
