package calc

import (
	"strings"
	"unicode"
)

// TokenizerOptions configures the tokenizer.
type TokenizerOptions struct {
	// Strict emits a TokenUnknown for every unrecognized character instead of
	// dropping it. The transformer rejects unknown tokens. Whitespace is
	// still skipped, but it ends a pending number.
	Strict bool
}

// Tokenizer splits a calculator expression into tokens.
type Tokenizer struct {
	input  string
	opts   TokenizerOptions
	tokens []Token

	num    strings.Builder // pending number text
	numPos int
	prev   rune // last recognized character, 0 at the start
}

// NewTokenizer creates a tokenizer for the given input.
func NewTokenizer(input string, opts TokenizerOptions) *Tokenizer {
	return &Tokenizer{input: input, opts: opts}
}

// Tokenize is a shorthand for NewTokenizer(input, TokenizerOptions{}).Tokenize().
func Tokenize(input string) []Token {
	return NewTokenizer(input, TokenizerOptions{}).Tokenize()
}

// Tokenize scans the entire input and returns the tokens in reading order.
// It never fails: malformed numbers such as "1.2.3" are emitted as-is and
// rejected later by the evaluator.
func (t *Tokenizer) Tokenize() []Token {
	t.tokens = t.tokens[:0]
	t.num.Reset()
	t.prev = 0

	for i, r := range t.input {
		switch {
		case isDigitOrDot(r):
			t.appendNum(r, i)
			t.prev = r
		case isSymbol(r):
			t.flush()
			// A sign at the start, after '(' or after another operator is
			// unary and becomes part of the next number.
			if isSign(r) && (t.prev == 0 || t.prev == '(' || isOperator(t.prev)) {
				t.appendNum(r, i)
			} else {
				t.tokens = append(t.tokens, symbolToken(r, i))
			}
			t.prev = r
		case t.opts.Strict && unicode.IsSpace(r):
			t.flush()
		case t.opts.Strict:
			t.flush()
			t.tokens = append(t.tokens, Token{Kind: TokenUnknown, Text: string(r), Pos: i})
		}
	}
	t.flush()

	out := make([]Token, len(t.tokens))
	copy(out, t.tokens)
	return out
}

func (t *Tokenizer) appendNum(r rune, pos int) {
	if t.num.Len() == 0 {
		t.numPos = pos
	}
	t.num.WriteRune(r)
}

// flush emits the pending number, if any.
func (t *Tokenizer) flush() {
	if t.num.Len() == 0 {
		return
	}
	t.tokens = append(t.tokens, Token{Kind: TokenNumber, Text: t.num.String(), Pos: t.numPos})
	t.num.Reset()
}

func symbolToken(r rune, pos int) Token {
	switch r {
	case '(':
		return Token{Kind: TokenLParen, Text: "(", Pos: pos}
	case ')':
		return Token{Kind: TokenRParen, Text: ")", Pos: pos}
	default:
		return Token{Kind: TokenOperator, Text: string(r), Pos: pos}
	}
}
