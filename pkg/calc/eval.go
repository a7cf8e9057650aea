package calc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lemonberrylabs/deskcalc/pkg/types"
)

// ErrorSentinel is the only failure value the engine ever returns.
const ErrorSentinel = "Error!"

// IsError reports whether a result string is the error sentinel.
func IsError(result string) bool {
	return result == ErrorSentinel
}

// EvaluatePostfix evaluates a postfix token sequence and returns the result
// string or ErrorSentinel.
func EvaluatePostfix(postfix []Token) string {
	result, _ := evaluatePostfix(postfix)
	return result
}

func evaluatePostfix(postfix []Token) (string, error) {
	stack := make([]string, 0, len(postfix))

	for _, tok := range postfix {
		switch tok.Kind {
		case TokenNumber:
			if _, ok := parseOperand(tok.Text); !ok {
				return ErrorSentinel, types.NewOperandError(fmt.Sprintf("malformed number %q", tok.Text), tok.Pos)
			}
			stack = append(stack, tok.Text)
		case TokenOperator:
			if len(stack) < 2 {
				return ErrorSentinel, types.NewOperandError(
					fmt.Sprintf("operator %q needs two operands, have %d", tok.Text, len(stack)), tok.Pos)
			}
			// Right operand is on top.
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-2]

			val, err := applyOperator(left, tok, right)
			if err != nil {
				return ErrorSentinel, err
			}
			stack = append(stack, val)
		default:
			return ErrorSentinel, types.NewOperandError(fmt.Sprintf("unexpected token %s in postfix sequence", tok), tok.Pos)
		}
	}

	if len(stack) != 1 {
		return ErrorSentinel, types.NewResidualError(len(stack))
	}
	return stack[0], nil
}

func applyOperator(left string, op Token, right string) (string, error) {
	a, aOk := parseOperand(left)
	b, bOk := parseOperand(right)
	if !aOk || !bOk {
		return "", types.NewOperandError(
			fmt.Sprintf("unsupported operands for %s: %q and %q", op.Text, left, right), op.Pos)
	}

	var v float64
	switch op.Text {
	case "+":
		v = a + b
	case "-":
		v = a - b
	case "*":
		v = a * b
	case "/":
		if b == 0 {
			return "", types.NewZeroDivisionError(op.Pos)
		}
		v = a / b
	default:
		return "", types.NewOperandError(fmt.Sprintf("unsupported operator %q", op.Text), op.Pos)
	}

	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "", types.NewArithmeticError(fmt.Sprintf("%s %s %s is out of range", left, op.Text, right), op.Pos)
	}
	return FormatNumber(v), nil
}

// parseOperand parses s as a finite float64. The spelled value "NaN" is
// rejected explicitly.
func parseOperand(s string) (float64, bool) {
	if s == "NaN" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// FormatNumber renders f the way the calculator displays results: the
// shortest round-trip digits, always with a fractional part for integral
// values ("11.0"), and exponent form outside 1e-4 <= |f| < 1e16.
func FormatNumber(f float64) string {
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
