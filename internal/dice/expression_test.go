package dice

import (
	"errors"
	"testing"
)

// TestParseExpression ensures well-formed expressions parse into their parts.
func TestParseExpression(t *testing.T) {
	tcs := []struct {
		input string
		want  Expression
	}{
		{input: "4d6", want: Expression{Count: 4, Sides: 6}},
		{input: "d20", want: Expression{Count: 1, Sides: 20}},
		{input: "1d100", want: Expression{Count: 1, Sides: 100}},
		{input: "2d10+5", want: Expression{Count: 2, Sides: 10, Modifier: 5}},
		{input: "2d6+6", want: Expression{Count: 2, Sides: 6, Modifier: 6}},
		{input: "3d8-2", want: Expression{Count: 3, Sides: 8, Modifier: -2}},
	}

	for _, tc := range tcs {
		got, err := ParseExpression(tc.input)
		if err != nil {
			t.Fatalf("ParseExpression(%q) returned error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseExpression(%q) = %+v, want %+v", tc.input, got, tc.want)
		}
	}
}

// TestParseExpressionRejectsMalformedInput ensures bad expressions fail with
// ErrInvalidExpression.
func TestParseExpressionRejectsMalformedInput(t *testing.T) {
	tcs := []string{
		"",
		"d",
		"20",
		"4x6",
		"0d6",
		"4d0",
		"d6+",
		"4d6++2",
		"4d6xyz",
		"4d6+2extra",
		"-4d6",
	}

	for _, input := range tcs {
		_, err := ParseExpression(input)
		if !errors.Is(err, ErrInvalidExpression) {
			t.Fatalf("ParseExpression(%q) error = %v, want %v", input, err, ErrInvalidExpression)
		}
	}
}
