package dice

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression indicates a dice expression could not be parsed.
var ErrInvalidExpression = errors.New("invalid dice expression")

// Expression is a parsed dice expression of the form NdS, optionally
// followed by a signed modifier, e.g. "4d6", "d20", "2d10+5".
type Expression struct {
	Count    int
	Sides    int
	Modifier int
}

// ParseExpression parses a dice expression.
//
// The grammar is:
//
//	expression = [count] "d" sides [modifier]
//	count      = digits        (defaults to 1, must be positive)
//	sides      = digits        (must be positive)
//	modifier   = ("+" | "-") digits
//
// The whole input must be consumed; trailing characters are an error.
func ParseExpression(input string) (Expression, error) {
	p := parser{input: input}

	count, hasCount, err := p.digits()
	if err != nil {
		return Expression{}, err
	}
	if !hasCount {
		count = 1
	}
	if count <= 0 {
		return Expression{}, fmt.Errorf("%w: count must be positive in %q", ErrInvalidExpression, input)
	}

	if !p.consume('d') {
		return Expression{}, fmt.Errorf("%w: expected 'd' at offset %d in %q", ErrInvalidExpression, p.pos, input)
	}

	sides, hasSides, err := p.digits()
	if err != nil {
		return Expression{}, err
	}
	if !hasSides {
		return Expression{}, fmt.Errorf("%w: expected die sides at offset %d in %q", ErrInvalidExpression, p.pos, input)
	}
	if sides <= 0 {
		return Expression{}, fmt.Errorf("%w: sides must be positive in %q", ErrInvalidExpression, input)
	}

	modifier := 0
	negative := false
	switch {
	case p.consume('+'):
	case p.consume('-'):
		negative = true
	default:
		if !p.done() {
			return Expression{}, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrInvalidExpression, p.rest(), p.pos, input)
		}
		return Expression{Count: count, Sides: sides}, nil
	}

	modifier, hasModifier, err := p.digits()
	if err != nil {
		return Expression{}, err
	}
	if !hasModifier {
		return Expression{}, fmt.Errorf("%w: expected modifier digits at offset %d in %q", ErrInvalidExpression, p.pos, input)
	}
	if negative {
		modifier = -modifier
	}
	if !p.done() {
		return Expression{}, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrInvalidExpression, p.rest(), p.pos, input)
	}

	return Expression{Count: count, Sides: sides, Modifier: modifier}, nil
}

// parser is a cursor over a dice expression string.
type parser struct {
	input string
	pos   int
}

func (p *parser) done() bool {
	return p.pos >= len(p.input)
}

func (p *parser) rest() string {
	if p.done() {
		return ""
	}
	return p.input[p.pos:]
}

// consume advances past c when it is the next byte.
func (p *parser) consume(c byte) bool {
	if p.done() || p.input[p.pos] != c {
		return false
	}
	p.pos++
	return true
}

// digits reads a run of decimal digits. The second return reports whether
// any digits were present.
func (p *parser) digits() (int, bool, error) {
	start := p.pos
	value := 0
	for !p.done() && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
		value = value*10 + int(p.input[p.pos]-'0')
		if value > 1<<20 {
			return 0, false, fmt.Errorf("%w: number too large in %q", ErrInvalidExpression, p.input)
		}
		p.pos++
	}
	return value, p.pos > start, nil
}
