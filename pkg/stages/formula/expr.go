package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// tokenKind classifies lexical tokens of an arithmetic expression.
type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// isSafeRune reports whether r belongs to the characters a substituted expression may contain.
func isSafeRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '_' || r == '.' || r == ',':
		return true
	case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')':
		return true
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	}
	return false
}

// checkSafe rejects expressions containing anything outside the whitelist.
func checkSafe(expr string) error {
	for i, r := range expr {
		if !isSafeRune(r) {
			return fmt.Errorf("unsafe character %q at offset %d", r, i)
		}
	}
	return nil
}

func isIdentStart(r byte) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r byte) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isDigit(r byte) bool {
	return r >= '0' && r <= '9'
}

// tokenize splits a whitelisted expression into tokens.
func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case isDigit(c) || (c == '.' && i+1 < len(expr) && isDigit(expr[i+1])):
			start := i
			seenDot := false
			for i < len(expr) && (isDigit(expr[i]) || (expr[i] == '.' && !seenDot)) {
				if expr[i] == '.' {
					seenDot = true
				}
				i++
			}
			v, err := strconv.ParseFloat(expr[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q: %w", expr[start:i], err)
			}
			tokens = append(tokens, token{kind: tokNumber, text: expr[start:i], num: v, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(expr) && (isIdentPart(expr[i]) || (expr[i] == '.' && i+1 < len(expr) && isIdentStart(expr[i+1]))) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: expr[start:i], pos: start})
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", c, i)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(expr)})
	return tokens, nil
}

// functions is the fixed set of callable names. A "Math." prefix is accepted too.
var functions = map[string]func(args []float64) (float64, error){
	"abs":   unary(math.Abs),
	"ceil":  unary(math.Ceil),
	"floor": unary(math.Floor),
	"round": unary(jsRound),
	"sqrt":  unary(math.Sqrt),
	"trunc": unary(math.Trunc),
	"pow": func(args []float64) (float64, error) {
		if len(args) != 2 {
			return 0, fmt.Errorf("pow takes 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	},
	"min": variadic(math.Min),
	"max": variadic(math.Max),
}

var constants = map[string]float64{
	"PI": math.Pi,
	"E":  math.E,
}

func unary(fn func(float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return fn(args[0]), nil
	}
}

func variadic(fn func(a, b float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("expected at least 1 argument")
		}
		acc := args[0]
		for _, a := range args[1:] {
			acc = fn(acc, a)
		}
		return acc, nil
	}
}

// jsRound rounds half up, matching spreadsheet-style rounding of positive halves.
func jsRound(x float64) float64 {
	return math.Floor(x + 0.5)
}

func lookupName(name string) string {
	return strings.TrimPrefix(name, "Math.")
}

// parser is a recursive-descent evaluator over the grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = ("+" | "-") unary | primary
//	primary = number | ident [ "(" [ expr { "," expr } ] ")" ] | "(" expr ")"
type parser struct {
	tokens []token
	pos    int
	depth  int
}

const maxDepth = 64

// Eval evaluates a whitelisted arithmetic expression.
func Eval(expr string) (float64, error) {
	if err := checkSafe(expr); err != nil {
		return 0, err
	}
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &parser{tokens: tokens}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	}
	return v, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expr() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return 0, fmt.Errorf("expression nested too deeply")
	}

	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if t.text == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.text == "*" {
			left *= right
		} else {
			left /= right
		}
	}
}

func (p *parser) unary() (float64, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxDepth {
			return 0, fmt.Errorf("expression nested too deeply")
		}
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if t.text == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.primary()
}

func (p *parser) primary() (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokLParen:
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.next().kind != tokRParen {
			return 0, fmt.Errorf("missing closing parenthesis for offset %d", t.pos)
		}
		return v, nil
	case tokIdent:
		name := lookupName(t.text)
		if p.peek().kind == tokLParen {
			fn, ok := functions[name]
			if !ok {
				return 0, fmt.Errorf("unknown function %q", t.text)
			}
			p.next()
			args, err := p.args()
			if err != nil {
				return 0, err
			}
			return fn(args)
		}
		if v, ok := constants[name]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unknown identifier %q", t.text)
	case tokEOF:
		return 0, fmt.Errorf("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	}
}

func (p *parser) args() ([]float64, error) {
	var args []float64
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		switch p.next().kind {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' in argument list")
		}
	}
}
