package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// maxDepth bounds expression nesting to keep malicious input from blowing
// the stack.
const maxDepth = 50

// Parser parses filter expressions into an AST
type Parser struct {
	tokens []Token
	pos    int
	depth  int
}

// NewParser creates a new parser
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Value: ""}
	}
	return p.tokens[p.pos]
}

// advance moves to the next token
func (p *Parser) advance() {
	p.pos++
}

// Parse compiles a filter expression into a Filter.
func Parse(expr string) (*Filter, error) {
	tokens := Tokenize(expr)
	for _, tok := range tokens {
		if tok.Type == TokenError {
			return nil, fmt.Errorf("unexpected character %q in filter expression", tok.Value)
		}
	}

	parser := NewParser(tokens)
	root, err := parser.parseOr()
	if err != nil {
		return nil, err
	}
	if parser.current().Type != TokenEOF {
		return nil, fmt.Errorf("unexpected trailing input at %q", parser.current().Value)
	}
	return &Filter{root: root}, nil
}

// parseOr parses or-expressions (lowest precedence)
func (p *Parser) parseOr() (Expression, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return nil, fmt.Errorf("filter expression nested deeper than %d levels", maxDepth)
	}

	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Left:     left,
			Operator: TokenOr,
			Right:    right,
		}
	}

	return left, nil
}

// parseAnd parses and-expressions (higher precedence than or)
func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Left:     left,
			Operator: TokenAnd,
			Right:    right,
		}
	}

	return left, nil
}

// parseFactor parses a parenthesized expression or a single comparison
func (p *Parser) parseFactor() (Expression, error) {
	if p.current().Type == TokenLParen {
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current().Type != TokenRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.advance()
		return expr, nil
	}
	return p.parseComparison()
}

// parseComparison parses `column op literal` or `column in (literals)`
func (p *Parser) parseComparison() (Expression, error) {
	if p.current().Type != TokenIdent {
		return nil, fmt.Errorf("expected column name, got %q", p.current().Value)
	}
	column := p.current().Value
	p.advance()

	if p.current().Type == TokenIn {
		p.advance()
		values, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		return &InExpr{Column: column, Values: values}, nil
	}

	operator := p.current().Type
	switch operator {
	case TokenEqual, TokenNotEqual, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual:
		p.advance()
	default:
		return nil, fmt.Errorf("expected comparison operator after %q, got %q", column, p.current().Value)
	}

	value, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	return &ComparisonExpr{
		Column:   column,
		Operator: operator,
		Value:    value,
	}, nil
}

// parseLiteralList parses a parenthesized, comma-separated literal list
func (p *Parser) parseLiteralList() ([]any, error) {
	if p.current().Type != TokenLParen {
		return nil, fmt.Errorf("expected ( after in, got %q", p.current().Value)
	}
	p.advance()

	var values []any
	for {
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, value)

		if p.current().Type == TokenComma {
			p.advance()
			continue
		}
		break
	}

	if p.current().Type != TokenRParen {
		return nil, fmt.Errorf("missing closing parenthesis in value list")
	}
	p.advance()
	return values, nil
}

// parseLiteral parses one literal value
func (p *Parser) parseLiteral() (any, error) {
	switch p.current().Type {
	case TokenString:
		value := p.current().Value
		p.advance()
		return value, nil
	case TokenNumber:
		numStr := p.current().Value
		p.advance()
		// Try to parse as int first, then float
		if intVal, err := strconv.ParseInt(numStr, 10, 64); err == nil {
			return intVal, nil
		}
		if floatVal, err := strconv.ParseFloat(numStr, 64); err == nil {
			return floatVal, nil
		}
		return nil, fmt.Errorf("invalid number: %s", numStr)
	case TokenBool:
		value := strings.EqualFold(p.current().Value, "true")
		p.advance()
		return value, nil
	case TokenNull:
		p.advance()
		return nil, nil
	default:
		return nil, fmt.Errorf("expected value (string, number, bool or null), got %q", p.current().Value)
	}
}
