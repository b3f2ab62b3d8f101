// Package filter implements a small row-predicate language for name-keyed
// dataset rows.
//
// An expression is one or more comparisons joined by and/or, with optional
// parentheses: `AGE > 30 and (SEX = 'M' or ARM in ('A', 'B'))`. Column
// names match row keys case-insensitively. The compiled Filter satisfies
// the reader's Predicate interface.
//
// Example usage:
//
//	f, err := filter.Parse("AGE >= 65 and SEX = 'F'")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rows, err := ds.ReadRows(reader.ReadOptions{Where: f})
package filter

// TokenType represents the type of a token
type TokenType int

const (
	// Keywords
	TokenAnd TokenType = iota
	TokenOr
	TokenIn

	// Operators
	TokenEqual        // =
	TokenNotEqual     // !=
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=

	// Literals
	TokenString
	TokenNumber
	TokenIdent
	TokenBool
	TokenNull

	// Punctuation
	TokenLParen
	TokenRParen
	TokenComma

	// Special
	TokenEOF
	TokenError
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
}

// Expression represents a boolean expression over a row
type Expression interface {
	Evaluate(row map[string]any) (bool, error)
}

// BinaryExpr represents an and/or combination
type BinaryExpr struct {
	Left     Expression
	Operator TokenType // TokenAnd or TokenOr
	Right    Expression
}

// ComparisonExpr represents a single column comparison
type ComparisonExpr struct {
	Column   string
	Operator TokenType
	Value    any
}

// InExpr represents membership in a literal set
type InExpr struct {
	Column string
	Values []any
}

// Evaluate evaluates a binary expression
func (b *BinaryExpr) Evaluate(row map[string]any) (bool, error) {
	left, err := b.Left.Evaluate(row)
	if err != nil {
		return false, err
	}

	right, err := b.Right.Evaluate(row)
	if err != nil {
		return false, err
	}

	switch b.Operator {
	case TokenAnd:
		return left && right, nil
	case TokenOr:
		return left || right, nil
	default:
		return false, nil
	}
}

// Evaluate evaluates a comparison expression
func (c *ComparisonExpr) Evaluate(row map[string]any) (bool, error) {
	value, exists := lookup(row, c.Column)
	if !exists {
		// Null comparisons are meaningful; anything else misses.
		if c.Value == nil {
			return c.Operator == TokenEqual, nil
		}
		return false, nil
	}
	return compare(value, c.Operator, c.Value)
}

// Evaluate evaluates a membership expression
func (e *InExpr) Evaluate(row map[string]any) (bool, error) {
	value, exists := lookup(row, e.Column)
	if !exists {
		return false, nil
	}
	for _, candidate := range e.Values {
		match, err := compare(value, TokenEqual, candidate)
		if err != nil {
			continue
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
