package filter

import (
	"fmt"
	"strings"
)

// Filter is a compiled row predicate.
type Filter struct {
	root Expression
}

// Matches reports whether the row satisfies the expression. Comparisons
// that cannot be evaluated (type mismatches) count as non-matches.
func (f *Filter) Matches(row map[string]any) bool {
	match, err := f.root.Evaluate(row)
	if err != nil {
		return false
	}
	return match
}

// lookup finds a row value by column name, matching case-insensitively.
func lookup(row map[string]any, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for key, v := range row {
		if strings.EqualFold(key, column) {
			return v, true
		}
	}
	return nil, false
}

// compare compares two values using the given operator
func compare(left any, operator TokenType, right any) (bool, error) {
	// Handle nil values
	if left == nil || right == nil {
		if operator == TokenEqual {
			return left == right, nil
		}
		if operator == TokenNotEqual {
			return left != right, nil
		}
		return false, nil
	}

	// Try numeric comparison
	leftNum, leftIsNum := toFloat64(left)
	rightNum, rightIsNum := toFloat64(right)

	if leftIsNum && rightIsNum {
		return compareNumbers(leftNum, operator, rightNum), nil
	}

	// Try string comparison
	leftStr, leftIsStr := left.(string)
	rightStr, rightIsStr := right.(string)

	if leftIsStr && rightIsStr {
		return compareStrings(leftStr, operator, rightStr), nil
	}

	// Try boolean comparison
	leftBool, leftIsBool := left.(bool)
	rightBool, rightIsBool := right.(bool)

	if leftIsBool && rightIsBool {
		return compareBools(leftBool, operator, rightBool), nil
	}

	// Type mismatch
	return false, fmt.Errorf("cannot compare %T with %T", left, right)
}

// toFloat64 converts a value to float64 if possible
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// compareNumbers compares two numbers
func compareNumbers(left float64, operator TokenType, right float64) bool {
	switch operator {
	case TokenEqual:
		return left == right
	case TokenNotEqual:
		return left != right
	case TokenLess:
		return left < right
	case TokenGreater:
		return left > right
	case TokenLessEqual:
		return left <= right
	case TokenGreaterEqual:
		return left >= right
	default:
		return false
	}
}

// compareStrings compares two strings (case-sensitive)
func compareStrings(left string, operator TokenType, right string) bool {
	switch operator {
	case TokenEqual:
		return left == right
	case TokenNotEqual:
		return left != right
	case TokenLess:
		return left < right
	case TokenGreater:
		return left > right
	case TokenLessEqual:
		return left <= right
	case TokenGreaterEqual:
		return left >= right
	default:
		return false
	}
}

// compareBools compares two booleans
func compareBools(left bool, operator TokenType, right bool) bool {
	switch operator {
	case TokenEqual:
		return left == right
	case TokenNotEqual:
		return left != right
	default:
		return false
	}
}
