package evaluator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// compare applies an operator to the extracted and expected values.
func compare(operator string, extracted, expected interface{}) (bool, error) {
	switch operator {
	case "eq":
		return valuesEqual(extracted, expected), nil
	case "ne":
		return !valuesEqual(extracted, expected), nil
	case "gt", "lt", "gte", "lte":
		cmp, err := compareNumbers(extracted, expected)
		if err != nil {
			return false, err
		}
		switch operator {
		case "gt":
			return cmp > 0, nil
		case "lt":
			return cmp < 0, nil
		case "gte":
			return cmp >= 0, nil
		default:
			return cmp <= 0, nil
		}
	case "contains":
		return valueContains(extracted, expected), nil
	case "exists":
		return extracted != nil, nil
	case "regex":
		return matchRegex(extracted, expected)
	default:
		return false, fmt.Errorf("unknown operator: %s", operator)
	}
}

// valuesEqual compares values, treating numbers of different JSON decodings
// as equal when their float64 forms are.
func valuesEqual(a, b interface{}) bool {
	if af, aok := toNumber(a); aok {
		if bf, bok := toNumber(b); bok {
			return af == bf
		}
	}
	return toString(a) == toString(b)
}

// compareNumbers returns -1, 0 or 1; errors when either side is not numeric.
func compareNumbers(a, b interface{}) (int, error) {
	af, ok := toNumber(a)
	if !ok {
		return 0, fmt.Errorf("cannot compare non-numeric value %v", a)
	}
	bf, ok := toNumber(b)
	if !ok {
		return 0, fmt.Errorf("cannot compare non-numeric value %v", b)
	}

	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

// valueContains handles both array membership and substring checks.
func valueContains(extracted, expected interface{}) bool {
	if arr, ok := extracted.([]interface{}); ok {
		for _, item := range arr {
			if valuesEqual(item, expected) {
				return true
			}
		}
		return false
	}
	return strings.Contains(toString(extracted), toString(expected))
}

func matchRegex(extracted, expected interface{}) (bool, error) {
	pattern := toString(expected)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return re.MatchString(toString(extracted)), nil
}

func toString(v interface{}) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
