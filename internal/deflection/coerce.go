package deflection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Coercion mirrors the loose typing the companion service sends: numeric
// fields may arrive as JSON numbers or as strings, floats may use a comma
// decimal separator. Decoded values are expected to come from a json.Decoder
// with UseNumber enabled.

var errNullValue = errors.New("value is null")

// ToInt coerces a decoded JSON value to an integer. Fractional numbers are
// truncated toward zero; numeric strings must be whole numbers.
func ToInt(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, errNullValue
	case bool:
		return 0, fmt.Errorf("cannot coerce bool %v to int", n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("coerce %q to int: %w", n.String(), err)
		}
		return int64(f), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("coerce %q to int: %w", n, err)
		}
		return i, nil
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to int", v)
	}
}

// ToFloat coerces a decoded JSON value to a float. Strings are trimmed and may
// use "," as the decimal separator.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, errNullValue
	case bool:
		return 0, fmt.Errorf("cannot coerce bool %v to float", n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("coerce %q to float: %w", n.String(), err)
		}
		return f, nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("coerce %q to float: %w", n, err)
		}
		return f, nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to float", v)
	}
}
