// Package convert turns loosely typed stored values into concrete types with
// a caller-supplied default.
package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Int converts value to an int, returning def when it cannot.
func Int(value any, def int) int {
	n, ok := toInt64(value)
	if !ok || n < math.MinInt || n > math.MaxInt {
		return def
	}
	return int(n)
}

// Int64 converts value to an int64, returning def when it cannot.
func Int64(value any, def int64) int64 {
	n, ok := toInt64(value)
	if !ok {
		return def
	}
	return n
}

// Float64 converts value to a float64, returning def when it cannot.
func Float64(value any, def float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		return f
	}
	if n, ok := toInt64(value); ok {
		return float64(n)
	}
	return def
}

// Bool converts value to a bool. Strings are true when they equal "true",
// "yes" (any case) or "1"; any other string is false. Other types return def
// unless they are a bool or an integer.
func Bool(value any, def bool) bool {
	switch v := value.(type) {
	case nil:
		return def
	case bool:
		return v
	case string:
		s := strings.TrimSpace(v)
		return strings.EqualFold(s, "true") || strings.EqualFold(s, "yes") || s == "1"
	}
	if n, ok := toInt64(value); ok {
		return n != 0
	}
	return def
}

// UUID parses value as a UUID.
func UUID(value any) (uuid.UUID, bool) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, true
	case string:
		u, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return uuid.Nil, false
		}
		return u, true
	}
	return uuid.Nil, false
}

// String formats value as text, or returns nil for a nil value.
func String(value any) *string {
	if value == nil {
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	return &s
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
