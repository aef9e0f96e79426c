package feishu

import (
	"fmt"
	"strconv"
	"time"
)

// FormatFields prepares a record payload for the bitable API:
//   - nil values, empty strings and empty slices are dropped
//   - string slices are sent as native arrays (multi-select columns)
//   - time.Time becomes epoch milliseconds; strings are never parsed as
//     dates, so text that looks like a timestamp stays text
//   - integers are kept as int64 (already epoch milliseconds)
//   - everything else is sent as a string
//
// The function is pure, and FormatFields(FormatFields(x)) equals FormatFields(x).
func FormatFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if fv, ok := formatValue(v); ok {
			out[k] = fv
		}
	}
	return out
}

func formatValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		if x == "" {
			return nil, false
		}
		return x, true
	case []string:
		if len(x) == 0 {
			return nil, false
		}
		out := make([]string, len(x))
		copy(out, x)
		return out, true
	case []any:
		if len(x) == 0 {
			return nil, false
		}
		out := make([]string, 0, len(x))
		for _, e := range x {
			if e == nil {
				continue
			}
			out = append(out, fmt.Sprint(e))
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case time.Time:
		if x.IsZero() {
			return nil, false
		}
		return x.UnixMilli(), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil, false
		}
		return x.UnixMilli(), true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint32:
		return int64(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case bool:
		return strconv.FormatBool(x), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}
