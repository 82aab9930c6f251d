package formatters

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mongotable/internal/table"
)

// TimeLayout is used for every date value written by the table writers.
const TimeLayout = time.RFC3339Nano

// Scalar converts BSON-specific scalar types to plain Go values.
// ok is false for documents and arrays.
func Scalar(v any) (out any, ok bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case table.Missing:
		return nil, true
	case primitive.ObjectID:
		return val.Hex(), true
	case primitive.DateTime:
		return val.Time().UTC().Format(TimeLayout), true
	case time.Time:
		return val.UTC().Format(TimeLayout), true
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC().Format(TimeLayout), true
	case primitive.Decimal128:
		return val.String(), true
	case primitive.Binary:
		return val.Data, true
	case primitive.Regex:
		return val.String(), true
	case primitive.Symbol:
		return string(val), true
	case primitive.JavaScript:
		return string(val), true
	case primitive.Null, primitive.Undefined:
		return nil, true
	case primitive.MinKey:
		return "MinKey", true
	case primitive.MaxKey:
		return "MaxKey", true
	case bson.D, bson.M, primitive.A, []any, map[string]any:
		return nil, false
	default:
		return val, true
	}
}

// FormatJSONValue returns a value that encoding/json renders faithfully.
// NA, NaN and infinities become null; nested documents keep their field order.
func FormatJSONValue(v any) any {
	if out, ok := Scalar(v); ok {
		if IsNonFinite(out) {
			return nil
		}
		return out
	}
	switch val := v.(type) {
	case primitive.A:
		return formatSlice([]any(val))
	case []any:
		return formatSlice(val)
	case bson.D, bson.M, map[string]any:
		raw, err := bson.MarshalExtJSON(val, false, false)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return json.RawMessage(raw)
	}
	return v
}

func formatSlice(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = FormatJSONValue(item)
	}
	return out
}

// IsNonFinite reports whether v is a NaN or infinite float.
func IsNonFinite(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f) || math.IsInf(f, 0)
	case float32:
		return math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)
	}
	return false
}

// FormatCSVValue renders a value as a single CSV field. NA and null are empty.
func FormatCSVValue(v any) string {
	out, ok := Scalar(v)
	if !ok {
		raw, err := json.Marshal(FormatJSONValue(v))
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
	switch val := out.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatXLSXValue returns a value excelize can store in a cell. Numbers and
// booleans stay typed; everything else is written as text.
func FormatXLSXValue(v any) any {
	switch val := v.(type) {
	case table.Missing, nil:
		return nil
	case float32, float64:
		if IsNonFinite(val) {
			return FormatCSVValue(val)
		}
		return val
	case int32, int64, int, bool:
		return val
	case primitive.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	}
	return FormatCSVValue(v)
}
