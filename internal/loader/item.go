package loader

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mongotable/internal/formatters"
)

// toItem converts a table row into plain Go values attributevalue can marshal.
func toItem(row map[string]any) map[string]any {
	item := make(map[string]any, len(row))
	for k, v := range row {
		item[k] = itemValue(v)
	}
	return item
}

func itemValue(v any) any {
	switch val := v.(type) {
	case bson.D:
		m := make(map[string]any, len(val))
		for _, elem := range val {
			m[elem.Key] = itemValue(elem.Value)
		}
		return m
	case bson.M:
		return toItem(val)
	case map[string]any:
		return toItem(val)
	case primitive.A:
		return itemSlice(val)
	case []any:
		return itemSlice(val)
	}
	out, _ := formatters.Scalar(v)
	if formatters.IsNonFinite(out) {
		// DynamoDB numbers cannot hold NaN or infinities.
		return nil
	}
	return out
}

func itemSlice(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = itemValue(item)
	}
	return out
}
