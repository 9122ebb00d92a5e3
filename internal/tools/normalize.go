package tools

import (
	"encoding/json"
	"fmt"
)

// NoResults is the fixed payload injected into conversation history when
// a tool returns nothing.
const NoResults = "No results found."

// Rowset is a tabular tool result: ordered column names plus rows of
// values in column order. Query-backed tools return this so the
// normalizer can build keyed records from column metadata.
type Rowset struct {
	Columns []string
	Rows    [][]any
}

// Records converts the rowset into uniform key→value records using the
// column names. Returns nil when no column metadata is available.
func (rs *Rowset) Records() []map[string]any {
	if len(rs.Columns) == 0 {
		return nil
	}
	records := make([]map[string]any, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		rec := make(map[string]any, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records
}

// Normalize converts an arbitrary tool result into a serialized payload
// for conversation history and, for collection-shaped results, a sequence
// of uniform records suitable for caching.
//
//   - nil or empty results yield the NoResults sentinel and no records.
//   - Maps serialize directly and are never treated as cacheable tabular
//     data (export tools return structured status maps).
//   - Rowsets become keyed records when column metadata exists, positional
//     lists otherwise; the records are returned for caching.
//   - A slice of records passes through as both payload and records.
//   - Anything else is stringified.
func Normalize(result any) (string, []map[string]any) {
	switch v := result.(type) {
	case nil:
		return NoResults, nil

	case map[string]any:
		if len(v) == 0 {
			return NoResults, nil
		}
		return marshalPayload(v), nil

	case *Rowset:
		if v == nil || len(v.Rows) == 0 {
			return NoResults, nil
		}
		if records := v.Records(); records != nil {
			return marshalPayload(records), records
		}
		// No column metadata: serialize rows positionally, nothing to cache.
		return marshalPayload(v.Rows), nil

	case []map[string]any:
		if len(v) == 0 {
			return NoResults, nil
		}
		return marshalPayload(v), v

	case string:
		if v == "" {
			return NoResults, nil
		}
		return v, nil

	default:
		return fmt.Sprint(v), nil
	}
}

// marshalPayload renders v as indented JSON, matching what the model is
// best at reading back. Falls back to fmt on a marshal failure (cyclic or
// non-JSON values should not occur in tool results).
func marshalPayload(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
