package persist

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
)

// FlattenRecord turns v into a flat map by JSON-encoding it and joining
// nested object keys with dots. Arrays are kept as compact JSON strings.
func FlattenRecord(v any) (map[string]string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flatten("", root, out)
	return out, nil
}

func flatten(prefix string, v any, out map[string]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flatten(key, child, out)
		}
	case []any:
		b, _ := json.Marshal(val)
		out[prefix] = string(b)
	case nil:
		out[prefix] = ""
	case string:
		out[prefix] = val
	case bool:
		out[prefix] = strconv.FormatBool(val)
	case json.Number:
		out[prefix] = val.String()
	default:
		b, _ := json.Marshal(val)
		out[prefix] = string(b)
	}
}

// WriteCSV replaces path with one row per record. The header is the sorted
// union of every flattened key; missing values are empty cells.
func WriteCSV[T any](path string, records []T) error {
	rows := make([]map[string]string, 0, len(records))
	keys := make(map[string]struct{})
	for _, r := range records {
		flat, err := FlattenRecord(r)
		if err != nil {
			return &PersistenceError{Path: path, Err: err}
		}
		for k := range flat {
			keys[k] = struct{}{}
		}
		rows = append(rows, flat)
	}

	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	return WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if len(header) > 0 {
			if err := cw.Write(header); err != nil {
				return err
			}
		}
		line := make([]string, len(header))
		for _, row := range rows {
			for i, k := range header {
				line[i] = row[k]
			}
			if err := cw.Write(line); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
