package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireResult is the cache encoding of a Result. Values carry their kind so
// int64 and time.Time survive the trip through JSON.
type wireResult struct {
	Columns      []Column      `json:"columns"`
	Keys         []string      `json:"keys"`
	Rows         [][]wireValue `json:"rows"`
	RowsAffected int64         `json:"rows_affected"`
}

type wireValue struct {
	K Kind            `json:"k"`
	V json.RawMessage `json:"v,omitempty"`
}

// EncodeResult serializes res for a result cache.
func EncodeResult(res *Result) ([]byte, error) {
	w := wireResult{
		Columns:      res.Columns,
		Rows:         make([][]wireValue, len(res.Rows)),
		RowsAffected: res.RowsAffected,
	}
	if len(res.Rows) > 0 {
		w.Keys = res.Rows[0].keys
	}
	for i, row := range res.Rows {
		vals := make([]wireValue, len(w.Keys))
		for j, k := range w.Keys {
			v, err := encodeValue(row.values[k])
			if err != nil {
				return nil, fmt.Errorf("encode row %d column %q: %w", i, k, err)
			}
			vals[j] = v
		}
		w.Rows[i] = vals
	}
	return json.Marshal(w)
}

// DecodeResult restores a Result written by EncodeResult. The returned result
// has Cached set.
func DecodeResult(data []byte) (*Result, error) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	res := &Result{
		Columns:      w.Columns,
		RowsAffected: w.RowsAffected,
		Cached:       true,
	}
	if len(w.Rows) > 0 {
		res.Rows = make([]Row, len(w.Rows))
	}
	for i, vals := range w.Rows {
		if len(vals) != len(w.Keys) {
			return nil, fmt.Errorf("row %d has %d values for %d keys", i, len(vals), len(w.Keys))
		}
		row := NewRow(len(w.Keys))
		for j, k := range w.Keys {
			v, err := decodeWireValue(vals[j])
			if err != nil {
				return nil, fmt.Errorf("decode row %d column %q: %w", i, k, err)
			}
			row.Set(k, v)
		}
		res.Rows[i] = row
	}
	return res, nil
}

func encodeValue(v any) (wireValue, error) {
	var k Kind
	switch x := v.(type) {
	case nil:
		return wireValue{K: KindNull}, nil
	case bool:
		k = KindBool
	case int64:
		k = KindInt
	case float64:
		k = KindFloat
	case string:
		k = KindString
	case time.Time:
		k = KindTime
		v = x.Format(time.RFC3339Nano)
	default:
		return wireValue{}, fmt.Errorf("unsupported value type %T", v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return wireValue{}, err
	}
	return wireValue{K: k, V: raw}, nil
}

func decodeWireValue(w wireValue) (any, error) {
	switch w.K {
	case KindNull:
		return nil, nil
	case KindBool:
		var b bool
		err := json.Unmarshal(w.V, &b)
		return b, err
	case KindInt:
		var n int64
		err := json.Unmarshal(w.V, &n)
		return n, err
	case KindFloat:
		var f float64
		err := json.Unmarshal(w.V, &f)
		return f, err
	case KindString:
		var s string
		err := json.Unmarshal(w.V, &s)
		return s, err
	case KindTime:
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	return nil, fmt.Errorf("unknown value kind %d", int(w.K))
}
