package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRowOrderAndDuplicates(t *testing.T) {
	r := NewRow(3)
	r.Set("id", int64(1))
	r.Set("name", "a")
	r.Set("id", int64(2))

	cols := r.Columns()
	if len(cols) != 2 || cols[0] != "id" || cols[1] != "name" {
		t.Fatalf("columns = %v", cols)
	}
	if v, _ := r.Get("id"); v != int64(2) {
		t.Errorf("duplicate label should keep last value, got %v", v)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("unexpected value for missing label")
	}
	if r.Len() != 2 || len(r.Map()) != 2 {
		t.Error("unexpected row size")
	}
}

func TestRowJSONKeepsOrder(t *testing.T) {
	r := NewRow(4)
	r.Set("z", int64(1))
	r.Set("a", "x")
	r.Set("m", nil)
	r.Set("t", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"z":1,"a":"x","m":null,"t":"2026-01-02T03:04:05Z"}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}

	var zero Row
	b, _ = json.Marshal(zero)
	if string(b) != "{}" {
		t.Errorf("empty row = %s", b)
	}
}
