package chwire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestNativeWriter_AppendRowAndFlushOnBudget(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: mustType(t, "UInt32")},
		{Name: "name", Type: mustType(t, "String")},
	}
	var buf bytes.Buffer
	w := NewNativeWriter(&buf, schema, 2, CompressionNone)

	for i := 0; i < 5; i++ {
		row := map[string]*Value{
			"id":   {Kind: KindUInt32, UInt: uint64(i)},
			"name": {Kind: KindString, Str: distinctString(i)},
		}
		if err := w.AppendRow(row); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}

	var gotIDs []uint64
	for {
		_, numRows, columns, err := DecodeBlock(&buf, schema)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		for r := 0; r < numRows; r++ {
			gotIDs = append(gotIDs, columns[0][r].UInt)
		}
	}
	if len(gotIDs) != 5 {
		t.Fatalf("got %d rows total, want 5", len(gotIDs))
	}
	for i, id := range gotIDs {
		if id != uint64(i) {
			t.Fatalf("row %d: id = %d, want %d", i, id, i)
		}
	}
}

func TestNativeWriter_AppendRow_MissingColumnIsAtomic(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: mustType(t, "UInt32")},
		{Name: "name", Type: mustType(t, "String")},
	}
	var buf bytes.Buffer
	w := NewNativeWriter(&buf, schema, 100, CompressionNone)

	err := w.AppendRow(map[string]*Value{"id": {Kind: KindUInt32, UInt: 1}})
	var missing *MissingColumn
	if !errors.As(err, &missing) {
		t.Fatalf("got %v (%T), want *MissingColumn", err, err)
	}
	if w.rows != 0 {
		t.Fatalf("rows = %d, want 0 after a rejected append", w.rows)
	}
}

func TestNativeWriter_AppendRow_UnknownColumn(t *testing.T) {
	schema := Schema{{Name: "id", Type: mustType(t, "UInt32")}}
	var buf bytes.Buffer
	w := NewNativeWriter(&buf, schema, 100, CompressionNone)

	err := w.AppendRow(map[string]*Value{
		"id":      {Kind: KindUInt32, UInt: 1},
		"bogus":   {Kind: KindUInt32, UInt: 2},
		"another": {Kind: KindUInt32, UInt: 3},
	})
	var unknown *UnknownColumn
	if !errors.As(err, &unknown) {
		t.Fatalf("got %v (%T), want *UnknownColumn", err, err)
	}
}

func TestNativeWriter_AppendJSON(t *testing.T) {
	schema := Schema{
		{Name: "id", Type: mustType(t, "UInt32")},
		{Name: "name", Type: mustType(t, "Nullable(String)")},
	}
	var buf bytes.Buffer
	w := NewNativeWriter(&buf, schema, 100, CompressionNone)

	if err := w.AppendJSON(map[string]interface{}{"id": float64(1), "name": "alpha"}); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendJSON(map[string]interface{}{"id": float64(2), "name": nil}); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}

	_, numRows, columns, err := DecodeBlock(&buf, schema)
	if err != nil {
		t.Fatal(err)
	}
	if numRows != 2 {
		t.Fatalf("numRows = %d, want 2", numRows)
	}
	if columns[1][0].Str != "alpha" || !columns[1][1].Null {
		t.Fatalf("name column = %+v", columns[1])
	}
}

func TestNativeWriter_Finish_NoOpWhenClean(t *testing.T) {
	schema := Schema{{Name: "id", Type: mustType(t, "UInt32")}}
	var buf bytes.Buffer
	w := NewNativeWriter(&buf, schema, 100, CompressionNone)
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("Finish on a clean, empty writer wrote %d bytes, want 0", buf.Len())
	}
}

func TestNativeWriter_PreserveDictionariesAcrossBlocks(t *testing.T) {
	schema := Schema{{Name: "country", Type: mustType(t, "LowCardinality(String)")}}
	var buf bytes.Buffer
	w := NewNativeWriter(&buf, schema, 2, CompressionNone)
	w.PreserveDictionariesAcrossBlocks()

	values := []string{"us", "uk", "us", "us"}
	for _, v := range values {
		if err := w.AppendRow(map[string]*Value{"country": {Kind: KindString, Str: v}}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}

	var got []string
	for {
		_, numRows, columns, err := DecodeBlock(&buf, schema)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		for r := 0; r < numRows; r++ {
			got = append(got, columns[0][r].Str)
		}
	}
	if len(got) != len(values) {
		t.Fatalf("got %d values, want %d", len(got), len(values))
	}
	for i, v := range values {
		if got[i] != v {
			t.Fatalf("row %d: got %q, want %q", i, got[i], v)
		}
	}
}

func TestColumnBuilder_PushValidation(t *testing.T) {
	cb := NewColumnBuilder(mustType(t, "UInt8"))
	if err := cb.Push(&Value{Kind: KindUInt8, UInt: 5}); err != nil {
		t.Fatal(err)
	}
	if err := cb.Push(&Value{Kind: KindString, Str: "bad"}); err == nil {
		t.Fatal("expected validation error for wrong kind")
	}
	if cb.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (rejected push must not append)", cb.Len())
	}
}
