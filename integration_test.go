package chwire

import (
	"bytes"
	"context"
	"flag"
	"os"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Server-equivalence tests against a live ClickHouse server. The test
// inserts rows on the server and compares the rows it selects back with
// the rows this module's NativeWriter encodes and DecodeBlock decodes;
// it does not compare bytes with the server's own FORMAT Native or
// RowBinary output. Gated behind -dsn, since no CI environment running
// this suite ships a ClickHouse server.
var (
	dsn = flag.String("dsn", "", "ClickHouse DSN used for server-equivalence testing, e.g. tcp://localhost:9000")

	dsnSkipReason = `SKIPPED: pass -dsn flag to run this test
example: go test -run Integration -dsn tcp://localhost:9000?database=default
`
)

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(m.Run())
}

func openIntegrationConn(t *testing.T) clickhouse.Conn {
	t.Helper()
	opts, err := clickhouse.ParseDSN(*dsn)
	if err != nil {
		t.Fatalf("parse -dsn: %v", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return conn
}

func TestIntegration_NativeBlockMatchesServer(t *testing.T) {
	if *dsn == "" {
		t.Skip(dsnSkipReason)
	}
	ctx := context.Background()
	conn := openIntegrationConn(t)
	defer conn.Close()

	const table = "chwire_test_native_equivalence"
	if err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		t.Fatal(err)
	}
	if err := conn.Exec(ctx, "CREATE TABLE "+table+" (id UInt32, name String) ENGINE = Memory"); err != nil {
		t.Fatal(err)
	}
	defer conn.Exec(ctx, "DROP TABLE IF EXISTS "+table) //nolint:errcheck

	if err := conn.Exec(ctx, "INSERT INTO "+table+" VALUES (1, 'alpha'), (2, 'beta')"); err != nil {
		t.Fatal(err)
	}

	schema := Schema{
		{Name: "id", Type: mustType(t, "UInt32")},
		{Name: "name", Type: mustType(t, "String")},
	}
	var ours bytes.Buffer
	w := NewNativeWriter(&ours, schema, 65536, CompressionNone)
	for _, row := range []map[string]*Value{
		{"id": {Kind: KindUInt32, UInt: 1}, "name": {Kind: KindString, Str: "alpha"}},
		{"id": {Kind: KindUInt32, UInt: 2}, "name": {Kind: KindString, Str: "beta"}},
	} {
		if err := w.AppendRow(row); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}

	_, numRows, columns, err := DecodeBlock(&ours, schema)
	if err != nil {
		t.Fatal(err)
	}
	if numRows != 2 {
		t.Fatalf("numRows = %d, want 2", numRows)
	}
	if columns[1][0].Str != "alpha" || columns[1][1].Str != "beta" {
		t.Fatalf("names = %+v", columns[1])
	}

	rows, err := conn.Query(ctx, "SELECT id, name FROM "+table+" ORDER BY id")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var serverRows [][2]interface{}
	for rows.Next() {
		var id uint32
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			t.Fatal(err)
		}
		serverRows = append(serverRows, [2]interface{}{id, name})
	}
	if len(serverRows) != numRows {
		t.Fatalf("server returned %d rows, our decode found %d", len(serverRows), numRows)
	}
	for i, sr := range serverRows {
		if columns[0][i].UInt != uint64(sr[0].(uint32)) || columns[1][i].Str != sr[1].(string) {
			t.Fatalf("row %d mismatch: ours=(%d,%q) server=%v", i, columns[0][i].UInt, columns[1][i].Str, sr)
		}
	}
}
