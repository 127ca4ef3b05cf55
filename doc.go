/*
Package chwire implements the ClickHouse RowBinary and Native wire
formats: parsing type strings into a TypeDesc tree, validating and
encoding/decoding row and column values, and streaming both formats to
and from an io.Reader/io.Writer.

to describe a schema and decode RowBinary rows from a connection:

	schema, err := chwire.ParseSchemaSpec("id:UInt32,name:String")
	if err != nil {
		return err
	}
	r := chwire.NewRowBinaryReader(chwire.RowBinaryWithNamesAndTypes, schema, conn)
	for {
		if err := r.Advance(); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		row := r.Current()
		fmt.Println(row[0].UInt, row[1].Str)
	}

to stream rows out as Native blocks, compressed with LZ4:

	w := chwire.NewNativeWriter(conn, schema, 65536, chwire.CompressionLZ4)
	for _, rec := range records {
		if err := w.AppendRow(map[string]*chwire.Value{
			"id":   {Kind: chwire.KindUInt32, UInt: uint64(rec.ID)},
			"name": {Kind: chwire.KindString, Str: rec.Name},
		}); err != nil {
			return err
		}
	}
	if err := w.Finish(); err != nil {
		return err
	}

seeking within a previously-written RowBinary stream:

	if err := r.SeekRow(10_000); err != nil {
		if _, ok := err.(*chwire.NotSeekable); ok {
			// source does not support seeking; fall back to Advance in a loop
		}
		return err
	}

for a command-line encode/decode/convert tool see cmd/chwire/main.go
*/
package chwire
