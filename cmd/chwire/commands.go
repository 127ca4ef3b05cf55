package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chwire"
)

type encodeFlags struct {
	schema      string
	format      string
	compression string
	rowBudget   int
	input       string
	output      string
}

func encodeCmd(logger *zap.Logger, cfgPath *string) *cobra.Command {
	f := &encodeFlags{}
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode newline-delimited JSON rows into RowBinary or Native",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if f.compression == "" {
				f.compression = cfg.Compression
			}
			if f.rowBudget == 0 {
				f.rowBudget = cfg.RowBudget
			}
			return runEncode(logger, f)
		},
	}
	cmd.Flags().StringVar(&f.schema, "schema", "", `schema spec, e.g. "id:UInt32,name:String" (required)`)
	cmd.Flags().StringVar(&f.format, "format", "native", `output format: "native", "rowbinary", "rowbinary-names", "rowbinary-names-types"`)
	cmd.Flags().StringVar(&f.compression, "compression", "", `native block compression: "none", "lz4", "zstd"`)
	cmd.Flags().IntVar(&f.rowBudget, "row-budget", 0, "rows per native block (0 = use config default)")
	cmd.Flags().StringVar(&f.input, "input", "-", "input NDJSON file, or - for stdin")
	cmd.Flags().StringVar(&f.output, "output", "-", "output file, or - for stdout")
	cmd.MarkFlagRequired("schema") //nolint:errcheck
	return cmd
}

func runEncode(logger *zap.Logger, f *encodeFlags) error {
	schema, err := chwire.ParseSchemaSpec(f.schema)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	compression, err := parseCompression(f.compression)
	if err != nil {
		return err
	}

	in, err := openInput(f.input)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := openOutput(f.output)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	var rowCount int
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	switch f.format {
	case "native":
		rowBudget := f.rowBudget
		if rowBudget <= 0 {
			rowBudget = 65536
		}
		w := chwire.NewNativeWriter(out, schema, rowBudget, compression)
		for scanner.Scan() {
			var obj map[string]interface{}
			if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
				logger.Warn("skipping malformed JSON row", zap.Int("row", rowCount), zap.Error(err))
				continue
			}
			if err := w.AppendJSON(obj); err != nil {
				return fmt.Errorf("row %d: %w", rowCount, err)
			}
			rowCount++
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if err := w.Finish(); err != nil {
			return err
		}
	case "rowbinary", "rowbinary-names", "rowbinary-names-types":
		variant := chwire.RowBinaryPlain
		switch f.format {
		case "rowbinary-names":
			variant = chwire.RowBinaryWithNames
		case "rowbinary-names-types":
			variant = chwire.RowBinaryWithNamesAndTypes
		}
		rw := chwire.NewRowBinaryWriter(variant, schema)
		if err := rw.WriteHeader(); err != nil {
			return err
		}
		for scanner.Scan() {
			var obj map[string]interface{}
			if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
				logger.Warn("skipping malformed JSON row", zap.Int("row", rowCount), zap.Error(err))
				continue
			}
			row, err := jsonObjectToRow(schema, obj)
			if err != nil {
				return fmt.Errorf("row %d: %w", rowCount, err)
			}
			if err := rw.AppendRow(row); err != nil {
				return fmt.Errorf("row %d: %w", rowCount, err)
			}
			rowCount++
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		data, err := rw.Finalize()
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown --format %q", f.format)
	}

	logger.Info("encode complete", zap.Int("rows", rowCount), zap.String("format", f.format), zap.String("compression", f.compression))
	return nil
}

type decodeFlags struct {
	schema string
	format string
	input  string
	output string
}

func decodeCmd(logger *zap.Logger, cfgPath *string) *cobra.Command {
	f := &decodeFlags{}
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode RowBinary or Native into newline-delimited JSON rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(logger, f)
		},
	}
	cmd.Flags().StringVar(&f.schema, "schema", "", `schema spec, e.g. "id:UInt32,name:String"`)
	cmd.Flags().StringVar(&f.format, "format", "native", `input format: "native", "rowbinary", "rowbinary-names", "rowbinary-names-types"`)
	cmd.Flags().StringVar(&f.input, "input", "-", "input file, or - for stdin")
	cmd.Flags().StringVar(&f.output, "output", "-", "output NDJSON file, or - for stdout")
	return cmd
}

func runDecode(logger *zap.Logger, f *decodeFlags) error {
	var schema chwire.Schema
	if f.schema != "" {
		var err error
		schema, err = chwire.ParseSchemaSpec(f.schema)
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}

	in, err := openInput(f.input)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := openOutput(f.output)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	enc := json.NewEncoder(out)
	var rowCount, blockCount int

	switch f.format {
	case "native":
		for {
			wireSchema, numRows, columns, err := chwire.DecodeBlock(in, schema)
			if err == io.EOF {
				break
			}
			if err != nil {
				logger.Warn("decode failure", zap.Int("block", blockCount), zap.Error(err))
				return err
			}
			for r := 0; r < numRows; r++ {
				obj := make(map[string]interface{}, len(wireSchema))
				for c, col := range wireSchema {
					obj[col.Name] = columns[c][r].JSONValue()
				}
				if err := enc.Encode(obj); err != nil {
					return err
				}
			}
			rowCount += numRows
			blockCount++
		}
	case "rowbinary", "rowbinary-names", "rowbinary-names-types":
		variant := chwire.RowBinaryPlain
		switch f.format {
		case "rowbinary-names":
			variant = chwire.RowBinaryWithNames
		case "rowbinary-names-types":
			variant = chwire.RowBinaryWithNamesAndTypes
		}
		r := chwire.NewRowBinaryReader(variant, schema, in)
		for {
			if err := r.Advance(); err == io.EOF {
				break
			} else if err != nil {
				logger.Warn("decode failure", zap.Int("row", rowCount), zap.Error(err))
				return err
			}
			row := r.Current()
			obj := make(map[string]interface{}, len(row))
			for i, v := range row {
				obj[schema[i].Name] = v.JSONValue()
			}
			if err := enc.Encode(obj); err != nil {
				return err
			}
			rowCount++
		}
	default:
		return fmt.Errorf("unknown --format %q", f.format)
	}

	logger.Info("decode complete", zap.Int("rows", rowCount), zap.Int("blocks", blockCount))
	return nil
}

type convertFlags struct {
	schema      string
	from        string
	to          string
	compression string
	rowBudget   int
	input       string
	output      string
}

func convertCmd(logger *zap.Logger, cfgPath *string) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert directly between RowBinary and Native without a JSON round trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if f.compression == "" {
				f.compression = cfg.Compression
			}
			if f.rowBudget == 0 {
				f.rowBudget = cfg.RowBudget
			}
			return runConvert(logger, f)
		},
	}
	cmd.Flags().StringVar(&f.schema, "schema", "", `schema spec, e.g. "id:UInt32,name:String" (required)`)
	cmd.Flags().StringVar(&f.from, "from", "rowbinary", `source format: "rowbinary", "rowbinary-names", "rowbinary-names-types", "native"`)
	cmd.Flags().StringVar(&f.to, "to", "native", `destination format: "rowbinary", "rowbinary-names", "rowbinary-names-types", "native"`)
	cmd.Flags().StringVar(&f.compression, "compression", "", `native block compression, when --to native`)
	cmd.Flags().IntVar(&f.rowBudget, "row-budget", 0, "rows per native block, when --to native")
	cmd.Flags().StringVar(&f.input, "input", "-", "input file, or - for stdin")
	cmd.Flags().StringVar(&f.output, "output", "-", "output file, or - for stdout")
	cmd.MarkFlagRequired("schema") //nolint:errcheck
	return cmd
}

func rowBinaryVariantOf(format string) (chwire.RowBinaryVariant, bool) {
	switch format {
	case "rowbinary":
		return chwire.RowBinaryPlain, true
	case "rowbinary-names":
		return chwire.RowBinaryWithNames, true
	case "rowbinary-names-types":
		return chwire.RowBinaryWithNamesAndTypes, true
	default:
		return 0, false
	}
}

func runConvert(logger *zap.Logger, f *convertFlags) error {
	schema, err := chwire.ParseSchemaSpec(f.schema)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	compression, err := parseCompression(f.compression)
	if err != nil {
		return err
	}

	in, err := openInput(f.input)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := openOutput(f.output)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	rows := make(chan []*chwire.Value, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(rows)
		if variant, ok := rowBinaryVariantOf(f.from); ok {
			r := chwire.NewRowBinaryReader(variant, schema, in)
			for {
				if err := r.Advance(); err == io.EOF {
					errCh <- nil
					return
				} else if err != nil {
					errCh <- err
					return
				}
				row := append([]*chwire.Value(nil), r.Current()...)
				rows <- row
			}
		}
		if f.from == "native" {
			for {
				wireSchema, numRows, columns, err := chwire.DecodeBlock(in, schema)
				if err == io.EOF {
					errCh <- nil
					return
				}
				if err != nil {
					errCh <- err
					return
				}
				for r := 0; r < numRows; r++ {
					row := make([]*chwire.Value, len(wireSchema))
					for c := range wireSchema {
						row[c] = columns[c][r]
					}
					rows <- row
				}
			}
		}
		errCh <- fmt.Errorf("unknown --from %q", f.from)
	}()

	var rowCount int
	switch {
	case f.to == "native":
		rowBudget := f.rowBudget
		if rowBudget <= 0 {
			rowBudget = 65536
		}
		w := chwire.NewNativeWriter(out, schema, rowBudget, compression)
		for row := range rows {
			values := make(map[string]*chwire.Value, len(schema))
			for i, col := range schema {
				values[col.Name] = row[i]
			}
			if err := w.AppendRow(values); err != nil {
				return err
			}
			rowCount++
		}
		if err := <-errCh; err != nil {
			return err
		}
		if err := w.Finish(); err != nil {
			return err
		}
	case rowBinaryVariantOfTo(f.to) != nil:
		variant := *rowBinaryVariantOfTo(f.to)
		rw := chwire.NewRowBinaryWriter(variant, schema)
		if err := rw.WriteHeader(); err != nil {
			return err
		}
		for row := range rows {
			if err := rw.AppendRow(row); err != nil {
				return err
			}
			rowCount++
		}
		if err := <-errCh; err != nil {
			return err
		}
		data, err := rw.Finalize()
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown --to %q", f.to)
	}

	logger.Info("convert complete", zap.Int("rows", rowCount), zap.String("from", f.from), zap.String("to", f.to))
	return nil
}

func rowBinaryVariantOfTo(format string) *chwire.RowBinaryVariant {
	v, ok := rowBinaryVariantOf(format)
	if !ok {
		return nil
	}
	return &v
}

func jsonObjectToRow(schema chwire.Schema, obj map[string]interface{}) ([]*chwire.Value, error) {
	row := make([]*chwire.Value, len(schema))
	for i, col := range schema {
		raw, ok := obj[col.Name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", col.Name)
		}
		v, err := chwire.JSONToValue(col.Type, raw, col.Name)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
