// Package main is the chwire CLI: convert tabular data between the
// RowBinary and Native wire formats. It uses cobra for command
// dispatch, following the same command-tree composition the richest
// example in the retrieval pack uses for its own CLI.
package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chwire"
)

type config struct {
	Compression string `toml:"compression"`
	RowBudget   int    `toml:"row_budget"`
	SeekStride  int64  `toml:"seek_stride"`
	DSN         string `toml:"dsn"`
}

func defaultConfig() config {
	return config{Compression: "none", RowBudget: 65536, SeekStride: 1024}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("chwire.toml: %w", err)
	}
	return cfg, nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	var cfgPath string
	root := &cobra.Command{
		Use:   "chwire",
		Short: "Encode, decode, and convert ClickHouse RowBinary/Native payloads",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "chwire.toml", "optional TOML config file")

	root.AddCommand(encodeCmd(logger, &cfgPath))
	root.AddCommand(decodeCmd(logger, &cfgPath))
	root.AddCommand(convertCmd(logger, &cfgPath))

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func parseCompression(s string) (chwire.Compression, error) {
	switch s {
	case "", "none":
		return chwire.CompressionNone, nil
	case "lz4":
		return chwire.CompressionLZ4, nil
	case "zstd":
		return chwire.CompressionZSTD, nil
	default:
		return chwire.CompressionNone, fmt.Errorf("unknown compression mode %q", s)
	}
}
