// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command semdiff audits whether a configuration parameter keeps the
// same runtime semantics across two compiled-module versions.
//
// Usage:
//
//	semdiff compare old.ll new.ll --fun do_settimeofday
//	semdiff compare old.ll new.ll --fun do_settimeofday --var jiffies
//	semdiff compare old.ll new.ll --fun sys_gettimeofday --semantic
//
// With snapshots for missing-definition resolution:
//
//	semdiff compare old.ll new.ll --fun do_settimeofday \
//	    --snapshot-first /snapshots/v4.9 --snapshot-second /snapshots/v5.4
//
// Exit codes: 0 when the pair is (syntactically or semantically)
// equal, 1 when a difference was found, 2 on tool errors or
// inconclusive verdicts.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianDiff/pkg/logging"
)

// maxConfigBytes caps the configuration file read at startup.
const maxConfigBytes = 1 * 1024 * 1024

// fileConfig is the on-disk configuration. Flags override it.
type fileConfig struct {
	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
		JSON  bool   `yaml:"json"`
		Quiet bool   `yaml:"quiet"`
	} `yaml:"logging"`

	Tools struct {
		Simplifier string `yaml:"simplifier"`
		Verifier   string `yaml:"verifier"`
		Solver     string `yaml:"solver"`
		Linker     string `yaml:"linker"`
		Diff       string `yaml:"diff"`
	} `yaml:"tools"`

	Compare struct {
		Semantic        bool          `yaml:"semantic"`
		Timeout         time.Duration `yaml:"timeout"`
		ControlFlowOnly bool          `yaml:"control-flow-only"`
		PrintAsmDiffs   bool          `yaml:"print-asm-diffs"`
		OutputSuffix    string        `yaml:"output-suffix"`
	} `yaml:"compare"`

	CacheDir string `yaml:"cache-dir"`
}

var (
	cfgPath string
	verbose bool

	config fileConfig
	logger *logging.Logger

	// exitCode carries the verdict-derived exit status out of RunE.
	exitCode int

	rootCmd = &cobra.Command{
		Use:   "semdiff",
		Short: "Compare the runtime semantics of functions across two module versions",
		Long: `Semdiff audits whether a configuration parameter has the same runtime
semantics in two compiled-module versions. It structurally simplifies
both modules, compares the reduced forms, resolves missing symbol
definitions from snapshots, and can escalate unresolved differences to
a relational verifier backed by an SMT solver.`,
		SilenceUsage: true,
	}
)

func main() {
	code := 0
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = 2
	}
	if logger != nil {
		logger.Close()
	}
	if code == 0 {
		code = exitCode
	}
	os.Exit(code)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a semdiff.yaml configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging and verbose tool output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		logger = newLogger()
		return nil
	}
}

// loadConfig reads the configuration file. An explicitly named file
// must exist; the default ./semdiff.yaml is optional.
func loadConfig() error {
	path := cfgPath
	explicit := path != ""
	if !explicit {
		path = "semdiff.yaml"
	}

	info, err := os.Stat(path)
	if err != nil {
		if explicit {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		return nil
	}
	if info.Size() > maxConfigBytes {
		return fmt.Errorf("config %s exceeds %d bytes", path, maxConfigBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// newLogger builds the process logger from the loaded configuration
// and the --verbose flag.
func newLogger() *logging.Logger {
	level, err := parseLevel(config.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  config.Logging.Dir,
		Service: "semdiff",
		JSON:    config.Logging.JSON,
		Quiet:   config.Logging.Quiet,
	})
}

// parseLevel maps a config-file level name to a logging.Level.
func parseLevel(s string) (logging.Level, error) {
	switch s {
	case "", "info":
		return logging.LevelInfo, nil
	case "debug":
		return logging.LevelDebug, nil
	case "warn":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	default:
		return logging.LevelInfo, errors.New("unknown log level: " + s)
	}
}
