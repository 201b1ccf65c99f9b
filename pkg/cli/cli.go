// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cli implements the tablemeta command line tool.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/tablemeta/pkg/base"
	"github.com/cockroachdb/tablemeta/pkg/util/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cliContext holds the settings of one invocation.
type cliContext struct {
	// configPath is the YAML configuration file, if any.
	configPath string
	// store overrides the configured storage with a Pebble store.
	store     string
	verbosity int32

	debug debugContext
}

type debugContext struct {
	reverse      bool
	includeEmpty bool
	limit        int
}

// loadConfig returns the configuration the flags select.
func (c *cliContext) loadConfig() (base.Config, error) {
	cfg := base.DefaultConfig()
	if c.configPath != "" {
		var err error
		if cfg, err = base.LoadConfig(c.configPath); err != nil {
			return base.Config{}, err
		}
	}
	if c.store != "" {
		cfg.Storage = base.StorageConfig{Engine: base.EnginePebble, Dir: c.store}
	}
	if c.verbosity > cfg.Log.Verbosity {
		cfg.Log.Verbosity = c.verbosity
	}
	return cfg, cfg.Validate()
}

// NewRootCmd returns the tablemeta command tree.
func NewRootCmd() *cobra.Command {
	cliCtx := &cliContext{}
	root := &cobra.Command{
		Use:   "tablemeta [command] (flags)",
		Short: "table and index metadata tool",
		Long: `
Inspects the catalog and the table data kept by a metadata node.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(root.PersistentFlags(), cliCtx)
	root.AddCommand(newDebugCmd(cliCtx))
	return root
}

func addGlobalFlags(f *pflag.FlagSet, c *cliContext) {
	f.StringVar(&c.configPath, "config", "", "YAML configuration file")
	f.StringVar(&c.store, "store", "", "directory of a Pebble store; overrides the configured storage")
	f.Int32VarP(&c.verbosity, "verbosity", "v", 0, "log verbosity")
}

// Run executes the command line args.
func Run(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

// Main is the entry point of the tablemeta binary.
func Main() {
	log.SetOutput(os.Stderr)
	if err := Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
