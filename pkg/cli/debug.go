// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/base"
	"github.com/cockroachdb/tablemeta/pkg/catalog"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/row"
	"github.com/cockroachdb/tablemeta/pkg/server"
	"github.com/cockroachdb/tablemeta/pkg/storage"
	humanize "github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newDebugCmd(cliCtx *cliContext) *cobra.Command {
	debugCmd := &cobra.Command{
		Use:   "debug [command]",
		Short: "debugging commands",
		Long: `Various commands for inspecting a store and its catalog.
The store must not be in use by a running node.
`,
	}

	decodeKeyCmd := &cobra.Command{
		Use:   "decode-key <hex-key>...",
		Short: "pretty print hex encoded keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				b, err := hex.DecodeString(arg)
				if err != nil {
					return errors.Wrapf(err, "decoding %q", arg)
				}
				fmt.Fprintln(cmd.OutOrStdout(), keys.PrettyPrint(b))
			}
			return nil
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "print the keys of a store",
		Long: `
Pretty prints every key of the store with the size of its value.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := cliCtx.openStore()
			if err != nil {
				return err
			}
			defer eng.Close()
			return printKeys(cmd.OutOrStdout(), eng, cliCtx.debug.limit)
		},
	}

	catalogCmd := &cobra.Command{
		Use:   "catalog [snapshot-file]",
		Short: "print the persisted catalog",
		Long: `
Prints the namespaces, regions and tables of a catalog snapshot, read from
the given file or from the store. Tables are printed as JSON.
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := cliCtx.readSnapshot(args)
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), snap)
		},
	}

	changesCmd := &cobra.Command{
		Use:   "changes [snapshot-file]",
		Short: "print the sequence numbers of a persisted catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := cliCtx.readSnapshot(args)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "catalog %s at seq %d, next id %d\n", snap.CatalogID, snap.SeqNum, snap.NextID)
			for i := range snap.Tables {
				t := &snap.Tables[i]
				fmt.Fprintf(w, "%d\t%s.%s\tseq=%d\tversion=%d\n", t.ID, t.Namespace, t.Name, t.SeqNum, t.Version)
			}
			return nil
		},
	}

	var namespace string
	scanIndexCmd := &cobra.Command{
		Use:   "scan-index <table> <index>",
		Short: "print the entries of a secondary index",
		Long: `
Prints the entries of a READY index in key order as the index values
followed by the primary key of the row.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliCtx.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := server.NewServer(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close(ctx) }()

			desc, err := s.LookupTable(ctx, namespace, args[0])
			if err != nil {
				return err
			}
			sc, err := s.IndexScanner(ctx, desc.ID, args[1], row.ScanOptions{
				Reverse:      cliCtx.debug.reverse,
				IncludeEmpty: cliCtx.debug.includeEmpty,
			})
			if err != nil {
				return err
			}
			defer sc.Close()
			w := cmd.OutOrStdout()
			for n := 0; cliCtx.debug.limit == 0 || n < cliCtx.debug.limit; n++ {
				ok, err := sc.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				e := sc.Entry()
				fmt.Fprintf(w, "%s -> %s\n", formatDatums(e.Values), formatDatums(e.PrimaryKey))
			}
			return nil
		},
	}
	f := scanIndexCmd.Flags()
	f.StringVar(&namespace, "namespace", catalog.DefaultNamespace, "namespace of the table")
	f.BoolVar(&cliCtx.debug.reverse, "reverse", false, "scan in descending key order")
	f.BoolVar(&cliCtx.debug.includeEmpty, "include-empty", false, "print the placeholder entries of rows with empty or absent indexed containers")

	for _, cmd := range []*cobra.Command{keysCmd, scanIndexCmd} {
		cmd.Flags().IntVar(&cliCtx.debug.limit, "limit", 0, "maximum number of lines to print; 0 prints all")
	}
	debugCmd.AddCommand(decodeKeyCmd, keysCmd, catalogCmd, changesCmd, scanIndexCmd)
	return debugCmd
}

// openStore opens the configured store. Debug commands need a store on
// disk.
func (c *cliContext) openStore() (storage.Engine, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Engine != base.EnginePebble {
		return nil, errors.WithHint(errors.New("no store on disk to inspect"),
			"pass --store or a configuration with a pebble engine")
	}
	return server.OpenEngine(cfg.Storage)
}

// readSnapshot reads a catalog snapshot from the file in args, if any, or
// from the store.
func (c *cliContext) readSnapshot(args []string) (*descpb.Snapshot, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		return descpb.UnmarshalSnapshot(data)
	}
	eng, err := c.openStore()
	if err != nil {
		return nil, err
	}
	defer eng.Close()
	snap, err := server.ReadCatalogSnapshot(eng)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errors.New("the store has no catalog")
	}
	return snap, nil
}

func printKeys(w io.Writer, r storage.Reader, limit int) error {
	it, err := r.NewIterator(storage.IterOptions{})
	if err != nil {
		return err
	}
	defer it.Close()
	n := 0
	for ok := it.First(); ok && (limit == 0 || n < limit); ok = it.Next() {
		fmt.Fprintf(w, "%s\t%s\n", keys.PrettyPrint(it.Key()), humanize.IBytes(uint64(len(it.Value()))))
		n++
	}
	return nil
}

func printCatalog(w io.Writer, snap *descpb.Snapshot) error {
	fmt.Fprintf(w, "catalog %s at seq %d\n", snap.CatalogID, snap.SeqNum)
	namespaces := append([]string(nil), snap.Namespaces...)
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		fmt.Fprintf(w, "namespace %s\n", ns)
	}
	for _, r := range snap.Regions {
		fmt.Fprintf(w, "region %d %s\n", r.ID, r.Name)
	}
	tables := make([]*descpb.TableDescriptor, len(snap.Tables))
	for i := range snap.Tables {
		tables[i] = &snap.Tables[i]
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
	for _, t := range tables {
		b, err := json.Marshal(t)
		if err != nil {
			return errors.Wrapf(err, "table %d", t.ID)
		}
		fmt.Fprintf(w, "%s\n", b)
	}
	return nil
}

func formatDatums(ds []datum.Datum) string {
	var buf strings.Builder
	for _, d := range ds {
		buf.WriteByte('/')
		buf.WriteString(d.String())
	}
	return buf.String()
}
