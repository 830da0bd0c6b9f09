package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/goalagent/runlog"
)

func historyCmd(load configLoader) *cobra.Command {
	var (
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List stored runs or show one in full",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			store, err := runlog.Open(cfg.RunLog.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeRecord(out, rec, format)
			}

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tITERATIONS\tCREATED\tINPUT")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.State, r.Iterations, r.CreatedAt.Local().Format(time.DateTime), clip(r.Input, 40))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "output format for a single run: yaml or json")
	return cmd
}

func writeRecord(w io.Writer, rec *runlog.Record, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
