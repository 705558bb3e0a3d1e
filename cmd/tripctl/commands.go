package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/tripdb"
	"github.com/hupe1980/tripdb/filter"
	"github.com/hupe1980/tripdb/model"
)

func newRootCmd() *cobra.Command {
	var cfg *Config

	root := &cobra.Command{
		Use:           "tripctl",
		Short:         "Build and query ride transaction indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}
	registerFlags(root.PersistentFlags())
	root.PersistentFlags().StringP("output", "o", "text", "output format: text or json")

	// withApp opens the DB for the duration of fn.
	withApp := func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); err == nil {
					err = cerr
				}
			}()
			return fn(cmd, a, args)
		}
	}

	root.AddCommand(
		newBuildCmd(withApp),
		newGetCmd(withApp),
		newFilterCmd(withApp),
		newStatsCmd(withApp),
		newTopCmd(withApp),
		newFetchCmd(func() *Config { return cfg }),
	)
	return root
}

type runner func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error

func outputFormat(cmd *cobra.Command) string {
	out, _ := cmd.Flags().GetString("output")
	return out
}

func newBuildCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build a fresh index generation from the dataset",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			n, err := a.db.Reinitialize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d records into %s\n", n, a.db.Generation())
			return nil
		}),
	}
}

func newGetCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Look up a record by key",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			rec, err := a.db.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeRecords(cmd.OutOrStdout(), outputFormat(cmd), []model.Record{rec})
		}),
	}
}

func newFilterCmd(withApp runner) *cobra.Command {
	var (
		ff         filterFlags
		page       int
		perPage    int
		out        string
		outBlob    string
		maxResults int
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "List records matching a filter",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			f, err := ff.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch {
			case out != "":
				n, err := a.db.FilterToFile(ctx, out, f, maxResults)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", n, out)
				return nil
			case outBlob != "":
				n, err := a.db.FilterToBlob(ctx, a.store, outBlob, f, maxResults)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", n, outBlob)
				return nil
			}

			res, err := a.db.Filter(ctx, f, tripdb.Pagination{Page: page, PerPage: perPage})
			if err != nil {
				return err
			}
			if outputFormat(cmd) == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			if err := writeRecords(cmd.OutOrStdout(), "text", res.Items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "page %d/%d, %d matches, %d ms\n", res.Page, res.Pages, res.Total, res.TimeMS)
			return nil
		}),
	}
	ff.register(cmd)
	cmd.Flags().IntVar(&page, "page", tripdb.DefaultPage, "page number (1-based)")
	cmd.Flags().IntVar(&perPage, "per-page", tripdb.DefaultPerPage, "records per page (0 = count only)")
	cmd.Flags().StringVar(&out, "out", "", "write all matches as CSV to this file")
	cmd.Flags().StringVar(&outBlob, "out-blob", "", "write all matches as CSV to this object in the source store")
	cmd.Flags().IntVar(&maxResults, "max-results", -1, "cap on rows written with --out or --out-blob (negative = unlimited)")
	return cmd
}

func newStatsCmd(withApp runner) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate the records matching a filter",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			f, err := ff.build()
			if err != nil {
				return err
			}
			stats, err := a.db.Stats(cmd.Context(), f)
			if err != nil {
				return err
			}
			if outputFormat(cmd) == "json" {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\n", k, strconv.FormatFloat(stats[k], 'f', 2, 64))
			}
			return tw.Flush()
		}),
	}
	ff.register(cmd)
	return cmd
}

func newTopCmd(withApp runner) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the most popular drop-off locations",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			buckets, err := a.db.PopularDestinations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeBuckets(cmd.OutOrStdout(), outputFormat(cmd), buckets)
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of locations")
	return cmd
}

// downloader is implemented by stores that can copy a whole object with
// parallel ranged requests.
type downloader interface {
	Download(ctx context.Context, name string, w io.WriterAt) (int64, error)
}

func newFetchCmd(config func() *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch PATH",
		Short: "Download the dataset from an s3 source to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config()
			store, err := newStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			d, ok := store.(downloader)
			if !ok {
				return fmt.Errorf("source %s does not support fetch", cfg.Source)
			}

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			n, err := d.Download(cmd.Context(), cfg.Dataset, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(args[0])
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d bytes to %s\n", n, args[0])
			return nil
		},
	}
}

// filterFlags collects the filter options shared by filter and stats.
type filterFlags struct {
	key       string
	dest      string
	minAmount string
	maxAmount string
	ranges    []string
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.key, "key", "", "match the record key")
	cmd.Flags().StringVar(&ff.dest, "dest", "", "match the drop-off location id")
	cmd.Flags().StringVar(&ff.minAmount, "min-amount", "", "minimum total amount")
	cmd.Flags().StringVar(&ff.maxAmount, "max-amount", "", "maximum total amount")
	cmd.Flags().StringArrayVar(&ff.ranges, "range", nil, "numeric range FIELD=MIN:MAX, either bound may be empty (repeatable)")
}

// build returns the conjunction of every given option, or nil when none
// was given.
func (ff *filterFlags) build() (filter.Filter, error) {
	var fs []filter.Filter
	if ff.key != "" {
		fs = append(fs, filter.Key(ff.key))
	}
	if ff.dest != "" {
		fs = append(fs, filter.Destination(ff.dest))
	}
	if ff.minAmount != "" || ff.maxAmount != "" {
		lo, err := parseBound(ff.minAmount)
		if err != nil {
			return nil, fmt.Errorf("min-amount: %w", err)
		}
		hi, err := parseBound(ff.maxAmount)
		if err != nil {
			return nil, fmt.Errorf("max-amount: %w", err)
		}
		fs = append(fs, filter.Price(lo, hi))
	}
	for _, r := range ff.ranges {
		f, err := parseRange(r)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}

	switch len(fs) {
	case 0:
		return nil, nil
	case 1:
		return fs[0], nil
	default:
		return filter.AndOf(fs...), nil
	}
}

func parseBound(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseRange(s string) (*filter.Range, error) {
	name, bounds, ok := strings.Cut(s, "=")
	if !ok {
		return nil, fmt.Errorf("range %q: want FIELD=MIN:MAX", s)
	}
	field, ok := model.ParseField(name)
	if !ok {
		return nil, fmt.Errorf("range %q: unknown field %q", s, name)
	}
	lo, hi, ok := strings.Cut(bounds, ":")
	if !ok {
		return nil, fmt.Errorf("range %q: want FIELD=MIN:MAX", s)
	}
	minV, err := parseBound(lo)
	if err != nil {
		return nil, fmt.Errorf("range %q: %w", s, err)
	}
	maxV, err := parseBound(hi)
	if err != nil {
		return nil, fmt.Errorf("range %q: %w", s, err)
	}
	return filter.Between(field, minV, maxV), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRecords(w io.Writer, format string, recs []model.Record) error {
	if format == "json" {
		return writeJSON(w, recs)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(model.Header()); err != nil {
		return err
	}
	row := make([]string, 0, model.NumFields)
	for i := range recs {
		row = recs[i].AppendRow(row[:0])
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeBuckets(w io.Writer, format string, buckets []tripdb.Bucket) error {
	if format == "json" {
		return writeJSON(w, buckets)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DESTINATION\tTRIPS")
	for _, b := range buckets {
		fmt.Fprintf(tw, "%s\t%d\n", b.Value, b.Count)
	}
	return tw.Flush()
}
