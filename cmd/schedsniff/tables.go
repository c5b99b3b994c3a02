package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wzqhbustb/schedio/schedio"
	"github.com/wzqhbustb/schedio/storage/format"
	"github.com/wzqhbustb/schedio/storage/sniff"
	"github.com/wzqhbustb/schedio/storage/tablestore"
)

type tableEntry struct {
	Name   string `json:"name" yaml:"name"`
	Offset int64  `json:"offset" yaml:"offset"`
	Length int64  `json:"length" yaml:"length"`
	Bytes  int    `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

type tableReport struct {
	File    string       `json:"file" yaml:"file"`
	Format  string       `json:"format" yaml:"format"`
	Version string       `json:"version" yaml:"version"`
	Tables  []tableEntry `json:"tables" yaml:"tables"`
	Missing []string     `json:"missing,omitempty" yaml:"missing,omitempty"`
	Skipped int          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func listReport(toc *tablestore.TOC) tableReport {
	rep := tableReport{Version: toc.Version}
	for _, d := range toc.Descriptors {
		rep.Tables = append(rep.Tables, tableEntry{Name: d.Name, Offset: d.Offset, Length: d.Length})
	}
	return rep
}

func storeReport(store *tablestore.Store) tableReport {
	rep := tableReport{Version: store.Version, Missing: store.Missing, Skipped: store.Skipped}
	for _, d := range store.Descriptors {
		e := tableEntry{Name: d.Name, Offset: d.Offset, Length: d.Length}
		if b, ok := store.Table(d.Name); ok {
			e.Bytes = len(b)
		} else if err := store.Err(d.Name); err != nil {
			e.Error = err.Error()
		} else {
			continue
		}
		rep.Tables = append(rep.Tables, e)
	}
	return rep
}

// registerAll installs h for every schedule format, or only for the one
// named by only.
func registerAll(r *schedio.Reader, h schedio.Handler, only string) error {
	formats := format.Formats()
	if only != "" {
		f, ok := format.Parse(only)
		if !ok || !f.IsSchedule() {
			return fmt.Errorf("unknown schedule format %q", only)
		}
		formats = []format.Format{f}
	}
	for _, f := range formats {
		if err := r.Register(f, h); err != nil {
			return err
		}
	}
	return nil
}

func newTablesCmd(a *app) *cobra.Command {
	var list bool
	var only string
	cmd := &cobra.Command{
		Use:   "tables FILE",
		Short: "List or extract the tables of a compressed table container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rep tableReport
			var h schedio.Handler
			if list {
				h = func(_ context.Context, res *sniff.Result) error {
					toc, err := a.reader.ReadTOC(res.Reader)
					if err != nil {
						return err
					}
					rep = listReport(toc)
					return nil
				}
			} else {
				h = a.reader.TableStoreHandler(nil, func(_ context.Context, store *tablestore.Store) error {
					rep = storeReport(store)
					return nil
				})
			}
			if err := registerAll(a.reader, h, only); err != nil {
				return err
			}

			out, err := a.reader.DispatchFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !out.Handled {
				return fmt.Errorf("%s: not recognized: %s", args[0], out.Reason)
			}
			rep.File = args[0]
			rep.Format = out.Format.String()
			return render(cmd.OutOrStdout(), a.settings.Output, rep, func(w io.Writer) error {
				return tablesText(w, rep)
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "Only list the table of contents")
	cmd.Flags().StringVar(&only, "format", "", "Only accept this schedule format")
	cmd.Flags().StringSlice("require", nil, "Tables to extract (default Tasks,Calendars,Companies)")
	return cmd
}

func tablesText(w io.Writer, rep tableReport) error {
	fmt.Fprintf(w, "%s: %s version %q\n", rep.File, rep.Format, rep.Version)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "name\toffset\tlength\tbytes\t")
	for _, e := range rep.Tables {
		length := fmt.Sprint(e.Length)
		if e.Length == tablestore.ToEnd {
			length = "to end"
		}
		status := fmt.Sprint(e.Bytes)
		if e.Error != "" {
			status = e.Error
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", e.Name, e.Offset, length, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, m := range rep.Missing {
		fmt.Fprintf(w, "missing: %s\n", m)
	}
	return nil
}
