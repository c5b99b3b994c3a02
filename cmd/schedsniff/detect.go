package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wzqhbustb/schedio/storage/format"
	"github.com/wzqhbustb/schedio/storage/sniff"
)

type detection struct {
	File     string   `json:"file" yaml:"file"`
	Format   string   `json:"format" yaml:"format"`
	Chain    []string `json:"chain,omitempty" yaml:"chain,omitempty"`
	Marker   string   `json:"marker,omitempty" yaml:"marker,omitempty"`
	Tables   []string `json:"tables,omitempty" yaml:"tables,omitempty"`
	Reason   string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	DecodeID string   `json:"decode_id,omitempty" yaml:"decode_id,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func chainOf(layers []sniff.Layer) []string {
	out := make([]string, 0, len(layers))
	for _, l := range layers {
		if l.Entry != "" {
			out = append(out, l.Format.String()+":"+l.Entry)
			continue
		}
		out = append(out, l.Format.String())
	}
	return out
}

func detectionOf(file string, res *sniff.Result) detection {
	d := detection{
		File:     file,
		Format:   res.Format.String(),
		Chain:    chainOf(res.Chain),
		Tables:   res.Tables,
		Reason:   res.Reason,
		DecodeID: res.DecodeID,
	}
	if res.Marker != format.MarkerUnknown {
		d.Marker = res.Marker.String()
	}
	return d
}

func newDetectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect FILE...",
		Short: "Detect the format of schedule files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]detection, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(a.settings.Jobs)
			for i, file := range args {
				g.Go(func() error {
					res, err := a.reader.SniffFile(ctx, file)
					if err != nil {
						results[i] = detection{File: file, Error: err.Error()}
						return nil
					}
					results[i] = detectionOf(file, res)
					return res.Close()
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.settings.Output, results, func(w io.Writer) error {
				return detectionsText(w, results)
			})
		},
	}
	cmd.Flags().IntP("jobs", "j", 4, "Files processed concurrently")
	cmd.Flags().Bool("scan-all", false, "Try every archive entry instead of the first")
	return cmd
}

func detectionsText(w io.Writer, results []detection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range results {
		switch {
		case d.Error != "":
			fmt.Fprintf(tw, "%s\terror\t%s\n", d.File, d.Error)
		case d.Reason != "":
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.File, d.Format, d.Reason)
		default:
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.File, d.Format, strings.Join(d.Chain, " > "))
		}
	}
	return tw.Flush()
}
