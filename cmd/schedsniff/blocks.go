package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wzqhbustb/schedio/storage/blockscan"
)

type blockEntry struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind" yaml:"kind"`
	Offset int    `json:"offset" yaml:"offset"`
	Length int    `json:"length" yaml:"length"`
}

type blockReport struct {
	File   string       `json:"file" yaml:"file"`
	Format string       `json:"format" yaml:"format"`
	Blocks []blockEntry `json:"blocks" yaml:"blocks"`
}

func newBlocksCmd(a *app) *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "blocks FILE",
		Short: "Split a block stream at its signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := blockReport{File: args[0]}
			h := a.reader.BlockScanHandler(func(_ context.Context, blocks []blockscan.Block) error {
				for _, b := range blocks {
					rep.Blocks = append(rep.Blocks, blockEntry{
						Name:   b.Name,
						Kind:   b.Kind.String(),
						Offset: b.Offset,
						Length: b.Length,
					})
				}
				return nil
			})
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
			rep.Format = out.Format.String()
			return render(cmd.OutOrStdout(), a.settings.Output, rep, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "offset\tlength\tkind\tname")
				for _, b := range rep.Blocks {
					fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", b.Offset, b.Length, b.Kind, b.Name)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&only, "format", "", "Only accept this schedule format")
	return cmd
}
