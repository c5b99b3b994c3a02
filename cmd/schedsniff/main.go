// Command schedsniff identifies schedule files and inspects the binary
// containers they are built from.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wzqhbustb/schedio/internal/config"
	"github.com/wzqhbustb/schedio/internal/logger"
	"github.com/wzqhbustb/schedio/internal/metrics"
	"github.com/wzqhbustb/schedio/schedio"
)

var version = "0.1.0"

// app is the state shared by every subcommand, built before it runs.
type app struct {
	configFile string
	settings   *config.Settings
	log        *zap.Logger
	registry   *prometheus.Registry
	reader     *schedio.Reader
}

func (a *app) setup(cmd *cobra.Command) error {
	s, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.settings = s

	a.log, err = logger.New(s.Logger())
	if err != nil {
		return err
	}

	opts := append(s.ReaderOptions(), schedio.WithLogger(a.log))
	if s.Metrics {
		a.registry = prometheus.NewRegistry()
		collector, err := metrics.NewCollector(a.registry)
		if err != nil {
			return err
		}
		opts = append(opts, schedio.WithRecorder(collector))
	}

	a.reader, err = schedio.New(opts...)
	return err
}

func (a *app) teardown(cmd *cobra.Command) error {
	if a.registry != nil {
		if err := printMetrics(cmd.ErrOrStderr(), a.registry); err != nil {
			return err
		}
	}
	if a.reader != nil {
		a.reader.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "schedsniff",
		Short: "Identify schedule files and inspect their containers",
		Long: `schedsniff detects the format of project schedule files, looking through
zip archives, compressed streams, text encodings and embedded databases,
and dumps the compressed table containers and block streams that binary
schedule formats are built from.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Path to YAML configuration file")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringP("output", "o", "text", "Output format (text, json, yaml)")
	pf.Bool("metrics", false, "Print collected counters to stderr on exit")
	pf.String("charset", "windows-1252", "Charset of legacy strings (WHATWG label)")
	pf.Int("max-depth", 4, "Maximum nested containers")

	root.AddCommand(
		newDetectCmd(a),
		newTablesCmd(a),
		newBlocksCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "schedsniff v%s\n", version)
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
