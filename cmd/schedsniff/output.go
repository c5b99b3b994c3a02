package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, output string, v any, text func(io.Writer) error) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// printMetrics writes every gathered counter as name{labels} value.
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for i, lp := range m.GetLabel() {
				if i > 0 {
					labels += ","
				}
				labels += fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), labels, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
