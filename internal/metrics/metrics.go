// Package metrics counts what the reader detects and extracts, using
// Prometheus counters registered on a caller-supplied registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Table outcomes.
const (
	TableExtracted = "extracted"
	TableSkipped   = "skipped"
	TableFailed    = "failed"
)

// Recorder receives reader events.
type Recorder interface {
	Detection(format string)
	Tables(outcome string, n int)
	Block(kind string)
}

// Nop returns a Recorder that drops everything.
func Nop() Recorder {
	return nop{}
}

type nop struct{}

func (nop) Detection(string)   {}
func (nop) Tables(string, int) {}
func (nop) Block(string)       {}

// Collector is a Recorder backed by Prometheus counters.
type Collector struct {
	detections *prometheus.CounterVec
	tables     *prometheus.CounterVec
	blocks     *prometheus.CounterVec
}

// NewCollector creates the counters and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedio",
			Name:      "detections_total",
			Help:      "Inputs sniffed, by detected format.",
		}, []string{"format"}),
		tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedio",
			Name:      "tables_total",
			Help:      "Container tables seen, by extraction outcome.",
		}, []string{"outcome"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedio",
			Name:      "blocks_total",
			Help:      "Blocks produced by the boundary scanner, by kind.",
		}, []string{"kind"}),
	}
	for _, col := range []prometheus.Collector{c.detections, c.tables, c.blocks} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Detection(format string) {
	c.detections.WithLabelValues(format).Inc()
}

func (c *Collector) Tables(outcome string, n int) {
	if n <= 0 {
		return
	}
	c.tables.WithLabelValues(outcome).Add(float64(n))
}

func (c *Collector) Block(kind string) {
	c.blocks.WithLabelValues(kind).Inc()
}
