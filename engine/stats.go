package engine

import (
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TXStats is a point-in-time snapshot of the counters the original
// driver keeps inline in its device struct (tx_size_min/max/acc,
// tx_pl_min/max/acc, tx_num). All fields are updated at take time,
// under the engine lock, never at submit or close time.
type TXStats struct {
	MessagesSent uint64

	PayloadCountMin uint32
	PayloadCountMax uint32
	PayloadCountAcc uint64

	MessageSizeMin uint32
	MessageSizeMax uint32
	MessageSizeAcc uint64
}

// txStats is the mutable, lock-free-from-its-own-perspective form
// embedded in the engine; it's always touched under the engine's
// single mutex, so it needs no synchronization of its own.
type txStats struct {
	messagesSent uint64

	pldCountMin uint32
	pldCountMax uint32
	pldCountAcc uint64

	msgSizeMin uint32
	msgSizeMax uint32
	msgSizeAcc uint64
}

// newTXStats seeds the min fields so the first observation always
// wins — the source does not reliably do this (spec.md §9).
func newTXStats() txStats {
	return txStats{
		pldCountMin: math.MaxUint32,
		msgSizeMin:  math.MaxUint32,
	}
}

func (s *txStats) record(numPls uint16, busSize uint32) {
	pls := uint32(numPls)
	s.pldCountAcc += uint64(pls)
	if pls < s.pldCountMin {
		s.pldCountMin = pls
	}
	if pls > s.pldCountMax {
		s.pldCountMax = pls
	}

	s.msgSizeAcc += uint64(busSize)
	if busSize < s.msgSizeMin {
		s.msgSizeMin = busSize
	}
	if busSize > s.msgSizeMax {
		s.msgSizeMax = busSize
	}

	s.messagesSent++
}

func (s *txStats) snapshot() TXStats {
	return TXStats{
		MessagesSent:    s.messagesSent,
		PayloadCountMin: s.pldCountMin,
		PayloadCountMax: s.pldCountMax,
		PayloadCountAcc: s.pldCountAcc,
		MessageSizeMin:  s.msgSizeMin,
		MessageSizeMax:  s.msgSizeMax,
		MessageSizeAcc:  s.msgSizeAcc,
	}
}

// StatsCollector exposes an Engine's TXStats as a prometheus.Collector,
// the way the retrieved Kubernetes metrics packages wrap raw counters
// (staging/src/k8s.io/apiserver/pkg/storage/etcd/metrics). Register it
// with a prometheus.Registry to scrape alongside everything else in
// the process.
type StatsCollector struct {
	mu     sync.Mutex
	source func() TXStats

	messagesSent   *prometheus.Desc
	pldCountMin    *prometheus.Desc
	pldCountMax    *prometheus.Desc
	pldCountAcc    *prometheus.Desc
	msgSizeMin     *prometheus.Desc
	msgSizeMax     *prometheus.Desc
	msgSizeAcc     *prometheus.Desc
}

// NewStatsCollector builds a collector that calls source for each
// scrape. Engine.Collector() returns one bound to that engine's own
// Stats method.
func NewStatsCollector(namespace string, source func() TXStats) *StatsCollector {
	ns := namespace
	if ns == "" {
		ns = "wmtx"
	}
	return &StatsCollector{
		source:       source,
		messagesSent: prometheus.NewDesc(ns+"_tx_messages_sent_total", "Total TX messages handed to the bus.", nil, nil),
		pldCountMin:  prometheus.NewDesc(ns+"_tx_payload_count_min", "Minimum payloads observed in one TX message.", nil, nil),
		pldCountMax:  prometheus.NewDesc(ns+"_tx_payload_count_max", "Maximum payloads observed in one TX message.", nil, nil),
		pldCountAcc:  prometheus.NewDesc(ns+"_tx_payload_count_total", "Accumulated payload count across all TX messages.", nil, nil),
		msgSizeMin:   prometheus.NewDesc(ns+"_tx_message_bytes_min", "Minimum on-wire TX message size in bytes.", nil, nil),
		msgSizeMax:   prometheus.NewDesc(ns+"_tx_message_bytes_max", "Maximum on-wire TX message size in bytes.", nil, nil),
		msgSizeAcc:   prometheus.NewDesc(ns+"_tx_message_bytes_total", "Accumulated on-wire TX message bytes.", nil, nil),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messagesSent
	ch <- c.pldCountMin
	ch <- c.pldCountMax
	ch <- c.pldCountAcc
	ch <- c.msgSizeMin
	ch <- c.msgSizeMax
	ch <- c.msgSizeAcc
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	s := c.source()
	c.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.messagesSent, prometheus.CounterValue, float64(s.MessagesSent))
	ch <- prometheus.MustNewConstMetric(c.pldCountMin, prometheus.GaugeValue, float64(s.PayloadCountMin))
	ch <- prometheus.MustNewConstMetric(c.pldCountMax, prometheus.GaugeValue, float64(s.PayloadCountMax))
	ch <- prometheus.MustNewConstMetric(c.pldCountAcc, prometheus.CounterValue, float64(s.PayloadCountAcc))
	ch <- prometheus.MustNewConstMetric(c.msgSizeMin, prometheus.GaugeValue, float64(s.MessageSizeMin))
	ch <- prometheus.MustNewConstMetric(c.msgSizeMax, prometheus.GaugeValue, float64(s.MessageSizeMax))
	ch <- prometheus.MustNewConstMetric(c.msgSizeAcc, prometheus.CounterValue, float64(s.MessageSizeAcc))
}
