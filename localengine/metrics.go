package localengine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	readsDesc = prometheus.NewDesc(
		"griddb_localengine_read_transactions_total",
		"Read transactions started on a database",
		[]string{"db"}, nil,
	)
	writesDesc = prometheus.NewDesc(
		"griddb_localengine_write_transactions_total",
		"Write transactions started on a database",
		[]string{"db"}, nil,
	)
	connectionsDesc = prometheus.NewDesc(
		"griddb_localengine_connections",
		"Open connections to a database",
		[]string{"db"}, nil,
	)
	journalRecordDesc = prometheus.NewDesc(
		"griddb_localengine_journal_last_record",
		"Number of the last record written to a database journal",
		[]string{"db"}, nil,
	)
)

// Collector exports per-database counters of the engine. Register it with a
// prometheus.Registerer to expose them.
func (e *Engine) Collector() prometheus.Collector {
	return engineCollector{e}
}

type engineCollector struct {
	e *Engine
}

func (c engineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- readsDesc
	ch <- writesDesc
	ch <- connectionsDesc
	ch <- journalRecordDesc
}

func (c engineCollector) Collect(ch chan<- prometheus.Metric) {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	for key, sh := range c.e.dbs {
		db := sh.db
		ch <- prometheus.MustNewConstMetric(readsDesc, prometheus.CounterValue, float64(db.ReadCount.Load()), key)
		ch <- prometheus.MustNewConstMetric(writesDesc, prometheus.CounterValue, float64(db.WriteCount.Load()), key)
		ch <- prometheus.MustNewConstMetric(connectionsDesc, prometheus.GaugeValue, float64(sh.refs), key)
		if db.journal != nil {
			ch <- prometheus.MustNewConstMetric(journalRecordDesc, prometheus.GaugeValue, float64(db.journal.LastRecord()), key)
		}
	}
}
