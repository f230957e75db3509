package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"crimewatch/pkg/logger"
)

// StoreCollector exposes row counts from Postgres at scrape time
type StoreCollector struct {
	log *logger.Logger
	db  *sqlx.DB

	activeSubscribers *prometheus.Desc
	reports24h        *prometheus.Desc
}

// NewStoreCollector creates a collector over the report and subscriber tables
func NewStoreCollector(log *logger.Logger, db *sqlx.DB) *StoreCollector {
	return &StoreCollector{
		log: log,
		db:  db,
		activeSubscribers: prometheus.NewDesc(
			"crimewatch_active_subscribers",
			"Active alert subscribers by city",
			[]string{"city"}, nil,
		),
		reports24h: prometheus.NewDesc(
			"crimewatch_reports_24h",
			"Crime reports submitted in the last 24 hours",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSubscribers
	ch <- c.reports24h
}

// Collect implements prometheus.Collector
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type cityCount struct {
		City  string `db:"city"`
		Count int    `db:"count"`
	}
	var subs []cityCount
	if err := c.db.SelectContext(ctx, &subs, `
		SELECT city, COUNT(*) AS count
		FROM subscribers
		WHERE is_active
		GROUP BY city
	`); err != nil {
		c.log.Warnw("Failed to collect subscriber counts", "error", err)
	} else {
		for _, s := range subs {
			ch <- prometheus.MustNewConstMetric(c.activeSubscribers, prometheus.GaugeValue, float64(s.Count), s.City)
		}
	}

	var reports int
	if err := c.db.GetContext(ctx, &reports, `
		SELECT COUNT(*) FROM reports WHERE created_at > NOW() - INTERVAL '24 hours'
	`); err != nil {
		c.log.Warnw("Failed to collect report count", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.reports24h, prometheus.GaugeValue, float64(reports))
}
