package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// dhcpdCollector implements prometheus.Collector, reading the attached
// manager's subnets and lease stores on each scrape.
type dhcpdCollector struct {
	srv *Server

	leasesActive      *prometheus.Desc
	leasesTotal       *prometheus.Desc
	poolUtilization   *prometheus.Desc
	transactionsTotal *prometheus.Desc
}

func newCollector(srv *Server) *dhcpdCollector {
	return &dhcpdCollector{
		srv: srv,

		leasesActive: prometheus.NewDesc(
			"dhcpd_leases_active",
			"Current number of unexpired leases held in a subnet.",
			[]string{"subnet"}, nil,
		),
		leasesTotal: prometheus.NewDesc(
			"dhcpd_leases_total",
			"Total number of lease records held in a subnet, including expired ones still present in the store.",
			[]string{"subnet"}, nil,
		),
		poolUtilization: prometheus.NewDesc(
			"dhcpd_pool_utilization_ratio",
			"Fraction of a subnet's address range currently held by an unexpired lease.",
			[]string{"subnet"}, nil,
		),
		transactionsTotal: prometheus.NewDesc(
			"dhcpd_transactions_total",
			"Transactions currently held in the event ring buffer, by subnet and message type; events the buffer has overwritten are not counted.",
			[]string{"subnet", "type"}, nil,
		),
	}
}

func (c *dhcpdCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.leasesActive
	ch <- c.leasesTotal
	ch <- c.poolUtilization
	ch <- c.transactionsTotal
}

func (c *dhcpdCollector) Collect(ch chan<- prometheus.Metric) {
	if c.srv.dhcp == nil {
		return
	}

	now := time.Now()
	for _, sub := range c.srv.dhcp.Config().Subnets {
		leases := sub.Leases.All()
		active := 0
		for _, l := range leases {
			if now.Before(l.TmEnd) {
				active++
			}
		}
		net := sub.Network.String()
		poolSize := int(sub.Range.High.As4()[3]) - int(sub.Range.Low.As4()[3]) + 1

		ch <- prometheus.MustNewConstMetric(c.leasesActive, prometheus.GaugeValue,
			float64(active), net)
		ch <- prometheus.MustNewConstMetric(c.leasesTotal, prometheus.GaugeValue,
			float64(len(leases)), net)
		if poolSize > 0 {
			ch <- prometheus.MustNewConstMetric(c.poolUtilization, prometheus.GaugeValue,
				float64(active)/float64(poolSize), net)
		}
	}

	if eb := c.srv.dhcp.EventBuffer(); eb != nil {
		counts := make(map[[2]string]int)
		for _, rec := range eb.Latest(eventBufferScrapeDepth) {
			counts[[2]string{rec.Subnet, rec.Type}]++
		}
		for key, n := range counts {
			ch <- prometheus.MustNewConstMetric(c.transactionsTotal, prometheus.CounterValue,
				float64(n), key[0], key[1])
		}
	}
}

// eventBufferScrapeDepth bounds how much of the event buffer a single
// scrape walks to build the transaction-count metric; the buffer itself is
// a fixed-size ring, so this is a window, not a true cumulative counter.
const eventBufferScrapeDepth = 4096
