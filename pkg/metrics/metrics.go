// Package metrics registers the prometheus recorders linkmgrd publishes:
// switchover timing, link-prober event starts, and packet-loss counts
// (spec.md §6). Pattern grounded on the teacher's package-level
// GaugeVec + explicit Register(registry) idiom.
package metrics

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sonic-net/linkmgrd-go/pkg/log"
)

var (
	switchingStart = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linkmgrd_switching_start_timestamp_seconds",
		Help: "Unix timestamp when a port entered a MUX switchover wait.",
	}, []string{"port"})

	switchingEnd = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linkmgrd_switching_end_timestamp_seconds",
		Help: "Unix timestamp when a port's MUX switchover completed.",
	}, []string{"port"})

	linkProberWaitStart = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linkmgrd_link_prober_wait_start_timestamp_seconds",
		Help: "Unix timestamp when a port's Link-Prober entered Wait.",
	}, []string{"port"})

	packetLossCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkmgrd_packet_loss_total",
		Help: "Count of ICMP heartbeat replies not received in time, per port.",
	}, []string{"port"})

	portHealth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linkmgrd_port_health",
		Help: "Port health label: 0=Uninitialized, 1=Unhealthy, 2=Healthy.",
	}, []string{"port"})
)

// Register adds all linkmgrd collectors to reg. Calling it twice with
// the same registry returns the duplicate-registration error
// prometheus.Registry.Register produces, matching the teacher's
// "first registration succeeds, duplicate fails" contract.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		switchingStart, switchingEnd, linkProberWaitStart, packetLossCount, portHealth,
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register metric: %w", err)
		}
	}
	return nil
}

func SetSwitchingStart(port string, unixSeconds float64) {
	switchingStart.WithLabelValues(port).Set(unixSeconds)
}

func SetSwitchingEnd(port string, unixSeconds float64) {
	switchingEnd.WithLabelValues(port).Set(unixSeconds)
}

func SetLinkProberWaitStart(port string, unixSeconds float64) {
	linkProberWaitStart.WithLabelValues(port).Set(unixSeconds)
}

// IncPacketLoss bumps the packet-loss counter for port and logs a
// human-readable running total, the way an operator scanning logs
// (rather than a dashboard) would want to see it.
func IncPacketLoss(port string, total float64) {
	packetLossCount.WithLabelValues(port).Inc()
	log.Logger.Infof("%s: packet loss count now %s", port, humanize.Comma(int64(total)))
}

const (
	HealthUninitialized = 0
	HealthUnhealthy     = 1
	HealthHealthy       = 2
)

func SetPortHealth(port string, value int) {
	portHealth.WithLabelValues(port).Set(float64(value))
}
