// Package metrics exposes the activator's Prometheus instrumentation: a
// state-transition counter labeled by transition and user, and per-device
// IP-pool gauges used to watch pool exhaustion before it causes rejects.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doublezero",
			Subsystem: "activator",
			Name:      "state_transition",
			Help:      "Count of activator-driven account state transitions, labeled by transition and user pubkey.",
		},
		[]string{"state_transition", "user_pubkey"},
	)

	DeviceAssignedIPs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "doublezero",
			Subsystem: "activator",
			Name:      "device_assigned_ips",
			Help:      "Number of dz IPs currently assigned from a device's local pool.",
		},
		[]string{"device_pubkey", "code"},
	)

	DeviceTotalIPs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "doublezero",
			Subsystem: "activator",
			Name:      "device_total_ips",
			Help:      "Total addressable capacity of a device's local dz IP pool.",
		},
		[]string{"device_pubkey", "code"},
	)
)

// Registry bundles the activator's collectors for a single
// prometheus.Registerer call from cmd/activator.
func Registry() []prometheus.Collector {
	return []prometheus.Collector{StateTransitions, DeviceAssignedIPs, DeviceTotalIPs}
}
