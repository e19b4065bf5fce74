package contactsync

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pior/contactsync/wire"
)

// ServerStats is a snapshot of server activity.
//
// For Prometheus the same values are exported by the collector registered
// through Config.Registerer:
//   - Counters: contactsync_sessions_total{result}, contactsync_commands_total{command,outcome},
//     contactsync_contacts_exported_total
//   - Gauges: contactsync_session_active, contactsync_registry_entries
type ServerStats struct {
	SessionsAccepted uint64 // Connections admitted to the session slot
	SessionsRejected uint64 // Connections closed because a session was active
	Commands         uint64 // Dispatched commands, unknown lines excluded
	Failures         uint64 // Commands answered with :failure:
	ContactsExported uint64 // Records sent by :request_contacts:
	ContactsAdded    uint64
	ContactsModified uint64 // Modifies that reached the store
	ContactsDeleted  uint64

	ActiveSession bool
	RegistrySize  int
}

// Command outcomes
const (
	outcomeOK        = "ok"
	outcomeUnchanged = "unchanged"
	outcomeFailure   = "failure"
	outcomeAborted   = "aborted"
)

type serverStatsCollector struct {
	stats  ServerStats
	active atomic.Bool

	sessions *prometheus.CounterVec
	commands *prometheus.CounterVec
	exported prometheus.Counter
	gauge    prometheus.Gauge
}

func newServerStatsCollector(reg prometheus.Registerer, registrySize func() int) *serverStatsCollector {
	c := &serverStatsCollector{
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contactsync_sessions_total",
				Help: "Peer connections by admission result",
			},
			[]string{"result"}, // accepted, rejected
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contactsync_commands_total",
				Help: "Protocol commands by outcome",
			},
			[]string{"command", "outcome"},
		),
		exported: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contactsync_contacts_exported_total",
				Help: "Contact records sent to peers",
			},
		),
		gauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contactsync_session_active",
				Help: "1 while a peer session is running",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			c.sessions,
			c.commands,
			c.exported,
			c.gauge,
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "contactsync_registry_entries",
					Help: "Contacts exported in the current session",
				},
				func() float64 { return float64(registrySize()) },
			),
		)
	}
	return c
}

func (c *serverStatsCollector) recordAccepted() {
	atomic.AddUint64(&c.stats.SessionsAccepted, 1)
	c.sessions.WithLabelValues("accepted").Inc()
	c.active.Store(true)
	c.gauge.Set(1)
}

func (c *serverStatsCollector) recordRejected() {
	atomic.AddUint64(&c.stats.SessionsRejected, 1)
	c.sessions.WithLabelValues("rejected").Inc()
}

func (c *serverStatsCollector) recordSessionEnd() {
	c.active.Store(false)
	c.gauge.Set(0)
}

func (c *serverStatsCollector) recordCommand(cmd wire.Command, outcome string) {
	atomic.AddUint64(&c.stats.Commands, 1)
	if outcome == outcomeFailure {
		atomic.AddUint64(&c.stats.Failures, 1)
	}
	c.commands.WithLabelValues(cmd.String(), outcome).Inc()
}

func (c *serverStatsCollector) recordExported() {
	atomic.AddUint64(&c.stats.ContactsExported, 1)
	c.exported.Inc()
}

func (c *serverStatsCollector) recordAdded() {
	atomic.AddUint64(&c.stats.ContactsAdded, 1)
}

func (c *serverStatsCollector) recordModified() {
	atomic.AddUint64(&c.stats.ContactsModified, 1)
}

func (c *serverStatsCollector) recordDeleted() {
	atomic.AddUint64(&c.stats.ContactsDeleted, 1)
}

func (c *serverStatsCollector) snapshot() ServerStats {
	return ServerStats{
		SessionsAccepted: atomic.LoadUint64(&c.stats.SessionsAccepted),
		SessionsRejected: atomic.LoadUint64(&c.stats.SessionsRejected),
		Commands:         atomic.LoadUint64(&c.stats.Commands),
		Failures:         atomic.LoadUint64(&c.stats.Failures),
		ContactsExported: atomic.LoadUint64(&c.stats.ContactsExported),
		ContactsAdded:    atomic.LoadUint64(&c.stats.ContactsAdded),
		ContactsModified: atomic.LoadUint64(&c.stats.ContactsModified),
		ContactsDeleted:  atomic.LoadUint64(&c.stats.ContactsDeleted),
		ActiveSession:    c.active.Load(),
	}
}
