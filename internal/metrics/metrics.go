// Package metrics instruments the signaling server with Prometheus
// collectors. All collectors register against an explicit registry so
// tests can construct isolated instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream kind labels for the active-streams gauge.
const (
	StreamKindMessages       = "messages"
	StreamKindSignals        = "signals"
	StreamKindSessionUpdates = "session_updates"
	StreamKindGlobalMembers  = "global_members"
)

// Metrics holds every collector exported at /metrics.
type Metrics struct {
	rpcsTotal      *prometheus.CounterVec
	rpcErrors      *prometheus.CounterVec
	activeStreams  *prometheus.GaugeVec
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	signalsRouted  prometheus.Counter
	signalsDropped prometheus.Counter
	chatMessages   prometheus.Counter
	globalMembers  prometheus.Gauge
}

// New registers all collectors on reg and returns the handle the service
// layer records through.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rpcsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weyvelength_rpcs_total",
			Help: "RPCs handled, by method",
		}, []string{"method"}),
		rpcErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weyvelength_rpc_errors_total",
			Help: "RPCs that returned an error, by code",
		}, []string{"code"}),
		activeStreams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weyvelength_streams_active",
			Help: "Currently open server-push streams, by kind",
		}, []string{"kind"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weyvelength_sessions_active",
			Help: "Registered user sessions (global excluded)",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "weyvelength_sessions_created_total",
			Help: "Sessions created since start",
		}),
		signalsRouted: factory.NewCounter(prometheus.CounterOpts{
			Name: "weyvelength_signals_routed_total",
			Help: "Signals delivered to a signal stream",
		}),
		signalsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "weyvelength_signals_dropped_total",
			Help: "Directed signals dropped because session or peer was gone",
		}),
		chatMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "weyvelength_chat_messages_total",
			Help: "Chat messages published",
		}),
		globalMembers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weyvelength_global_members",
			Help: "Users currently present in the global session",
		}),
	}
}

func (m *Metrics) RPCHandled(method string) { m.rpcsTotal.WithLabelValues(method).Inc() }
func (m *Metrics) RPCError(code string)     { m.rpcErrors.WithLabelValues(code).Inc() }

func (m *Metrics) StreamOpened(kind string) { m.activeStreams.WithLabelValues(kind).Inc() }
func (m *Metrics) StreamClosed(kind string) { m.activeStreams.WithLabelValues(kind).Dec() }

func (m *Metrics) SessionCreated() {
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}
func (m *Metrics) SessionRemoved() { m.sessionsActive.Dec() }

func (m *Metrics) SignalRouted()  { m.signalsRouted.Inc() }
func (m *Metrics) SignalDropped() { m.signalsDropped.Inc() }
func (m *Metrics) ChatMessage()   { m.chatMessages.Inc() }

func (m *Metrics) GlobalMemberUp()   { m.globalMembers.Inc() }
func (m *Metrics) GlobalMemberDown() { m.globalMembers.Dec() }
