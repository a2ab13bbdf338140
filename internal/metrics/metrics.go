// Package metrics exposes the engine's operational counters and gauges via
// prometheus/client_golang, the metrics library declared (but left
// unexercised by any surviving call site) in the platform, bun-kms, and
// functions modules of the bunbase monorepo. raftd registers these against its
// own HTTP handler at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const roleFollower, roleCandidate, roleLeader = 0, 1, 2

// Metrics bundles every gauge/counter the consensus core updates. Vectors
// are labeled by node_id so a single registry can serve metrics for more
// than one locally-hosted node (as in a loopback test harness).
type Metrics struct {
	term               *prometheus.GaugeVec
	role               *prometheus.GaugeVec
	commitIndex        *prometheus.GaugeVec
	lastApplied        *prometheus.GaugeVec
	electionsTotal     *prometheus.CounterVec
	appendEntriesTotal *prometheus.CounterVec
}

// New builds a Metrics and, if reg is non-nil, registers every collector
// against it.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		term: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raftkv_current_term",
			Help: "Current Raft term observed by this node.",
		}, []string{"node_id"}),
		role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raftkv_role",
			Help: "Current role of this node: 0=follower, 1=candidate, 2=leader.",
		}, []string{"node_id"}),
		commitIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raftkv_commit_index",
			Help: "Highest log index known committed.",
		}, []string{"node_id"}),
		lastApplied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raftkv_last_applied",
			Help: "Highest log index applied to the state machine.",
		}, []string{"node_id"}),
		electionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raftkv_elections_started_total",
			Help: "Number of elections this node has started as a candidate.",
		}, []string{"node_id"}),
		appendEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raftkv_append_entries_sent_total",
			Help: "Number of AppendEntries calls sent by this node as leader.",
		}, []string{"node_id", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.term, m.role, m.commitIndex, m.lastApplied, m.electionsTotal, m.appendEntriesTotal)
	}
	return m
}

// NewNoop returns a Metrics that tracks values but is registered to no
// registry, for use in tests and in any node that doesn't expose /metrics.
func NewNoop() *Metrics {
	return New(nil)
}

func (m *Metrics) SetTerm(nodeID string, term uint64) {
	m.term.WithLabelValues(nodeID).Set(float64(term))
}

func (m *Metrics) SetRole(nodeID, role string) {
	v := float64(roleFollower)
	switch role {
	case "candidate":
		v = roleCandidate
	case "leader":
		v = roleLeader
	}
	m.role.WithLabelValues(nodeID).Set(v)
}

func (m *Metrics) SetCommitIndex(nodeID string, index uint64) {
	m.commitIndex.WithLabelValues(nodeID).Set(float64(index))
}

func (m *Metrics) SetLastApplied(nodeID string, index uint64) {
	m.lastApplied.WithLabelValues(nodeID).Set(float64(index))
}

func (m *Metrics) IncElectionStarted(nodeID string) {
	m.electionsTotal.WithLabelValues(nodeID).Inc()
}

func (m *Metrics) IncAppendEntriesSent(nodeID string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.appendEntriesTotal.WithLabelValues(nodeID, result).Inc()
}
