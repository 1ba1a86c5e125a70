package lib

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

/* This file implements dev-ops telemetry for the replica in the form of prometheus metrics */

const metricsPattern = "/metrics"

// Metrics represents a server that exposes Prometheus metrics
// each instance owns its registry so multiple replicas may live in one process
type Metrics struct {
	server   *http.Server         // the http prometheus server
	config   MetricsConfig        // the configuration
	registry *prometheus.Registry // the collectors of this replica
	log      LoggerI              // the logger

	NodeMetrics    // general telemetry about the replica
	BFTMetrics     // consensus telemetry
	PeerMetrics    // broadcast telemetry
	MempoolMetrics // vote buffer telemetry
}

// NodeMetrics represents general telemetry for the replica's health
type NodeMetrics struct {
	NodeStatus          prometheus.Gauge     // is the replica alive?
	BlockProcessingTime prometheus.Histogram // how long does a round take from PRE-PREPARE to BLOCK_ADDED?
}

// BFTMetrics represents the telemetry for the BFT module
type BFTMetrics struct {
	Height           prometheus.Gauge       // what's the height of the ledger?
	CommittedBlocks  prometheus.Counter     // how many blocks has this replica appended?
	ProposerCount    prometheus.Counter     // how many times did this replica propose a block?
	MessagesReceived *prometheus.CounterVec // how many consensus messages of each type were handled?
	Statuses         *prometheus.CounterVec // how many times was each status returned?
	RejectedMessages *prometheus.CounterVec // how many messages were rejected, by error code?
}

// PeerMetrics represents the telemetry for the P2P module
type PeerMetrics struct {
	TotalPeers        prometheus.Gauge       // number of configured peers
	BroadcastFailures *prometheus.CounterVec // how many sends failed per peer?
}

// MempoolMetrics represents the telemetry for the vote buffer
type MempoolMetrics struct {
	PendingVotes  prometheus.Gauge   // how many votes are waiting for a block?
	VotesReceived prometheus.Counter // how many votes were ingested?
}

// NewMetricsServer() creates a new telemetry server
func NewMetricsServer(config MetricsConfig, nodeID uint64, logger LoggerI) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"node": strconv.FormatUint(nodeID, 10)}, registry))
	mux := http.NewServeMux()
	mux.Handle(metricsPattern, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return &Metrics{
		server:   &http.Server{Addr: config.PrometheusAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		config:   config,
		registry: registry,
		log:      logger,
		NodeMetrics: NodeMetrics{
			NodeStatus: factory.NewGauge(prometheus.GaugeOpts{
				Name: "votechain_node_status",
				Help: "The replica is alive and processing messages",
			}),
			BlockProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
				Name: "votechain_block_processing_time",
				Help: "Time from PRE-PREPARE to BLOCK_ADDED in seconds",
			}),
		},
		BFTMetrics: BFTMetrics{
			Height: factory.NewGauge(prometheus.GaugeOpts{
				Name: "votechain_bft_height",
				Help: "Number of blocks in the ledger including genesis",
			}),
			CommittedBlocks: factory.NewCounter(prometheus.CounterOpts{
				Name: "votechain_bft_committed_blocks_total",
				Help: "Total number of blocks appended by consensus",
			}),
			ProposerCount: factory.NewCounter(prometheus.CounterOpts{
				Name: "votechain_bft_proposals_total",
				Help: "Total number of blocks proposed by this replica",
			}),
			MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "votechain_bft_messages_total",
				Help: "Number of consensus messages handled by type",
			}, []string{"type"}),
			Statuses: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "votechain_bft_status_total",
				Help: "Number of handler results by status",
			}, []string{"status"}),
			RejectedMessages: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "votechain_bft_rejected_messages_total",
				Help: "Number of consensus messages rejected by error module and code",
			}, []string{"module", "code"}),
		},
		PeerMetrics: PeerMetrics{
			TotalPeers: factory.NewGauge(prometheus.GaugeOpts{
				Name: "votechain_peer_total",
				Help: "Number of configured peers",
			}),
			BroadcastFailures: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "votechain_peer_broadcast_failures_total",
				Help: "Number of failed sends by peer",
			}, []string{"peer"}),
		},
		MempoolMetrics: MempoolMetrics{
			PendingVotes: factory.NewGauge(prometheus.GaugeOpts{
				Name: "votechain_mempool_pending_votes",
				Help: "Number of buffered votes not yet in a block",
			}),
			VotesReceived: factory.NewCounter(prometheus.CounterOpts{
				Name: "votechain_mempool_votes_received_total",
				Help: "Total number of votes ingested",
			}),
		},
	}
}

// Start() starts the telemetry server
func (m *Metrics) Start() {
	// exit if empty
	if m == nil {
		return
	}
	// set node is active
	m.NodeStatus.Set(1)
	// if the metrics server is enabled
	if m.config.MetricsEnabled {
		go func() {
			m.log.Infof("Starting metrics server on %s", m.config.PrometheusAddress)
			// run the server
			if err := m.server.ListenAndServe(); err != nil {
				if err != http.ErrServerClosed {
					m.log.Errorf("Metrics server failed with err: %s", err.Error())
				}
			}
		}()
	}
}

// Stop() gracefully stops the telemetry server
func (m *Metrics) Stop() {
	// exit if empty
	if m == nil {
		return
	}
	// if the metrics server isn't enabled
	if m.config.MetricsEnabled {
		// shutdown the server
		if err := m.server.Shutdown(context.Background()); err != nil {
			m.log.Error(err.Error())
		}
	}
}

// Registry() exposes the collectors of this replica
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// UpdateBFTMetrics() is a setter for the ledger height
func (m *Metrics) UpdateBFTMetrics(height int) {
	// exit if empty
	if m == nil {
		return
	}
	// set the height of the ledger
	m.Height.Set(float64(height))
}

// UpdateBlockMetrics() updates the metrics about the last appended block
func (m *Metrics) UpdateBlockMetrics(height int, duration time.Duration) {
	// exit if empty
	if m == nil {
		return
	}
	m.CommittedBlocks.Inc()
	m.Height.Set(float64(height))
	// update the block processing time in seconds
	if duration > 0 {
		m.BlockProcessingTime.Observe(duration.Seconds())
	}
}

// IncProposals() counts a block proposed by this replica
func (m *Metrics) IncProposals() {
	// exit if empty
	if m == nil {
		return
	}
	m.ProposerCount.Inc()
}

// UpdateMessageMetrics() counts a handled consensus message and the status it produced
func (m *Metrics) UpdateMessageMetrics(msgType, status string) {
	// exit if empty
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(msgType).Inc()
	if status != "" {
		m.Statuses.WithLabelValues(status).Inc()
	}
}

// IncRejected() counts a consensus message that failed with err
func (m *Metrics) IncRejected(err ErrorI) {
	// exit if empty
	if m == nil || err == nil {
		return
	}
	m.RejectedMessages.WithLabelValues(string(err.Module()), strconv.FormatUint(uint64(err.Code()), 10)).Inc()
}

// UpdatePeerMetrics() is a setter for the peer count
func (m *Metrics) UpdatePeerMetrics(total int) {
	// exit if empty
	if m == nil {
		return
	}
	m.TotalPeers.Set(float64(total))
}

// IncBroadcastFailure() counts a failed send to a peer
func (m *Metrics) IncBroadcastFailure(peerID uint64) {
	// exit if empty
	if m == nil {
		return
	}
	m.BroadcastFailures.WithLabelValues(strconv.FormatUint(peerID, 10)).Inc()
}

// UpdateMempoolMetrics() updates the vote buffer metrics
func (m *Metrics) UpdateMempoolMetrics(pending int, received int) {
	// exit if empty
	if m == nil {
		return
	}
	m.PendingVotes.Set(float64(pending))
	if received > 0 {
		m.VotesReceived.Add(float64(received))
	}
}
