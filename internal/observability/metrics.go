package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhire_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	// CacheLookups counts cache-aside lookups by key family and result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhire_cache_lookups_total",
		Help: "Cache lookups by key family and result",
	}, []string{"family", "result"})

	// PaymentVerifications counts job posting payment checks by outcome.
	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhire_payment_verifications_total",
		Help: "Job posting payment verifications by outcome",
	}, []string{"outcome"})

	// ChainRPCLatency records chain JSON-RPC latency by method.
	ChainRPCLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainhire_chain_rpc_latency_seconds",
		Help:    "Chain JSON-RPC latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// JobsPosted counts jobs created, labelled by their initial status.
	JobsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhire_jobs_posted_total",
		Help: "Jobs created by initial status",
	}, []string{"status"})

	// FeedInteractions counts likes, unlikes, comments and shares.
	FeedInteractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhire_feed_interactions_total",
		Help: "Feed interactions by type",
	}, []string{"type"})

	// WebSocketConnections is the gauge of open feed websocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainhire_websocket_connections",
		Help: "Number of open WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhire_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// QueuePublishes counts AMQP event publishes by result.
	QueuePublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhire_queue_publishes_total",
		Help: "AMQP event publishes by result",
	}, []string{"result"})
)
