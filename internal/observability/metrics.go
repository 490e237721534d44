package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcClientHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_client_handled_total",
			Help: "Total number of gRPC calls made to upstream services.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	chatActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_actions_total",
			Help: "Client actions handled, by action and outcome code.",
		},
		[]string{"action", "outcome"},
	)
	chatActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_action_duration_seconds",
			Help:    "Client action handling latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	broadcastDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broadcast_deliveries_total",
			Help: "Room events enqueued to subscriber connections.",
		},
		[]string{"event"},
	)
	broadcastDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_broadcast_dropped_connections_total",
			Help: "Connections dropped because their send queue was full.",
		},
	)
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_cache_lookups_total",
			Help: "Fact cache lookups by namespace and result.",
		},
		[]string{"namespace", "result"},
	)
	membershipFailClosedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_membership_fail_closed_total",
			Help: "Membership checks denied because the membership store failed.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcClientHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		chatActionsTotal,
		chatActionDuration,
		broadcastDeliveriesTotal,
		broadcastDropsTotal,
		cacheLookupsTotal,
		membershipFailClosedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCClientMetricsUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		statusInfo := status.Convert(err)
		service, name := splitFullMethod(method)
		grpcClientHandledTotal.WithLabelValues(service, name, statusInfo.Code().String()).Inc()
		return err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func ObserveAction(action, outcome string, elapsed time.Duration) {
	chatActionsTotal.WithLabelValues(action, outcome).Inc()
	chatActionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func AddBroadcastDeliveries(event string, n int) {
	broadcastDeliveriesTotal.WithLabelValues(event).Add(float64(n))
}

func IncBroadcastDrop() {
	broadcastDropsTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

// Recorder adapts the package counters to the cache and membership hooks.
type Recorder struct{}

func (Recorder) CacheHit(namespace string) {
	cacheLookupsTotal.WithLabelValues(namespace, "hit").Inc()
}

func (Recorder) CacheMiss(namespace string) {
	cacheLookupsTotal.WithLabelValues(namespace, "miss").Inc()
}

func (Recorder) MembershipCheckFailed() {
	membershipFailClosedTotal.Inc()
}
