package stats

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/gateway"
	"github.com/xaenox/command-center/internal/storage"
)

var (
	threadsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "command_center_chat_threads",
		Help: "Number of chat threads in the store.",
	})
	messagesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "command_center_chat_messages",
		Help: "Number of chat messages in the store.",
	})
	uploadsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "command_center_file_uploads",
		Help: "Number of recorded file uploads.",
	})
	gatewayPingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "command_center_gateway_ping_seconds",
		Help: "Latency of the last gateway reachability probe.",
	})
	gatewayUpGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "command_center_gateway_up",
		Help: "Whether the completions gateway answered the last probe.",
	})
)

// Snapshot is one point-in-time health reading.
type Snapshot struct {
	ChatThreads   int64     `json:"chatThreads"`
	ChatMessages  int64     `json:"chatMessages"`
	FileUploads   int64     `json:"fileUploads"`
	GatewayPingMs int64     `json:"gatewayPingMs"`
	GatewayOnline bool      `json:"gatewayOnline"`
	Status        string    `json:"status"`
	CollectedAt   time.Time `json:"collectedAt"`
}

// Collector periodically snapshots store row counts and gateway
// reachability, and mirrors them into Prometheus gauges.
type Collector struct {
	store   storage.Storage
	gateway *gateway.Client
	logger  *zap.Logger

	mu     sync.RWMutex
	latest Snapshot

	cron *cron.Cron
}

func NewCollector(store storage.Storage, gw *gateway.Client, logger *zap.Logger) *Collector {
	return &Collector{
		store:   store,
		gateway: gw,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start schedules periodic collection, in addition to one immediate run.
func (c *Collector) Start(schedule string) error {
	c.Collect(context.Background())

	_, err := c.cron.AddFunc(schedule, func() {
		c.Collect(context.Background())
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

func (c *Collector) Stop() {
	c.cron.Stop()
}

// Collect runs one snapshot now.
func (c *Collector) Collect(ctx context.Context) {
	counts, err := c.store.Stats(ctx)
	if err != nil {
		c.logger.Error("Failed to collect store stats", zap.Error(err))
		return
	}

	ping, online := c.gateway.Ping(ctx)

	snapshot := Snapshot{
		ChatThreads:   counts.Threads,
		ChatMessages:  counts.Messages,
		FileUploads:   counts.Uploads,
		GatewayPingMs: ping.Milliseconds(),
		GatewayOnline: online,
		Status:        "healthy",
		CollectedAt:   time.Now(),
	}
	if !online {
		snapshot.Status = "degraded"
	}

	threadsGauge.Set(float64(counts.Threads))
	messagesGauge.Set(float64(counts.Messages))
	uploadsGauge.Set(float64(counts.Uploads))
	gatewayPingGauge.Set(ping.Seconds())
	if online {
		gatewayUpGauge.Set(1)
	} else {
		gatewayUpGauge.Set(0)
	}

	c.mu.Lock()
	c.latest = snapshot
	c.mu.Unlock()
}

// Latest returns the most recent snapshot.
func (c *Collector) Latest() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}
