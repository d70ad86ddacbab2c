package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/veesix-networks/tpc/pkg/component"
	"github.com/veesix-networks/tpc/pkg/config"
	"github.com/veesix-networks/tpc/pkg/events"
	"github.com/veesix-networks/tpc/pkg/logger"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/version"
	"github.com/veesix-networks/tpc/plugins/exporter/prometheus/metrics"
)

func init() {
	component.Register(Namespace, New)
}

type Status struct {
	State         string `json:"state"`
	ListenAddress string `json:"listen_address"`
	ServerRunning bool   `json:"server_running"`
}

type Component struct {
	*component.Base
	logger        *slog.Logger
	eventBus      events.Bus
	addr          string
	registry      *prometheus.Registry
	counters      *metrics.Counters
	subs          []events.Subscription
	server        *http.Server
	listener      net.Listener
	mu            sync.RWMutex
	serverRunning bool
}

func New(deps component.Dependencies) (component.Component, error) {
	pluginCfg, ok, err := config.PluginConfig[Config](deps.Config, Namespace)
	if err != nil {
		return nil, err
	}
	if !ok || !pluginCfg.Enabled {
		return nil, nil
	}

	addr := DefaultListenAddress
	if pluginCfg.ListenAddress != "" {
		addr = pluginCfg.ListenAddress
	}

	c := newComponent(deps.EventBus, addr)

	if deps.Southbound != nil {
		app := models.NewAppID(deps.Config.App.Name)
		c.registry.MustRegister(metrics.NewDeviceCollector(deps.Southbound, app, deps.Config.Southbound.RPCTimeout, c.logger))
	}

	return c, nil
}

func newComponent(bus events.Bus, addr string) *Component {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "tpc_build_info",
			Help:        "Build metadata of the running tpc binary.",
			ConstLabels: prometheus.Labels{"version": version.Version, "commit": version.Commit},
		}, func() float64 { return 1 }),
	)

	counters := metrics.NewCounters()
	registry.MustRegister(counters)

	return &Component{
		Base:     component.NewBase(Namespace),
		logger:   logger.Get(logger.Exporter),
		eventBus: bus,
		addr:     addr,
		registry: registry,
		counters: counters,
	}
}

func (c *Component) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return c.addr
}

func (c *Component) GetStatus() *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := "stopped"
	if c.serverRunning {
		state = "running"
	}

	return &Status{
		State:         state,
		ListenAddress: c.addr,
		ServerRunning: c.serverRunning,
	}
}

func (c *Component) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.GetStatus()); err != nil {
		c.logger.Debug("Write status", "error", err)
	}
}

func (c *Component) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /status", c.handleStatus)
	return mux
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting Prometheus exporter", "addr", c.addr)

	if c.eventBus != nil {
		for _, topic := range c.counters.Topics() {
			c.subs = append(c.subs, c.eventBus.Subscribe(topic, c.counters.Observe))
		}
	}

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		c.unsubscribe()
		return fmt.Errorf("listen on %s: %w", c.addr, err)
	}

	c.mu.Lock()
	c.listener = ln
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.serverRunning = true
	c.mu.Unlock()

	c.Go(c.serve)

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping Prometheus exporter")

	c.unsubscribe()

	c.mu.RLock()
	server := c.server
	c.mu.RUnlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Prometheus HTTP server shutdown", "error", err)
		}
	}

	c.mu.Lock()
	c.serverRunning = false
	c.mu.Unlock()

	c.StopContext()
	return nil
}

func (c *Component) unsubscribe() {
	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
}

func (c *Component) serve() {
	c.mu.RLock()
	server, ln := c.server, c.listener
	c.mu.RUnlock()

	c.logger.Info("Prometheus HTTP server listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		c.logger.Error("Prometheus HTTP server error", "error", err)
		c.mu.Lock()
		c.serverRunning = false
		c.mu.Unlock()
	}
}
