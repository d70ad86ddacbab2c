package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/veesix-networks/tpc/pkg/component"
	"github.com/veesix-networks/tpc/pkg/config"
	"github.com/veesix-networks/tpc/pkg/logger"
	"github.com/veesix-networks/tpc/pkg/northbound"
)

const BasePath = "/tpc"

const maxBodyBytes = 1 << 20

type Component struct {
	*component.Base
	logger       *slog.Logger
	adapter      *northbound.Adapter
	addr         string
	sliceControl bool
	server       *http.Server
	listener     net.Listener
	mu           sync.RWMutex
	running      bool
}

func NewComponent(deps component.Dependencies) (component.Component, error) {
	pluginCfg, ok, err := config.PluginConfig[Config](deps.Config, Namespace)
	if err != nil {
		return nil, err
	}
	if !ok || !pluginCfg.Enabled {
		return nil, nil
	}

	if deps.Service == nil {
		return nil, fmt.Errorf("%s requires a policy service", Namespace)
	}

	addr := DefaultListenAddress
	if pluginCfg.ListenAddress != "" {
		addr = pluginCfg.ListenAddress
	}

	return New(deps.Service, addr, deps.Config.Features.SliceControlEnabled()), nil
}

func New(service northbound.Service, addr string, sliceControl bool) *Component {
	return &Component{
		Base:         component.NewBase(Namespace),
		logger:       logger.Get(logger.Northbound),
		adapter:      northbound.NewAdapter(service),
		addr:         addr,
		sliceControl: sliceControl,
	}
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting API server", "addr", c.addr)

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.addr, err)
	}

	c.mu.Lock()
	c.listener = ln
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.running = true
	c.mu.Unlock()

	c.Go(c.serve)

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping API server")

	c.mu.RLock()
	server := c.server
	c.mu.RUnlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("API server shutdown", "error", err)
		}
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.StopContext()
	return nil
}

// Addr returns the bound address once started.
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
	if c.running {
		state = "running"
	}

	return &Status{
		State:         state,
		ListenAddress: c.addr,
		Running:       c.running,
	}
}

func (c *Component) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+BasePath+"/flush", c.handleFlush)
	mux.HandleFunc("POST "+BasePath+"/add_attack", c.handleAddAttack)
	mux.HandleFunc("GET "+BasePath+"/openapi.json", c.handleOpenAPI)
	mux.HandleFunc("GET "+BasePath+"/status", c.handleStatus)

	if c.sliceControl {
		mux.HandleFunc("GET "+BasePath+"/turn_on_checking", c.handleTurnOnChecking)
		mux.HandleFunc("GET "+BasePath+"/turn_off_checking", c.handleTurnOffChecking)
		mux.HandleFunc("POST "+BasePath+"/add_slice_id", c.handleAddSliceID)
		mux.HandleFunc("POST "+BasePath+"/add_slice_qos", c.handleAddSliceQoS)
	}

	return mux
}

func (c *Component) serve() {
	c.mu.RLock()
	server, ln := c.server, c.listener
	c.mu.RUnlock()

	c.logger.Info("API server listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		c.logger.Error("API server error", "error", err)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}
}
