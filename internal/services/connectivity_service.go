package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/signage-agent/internal/constants"
	"github.com/benmeehan/signage-agent/internal/state_managers"
	"github.com/benmeehan/signage-agent/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/net"
)

// ConnectivityConfig holds the reachability settings.
type ConnectivityConfig struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	ProbeURLs    []string
	Workers      int
}

// InterfaceLister returns the network interfaces of the host.
type InterfaceLister func() ([]net.InterfaceStat, error)

// ConnectivityService tracks whether the device is online. It combines the
// interface state reported by the OS with HEAD probes against known URLs.
type ConnectivityService struct {
	Config     ConnectivityConfig
	Client     *http.Client
	Interfaces InterfaceLister
	State      *state_managers.EngineStateStore
	Logger     zerolog.Logger

	online atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectivityService initializes a new ConnectivityService. state may be nil.
func NewConnectivityService(config ConnectivityConfig, state *state_managers.EngineStateStore, logger zerolog.Logger) *ConnectivityService {
	if config.Interval <= 0 {
		config.Interval = constants.DefaultConnectivityInterval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = constants.DefaultProbeTimeout
	}

	c := &ConnectivityService{
		Config:     config,
		Client:     &http.Client{},
		Interfaces: listInterfaces,
		State:      state,
		Logger:     logger,
	}
	c.online.Store(true)
	return c
}

func listInterfaces() ([]net.InterfaceStat, error) {
	return net.Interfaces()
}

// Start launches the periodic probe loop.
func (c *ConnectivityService) Start() error {
	if c.ctx != nil {
		c.Logger.Warn().Msg("ConnectivityService is already running")
		return errors.New("connectivity service is already running")
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runProbeLoop(c.ctx)
	}()

	c.Logger.Info().Dur("interval", c.Config.Interval).Strs("probe_urls", c.Config.ProbeURLs).
		Msg("ConnectivityService started successfully")
	return nil
}

// Stop stops the probe loop.
func (c *ConnectivityService) Stop() error {
	if c.ctx == nil {
		c.Logger.Warn().Msg("ConnectivityService is not running")
		return errors.New("connectivity service is not running")
	}

	c.cancel()
	c.wg.Wait()

	c.ctx = nil
	c.cancel = nil

	c.Logger.Info().Msg("ConnectivityService stopped successfully")
	return nil
}

// IsOnline returns the result of the last check.
func (c *ConnectivityService) IsOnline() bool {
	return c.online.Load()
}

// Probe checks connectivity now and records the result.
func (c *ConnectivityService) Probe(ctx context.Context) bool {
	online := c.interfaceUp() && c.reachable(ctx)
	c.setOnline(online)
	return online
}

func (c *ConnectivityService) runProbeLoop(ctx context.Context) {
	c.Probe(ctx)

	ticker := time.NewTicker(c.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Probe(ctx)
		case <-ctx.Done():
			c.Logger.Info().Msg("ConnectivityService stopping gracefully")
			return
		}
	}
}

// interfaceUp reports whether any non-loopback interface is up with an address.
// If the interfaces cannot be listed the check is skipped.
func (c *ConnectivityService) interfaceUp() bool {
	interfaces, err := c.Interfaces()
	if err != nil {
		c.Logger.Debug().Err(err).Msg("Failed to list network interfaces")
		return true
	}

	for _, iface := range interfaces {
		up, loopback := false, false
		for _, flag := range iface.Flags {
			switch flag {
			case "up":
				up = true
			case "loopback":
				loopback = true
			}
		}
		if up && !loopback && len(iface.Addrs) > 0 {
			return true
		}
	}
	return false
}

// reachable sends HEAD requests to all probe URLs concurrently. Any response
// below 500 counts as reachable. With no URLs configured it returns true.
func (c *ConnectivityService) reachable(ctx context.Context) bool {
	urls := c.Config.ProbeURLs
	if len(urls) == 0 {
		return true
	}

	workers := c.Config.Workers
	if workers <= 0 || workers > len(urls) {
		workers = len(urls)
	}

	pool := utils.NewWorkerPool(ctx, workers)
	var ok atomic.Bool

	for _, url := range urls {
		url := url
		pool.Submit(url, func(ctx context.Context) {
			if c.head(ctx, url) {
				ok.Store(true)
				pool.Cancel()
			}
		})
	}
	pool.Shutdown()

	return ok.Load()
}

func (c *ConnectivityService) head(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.Config.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		c.Logger.Warn().Err(err).Str("url", url).Msg("Invalid probe URL")
		return false
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		c.Logger.Debug().Err(err).Str("url", url).Msg("Reachability probe failed")
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

func (c *ConnectivityService) setOnline(online bool) {
	if c.online.Swap(online) == online {
		return
	}

	if online {
		c.Logger.Info().Msg("Device is back online")
	} else {
		c.Logger.Warn().Msg("Device went offline")
	}
	if c.State != nil {
		c.State.Update(func(st *state_managers.EngineState) { st.Online = online })
	}
}
