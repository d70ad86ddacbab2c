package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/southbound"
)

// DeviceCollector reads southbound state at scrape time.
type DeviceCollector struct {
	sb      southbound.Southbound
	app     models.AppID
	logger  *slog.Logger
	timeout time.Duration

	available   *prometheus.Desc
	master      *prometheus.Desc
	flowEntries *prometheus.Desc
}

func NewDeviceCollector(sb southbound.Southbound, app models.AppID, timeout time.Duration, logger *slog.Logger) *DeviceCollector {
	return &DeviceCollector{
		sb:      sb,
		app:     app,
		logger:  logger,
		timeout: timeout,
		available: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "devices_available"),
			"Devices currently reachable through the southbound.",
			nil, nil,
		),
		master: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "device_master"),
			"1 when this instance masters the device.",
			[]string{"device"}, nil,
		),
		flowEntries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "flow_entries"),
			"Flow entries owned by tpc, by device.",
			[]string{"device"}, nil,
		),
	}
}

func (c *DeviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.available
	ch <- c.master
	ch <- c.flowEntries
}

func (c *DeviceCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	devices, err := c.sb.AvailableDevices(ctx)
	if err != nil {
		c.logger.Error("Failed to list devices", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(len(devices)))

	perDevice := make(map[models.DeviceID]int, len(devices))
	for _, d := range devices {
		perDevice[d] = 0

		master := 0.0
		if c.sb.IsLocalMaster(d) {
			master = 1
		}
		ch <- prometheus.MustNewConstMetric(c.master, prometheus.GaugeValue, master, string(d))
	}

	entries, err := c.sb.FlowEntriesByApp(ctx, c.app)
	if err != nil {
		c.logger.Error("Failed to read flow entries", "error", err)
		return
	}
	for _, e := range entries {
		if _, ok := perDevice[e.DeviceID]; ok {
			perDevice[e.DeviceID]++
		}
	}

	for _, d := range devices {
		ch <- prometheus.MustNewConstMetric(c.flowEntries, prometheus.GaugeValue, float64(perDevice[d]), string(d))
	}
}
