package reachability

import (
	"errors"
	"log/slog"

	"github.com/netreach/prt/internal/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// Config wires a Coordinator to its external collaborators (§6). Logger,
// Transport and PacketBuilder are required. A nil Clock defaults to the real
// clock; a nil MetricsRegistry registers the metrics on the default
// Prometheus registerer.
type Config struct {
	Logger          *slog.Logger
	Clock           clock.Clock
	Transport       Transport
	PacketBuilder   PacketBuilder
	MetricsRegistry *prometheus.Registry
}

func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Transport == nil {
		return errors.New("transport is required")
	}
	if c.PacketBuilder == nil {
		return errors.New("packet builder is required")
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return nil
}
