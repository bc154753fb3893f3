package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultDiscoveryTimeout bounds the probe of a single candidate host.
const DefaultDiscoveryTimeout = 500 * time.Millisecond

// DiscoveryConfig describes the address range to sweep when the
// controller's address is not known. The controller runs a WiFi access
// point and hands out addresses from a small DHCP pool, so the sweep
// only needs to cover the first few hosts of the subnet.
type DiscoveryConfig struct {
	// Subnet is the first three octets, e.g. "192.168.4".
	Subnet string

	// FirstHost and LastHost bound the final octet, inclusive.
	FirstHost int
	LastHost  int

	// ProbeTimeout bounds each candidate probe.
	// Zero means DefaultDiscoveryTimeout.
	ProbeTimeout time.Duration
}

// Discover sweeps the configured host range probing each candidate's
// status endpoint, returning the base URL of the first host that
// answers as a controller. Returns ErrNotFound when the sweep
// completes without a responder.
func Discover(ctx context.Context, cfg DiscoveryConfig, logger Logger) (string, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}

	logger.Info("controller discovery started",
		"subnet", cfg.Subnet,
		"first_host", cfg.FirstHost,
		"last_host", cfg.LastHost,
	)

	candidates := make([]string, 0, cfg.LastHost-cfg.FirstHost+1)
	for host := cfg.FirstHost; host <= cfg.LastHost; host++ {
		candidates = append(candidates, fmt.Sprintf("http://%s.%d", cfg.Subnet, host))
	}

	return sweep(ctx, candidates, timeout, logger)
}

// sweep probes each candidate base URL in order and returns the first
// that answers as a controller.
func sweep(ctx context.Context, candidates []string, timeout time.Duration, logger Logger) (string, error) {
	client := &http.Client{Timeout: timeout}

	for _, baseURL := range candidates {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}

		status, err := probeURL(ctx, client, baseURL)
		if err != nil {
			logger.Debug("discovery probe failed", "base_url", baseURL, "error", err)
			continue
		}
		if !status.Online() {
			continue
		}

		logger.Info("controller discovered",
			"base_url", baseURL,
			"devices", status.Devices,
		)
		return baseURL, nil
	}

	return "", ErrNotFound
}
