// Package metrics builds the device snapshot merged into begin_session and
// crash requests.
package metrics

import (
	"os"
	"runtime"
	"strings"

	"github.com/nimogit/beacon/internal/request"
)

// Provider produces metric snapshots. The snapshot is consumed verbatim by
// the collector, so keys follow its underscore convention.
type Provider struct {
	appVersion string
	overrides  map[string]string
}

// NewProvider creates a provider. Overrides are merged last, so callers can
// replace or extend any computed metric.
func NewProvider(appVersion string, overrides map[string]string) *Provider {
	return &Provider{appVersion: appVersion, overrides: overrides}
}

// Snapshot returns the current device metrics.
func (p *Provider) Snapshot() request.Metrics {
	m := request.Metrics{
		"_os":  runtime.GOOS,
		"_cpu": runtime.GOARCH,
	}

	if v := osVersion(); v != "" {
		m["_os_version"] = v
	}
	if p.appVersion != "" {
		m["_app_version"] = p.appVersion
	}

	for k, v := range p.overrides {
		m[k] = v
	}

	return m
}

// AppVersion returns the configured application version.
func (p *Provider) AppVersion() string {
	if v, ok := p.overrides["_app_version"]; ok {
		return v
	}
	return p.appVersion
}

// OS returns the reported operating system name.
func (p *Provider) OS() string {
	if v, ok := p.overrides["_os"]; ok {
		return v
	}
	return runtime.GOOS
}

// OSVersion returns the reported operating system version.
func (p *Provider) OSVersion() string {
	if v, ok := p.overrides["_os_version"]; ok {
		return v
	}
	return osVersion()
}

// osVersion is best-effort: the kernel release on Linux, empty elsewhere.
func osVersion() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	raw, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
