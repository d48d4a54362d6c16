// Package config loads and saves the tornet policy configuration file.
//
// The same document may be written as YAML, JSON or HCL; the format is chosen
// by file extension. Every field is optional. Zero values mean "use the
// built-in default", except Count which is a pointer because 0 selects an
// unbounded rotation.
package config

// Config is the policy configuration file.
type Config struct {
	Interval      string          `yaml:"interval,omitempty" json:"interval,omitempty" hcl:"interval,optional"`
	Count         *int            `yaml:"count,omitempty" json:"count,omitempty" hcl:"count,optional"`
	Country       string          `yaml:"country,omitempty" json:"country,omitempty" hcl:"country,optional"`
	JSON          bool            `yaml:"json,omitempty" json:"json,omitempty" hcl:"json,optional"`
	Schedule      string          `yaml:"schedule,omitempty" json:"schedule,omitempty" hcl:"schedule,optional"`
	Cron          string          `yaml:"cron,omitempty" json:"cron,omitempty" hcl:"cron,optional"`
	ReapplyRegion bool            `yaml:"reapply_region,omitempty" json:"reapply_region,omitempty" hcl:"reapply_region,optional"`
	LogLevel      string          `yaml:"log_level,omitempty" json:"log_level,omitempty" hcl:"log_level,optional"`
	MetricsListen string          `yaml:"metrics_listen,omitempty" json:"metrics_listen,omitempty" hcl:"metrics_listen,optional"`
	Probe         *ProbeConfig    `yaml:"probe,omitempty" json:"probe,omitempty" hcl:"probe,block"`
	Firewall      *FirewallConfig `yaml:"firewall,omitempty" json:"firewall,omitempty" hcl:"firewall,block"`
}

// ProbeConfig overrides network probe endpoints and limits.
type ProbeConfig struct {
	// Timeout in seconds. Values above 10 are clamped by the prober.
	Timeout   int      `yaml:"timeout,omitempty" json:"timeout,omitempty" hcl:"timeout,optional"`
	SocksAddr string   `yaml:"socks_addr,omitempty" json:"socks_addr,omitempty" hcl:"socks_addr,optional"`
	IPURL     string   `yaml:"ip_url,omitempty" json:"ip_url,omitempty" hcl:"ip_url,optional"`
	GeoURL    string   `yaml:"geo_url,omitempty" json:"geo_url,omitempty" hcl:"geo_url,optional"`
	InfoURL   string   `yaml:"info_url,omitempty" json:"info_url,omitempty" hcl:"info_url,optional"`
	LeakURLs  []string `yaml:"leak_urls,omitempty" json:"leak_urls,omitempty" hcl:"leak_urls,optional"`
}

// FirewallConfig selects and tunes the kill switch backend.
type FirewallConfig struct {
	// Backend is "iptables" (default) or "nftables".
	Backend    string   `yaml:"backend,omitempty" json:"backend,omitempty" hcl:"backend,optional"`
	SocksPort  int      `yaml:"socks_port,omitempty" json:"socks_port,omitempty" hcl:"socks_port,optional"`
	AllowCIDRs []string `yaml:"allow_cidrs,omitempty" json:"allow_cidrs,omitempty" hcl:"allow_cidrs,optional"`
}

// Default values applied when neither the file nor a flag sets them.
const (
	DefaultInterval = "60"
	DefaultCount    = 10
)

// CountOr returns the configured count or def when unset.
func (c *Config) CountOr(def int) int {
	if c == nil || c.Count == nil {
		return def
	}
	return *c.Count
}

// ProbeOrEmpty never returns nil.
func (c *Config) ProbeOrEmpty() ProbeConfig {
	if c == nil || c.Probe == nil {
		return ProbeConfig{}
	}
	return *c.Probe
}

// FirewallOrEmpty never returns nil.
func (c *Config) FirewallOrEmpty() FirewallConfig {
	if c == nil || c.Firewall == nil {
		return FirewallConfig{}
	}
	return *c.Firewall
}

// IntPtr is a helper for building configs in code.
func IntPtr(v int) *int { return &v }
