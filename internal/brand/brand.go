// Package brand provides centralized branding constants for tornet.
//
// The brand identity is loaded from brand.json at compile time via go:embed,
// so scripts and docs generators can read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name            string `json:"name"`
	LowerName       string `json:"lowerName"`
	Vendor          string `json:"vendor"`
	Website         string `json:"website"`
	Repository      string `json:"repository"`
	Description     string `json:"description"`
	Tagline         string `json:"tagline"`
	ConfigEnvPrefix string `json:"configEnvPrefix"`
	DefaultStateDir string `json:"defaultStateDir"`
	DaemonName      string `json:"daemonName"`
	ServiceName     string `json:"serviceName"`
	ConfigFileName  string `json:"configFileName"`
	EnvFileName     string `json:"envFileName"`
	LogFileName     string `json:"logFileName"`
	TorrcFileName   string `json:"torrcFileName"`
	RegionFileName  string `json:"regionFileName"`
	SocksAddr       string `json:"socksAddr"`
	Copyright       string `json:"copyright"`
	License         string `json:"license"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultStateDir = b.DefaultStateDir
	DaemonName = b.DaemonName
	ServiceName = b.ServiceName
	ConfigFileName = b.ConfigFileName
	EnvFileName = b.EnvFileName
	LogFileName = b.LogFileName
	TorrcFileName = b.TorrcFileName
	RegionFileName = b.RegionFileName
	SocksAddr = b.SocksAddr
}

// Exported variables for convenience
var (
	Name            string
	LowerName       string
	Description     string
	ConfigEnvPrefix string
	DefaultStateDir string
	DaemonName      string
	ServiceName     string
	ConfigFileName  string
	EnvFileName     string
	LogFileName     string
	TorrcFileName   string
	RegionFileName  string
	SocksAddr       string

	// Version is set at build time via -ldflags
	Version   = "2.2.1"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// UserAgent returns a User-Agent string for HTTP requests
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return Name + "/" + version
}

// GetStateDir returns the state directory, checking env vars first.
// Priority: TORNET_STATE_DIR > TORNET_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_STATE_DIR"); dir != "" {
		return expandHome(dir)
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(expandHome(prefix), "state")
	}
	return expandHome(DefaultStateDir)
}

// Paths holds every file location tornet reads or writes.
type Paths struct {
	StateDir   string
	ConfigFile string
	EnvFile    string
	LogFile    string
	TorrcFile  string
	RegionFile string
}

// PathsIn returns the standard file layout rooted at dir.
func PathsIn(dir string) Paths {
	return Paths{
		StateDir:   dir,
		ConfigFile: filepath.Join(dir, ConfigFileName),
		EnvFile:    filepath.Join(dir, EnvFileName),
		LogFile:    filepath.Join(dir, LogFileName),
		TorrcFile:  filepath.Join(dir, TorrcFileName),
		RegionFile: filepath.Join(dir, RegionFileName),
	}
}

// DefaultPaths returns the file layout under GetStateDir.
func DefaultPaths() Paths {
	return PathsIn(GetStateDir())
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
