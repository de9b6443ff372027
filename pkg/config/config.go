// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a new Manager, reusing the global Koanf instance.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{koanfInstance: k}
}

// DefaultConfig returns a Config populated with hardcoded default values,
// matching spec.md §5's resource limits (per-host parallelism 50, global
// host parallelism 10) and §4.4's learning_rate default of 0.1.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   "",
		},
		Scan: ScanConfig{
			TimeoutMS:         1000,
			RateMS:            0,
			Parallelism:       50,
			ParallelHosts:     10,
			LearningRate:      0.1,
			MinScansToAdapt:   5,
			AdaptiveStatePath: "",
			ServiceID:         true,
			DiscoveryTimeout:  3 * time.Second,
		},
	}
}

// Load loads configuration from, in increasing precedence: hardcoded
// defaults, an optional YAML config file, environment variables prefixed
// SCANFORGE_, and CLI flags. This mirrors the teacher's provider chain in
// pkg/config/config.go, adapted with env and file providers wired in.
func (m *Manager) Load(flags *pflag.FlagSet, configFilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	defaultCfgMap := DefaultConfigAsMap()
	if err := m.koanfInstance.Load(confmap.Provider(defaultCfgMap, "."), nil); err != nil {
		return fmt.Errorf("error loading hardcoded defaults into koanf: %w", err)
	}

	if configFilePath != "" {
		if err := m.koanfInstance.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return fmt.Errorf("error loading config file %q: %w", configFilePath, err)
		}
	}

	if err := m.koanfInstance.Load(env.ProviderWithValue("SCANFORGE_", ".", envTransform), nil); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	if flags != nil {
		if err := m.koanfInstance.Load(posflag.Provider(flags, ".", m.koanfInstance), nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}

		debugFlag := flags.Lookup("debug")
		if debugFlag != nil && debugFlag.Value.String() == "true" {
			_ = m.koanfInstance.Set("log.level", "debug")
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.currentConfig = newCfg

	return nil
}

// envTransform converts SCANFORGE_SCAN_TIMEOUT_MS -> scan.timeout_ms. The
// env provider hands over the full variable name, prefix included.
func envTransform(key, value string) (string, interface{}) {
	return koanfKeyFromEnv(strings.TrimPrefix(key, "SCANFORGE_")), value
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// DefaultConfigAsMap converts DefaultConfig into a flat map for koanf's
// confmap.Provider, the same manual-but-explicit approach as the teacher.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"scan.timeout_ms":          def.Scan.TimeoutMS,
		"scan.rate_ms":             def.Scan.RateMS,
		"scan.parallelism":         def.Scan.Parallelism,
		"scan.parallel_hosts":      def.Scan.ParallelHosts,
		"scan.learning_rate":       def.Scan.LearningRate,
		"scan.min_scans_to_adapt":  def.Scan.MinScansToAdapt,
		"scan.adaptive_state_path": def.Scan.AdaptiveStatePath,
		"scan.service_id":          def.Scan.ServiceID,
		"scan.discovery_timeout":   def.Scan.DiscoveryTimeout.String(),
	}
}

// BindFlags defines command-line flags that participate in configuration
// precedence via posflag.Provider.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
}

// koanfKeyFromEnv converts an env var suffix (after envTransform strips the
// SCANFORGE_ prefix) like "SCAN_TIMEOUT_MS" into "scan.timeout_ms": the
// first underscore separates the section from the field, later ones stay.
func koanfKeyFromEnv(key string) string {
	lower := make([]byte, 0, len(key))
	sectionDone := false
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '_' && !sectionDone:
			lower = append(lower, '.')
			sectionDone = true
		case c >= 'A' && c <= 'Z':
			lower = append(lower, c+('a'-'A'))
		default:
			lower = append(lower, c)
		}
	}
	return string(lower)
}
