// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for the scanforge application.
// It aggregates logging and scan-default configuration loaded by Manager.
type Config struct {
	Log  LogConfig  `description:"Logging configuration" koanf:"log"`
	Scan ScanConfig `description:"Operator defaults for scan parameters" koanf:"scan"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level (debug, info, warn, error)" koanf:"level"`
	Format string `description:"Log format: console | json (stored only; logging setup does not read it)" koanf:"format"`
	File   string `description:"Log file path (stored only; logging setup does not read it)" koanf:"file"`
}

// ScanConfig holds operator-supplied defaults for the scheduler and adaptive
// controller. These are the "effective parameters" spec.md §4.3 falls back
// to when a host's network-class profile is still cold.
type ScanConfig struct {
	TimeoutMS         int64         `description:"Default per-probe timeout in milliseconds" koanf:"timeout_ms"`
	RateMS            int64         `description:"Default inter-probe pacing in milliseconds" koanf:"rate_ms"`
	Parallelism       int           `description:"Default per-host concurrent probe count" koanf:"parallelism"`
	ParallelHosts     int           `description:"Default number of hosts scanned concurrently" koanf:"parallel_hosts"`
	LearningRate      float64       `description:"Adaptive controller EWMA learning rate" koanf:"learning_rate"`
	MinScansToAdapt   int           `description:"Folds required before a profile's derived params are trusted" koanf:"min_scans_to_adapt"`
	AdaptiveStatePath string        `description:"Path to the persisted adaptive-learning-state JSON file" koanf:"adaptive_state_path"`
	ServiceID         bool          `description:"Service identification toggle (stored only; Open ports are always identified)" koanf:"service_id"`
	DiscoveryTimeout  time.Duration `description:"ICMP host-discovery timeout (stored only; discovery uses its own per-packet timeout)" koanf:"discovery_timeout"`
}
