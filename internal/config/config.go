package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval       = 5 * time.Minute
	DefaultCheckTimeout   = 10 * time.Second
	DefaultRecoveryRuns   = 3
	DefaultGateMinScore   = 90
	DefaultRetentionDays  = 30
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond

	DefaultNotifyCooldown   = 5 * time.Minute
	DefaultHealCooldown     = 15 * time.Minute
	DefaultEscalateCooldown = 10 * time.Minute
)

// Config is the top-level engine configuration. Fields map 1:1 to
// config.example.yaml. Durations are expressed as integer seconds in the
// file and exposed as time.Duration through accessor methods.
type Config struct {
	// Target names the monitored system. Runs for the same target are
	// mutually exclusive.
	Target string `yaml:"target"`

	// IntervalSeconds controls the cadence of scheduled runs in daemon mode.
	IntervalSeconds int `yaml:"interval_seconds"`

	// CheckTimeoutSeconds bounds each individual collector.
	CheckTimeoutSeconds int `yaml:"check_timeout_seconds"`

	Checks    ChecksConfig     `yaml:"checks"`
	Rules     []ThresholdRule  `yaml:"rules"`
	Policy    PolicyConfig     `yaml:"policy"`
	Actions   ActionsConfig    `yaml:"actions"`
	Heal      HealConfig       `yaml:"heal"`
	Notifiers []NotifierConfig `yaml:"notifiers"`
	Storage   StorageConfig    `yaml:"storage"`
	HTTP      HTTPConfig       `yaml:"http"`
}

// Interval returns the scheduled run cadence.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// CheckTimeout returns the per-collector timeout.
func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutSeconds) * time.Second
}

// ChecksConfig enables and parameterises the built-in collectors.
type ChecksConfig struct {
	Resource  ResourceConfig  `yaml:"resource"`
	Backup    BackupConfig    `yaml:"backup"`
	Integrity IntegrityConfig `yaml:"integrity"`
	Security  SecurityConfig  `yaml:"security"`
	Probe     ProbeConfig     `yaml:"probe"`
}

// ResourceConfig holds utilisation thresholds for the resource collector.
// Percentages are 0–100.
type ResourceConfig struct {
	Enabled bool `yaml:"enabled"`

	// DiskPath is the mount point whose usage is measured.
	DiskPath string `yaml:"disk_path"`

	DiskWarnPct float64 `yaml:"disk_warn_pct"`
	DiskCritPct float64 `yaml:"disk_crit_pct"`
	MemWarnPct  float64 `yaml:"mem_warn_pct"`
	MemCritPct  float64 `yaml:"mem_crit_pct"`
	CPUWarnPct  float64 `yaml:"cpu_warn_pct"`
	CPUCritPct  float64 `yaml:"cpu_crit_pct"`
}

// BackupConfig holds the data-durability check settings.
type BackupConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir is the directory whose newest entry is taken as the last backup.
	Dir string `yaml:"dir"`

	// MaxAgeSeconds is the staleness limit for the newest backup.
	MaxAgeSeconds int `yaml:"max_age_seconds"`
}

// MaxAge returns the backup staleness limit.
func (b BackupConfig) MaxAge() time.Duration {
	return time.Duration(b.MaxAgeSeconds) * time.Second
}

// IntegrityConfig lists critical files and their expected checksums.
type IntegrityConfig struct {
	Enabled bool            `yaml:"enabled"`
	Files   []IntegrityFile `yaml:"files"`
}

// IntegrityFile pairs a path with its recorded SHA-256 digest (hex).
type IntegrityFile struct {
	Path   string `yaml:"path"`
	SHA256 string `yaml:"sha256"`
}

// SecurityConfig holds the security-posture check settings. The check
// scrapes a Prometheus text endpoint and sums the named metric family as
// the count of unresolved critical alerts.
type SecurityConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Metric   string `yaml:"metric"`
}

// ProbeConfig holds the performance probe settings.
type ProbeConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`

	// WarnLatencyMS and CritLatencyMS are the SLA boundaries in milliseconds.
	WarnLatencyMS int `yaml:"warn_latency_ms"`
	CritLatencyMS int `yaml:"crit_latency_ms"`
}

// WarnLatency returns the WARN SLA boundary.
func (p ProbeConfig) WarnLatency() time.Duration {
	return time.Duration(p.WarnLatencyMS) * time.Millisecond
}

// CritLatency returns the CRITICAL SLA boundary.
func (p ProbeConfig) CritLatency() time.Duration {
	return time.Duration(p.CritLatencyMS) * time.Millisecond
}

// ThresholdRule is one static override row. When a collector result matches
// ComponentPattern and Condition evaluates true against its metrics, the
// result is raised to at least Severity with at least Deduction points.
// Rules are read at startup and never mutated at runtime.
type ThresholdRule struct {
	// ComponentPattern matches collector IDs; "*" matches all, a trailing
	// "*" matches a prefix.
	ComponentPattern string `yaml:"component_pattern"`

	// Condition is an expression like "disk_used_pct > 95" evaluated
	// against the result's metrics map.
	Condition string `yaml:"condition"`

	Deduction int `yaml:"deduction"`

	// Severity is WARN or CRITICAL.
	Severity string `yaml:"severity"`
}

// PolicyConfig parameterises the policy evaluator.
type PolicyConfig struct {
	// HardComponents lists collector IDs whose CRITICAL result forces at
	// least incident level regardless of the composite score.
	HardComponents []string `yaml:"hard_components"`

	// RecoveryRuns is the number of consecutive runs with score >= 70
	// required before an open incident auto-closes.
	RecoveryRuns int `yaml:"recovery_runs"`

	// GateMinScore is the minimum score for the pre-deployment gate to
	// allow a deploy.
	GateMinScore int `yaml:"gate_min_score"`

	// Notification recipients per band.
	OnCall string `yaml:"on_call"`
	Lead   string `yaml:"lead"`
	Team   string `yaml:"team"`
}

// ActionsConfig holds per-action-type cooldown and retry settings.
type ActionsConfig struct {
	Notify   ActionPolicy `yaml:"notify"`
	AutoHeal ActionPolicy `yaml:"auto_heal"`
	Escalate ActionPolicy `yaml:"escalate"`
}

// ActionPolicy bounds one action type: how often it may fire and how its
// execution is retried.
type ActionPolicy struct {
	CooldownSeconds int `yaml:"cooldown_seconds"`

	// MaxAttempts is the total number of execution attempts before the
	// action is downgraded to a notification.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoffMS is the first retry delay; subsequent delays grow
	// exponentially.
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
}

// Cooldown returns the minimum interval between firings.
func (a ActionPolicy) Cooldown() time.Duration {
	return time.Duration(a.CooldownSeconds) * time.Second
}

// InitialBackoff returns the first retry delay.
func (a ActionPolicy) InitialBackoff() time.Duration {
	return time.Duration(a.InitialBackoffMS) * time.Millisecond
}

// HealConfig is the whitelist of pre-approved remediation procedures.
// Only procedures listed here may ever be executed by AUTO_HEAL.
type HealConfig struct {
	Procedures []HealProcedure `yaml:"procedures"`
}

// HealProcedure is one idempotent, reversible remediation bound to a
// component.
type HealProcedure struct {
	// ID is the procedure identifier used as the AUTO_HEAL action target.
	ID string `yaml:"id"`

	// Component is the collector whose degradation this procedure addresses.
	Component string `yaml:"component"`

	// Command is the argv executed when the procedure runs.
	Command []string `yaml:"command"`
}

// NotifierConfig defines one notification delivery target.
type NotifierConfig struct {
	// Type is one of: slack | teams | webhook | log.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook
	// URL. Resolved at send time, never stored in the file.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (n NotifierConfig) URL() string {
	if n.URLEnv == "" {
		return ""
	}
	return os.Getenv(n.URLEnv)
}

// StorageConfig configures the SQLite history store.
type StorageConfig struct {
	// Path is the filesystem path of the database file.
	Path string `yaml:"path"`

	// RetentionDays is how long reports are kept before pruning.
	RetentionDays int `yaml:"retention_days"`
}

// Retention returns the rolling retention window.
func (s StorageConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// HTTPConfig configures the optional read-only status API in daemon mode.
type HTTPConfig struct {
	// Listen is the address the API binds to, e.g. ":8080".
	// Empty disables the API.
	Listen string `yaml:"listen"`
}

// Load reads and parses the YAML config file at path. Missing optional
// fields are filled with defaults. A parse or validation error is fatal to
// the caller by contract: the engine must refuse to start rather than run
// with ambiguous thresholds.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Target:              "local",
		IntervalSeconds:     int(DefaultInterval / time.Second),
		CheckTimeoutSeconds: int(DefaultCheckTimeout / time.Second),
		Policy: PolicyConfig{
			RecoveryRuns: DefaultRecoveryRuns,
			GateMinScore: DefaultGateMinScore,
			OnCall:       "on-call",
			Lead:         "lead",
			Team:         "team",
		},
		Actions: ActionsConfig{
			Notify:   defaultActionPolicy(DefaultNotifyCooldown),
			AutoHeal: defaultActionPolicy(DefaultHealCooldown),
			Escalate: defaultActionPolicy(DefaultEscalateCooldown),
		},
		Storage: StorageConfig{
			Path:          "vigil.db",
			RetentionDays: DefaultRetentionDays,
		},
	}
}

func defaultActionPolicy(cooldown time.Duration) ActionPolicy {
	return ActionPolicy{
		CooldownSeconds:  int(cooldown / time.Second),
		MaxAttempts:      DefaultMaxAttempts,
		InitialBackoffMS: int(DefaultInitialBackoff / time.Millisecond),
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Target == "" {
		return fmt.Errorf("target is required")
	}
	if cfg.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive")
	}
	if cfg.CheckTimeoutSeconds <= 0 {
		return fmt.Errorf("check_timeout_seconds must be positive")
	}
	if cfg.Policy.RecoveryRuns <= 0 {
		return fmt.Errorf("policy.recovery_runs must be positive")
	}
	if cfg.Policy.GateMinScore < 0 || cfg.Policy.GateMinScore > 100 {
		return fmt.Errorf("policy.gate_min_score must be in 0–100")
	}

	for i, r := range cfg.Rules {
		if r.ComponentPattern == "" {
			return fmt.Errorf("rules[%d]: component_pattern is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("rules[%d]: condition is required", i)
		}
		if r.Deduction < 0 {
			return fmt.Errorf("rules[%d]: deduction must not be negative", i)
		}
		switch r.Severity {
		case "WARN", "CRITICAL":
		default:
			return fmt.Errorf("rules[%d]: unknown severity %q", i, r.Severity)
		}
	}

	for _, ap := range []struct {
		name string
		p    ActionPolicy
	}{
		{"actions.notify", cfg.Actions.Notify},
		{"actions.auto_heal", cfg.Actions.AutoHeal},
		{"actions.escalate", cfg.Actions.Escalate},
	} {
		if ap.p.CooldownSeconds < 0 {
			return fmt.Errorf("%s.cooldown_seconds must not be negative", ap.name)
		}
		if ap.p.MaxAttempts <= 0 {
			return fmt.Errorf("%s.max_attempts must be positive", ap.name)
		}
	}

	seen := make(map[string]bool, len(cfg.Heal.Procedures))
	for i, p := range cfg.Heal.Procedures {
		if p.ID == "" {
			return fmt.Errorf("heal.procedures[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("heal.procedures[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.Component == "" {
			return fmt.Errorf("heal.procedures[%d] %q: component is required", i, p.ID)
		}
		if len(p.Command) == 0 {
			return fmt.Errorf("heal.procedures[%d] %q: command is required", i, p.ID)
		}
	}

	for i, n := range cfg.Notifiers {
		switch n.Type {
		case "slack", "teams", "webhook", "log":
		default:
			return fmt.Errorf("notifiers[%d]: unknown type %q", i, n.Type)
		}
		if n.Type != "log" && n.URLEnv == "" {
			return fmt.Errorf("notifiers[%d] %s: url_env is required", i, n.Type)
		}
	}

	if cfg.Checks.Backup.Enabled {
		if cfg.Checks.Backup.Dir == "" {
			return fmt.Errorf("checks.backup: dir is required")
		}
		if cfg.Checks.Backup.MaxAgeSeconds <= 0 {
			return fmt.Errorf("checks.backup: max_age_seconds must be positive")
		}
	}
	if cfg.Checks.Integrity.Enabled {
		for i, f := range cfg.Checks.Integrity.Files {
			if f.Path == "" || f.SHA256 == "" {
				return fmt.Errorf("checks.integrity.files[%d]: path and sha256 are required", i)
			}
		}
	}
	if cfg.Checks.Security.Enabled && cfg.Checks.Security.Endpoint == "" {
		return fmt.Errorf("checks.security: endpoint is required")
	}
	if cfg.Checks.Probe.Enabled {
		if cfg.Checks.Probe.URL == "" {
			return fmt.Errorf("checks.probe: url is required")
		}
		if cfg.Checks.Probe.CritLatencyMS > 0 && cfg.Checks.Probe.WarnLatencyMS > cfg.Checks.Probe.CritLatencyMS {
			return fmt.Errorf("checks.probe: warn_latency_ms must not exceed crit_latency_ms")
		}
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if cfg.Storage.RetentionDays <= 0 {
		return fmt.Errorf("storage.retention_days must be positive")
	}

	return nil
}
