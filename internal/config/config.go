package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tablestakes/brigade/internal/plan"
)

// Config represents the brigade.yaml configuration file
type Config struct {
	Version       string `yaml:"version"`
	WorkspaceRoot string `yaml:"workspace_root"`
	Mode          string `yaml:"mode"`
	ServiceDate   string `yaml:"service_date,omitempty"`
	Policy        Policy `yaml:"policy"`
}

// Policy contains the committee's operator-tunable settings
type Policy struct {
	Weights                   Weights     `yaml:"weights"`
	Constraints               Constraints `yaml:"constraints"`
	Quorum                    float64     `yaml:"quorum"`
	EscalateSpendDeltaPct     float64     `yaml:"escalate_spend_delta_pct"`
	EscalateDisagreementScore float64     `yaml:"escalate_disagreement_score"`
	TargetWastePct            float64     `yaml:"target_waste_pct"`
	UseHistoryAgent           bool        `yaml:"use_history_agent"`
	CriticTimeoutS            int         `yaml:"critic_timeout_s,omitempty"`
}

// Weights are the composite-score multipliers
type Weights struct {
	Cost     float64 `yaml:"cost"`
	Stockout float64 `yaml:"stockout"`
	Waste    float64 `yaml:"waste"`
	Shelf    float64 `yaml:"shelf"`
	QC       float64 `yaml:"qc"`
	Labor    float64 `yaml:"labor"`
}

// Constraints are the hard-gate thresholds
type Constraints struct {
	MaxUnderOrderRisk float64 `yaml:"max_under_order_risk"`
	EnforceShelfLife  bool    `yaml:"enforce_shelf_life"`
	MinShelfLifeHours float64 `yaml:"min_shelf_life_hours"`
	EnforceT24Lock    bool    `yaml:"enforce_t24_lock"`
	T24LockHours      float64 `yaml:"t24_lock_hours"`
	OverOrderBuffer   float64 `yaml:"over_order_buffer"`
}

// GenerateDefault creates a new Config with default values
func GenerateDefault() *Config {
	return &Config{
		Version:       "1.0",
		WorkspaceRoot: ".",
		Mode:          string(plan.ModeTriple),
		Policy: Policy{
			Weights: Weights{
				Cost:     0.25,
				Stockout: 0.30,
				Waste:    0.20,
				Shelf:    0.10,
				QC:       0.10,
				Labor:    0.05,
			},
			Constraints: Constraints{
				MaxUnderOrderRisk: 0.35,
				EnforceShelfLife:  true,
				MinShelfLifeHours: 48,
				EnforceT24Lock:    true,
				T24LockHours:      24,
				OverOrderBuffer:   0.10,
			},
			Quorum:                    0.67,
			EscalateSpendDeltaPct:     0.15,
			EscalateDisagreementScore: 0.25,
			TargetWastePct:            0.08,
			UseHistoryAgent:           true,
		},
	}
}

// Validate checks the configuration for errors and returns user-friendly error messages
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("configuration error: missing required field 'version'\n\nHint: Add a version field like:\n  version: \"1.0\"")
	}

	switch plan.Mode(c.Mode) {
	case plan.ModeSingle, plan.ModeDual, plan.ModeTriple:
	default:
		return fmt.Errorf("configuration error: invalid 'mode' value: %q\n\nHint: Mode must be one of single, dual, triple:\n  mode: triple", c.Mode)
	}

	if c.Policy.Quorum < 0 || c.Policy.Quorum > 1 {
		return fmt.Errorf("configuration error: invalid 'policy.quorum' value: %g\n\nHint: Quorum is the fraction of critics that must approve:\n  policy:\n    quorum: 0.67", c.Policy.Quorum)
	}

	cons := c.Policy.Constraints
	if cons.MaxUnderOrderRisk < 0 || cons.MaxUnderOrderRisk > 1 {
		return fmt.Errorf("configuration error: invalid 'policy.constraints.max_under_order_risk' value: %g\n\nHint: The risk ceiling is a probability:\n  constraints:\n    max_under_order_risk: 0.35", cons.MaxUnderOrderRisk)
	}

	if cons.OverOrderBuffer < 0 {
		return fmt.Errorf("configuration error: 'policy.constraints.over_order_buffer' must not be negative\n\nHint: The buffer is a fraction above the requirement:\n  constraints:\n    over_order_buffer: 0.10")
	}

	if c.ServiceDate != "" {
		cc := plan.Context{ServiceDate: c.ServiceDate}
		if cc.ServiceTime().IsZero() {
			return fmt.Errorf("configuration error: invalid 'service_date' value: %q\n\nHint: Use a date or RFC3339 timestamp:\n  service_date: \"2026-09-01\"", c.ServiceDate)
		}
	}

	if c.Policy.CriticTimeoutS < 0 {
		return fmt.Errorf("configuration error: 'policy.critic_timeout_s' must not be negative\n\nHint: 0 leaves critic calls unbounded")
	}

	return nil
}

// Context resolves the run context from the configuration. An explicit mode
// argument overrides the configured one; pass "" to keep the config value.
func (c *Config) Context(modeOverride string) *plan.Context {
	mode := c.Mode
	if modeOverride != "" {
		mode = modeOverride
	}

	return &plan.Context{
		Mode:        plan.Mode(mode),
		ServiceDate: c.ServiceDate,
		Policy: plan.Policy{
			Weights: plan.Weights{
				Cost:     c.Policy.Weights.Cost,
				Stockout: c.Policy.Weights.Stockout,
				Waste:    c.Policy.Weights.Waste,
				Shelf:    c.Policy.Weights.Shelf,
				QC:       c.Policy.Weights.QC,
				Labor:    c.Policy.Weights.Labor,
			},
			Constraints: plan.Constraints{
				MaxUnderOrderRisk: c.Policy.Constraints.MaxUnderOrderRisk,
				EnforceShelfLife:  c.Policy.Constraints.EnforceShelfLife,
				MinShelfLifeHours: c.Policy.Constraints.MinShelfLifeHours,
				EnforceT24Lock:    c.Policy.Constraints.EnforceT24Lock,
				T24LockHours:      c.Policy.Constraints.T24LockHours,
				OverOrderBuffer:   c.Policy.Constraints.OverOrderBuffer,
			},
			Quorum:                    c.Policy.Quorum,
			EscalateSpendDeltaPct:     c.Policy.EscalateSpendDeltaPct,
			EscalateDisagreementScore: c.Policy.EscalateDisagreementScore,
			TargetWastePct:            c.Policy.TargetWastePct,
			UseHistoryAgent:           c.Policy.UseHistoryAgent,
			CriticTimeout:             time.Duration(c.Policy.CriticTimeoutS) * time.Second,
		},
	}
}

// LoadFromFile loads a configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// SaveToFile writes the configuration to a YAML file with 0600 permissions
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}
