package scoring

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunable scoring parameters.
type Policy struct {
	BasePenalty       float64 `yaml:"base_penalty" json:"base_penalty"`
	Multiplier        float64 `yaml:"multiplier" json:"multiplier"`
	RecoveryIncrement float64 `yaml:"recovery_increment" json:"recovery_increment"`
	RecoveryBonus     float64 `yaml:"recovery_bonus" json:"recovery_bonus"`
	RecoveryPeriod    int     `yaml:"recovery_period" json:"recovery_period"`

	LowRiskMin    float64 `yaml:"low_risk_min" json:"low_risk_min"`
	MediumRiskMin float64 `yaml:"medium_risk_min" json:"medium_risk_min"`

	// Misses further apart than this many days restart the escalation.
	MissWindowDays int     `yaml:"miss_window_days" json:"miss_window_days"`
	InitialScore   float64 `yaml:"initial_score" json:"initial_score"`
}

func DefaultPolicy() Policy {
	return Policy{
		BasePenalty:       10,
		Multiplier:        1.5,
		RecoveryIncrement: 5,
		RecoveryBonus:     10,
		RecoveryPeriod:    6,
		LowRiskMin:        85,
		MediumRiskMin:     70,
		MissWindowDays:    90,
		InitialScore:      100,
	}
}

// LoadPolicy reads a YAML policy file on top of the defaults. An empty
// path returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

func (p Policy) Validate() error {
	var errs []error
	if p.BasePenalty < 0 {
		errs = append(errs, errors.New("base_penalty must be >= 0"))
	}
	if p.Multiplier < 1 {
		errs = append(errs, errors.New("multiplier must be >= 1"))
	}
	if p.RecoveryIncrement < 0 || p.RecoveryBonus < 0 {
		errs = append(errs, errors.New("recovery values must be >= 0"))
	}
	if p.RecoveryPeriod < 1 {
		errs = append(errs, errors.New("recovery_period must be >= 1"))
	}
	if p.MediumRiskMin > p.LowRiskMin {
		errs = append(errs, errors.New("medium_risk_min must not exceed low_risk_min"))
	}
	if p.InitialScore < MinScore || p.InitialScore > MaxScore {
		errs = append(errs, errors.New("initial_score must be within [0,100]"))
	}
	return errors.Join(errs...)
}

func (p Policy) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}
