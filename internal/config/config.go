package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/emtlab/gridsig/internal/devices"
	"github.com/emtlab/gridsig/internal/ssm"
)

const (
	DefaultTs    = 1e-4
	DefaultSteps = 20000
	DefaultP     = 0.5
	DefaultV     = 1.0
	DefaultW     = 1.0
)

type Config struct {
	Device    DeviceConfig  `yaml:"device"`
	Scheme    string        `yaml:"scheme"`
	Ts        float64       `yaml:"ts"`
	Steps     int           `yaml:"steps"`
	InitState []float64     `yaml:"init_state"`
	Perturb   PerturbConfig `yaml:"perturb"`
}

type DeviceConfig struct {
	Kind      string             `yaml:"kind"`
	Variant   int                `yaml:"variant"`
	Detector  string             `yaml:"detector"`
	PowerFlow PowerFlowConfig    `yaml:"power_flow"`
	Params    map[string]float64 `yaml:"params"`
}

// PowerFlowConfig is the power-flow 5-tuple (P, Q, V, xi, w).
type PowerFlowConfig struct {
	P  float64 `yaml:"p"`
	Q  float64 `yaml:"q"`
	V  float64 `yaml:"v"`
	Xi float64 `yaml:"xi"`
	W  float64 `yaml:"w"`
}

// PerturbConfig describes an input perturbation applied during a run.
type PerturbConfig struct {
	Input     int     `yaml:"input"`
	Delta     float64 `yaml:"delta"`
	Rate      float64 `yaml:"rate"`
	AfterStep int     `yaml:"after_step"`
}

func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Kind:    "grid_following",
			Variant: devices.VariantDCVoltage,
			PowerFlow: PowerFlowConfig{
				P: DefaultP,
				V: DefaultV,
				W: DefaultW,
			},
		},
		Scheme: "trapezoidal",
		Ts:     DefaultTs,
		Steps:  DefaultSteps,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) PowerFlow() ssm.PowerFlow {
	pf := c.Device.PowerFlow
	return ssm.PowerFlow{P: pf.P, Q: pf.Q, V: pf.V, Xi: pf.Xi, W: pf.W}
}

func (c *Config) DeviceSpec() devices.Config {
	return devices.Config{
		Kind:      c.Device.Kind,
		Variant:   c.Device.Variant,
		Detector:  c.Device.Detector,
		PowerFlow: c.PowerFlow(),
		Params:    c.Device.Params,
	}
}
