package config

import "github.com/emtlab/gridsig/internal/devices"

var Presets = map[string]*Config{
	"gfl_nominal": {
		Device: DeviceConfig{
			Kind: "grid_following", Variant: devices.VariantDCVoltage,
			PowerFlow: PowerFlowConfig{P: 0.5, Q: 0, V: 1.0, W: 1.0},
		},
		Scheme: "trapezoidal", Ts: 1e-4, Steps: 20000,
	},
	"gfl_ac_only": {
		Device: DeviceConfig{
			Kind: "grid_following", Variant: devices.VariantACOnly,
			PowerFlow: PowerFlowConfig{P: 0.8, Q: 0.2, V: 1.0, W: 1.0},
		},
		Scheme: "trapezoidal", Ts: 1e-4, Steps: 20000,
	},
	"gfl_power_feed": {
		Device: DeviceConfig{
			Kind: "grid_following", Variant: devices.VariantDCPower,
			PowerFlow: PowerFlowConfig{P: 0.8, Q: 0, V: 1.0, W: 1.0},
		},
		Scheme: "trapezoidal", Ts: 1e-4, Steps: 20000,
	},
	"gfm_droop": {
		Device: DeviceConfig{
			Kind:      "grid_forming",
			PowerFlow: PowerFlowConfig{P: 0.5, Q: 0.1, V: 1.0, W: 1.0},
		},
		Scheme: "trapezoidal", Ts: 1e-4, Steps: 20000,
	},
	"machine": {
		Device: DeviceConfig{
			Kind:      "sync_machine",
			PowerFlow: PowerFlowConfig{P: 0.9, Q: 0.3, V: 1.0, W: 1.0},
		},
		Scheme: "trapezoidal", Ts: 1e-3, Steps: 20000,
	},
	"euler_fast": {
		Device: DeviceConfig{
			Kind: "grid_following", Variant: devices.VariantACOnly,
			PowerFlow: PowerFlowConfig{P: 0.5, Q: 0, V: 1.0, W: 1.0},
		},
		Scheme: "euler", Ts: 2e-5, Steps: 50000,
	},
}
