package devices

import (
	"fmt"

	"github.com/emtlab/gridsig/internal/ssm"
)

// Config selects and parameterizes an apparatus model.
type Config struct {
	Kind      string
	Variant   int // grid-following DC-link variant code
	Detector  string
	PowerFlow ssm.PowerFlow
	Params    map[string]float64 // overrides applied by name
}

// New builds the apparatus model named by cfg.Kind and applies any
// parameter overrides. Unknown kinds, variants, detectors or parameter
// names surface ssm.ErrInvalidConfiguration.
func New(cfg Config) (ssm.Model, error) {
	var m ssm.Model

	switch cfg.Kind {
	case "", "grid_following":
		det, err := ParseDetector(cfg.Detector)
		if err != nil {
			return nil, err
		}
		variant := cfg.Variant
		if variant == 0 {
			variant = VariantDCVoltage
		}
		gfl, err := NewGridFollowing(variant, det, cfg.PowerFlow)
		if err != nil {
			return nil, err
		}
		m = gfl
	case "grid_forming":
		m = NewGridForming(cfg.PowerFlow)
	case "sync_machine":
		m = NewSyncMachine(cfg.PowerFlow)
	default:
		return nil, fmt.Errorf("%w: unknown apparatus kind %q", ssm.ErrInvalidConfiguration, cfg.Kind)
	}

	if len(cfg.Params) > 0 {
		c, ok := m.(ssm.Configurable)
		if !ok {
			return nil, fmt.Errorf("%w: %q does not accept parameter overrides", ssm.ErrInvalidConfiguration, cfg.Kind)
		}
		for name, v := range cfg.Params {
			if err := c.SetParam(name, v); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
