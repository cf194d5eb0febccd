package devices_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/emtlab/gridsig/internal/devices"
	"github.com/emtlab/gridsig/internal/ssm"
)

// Every apparatus kind must satisfy the shared state-space contract.
var _ = Describe("state-space contract", func() {
	pf := ssm.PowerFlow{P: 0.5, Q: 0.1, V: 1.0, Xi: 0, W: 1.0}

	kinds := []devices.Config{
		{Kind: "grid_following", Variant: devices.VariantDCVoltage, PowerFlow: pf},
		{Kind: "grid_following", Variant: devices.VariantDCPower, PowerFlow: pf},
		{Kind: "grid_following", Variant: devices.VariantACOnly, PowerFlow: pf},
		{Kind: "grid_forming", PowerFlow: pf},
		{Kind: "sync_machine", PowerFlow: pf},
	}

	for _, cfg := range kinds {
		cfg := cfg
		name := cfg.Kind
		if cfg.Variant != 0 {
			name = fmt.Sprintf("%s variant %d", cfg.Kind, cfg.Variant)
		}

		Describe(name, func() {
			var m ssm.Model

			BeforeEach(func() {
				var err error
				m, err = devices.New(cfg)
				Expect(err).NotTo(HaveOccurred())
			})

			It("has stable signal metadata", func() {
				sig := m.Signals()
				Expect(m.Signals()).To(Equal(sig))
				Expect(sig.Inputs[0]).To(Equal("v_d"))
				Expect(sig.Inputs[1]).To(Equal("v_q"))
				Expect(sig.States[len(sig.States)-1]).To(Equal("theta"))
			})

			It("verifies against its own equilibrium", func() {
				eq, err := m.Equilibrium(cfg.PowerFlow)
				Expect(err).NotTo(HaveOccurred())
				Expect(ssm.Verify(m, eq)).To(Succeed())
			})

			It("sits at a fixed point", func() {
				eq, err := m.Equilibrium(cfg.PowerFlow)
				Expect(err).NotTo(HaveOccurred())
				f := m.StateEquation(eq.X, eq.U, ssm.Derivative)
				for _, v := range f {
					Expect(v).To(BeNumerically("~", 0, 1e-9))
				}
			})

			It("reports frequency as the third output", func() {
				eq, err := m.Equilibrium(cfg.PowerFlow)
				Expect(err).NotTo(HaveOccurred())
				y := m.StateEquation(eq.X, eq.U, ssm.OutputEval)
				Expect(y[2]).To(BeNumerically("~", cfg.PowerFlow.W, 1e-12))
			})
		})
	}
})
