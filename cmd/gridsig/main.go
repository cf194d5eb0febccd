package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emtlab/gridsig/internal/config"
	"github.com/emtlab/gridsig/internal/devices"
	"github.com/emtlab/gridsig/internal/discrete"
	"github.com/emtlab/gridsig/internal/eig"
	"github.com/emtlab/gridsig/internal/linearize"
	"github.com/emtlab/gridsig/internal/metrics"
	"github.com/emtlab/gridsig/internal/sim"
	"github.com/emtlab/gridsig/internal/ssm"
	"github.com/emtlab/gridsig/internal/storage"
	"github.com/emtlab/gridsig/internal/tui"
	"github.com/emtlab/gridsig/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	scheme     string
	ts         float64
	steps      int
	// device selection
	kind     string
	variant  int
	detector string
	// power flow
	pfP, pfQ, pfV, pfXi, pfW float64
	// perturbation
	perturbInput int
	perturbDelta float64
	perturbAfter int
	// output handling
	plotOutput int
	saveRun    bool
	exportJSON bool
	// sweep
	sweepParam  string
	sweepFrom   float64
	sweepTo     float64
	sweepPoints int
	// eigen zoom window
	window []float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridsig",
		Short: "small-signal modeling and simulation of power-electronic apparatus",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gridsig", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&kind, "device", "grid_following", "apparatus kind")
	rootCmd.PersistentFlags().IntVar(&variant, "variant", devices.VariantDCVoltage, "grid-following DC-link variant code")
	rootCmd.PersistentFlags().StringVar(&detector, "detector", "quadrature", "PLL detector mode")
	rootCmd.PersistentFlags().Float64Var(&pfP, "p", config.DefaultP, "active power, pu")
	rootCmd.PersistentFlags().Float64Var(&pfQ, "q", 0, "reactive power, pu")
	rootCmd.PersistentFlags().Float64Var(&pfV, "v", config.DefaultV, "voltage magnitude, pu")
	rootCmd.PersistentFlags().Float64Var(&pfXi, "xi", 0, "angle offset, rad")
	rootCmd.PersistentFlags().Float64Var(&pfW, "w", config.DefaultW, "frequency, pu")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "time-domain simulation",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&scheme, "scheme", "trapezoidal", "integration scheme (euler|trapezoidal|vdamp)")
	runCmd.Flags().Float64Var(&ts, "ts", config.DefaultTs, "sample period, s")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	runCmd.Flags().IntVar(&perturbInput, "perturb-input", -1, "input index to perturb")
	runCmd.Flags().Float64Var(&perturbDelta, "perturb-delta", 0, "perturbation magnitude")
	runCmd.Flags().IntVar(&perturbAfter, "perturb-after", 0, "step at which perturbation starts")
	runCmd.Flags().IntVar(&plotOutput, "plot", 0, "output index to plot")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "save run to data directory")
	runCmd.Flags().BoolVar(&exportJSON, "json", false, "export run as JSON to stdout")

	eigenCmd := &cobra.Command{
		Use:   "eigen",
		Short: "eigenvalues and stability classification",
		RunE:  runEigen,
	}
	eigenCmd.Flags().Float64SliceVar(&window, "window", nil, "zoom window xmin,xmax,ymin,ymax (display only)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "parameter sweep of the dominant eigenvalue",
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "ki_dc", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0.1, "scale of nominal at sweep start")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 100, "scale of nominal at sweep end")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 40, "number of sweep points")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "step the device with a live terminal view",
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&scheme, "scheme", "trapezoidal", "integration scheme")
	liveCmd.Flags().Float64Var(&ts, "ts", config.DefaultTs, "sample period, s")
	liveCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	liveCmd.Flags().IntVar(&perturbInput, "perturb-input", -1, "input index to perturb")
	liveCmd.Flags().Float64Var(&perturbDelta, "perturb-delta", 0, "perturbation magnitude")
	liveCmd.Flags().IntVar(&perturbAfter, "perturb-after", 0, "step at which perturbation starts")
	liveCmd.Flags().IntVar(&plotOutput, "plot", 0, "output index to plot")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list preset configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(config.Presets))
			for name := range config.Presets {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				c := config.Presets[name]
				fmt.Printf("  %-16s %s variant=%d scheme=%s ts=%g\n",
					name, c.Device.Kind, c.Device.Variant, c.Scheme, c.Ts)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, eigenCmd, sweepCmd, liveCmd, presetsCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges preset, config file and power-flow flags into one
// configuration. CLI flags win over file values, file values over presets.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p, ok := config.Presets[preset]
		if !ok {
			return nil, fmt.Errorf("unknown preset: %s", preset)
		}
		*cfg = *p
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = fileCfg
	}

	if cmd.Flags().Changed("device") || preset == "" && configFile == "" {
		cfg.Device.Kind = kind
	}
	if cmd.Flags().Changed("variant") {
		cfg.Device.Variant = variant
	}
	if cmd.Flags().Changed("detector") {
		cfg.Device.Detector = detector
	}
	if cmd.Flags().Changed("p") {
		cfg.Device.PowerFlow.P = pfP
	}
	if cmd.Flags().Changed("q") {
		cfg.Device.PowerFlow.Q = pfQ
	}
	if cmd.Flags().Changed("v") {
		cfg.Device.PowerFlow.V = pfV
	}
	if cmd.Flags().Changed("xi") {
		cfg.Device.PowerFlow.Xi = pfXi
	}
	if cmd.Flags().Changed("w") {
		cfg.Device.PowerFlow.W = pfW
	}
	if cmd.Flags().Changed("scheme") {
		cfg.Scheme = scheme
	}
	if cmd.Flags().Changed("ts") {
		cfg.Ts = ts
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	return cfg, nil
}

func buildDiscretizer(cfg *config.Config) (*discrete.Discretizer, error) {
	model, err := devices.New(cfg.DeviceSpec())
	if err != nil {
		return nil, err
	}
	sch, err := discrete.ParseScheme(cfg.Scheme)
	if err != nil {
		return nil, err
	}
	disc := discrete.New(model, sch, cfg.Ts, cfg.InitState)
	if err := disc.Setup(cfg.PowerFlow()); err != nil {
		return nil, err
	}
	return disc, nil
}

func inputSource(cfg *config.Config, disc *discrete.Discretizer) sim.Source {
	base := disc.Equilibrium().U
	if perturbInput >= 0 && perturbDelta != 0 {
		return sim.StepChange{Base: base, Index: perturbInput, Delta: perturbDelta, AfterStep: perturbAfter}
	}
	if cfg.Perturb.Delta != 0 {
		return sim.StepChange{Base: base, Index: cfg.Perturb.Input, Delta: cfg.Perturb.Delta, AfterStep: cfg.Perturb.AfterStep}
	}
	if cfg.Perturb.Rate != 0 {
		return sim.Ramp{Base: base, Index: cfg.Perturb.Input, Rate: cfg.Perturb.Rate, AfterStep: cfg.Perturb.AfterStep, Ts: cfg.Ts}
	}
	return sim.Hold{U: base}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	disc, err := buildDiscretizer(cfg)
	if err != nil {
		return err
	}
	defer disc.Release()

	runner := sim.New(disc)
	runner.AddMetric(metrics.NewDeviation(disc.Equilibrium().X))
	runner.AddMetric(metrics.NewStability(10))
	runner.AddMetric(metrics.NewEffort(disc.Equilibrium().U))

	result, err := runner.Run(context.Background(), inputSource(cfg, disc), sim.Config{
		Steps:         cfg.Steps,
		ValidateState: true,
	})
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", e)
	}

	if exportJSON {
		return storage.ExportJSON(os.Stdout, cfg.Device.Kind, cfg.Scheme, cfg.Ts, result)
	}

	outputs := disc.Model().Signals().Outputs
	name := fmt.Sprintf("output[%d]", plotOutput)
	if plotOutput < len(outputs) {
		name = outputs[plotOutput]
	}
	series := viz.Downsample(result.Output(plotOutput), 160)
	fmt.Println(viz.Trace(series, name, 14))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "\nsteps\t%d\n", result.StepsTaken)
	names := make([]string, 0, len(result.Metrics))
	for n := range result.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%.6g\n", n, result.Metrics[n])
	}
	w.Flush()

	if saveRun {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(cfg.Device.Kind, cfg.Scheme, cfg.Ts, result)
		if err != nil {
			return err
		}
		fmt.Printf("saved run %s\n", id)
	}
	return nil
}

func runEigen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	model, err := devices.New(cfg.DeviceSpec())
	if err != nil {
		return err
	}
	eqm, err := model.Equilibrium(cfg.PowerFlow())
	if err != nil {
		return err
	}
	lin, err := linearize.AtEquilibrium(model, eqm)
	if err != nil {
		return err
	}
	modes, err := eig.Modes(lin.A)
	if err != nil {
		return err
	}

	var win *eig.Window
	if len(window) == 4 {
		win = &eig.Window{XMin: window[0], XMax: window[1], YMin: window[2], YMax: window[3]}
	}

	rep := eig.Classify(modes)
	fmt.Printf("%s %s  dominant %.4f%+.4fi rad/s\n\n",
		viz.Title.Render(cfg.Device.Kind), viz.Badge(rep.Stable),
		real(rep.Dominant.RadPerSec), imag(rep.Dominant.RadPerSec))
	fmt.Println(viz.ModeTable(modes, win))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	spec := cfg.DeviceSpec()

	base, err := devices.New(spec)
	if err != nil {
		return err
	}
	c, ok := base.(ssm.Configurable)
	if !ok {
		return fmt.Errorf("device %q has no sweepable parameters", spec.Kind)
	}
	nominal, ok := c.Params()[sweepParam]
	if !ok {
		return fmt.Errorf("unknown parameter %q (have: %s)", sweepParam, paramNames(c.Params()))
	}

	if sweepPoints < 2 {
		return fmt.Errorf("need at least 2 sweep points")
	}
	values := make([]float64, sweepPoints)
	for i := range values {
		frac := float64(i) / float64(sweepPoints-1)
		values[i] = nominal * (sweepFrom + (sweepTo-sweepFrom)*frac)
	}

	points := eig.Sweep(func(v float64) (ssm.Model, error) {
		s := spec
		s.Params = make(map[string]float64, len(spec.Params)+1)
		for k, pv := range spec.Params {
			s.Params[k] = pv
		}
		s.Params[sweepParam] = v
		return devices.New(s)
	}, cfg.PowerFlow(), values)

	for _, p := range points {
		if p.Err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s=%g: %v\n", sweepParam, p.Value, p.Err)
		}
	}
	fmt.Println(viz.SweepPlot(points, sweepParam, 14))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	disc, err := buildDiscretizer(cfg)
	if err != nil {
		return err
	}
	defer disc.Release()

	outputs := disc.Model().Signals().Outputs
	name := fmt.Sprintf("output[%d]", plotOutput)
	if plotOutput < len(outputs) {
		name = outputs[plotOutput]
	}
	return tui.Run(tui.NewLive(disc, inputSource(cfg, disc), plotOutput, name, cfg.Steps))
}

func paramNames(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for n := range params {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
