// Command amcprice calibrates the least squares Monte Carlo engine on a
// trade described in a YAML scenario file and prints the resulting values.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/meenmo/amclib/engine"
	"github.com/meenmo/amclib/marketdata"
	"github.com/meenmo/amclib/model"
	"github.com/meenmo/amclib/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("amcprice", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scenarioPath := fs.String("scenario", "", "path to the YAML scenario file (required)")
	exposure := fs.Bool("exposure", false, "replay the calibrated calculator and print an exposure profile")
	verbose := fs.Bool("v", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: amcprice -scenario <file.yaml> [-exposure] [-v]")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *scenarioPath == "" {
		fs.Usage()
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	scn, err := LoadScenario(*scenarioPath)
	if err != nil {
		logger.Error("failed to load scenario", "error", err)
		return 1
	}

	reference, err := utils.ParseDate(scn.ReferenceDate)
	if err != nil {
		logger.Error("bad reference date", "error", err)
		return 1
	}

	m, err := scn.BuildModel(reference)
	if err != nil {
		logger.Error("failed to build model", "error", err)
		return 1
	}
	ev := &model.RateEvaluator{Model: m, Reference: reference, Fixings: marketdata.EmptyFeed()}

	legs, err := scn.BuildLegs(m)
	if err != nil {
		logger.Error("failed to build legs", "error", err)
		return 1
	}

	exerciseDates, err := parseDates(scn.Trade.ExerciseDates)
	if err != nil {
		logger.Error("bad exercise date", "error", err)
		return 1
	}
	simulationDates, err := parseDates(scn.Trade.SimulationDates)
	if err != nil {
		logger.Error("bad simulation date", "error", err)
		return 1
	}

	settlement := engine.SettlementPhysical
	if s := strings.ToUpper(scn.Trade.Settlement); s != "" {
		settlement = engine.SettlementType(s)
	}

	eng, err := engine.NewEngine(m, ev, legs, exerciseDates, settlement, simulationDates,
		scn.EngineConfig(), engine.WithLogger(logger))
	if err != nil {
		logger.Error("failed to set up engine", "error", err)
		return 1
	}

	res, err := eng.Calculate()
	if err != nil {
		logger.Error("calculation failed", "error", err)
		return 1
	}

	fmt.Fprintf(stdout, "underlying NPV (%s): %.2f\n", m.Currencies[0], res.UnderlyingValue)
	if len(exerciseDates) > 0 {
		fmt.Fprintf(stdout, "option NPV     (%s): %.2f\n", m.Currencies[0], res.Value)
	}

	if *exposure {
		if err := printExposureProfile(stdout, m, res.Calculator, scn.Engine.Samples); err != nil {
			logger.Error("exposure replay failed", "error", err)
			return 1
		}
	}
	return 0
}

// printExposureProfile regenerates paths on the valuation grid and replays
// them through the calculator, printing the expected positive exposure per
// valuation time. Exposures are deflated to the reference date.
func printExposureProfile(stdout io.Writer, m *model.CrossAssetModel, calc *engine.AMCCalculator, samples int) error {
	times := calc.XvaTimes()
	if len(times) == 0 {
		return fmt.Errorf("printExposureProfile: scenario has no simulation dates")
	}
	if samples <= 0 {
		samples = 5000
	}

	var proc model.Process
	if m.Dimension() == 1 {
		proc = &model.LGM1FProcess{Model: m.Domestic()}
	} else {
		p, err := model.NewCrossAssetProcess(m)
		if err != nil {
			return fmt.Errorf("printExposureProfile: %w", err)
		}
		proc = p
	}
	pg, err := model.NewPathGenerator(proc, times, model.NewPseudoRandom(7), model.OrderStepMajor)
	if err != nil {
		return fmt.Errorf("printExposureProfile: %w", err)
	}

	dim := proc.Dimension()
	paths := make([][][]float64, len(times))
	for i := range paths {
		paths[i] = make([][]float64, dim)
		for f := 0; f < dim; f++ {
			paths[i][f] = make([]float64, samples)
		}
	}
	buf := make([][]float64, len(times))
	for i := range buf {
		buf[i] = make([]float64, dim)
	}
	for s := 0; s < samples; s++ {
		pg.NextPath(buf)
		for i := range times {
			for f := 0; f < dim; f++ {
				paths[i][f][s] = buf[i][f]
			}
		}
	}

	relevant := make([]bool, len(times))
	for i := range relevant {
		relevant[i] = true
	}
	values, err := calc.SimulatePath(times, paths, relevant, false)
	if err != nil {
		return fmt.Errorf("printExposureProfile: %w", err)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "  t      EPE (deflated)")
	for i, t := range times {
		var epe float64
		for _, v := range values[i+1] {
			if v > 0 {
				epe += v
			}
		}
		epe /= float64(samples)
		fmt.Fprintf(stdout, "%5.2f  %14.2f\n", t, epe)
	}
	return nil
}
