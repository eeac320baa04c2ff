package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/mlefit/internal/fit"
	"github.com/cwbudde/mlefit/internal/opt"
	"github.com/cwbudde/mlefit/internal/store"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	dataPath      string
	configPath    string
	modelName     string
	components    int
	minimizerName string
	seed          int64
	trainDataDir  string
	saveRun       bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a model to a CSV dataset",
	Long: `Loads a numeric CSV dataset, fits the chosen model by minimizing its negative
log-likelihood and prints the best parameters. The run and its per-generation
trace are saved under --data-dir unless --save=false.`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&dataPath, "data", "", "Dataset CSV path (required)")
	trainCmd.Flags().StringVar(&configPath, "config", "", "YAML file with model and minimizer settings")
	trainCmd.Flags().StringVar(&modelName, "model", "gaussian", "Model: gaussian, mixture")
	trainCmd.Flags().IntVar(&components, "components", 2, "Mixture components")
	trainCmd.Flags().StringVar(&minimizerName, "minimizer", opt.NameCMA, "Minimizer: cma, de, mayfly")
	trainCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	trainCmd.Flags().StringVar(&trainDataDir, "data-dir", "./data", "Base directory for stored runs")
	trainCmd.Flags().BoolVar(&saveRun, "save", true, "Save the run and its trace")

	trainCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(trainCmd)
}

// resolveTrainConfig merges the config file with explicitly set flags.
// The seed comes from the file whenever one is given, zero included,
// unless --seed was passed.
func resolveTrainConfig(cmd *cobra.Command) (*trainConfig, error) {
	flags := cmd.Flags()

	cfg := &trainConfig{Opt: opt.Config{Seed: seed}}
	if configPath != "" {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if flags.Changed("seed") {
			cfg.Opt.Seed = seed
		}
	}

	if cfg.Model == "" || flags.Changed("model") {
		cfg.Model = modelName
	}
	if cfg.Components == 0 || flags.Changed("components") {
		cfg.Components = components
	}
	if cfg.Minimizer == "" || flags.Changed("minimizer") {
		cfg.Minimizer = minimizerName
	}
	return cfg, nil
}

func buildModel(name string, k int, data *mat.Dense) (fit.Model, error) {
	switch name {
	case "gaussian":
		_, c := data.Dims()
		return fit.NewGaussian(c, fit.GaussianBoundsFromData(data))
	case "mixture":
		return fit.NewMixtureFromData(k, data)
	default:
		return nil, fmt.Errorf("unknown model: %s", name)
	}
}

// countingModel counts likelihood evaluations made during training.
// Assignments alone, like the final one after the search, do not count.
type countingModel struct {
	fit.Model
	evaluations int
}

func (c *countingModel) Evaluate(data *mat.Dense) ([]float64, error) {
	c.evaluations++
	return c.Model.Evaluate(data)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := resolveTrainConfig(cmd)
	if err != nil {
		return err
	}

	data, err := fit.LoadCSVFile(dataPath)
	if err != nil {
		return err
	}
	samples, _ := data.Dims()

	base, err := buildModel(cfg.Model, cfg.Components, data)
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}
	model := &countingModel{Model: base}

	minimizer, err := opt.New(cfg.Minimizer, cfg.Opt)
	if err != nil {
		return err
	}

	runID := store.NewRunID()
	var runStore store.Store
	var trace *store.TraceWriter
	if saveRun {
		runStore, err = openRunStore(trainDataDir)
		if err != nil {
			return err
		}
		trace, err = store.NewTraceWriter(trainDataDir, runID, false)
		if err != nil {
			return fmt.Errorf("failed to create trace: %w", err)
		}
		defer trace.Close()

		progress := func(generation int, cost float64, params []float64) {
			entry := store.TraceEntry{Generation: generation, Cost: cost, Timestamp: time.Now(), Params: params}
			if err := trace.Write(entry); err != nil {
				slog.Warn("Failed to write trace entry", "run_id", runID, "error", err)
			}
		}
		switch m := minimizer.(type) {
		case *opt.CMA:
			m.Progress = progress
		case *opt.DifferentialEvolution:
			m.Progress = progress
		case *opt.Mayfly:
			m.Progress = progress
		}
	}

	slog.Info("Starting training", "run_id", runID, "model", cfg.Model, "minimizer", cfg.Minimizer, "params", model.Size())

	start := time.Now()
	best, err := minimizer.Train(model, data)
	if err != nil {
		if trace != nil {
			discardRun(runStore, trace, runID)
		}
		return fmt.Errorf("training failed: %w", err)
	}
	elapsed := time.Since(start)
	evaluations := model.evaluations

	cost := fit.NewEvaluator(base, data).Cost(best)

	slog.Info("Training complete",
		"run_id", runID,
		"elapsed", elapsed,
		"cost", cost,
		"evaluations", evaluations,
	)

	if runStore != nil {
		run := store.NewRun(runID, best, cost, samples, elapsed, store.RunConfig{
			DataPath:   dataPath,
			Model:      cfg.Model,
			Minimizer:  cfg.Minimizer,
			Components: cfg.Components,
			Seed:       cfg.Opt.Seed,
		})
		run.Evaluations = evaluations
		if err := runStore.SaveRun(run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		if err := trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "run_id", runID, "error", err)
		}
		slog.Info("Run saved", "run_id", runID, "trace", trace.Path())
	}

	fmt.Printf("Run %s: cost %.6f after %d evaluations (%s)\n", runID, cost, evaluations, elapsed.Round(time.Millisecond))
	fmt.Printf("Params: %v\n", best)
	return nil
}

// discardRun closes the trace of a failed run and removes its directory,
// which holds nothing but that trace.
func discardRun(runStore store.Store, trace *store.TraceWriter, runID string) {
	if err := trace.Close(); err != nil {
		slog.Warn("Failed to close trace of failed run", "run_id", runID, "error", err)
	}
	if err := runStore.DeleteRun(runID); err != nil {
		slog.Warn("Failed to remove failed run", "run_id", runID, "error", err)
	}
}
