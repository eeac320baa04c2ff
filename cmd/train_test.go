package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/mlefit/internal/fit"
	"github.com/cwbudde/mlefit/internal/store"
	"gonum.org/v1/gonum/mat"
)

const testConfigYAML = `
model: mixture
components: 3
minimizer: de
seed: 9
de:
  max_generations: 40
  quiet: true
  stall:
    patience: 5
    threshold: 0.001
mayfly:
  iterations: 10
`

func withTrainFlags(t *testing.T) {
	t.Helper()
	saved := []any{dataPath, configPath, modelName, components, minimizerName, seed, trainDataDir, saveRun}
	t.Cleanup(func() {
		dataPath = saved[0].(string)
		configPath = saved[1].(string)
		modelName = saved[2].(string)
		components = saved[3].(int)
		minimizerName = saved[4].(string)
		seed = saved[5].(int64)
		trainDataDir = saved[6].(string)
		saveRun = saved[7].(bool)
	})
}

func TestResolveTrainConfigFromFile(t *testing.T) {
	withTrainFlags(t)

	path := filepath.Join(t.TempDir(), "train.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	configPath = path

	cfg, err := resolveTrainConfig(trainCmd)
	if err != nil {
		t.Fatalf("resolveTrainConfig failed: %v", err)
	}

	if cfg.Model != "mixture" || cfg.Components != 3 || cfg.Minimizer != "de" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.Opt.Seed != 9 {
		t.Errorf("Expected seed 9 from file, got %d", cfg.Opt.Seed)
	}
	if cfg.Opt.DE.MaxGenerations != 40 || !cfg.Opt.DE.Quiet {
		t.Errorf("DE settings not decoded: %+v", cfg.Opt.DE)
	}
	if cfg.Opt.DE.Stall.Patience != 5 {
		t.Errorf("Stall settings not decoded: %+v", cfg.Opt.DE.Stall)
	}
	if cfg.Opt.Mayfly.Iterations != 10 {
		t.Errorf("Mayfly settings not decoded: %+v", cfg.Opt.Mayfly)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestBuildModel(t *testing.T) {
	data := mat.NewDense(3, 1, []float64{1, 2, 3})

	g, err := buildModel("gaussian", 0, data)
	if err != nil {
		t.Fatalf("gaussian: %v", err)
	}
	if g.Size() != 2 {
		t.Errorf("Expected 2 gaussian params, got %d", g.Size())
	}

	m, err := buildModel("mixture", 2, data)
	if err != nil {
		t.Fatalf("mixture: %v", err)
	}
	if m.Size() != 6 {
		t.Errorf("Expected 6 mixture params, got %d", m.Size())
	}

	if _, err := buildModel("rtbm", 0, data); err == nil {
		t.Error("Expected error for unknown model")
	}
}

func TestRunTrainSavesRun(t *testing.T) {
	withTrainFlags(t)
	tmpDir := t.TempDir()

	csv := "x\n2.1\n2.9\n3.0\n3.2\n3.8\n"
	dataPath = filepath.Join(tmpDir, "data.csv")
	if err := os.WriteFile(dataPath, []byte(csv), 0644); err != nil {
		t.Fatalf("Failed to write data: %v", err)
	}
	configPath = filepath.Join(tmpDir, "train.yaml")
	if err := os.WriteFile(configPath, []byte("de:\n  quiet: true\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	modelName = "gaussian"
	minimizerName = "de"
	trainDataDir = filepath.Join(tmpDir, "store")
	saveRun = true

	if err := runTrain(trainCmd, nil); err != nil {
		t.Fatalf("runTrain failed: %v", err)
	}

	runStore, err := store.NewFSStore(trainDataDir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	infos, err := runStore.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 saved run, got %d", len(infos))
	}

	run, err := runStore.LoadRun(infos[0].ID)
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if len(run.Params) != 2 || run.Samples != 5 || run.Evaluations == 0 {
		t.Errorf("Unexpected run record: %+v", run)
	}

	reader, err := store.NewTraceReader(trainDataDir, run.ID)
	if err != nil {
		t.Fatalf("Expected a trace: %v", err)
	}
	defer reader.Close()
	entries, err := reader.ReadAll()
	if err != nil || len(entries) == 0 {
		t.Errorf("Expected trace entries, got %d (%v)", len(entries), err)
	}
}

func TestResolveTrainConfigSeed(t *testing.T) {
	withTrainFlags(t)
	seedFlag := trainCmd.Flags().Lookup("seed")
	t.Cleanup(func() { seedFlag.Changed = false })

	path := filepath.Join(t.TempDir(), "train.yaml")
	if err := os.WriteFile(path, []byte("seed: 0\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	tests := []struct {
		name     string
		config   string
		flag     string
		expected int64
	}{
		{"flag default without config", "", "", 42},
		{"zero seed from config", path, "", 0},
		{"explicit flag wins over config", path, "7", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed = 42
			seedFlag.Changed = false
			configPath = tt.config
			if tt.flag != "" {
				if err := trainCmd.Flags().Set("seed", tt.flag); err != nil {
					t.Fatalf("Failed to set seed flag: %v", err)
				}
			}

			cfg, err := resolveTrainConfig(trainCmd)
			if err != nil {
				t.Fatalf("resolveTrainConfig failed: %v", err)
			}
			if cfg.Opt.Seed != tt.expected {
				t.Errorf("Expected seed %d, got %d", tt.expected, cfg.Opt.Seed)
			}
		})
	}
}

func TestCountingModelCountsEvaluations(t *testing.T) {
	data := mat.NewDense(3, 1, []float64{1, 2, 3})
	base, err := buildModel("gaussian", 0, data)
	if err != nil {
		t.Fatalf("buildModel failed: %v", err)
	}
	model := &countingModel{Model: base}

	if err := model.Assign([]float64{2, 1}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if model.evaluations != 0 {
		t.Errorf("Assign alone should not count, got %d", model.evaluations)
	}

	fit.NewEvaluator(model, data).Cost([]float64{2, 1})
	if model.evaluations != 1 {
		t.Errorf("Expected 1 evaluation, got %d", model.evaluations)
	}
}

func TestDiscardRunRemovesRunDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	runStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	trace, err := store.NewTraceWriter(tmpDir, "failed-run", false)
	if err != nil {
		t.Fatalf("Failed to create trace: %v", err)
	}
	if err := trace.Write(store.TraceEntry{Generation: 1, Cost: 5}); err != nil {
		t.Fatalf("Failed to write trace entry: %v", err)
	}

	discardRun(runStore, trace, "failed-run")

	if _, err := os.Stat(runStore.RunDir("failed-run")); !os.IsNotExist(err) {
		t.Errorf("Expected run directory to be removed, stat returned %v", err)
	}
	if err := trace.Close(); err != nil {
		t.Errorf("Closing a discarded trace should be a no-op, got %v", err)
	}
}
