package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dropout-risk/internal/common"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != common.DefaultModelPath {
					t.Errorf("expected default ModelPath, got %s", settings.ModelPath)
				}
				if settings.LabelColumn != "Status" {
					t.Errorf("expected label column Status, got %s", settings.LabelColumn)
				}
				if settings.TestRatio != 0.2 {
					t.Errorf("expected TestRatio 0.2, got %f", settings.TestRatio)
				}
				if settings.Seed != 42 {
					t.Errorf("expected Seed 42, got %d", settings.Seed)
				}
				if settings.NEstimators != 300 || settings.LearningRate != 0.05 || settings.MaxDepth != 7 {
					t.Errorf("unexpected boosting defaults: %d %f %d", settings.NEstimators, settings.LearningRate, settings.MaxDepth)
				}
				if settings.RiskScheme != common.RiskSchemeTwoBucket {
					t.Errorf("expected two-bucket risk scheme, got %s", settings.RiskScheme)
				}
				if settings.LedgerPath != "" {
					t.Errorf("expected no ledger by default, got %s", settings.LedgerPath)
				}
				if settings.RequestTimeout != 5*time.Second {
					t.Errorf("expected RequestTimeout 5s, got %v", settings.RequestTimeout)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"DATA_PATH":       "/data/students.xlsx",
				"MODEL_PATH":      "/models/m.json",
				"RISK_SCHEME":     "three-bucket",
				"N_ESTIMATORS":    "50",
				"API_PORT":        "9090",
				"REQUEST_TIMEOUT": "2s",
				"LEDGER_PATH":     "/var/lib/dropout",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != "/data/students.xlsx" {
					t.Errorf("expected DataPath override, got %s", settings.DataPath)
				}
				if settings.ModelPath != "/models/m.json" {
					t.Errorf("expected ModelPath override, got %s", settings.ModelPath)
				}
				if settings.RiskScheme != common.RiskSchemeThreeBucket {
					t.Errorf("expected three-bucket, got %s", settings.RiskScheme)
				}
				if settings.NEstimators != 50 {
					t.Errorf("expected NEstimators 50, got %d", settings.NEstimators)
				}
				if settings.APIPort != 9090 {
					t.Errorf("expected APIPort 9090, got %d", settings.APIPort)
				}
				if settings.RequestTimeout != 2*time.Second {
					t.Errorf("expected RequestTimeout 2s, got %v", settings.RequestTimeout)
				}
				if settings.LedgerPath != "/var/lib/dropout" {
					t.Errorf("expected LedgerPath override, got %s", settings.LedgerPath)
				}
			},
		},
		{
			name:    "unknown risk scheme",
			envVars: map[string]string{"RISK_SCHEME": "five-bucket"},
			wantErr: true,
		},
		{
			name:    "test ratio out of range",
			envVars: map[string]string{"TEST_RATIO": "0.9"},
			wantErr: true,
		},
		{
			name:    "privileged port",
			envVars: map[string]string{"API_PORT": "80"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
data:
  path: "data/raw/dataset.xlsx"
  labelColumn: "Target"

training:
  testRatio: 0.25
  seed: 7
  nEstimators: 120
  learningRate: 0.1
  maxDepth: 5

model:
  path: "out/model.json"
  riskScheme: "three-bucket"

serving:
  apiPort: 9000
  requestTimeout: "3s"

system:
  logLevel: "debug"
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DataPath != "data/raw/dataset.xlsx" {
					t.Errorf("expected DataPath from YAML, got %s", settings.DataPath)
				}
				if settings.LabelColumn != "Target" {
					t.Errorf("expected LabelColumn Target, got %s", settings.LabelColumn)
				}
				if settings.TestRatio != 0.25 {
					t.Errorf("expected TestRatio 0.25, got %f", settings.TestRatio)
				}
				if settings.Seed != 7 {
					t.Errorf("expected Seed 7, got %d", settings.Seed)
				}
				if settings.MaxDepth != 5 {
					t.Errorf("expected MaxDepth 5, got %d", settings.MaxDepth)
				}
				if settings.NumLeaves != common.DefaultNumLeaves {
					t.Errorf("expected default NumLeaves, got %d", settings.NumLeaves)
				}
				if settings.RiskScheme != common.RiskSchemeThreeBucket {
					t.Errorf("expected three-bucket, got %s", settings.RiskScheme)
				}
				if settings.RequestTimeout != 3*time.Second {
					t.Errorf("expected RequestTimeout 3s, got %v", settings.RequestTimeout)
				}
				if settings.LogLevel != "debug" {
					t.Errorf("expected LogLevel debug, got %s", settings.LogLevel)
				}
			},
		},
		{
			name: "env overrides YAML",
			yamlContent: `
model:
  path: "yaml.json"
`,
			envOverrides: map[string]string{
				"MODEL_PATH": "env.json",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != "env.json" {
					t.Errorf("expected env override env.json, got %s", settings.ModelPath)
				}
			},
		},
		{
			name:        "malformed YAML",
			yamlContent: "model: [unterminated",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yamlContent), 0o600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			settings, err := loadFromYAML(path)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearTestEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

// clearTestEnv clears potentially conflicting environment variables
func clearTestEnv(t *testing.T) {
	envVars := []string{
		common.EnvConfigFile, common.EnvDataPath, common.EnvModelPath, common.EnvLedgerPath,
		common.EnvLabelColumn, common.EnvTestRatio, common.EnvSeed, common.EnvNEstimators,
		common.EnvLearningRate, common.EnvMaxDepth, common.EnvNumLeaves, common.EnvMinChildSamples,
		common.EnvRiskScheme, common.EnvAPIPort, common.EnvDashboardPort, common.EnvFormPort,
		common.EnvAPIURL, common.EnvRequestTimeout, common.EnvLogLevel,
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
