package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dropout-risk/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the resolved configuration shared by every binary. The trainer
// reads the data, model and training fields; the servers read the model path,
// risk scheme, ports and API URL. Load fills every field, taking defaults from
// the common package where neither YAML nor the environment sets one.
type Settings struct {
	DataPath        string
	ModelPath       string
	LedgerPath      string
	LabelColumn     string
	TestRatio       float64
	Seed            int64
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	NumLeaves       int
	MinChildSamples int
	RiskScheme      string
	APIPort         int
	DashboardPort   int
	FormPort        int
	APIURL          string
	RequestTimeout  time.Duration
	LogLevel        string
}

// ConfigFile is the YAML layout read when CONFIG_FILE is set. Sections group
// the settings by the binary that consumes them. Zero values fall through to
// the environment and then to the defaults, and environment variables always
// override the file.
type ConfigFile struct {
	Data struct {
		Path        string `yaml:"path"`
		LabelColumn string `yaml:"labelColumn"`
	} `yaml:"data"`

	Training struct {
		TestRatio       float64 `yaml:"testRatio"`
		Seed            int64   `yaml:"seed"`
		NEstimators     int     `yaml:"nEstimators"`
		LearningRate    float64 `yaml:"learningRate"`
		MaxDepth        int     `yaml:"maxDepth"`
		NumLeaves       int     `yaml:"numLeaves"`
		MinChildSamples int     `yaml:"minChildSamples"`
		LedgerPath      string  `yaml:"ledgerPath"`
	} `yaml:"training"`

	Model struct {
		Path       string `yaml:"path"`
		RiskScheme string `yaml:"riskScheme"`
	} `yaml:"model"`

	Serving struct {
		APIPort        int    `yaml:"apiPort"`
		DashboardPort  int    `yaml:"dashboardPort"`
		FormPort       int    `yaml:"formPort"`
		APIURL         string `yaml:"apiURL"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"serving"`

	System struct {
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads a .env file when one is present, then the YAML file named by
// CONFIG_FILE, falling back to environment variables alone.
func Load() (Settings, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Settings{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := time.ParseDuration(config.Serving.RequestTimeout)
	if err != nil {
		timeout = 5 * time.Second
	}

	settings := Settings{
		DataPath:        getEnvOrDefault(common.EnvDataPath, orString(config.Data.Path, common.DefaultDataPath)),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, orString(config.Model.Path, common.DefaultModelPath)),
		LedgerPath:      getEnvOrDefault(common.EnvLedgerPath, config.Training.LedgerPath),
		LabelColumn:     getEnvOrDefault(common.EnvLabelColumn, orString(config.Data.LabelColumn, common.DefaultLabelColumn)),
		TestRatio:       getFloatFromEnvOrConfig(common.EnvTestRatio, config.Training.TestRatio, common.DefaultTestRatio),
		Seed:            int64(getIntFromEnvOrConfig(common.EnvSeed, int(config.Training.Seed), common.DefaultSeed)),
		NEstimators:     getIntFromEnvOrConfig(common.EnvNEstimators, config.Training.NEstimators, common.DefaultNEstimators),
		LearningRate:    getFloatFromEnvOrConfig(common.EnvLearningRate, config.Training.LearningRate, common.DefaultLearningRate),
		MaxDepth:        getIntFromEnvOrConfig(common.EnvMaxDepth, config.Training.MaxDepth, common.DefaultMaxDepth),
		NumLeaves:       getIntFromEnvOrConfig(common.EnvNumLeaves, config.Training.NumLeaves, common.DefaultNumLeaves),
		MinChildSamples: getIntFromEnvOrConfig(common.EnvMinChildSamples, config.Training.MinChildSamples, common.DefaultMinChildSamples),
		RiskScheme:      getEnvOrDefault(common.EnvRiskScheme, orString(config.Model.RiskScheme, common.DefaultRiskScheme)),
		APIPort:         getIntFromEnvOrConfig(common.EnvAPIPort, config.Serving.APIPort, common.DefaultAPIPort),
		DashboardPort:   getIntFromEnvOrConfig(common.EnvDashboardPort, config.Serving.DashboardPort, common.DefaultDashboardPort),
		FormPort:        getIntFromEnvOrConfig(common.EnvFormPort, config.Serving.FormPort, common.DefaultFormPort),
		APIURL:          getEnvOrDefault(common.EnvAPIURL, orString(config.Serving.APIURL, common.DefaultAPIURL)),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, timeout),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, common.DefaultLogLevel)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:        getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		LedgerPath:      os.Getenv(common.EnvLedgerPath), // optional
		LabelColumn:     getEnvOrDefault(common.EnvLabelColumn, common.DefaultLabelColumn),
		TestRatio:       getFloatOrDefault(common.EnvTestRatio, common.DefaultTestRatio),
		Seed:            int64(getIntOrDefault(common.EnvSeed, common.DefaultSeed)),
		NEstimators:     getIntOrDefault(common.EnvNEstimators, common.DefaultNEstimators),
		LearningRate:    getFloatOrDefault(common.EnvLearningRate, common.DefaultLearningRate),
		MaxDepth:        getIntOrDefault(common.EnvMaxDepth, common.DefaultMaxDepth),
		NumLeaves:       getIntOrDefault(common.EnvNumLeaves, common.DefaultNumLeaves),
		MinChildSamples: getIntOrDefault(common.EnvMinChildSamples, common.DefaultMinChildSamples),
		RiskScheme:      getEnvOrDefault(common.EnvRiskScheme, common.DefaultRiskScheme),
		APIPort:         getIntOrDefault(common.EnvAPIPort, common.DefaultAPIPort),
		DashboardPort:   getIntOrDefault(common.EnvDashboardPort, common.DefaultDashboardPort),
		FormPort:        getIntOrDefault(common.EnvFormPort, common.DefaultFormPort),
		APIURL:          getEnvOrDefault(common.EnvAPIURL, common.DefaultAPIURL),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, 5*time.Second),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orString(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs range validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.LabelColumn == "" {
		return fmt.Errorf("label column cannot be empty")
	}

	// Training parameters
	if settings.TestRatio < common.MinTestRatio || settings.TestRatio > common.MaxTestRatio {
		return fmt.Errorf("test ratio must be between %.2f and %.2f, got %f", common.MinTestRatio, common.MaxTestRatio, settings.TestRatio)
	}
	if settings.NEstimators <= 0 || settings.NEstimators > common.MaxNEstimators {
		return fmt.Errorf("n_estimators must be between 1 and %d, got %d", common.MaxNEstimators, settings.NEstimators)
	}
	if settings.LearningRate < common.MinLearningRate || settings.LearningRate > common.MaxLearningRate {
		return fmt.Errorf("learning rate must be between %g and %g, got %f", common.MinLearningRate, common.MaxLearningRate, settings.LearningRate)
	}
	if settings.MaxDepth <= 0 || settings.MaxDepth > common.MaxTreeDepth {
		return fmt.Errorf("max depth must be between 1 and %d, got %d", common.MaxTreeDepth, settings.MaxDepth)
	}
	if settings.NumLeaves < 2 {
		return fmt.Errorf("num leaves must be at least 2, got %d", settings.NumLeaves)
	}
	if settings.MinChildSamples <= 0 {
		return fmt.Errorf("min child samples must be positive, got %d", settings.MinChildSamples)
	}

	switch settings.RiskScheme {
	case common.RiskSchemeTwoBucket, common.RiskSchemeThreeBucket:
	default:
		return fmt.Errorf("risk scheme must be %q or %q, got %q", common.RiskSchemeTwoBucket, common.RiskSchemeThreeBucket, settings.RiskScheme)
	}

	// Serving
	for name, port := range map[string]int{"api": settings.APIPort, "dashboard": settings.DashboardPort, "form": settings.FormPort} {
		if port < common.MinPort || port > common.MaxPort {
			return fmt.Errorf("%s port must be between %d and %d, got %d", name, common.MinPort, common.MaxPort, port)
		}
	}
	if settings.APIURL == "" {
		return fmt.Errorf("API URL cannot be empty")
	}
	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}

	return nil
}
