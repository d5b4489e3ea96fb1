package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvDataPath        = "DATA_PATH"
	EnvModelPath       = "MODEL_PATH"
	EnvLedgerPath      = "LEDGER_PATH"
	EnvLabelColumn     = "LABEL_COLUMN"
	EnvTestRatio       = "TEST_RATIO"
	EnvSeed            = "SEED"
	EnvNEstimators     = "N_ESTIMATORS"
	EnvLearningRate    = "LEARNING_RATE"
	EnvMaxDepth        = "MAX_DEPTH"
	EnvNumLeaves       = "NUM_LEAVES"
	EnvMinChildSamples = "MIN_CHILD_SAMPLES"
	EnvRiskScheme      = "RISK_SCHEME"
	EnvAPIPort         = "API_PORT"
	EnvDashboardPort   = "DASHBOARD_PORT"
	EnvFormPort        = "FORM_PORT"
	EnvAPIURL          = "API_URL"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
)

// Configuration defaults
const (
	DefaultDataPath        = "data/raw/student_dropout_data.csv"
	DefaultModelPath       = "models/student_dropout_model.json"
	DefaultLabelColumn     = "Status"
	DefaultTestRatio       = 0.2
	DefaultSeed            = 42
	DefaultNEstimators     = 300
	DefaultLearningRate    = 0.05
	DefaultMaxDepth        = 7
	DefaultNumLeaves       = 31
	DefaultMinChildSamples = 20
	DefaultRiskScheme      = RiskSchemeTwoBucket
	DefaultAPIPort         = 8080
	DefaultDashboardPort   = 8501
	DefaultFormPort        = 7860
	DefaultAPIURL          = "http://localhost:8080"
	DefaultLogLevel        = "info"
)

// Risk schemes. A deployment runs exactly one of them across every front-end.
const (
	RiskSchemeTwoBucket   = "two-bucket"
	RiskSchemeThreeBucket = "three-bucket"
)

// Risk thresholds
const (
	HighRiskThreshold     = 0.6
	ModerateRiskThreshold = 0.3
)

// Risk category labels
const (
	RiskHigh     = "High Risk"
	RiskModerate = "Moderate Risk"
	RiskLow      = "Low Risk"
)

// Label categories of the raw Status column
const (
	StatusDropout  = "Dropout"
	StatusEnrolled = "Enrolled"
	StatusGraduate = "Graduate"
)

// Common error messages
const (
	ErrMsgModelNotLoaded = "model not loaded"
)

// Validation constants
const (
	MinPort         = 1024
	MaxPort         = 65535
	MinTestRatio    = 0.05
	MaxTestRatio    = 0.5
	MaxNEstimators  = 5000
	MaxTreeDepth    = 32
	MinLearningRate = 1e-4
	MaxLearningRate = 1.0
)
