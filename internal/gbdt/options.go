package gbdt

// Params are the boosting hyperparameters. The defaults mirror the usual
// LightGBM binary objective settings.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`  // <= 0 means unlimited
	NumLeaves       int     `json:"num_leaves"` // leaf-wise growth stops here
	MinChildSamples int     `json:"min_child_samples"`
	MinChildWeight  float64 `json:"min_child_weight"` // minimum hessian sum per leaf
	Lambda          float64 `json:"lambda"`           // L2 on leaf values
	Subsample       float64 `json:"subsample"`        // row fraction per tree, 1 disables bagging
	Seed            int64   `json:"seed"`
}

// DefaultParams returns the defaults used when no option overrides them.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        -1,
		NumLeaves:       31,
		MinChildSamples: 20,
		MinChildWeight:  1e-3,
		Lambda:          0,
		Subsample:       1,
		Seed:            0,
	}
}

// Option configures a Classifier.
type Option func(*Params)

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) Option { return func(p *Params) { p.NEstimators = n } }

// WithLearningRate sets the shrinkage applied to every tree's leaf values.
func WithLearningRate(lr float64) Option { return func(p *Params) { p.LearningRate = lr } }

// WithMaxDepth caps tree depth. Zero or negative leaves depth unlimited and
// growth is bounded by the leaf count alone.
func WithMaxDepth(d int) Option { return func(p *Params) { p.MaxDepth = d } }

// WithNumLeaves sets the most leaves a tree may grow.
func WithNumLeaves(n int) Option { return func(p *Params) { p.NumLeaves = n } }

// WithMinChildSamples sets the fewest rows a leaf may hold.
func WithMinChildSamples(n int) Option { return func(p *Params) { p.MinChildSamples = n } }

// WithMinChildWeight sets the smallest hessian sum a leaf may hold.
func WithMinChildWeight(w float64) Option { return func(p *Params) { p.MinChildWeight = w } }

// WithLambda sets the L2 penalty on leaf values.
func WithLambda(l float64) Option { return func(p *Params) { p.Lambda = l } }

// WithSubsample sets the share of rows each tree sees. 1 disables bagging.
func WithSubsample(fraction float64) Option { return func(p *Params) { p.Subsample = fraction } }

// WithSeed seeds row bagging so fits are reproducible.
func WithSeed(seed int64) Option { return func(p *Params) { p.Seed = seed } }

// WithParams replaces every parameter at once.
func WithParams(params Params) Option { return func(p *Params) { *p = params } }

func (p Params) validate() error {
	switch {
	case p.NEstimators <= 0:
		return paramError("n_estimators must be positive")
	case p.LearningRate <= 0:
		return paramError("learning_rate must be positive")
	case p.NumLeaves < 2:
		return paramError("num_leaves must be at least 2")
	case p.MinChildSamples < 1:
		return paramError("min_child_samples must be at least 1")
	case p.MinChildWeight < 0:
		return paramError("min_child_weight must not be negative")
	case p.Lambda < 0:
		return paramError("lambda must not be negative")
	case p.Subsample <= 0 || p.Subsample > 1:
		return paramError("subsample must be in (0, 1]")
	}
	return nil
}

type paramError string

func (e paramError) Error() string { return "gbdt: invalid params: " + string(e) }
