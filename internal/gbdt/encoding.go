package gbdt

import (
	"encoding/json"
	"fmt"
)

type classifierJSON struct {
	Params     Params    `json:"params"`
	InitScore  float64   `json:"init_score"`
	NFeatures  int       `json:"n_features"`
	Importance []float64 `json:"importance"`
	Trees      []*Tree   `json:"trees"`
}

// MarshalJSON encodes a fitted classifier. Floats are written in their
// shortest exact form, so a decoded model predicts bit-for-bit the same.
func (c *Classifier) MarshalJSON() ([]byte, error) {
	if c.trees == nil {
		return nil, ErrNotFitted
	}
	return json.Marshal(classifierJSON{
		Params:     c.params,
		InitScore:  c.initScore,
		NFeatures:  c.nFeatures,
		Importance: c.importance,
		Trees:      c.trees,
	})
}

// UnmarshalJSON decodes a classifier and checks that every tree is well formed.
func (c *Classifier) UnmarshalJSON(data []byte) error {
	var raw classifierJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.NFeatures <= 0 {
		return fmt.Errorf("gbdt: invalid feature count %d", raw.NFeatures)
	}
	if len(raw.Trees) == 0 {
		return fmt.Errorf("gbdt: model has no trees")
	}
	for i, t := range raw.Trees {
		if err := t.check(raw.NFeatures); err != nil {
			return fmt.Errorf("gbdt: tree %d: %w", i, err)
		}
	}
	if len(raw.Importance) != raw.NFeatures {
		raw.Importance = make([]float64, raw.NFeatures)
	}

	*c = Classifier{
		params:     raw.Params,
		initScore:  raw.InitScore,
		nFeatures:  raw.NFeatures,
		importance: raw.Importance,
		trees:      raw.Trees,
	}
	return nil
}

// check rejects trees that would index out of range or loop while predicting.
// Children must come after their parent.
func (t *Tree) check(nFeatures int) error {
	if t == nil || len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.isLeaf() {
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}
