package predictor

import (
	"context"
	"fmt"

	"taxieta/internal/modules/features"
)

// maxTreeDepth bounds traversal so a malformed artifact cannot loop forever.
const maxTreeDepth = 64

type treeNode struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

type tree struct {
	Nodes []treeNode `json:"nodes"`
}

type treeEnsembleArtifact struct {
	Kind         Kind     `json:"kind"`
	Columns      []string `json:"columns"`
	BaseScore    float64  `json:"base_score"`
	LearningRate float64  `json:"learning_rate"`
	Trees        []tree   `json:"trees"`
}

// TreeEnsemble is a boosted sum of regression trees: base + rate·Σ leaf(x).
// Internal nodes send x to Left when x[Feature] <= Threshold.
type TreeEnsemble struct {
	columns features.Schema
	base    float64
	rate    float64
	trees   []tree
}

func newTreeEnsemble(a treeEnsembleArtifact) (*TreeEnsemble, error) {
	schema, err := features.NewSchema(a.Columns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("%w: ensemble has no trees", ErrInvalidArtifact)
	}
	rate := a.LearningRate
	if rate == 0 {
		rate = 1
	}
	if !finite(rate) || !finite(a.BaseScore) {
		return nil, fmt.Errorf("%w: base_score and learning_rate must be finite", ErrInvalidArtifact)
	}
	for ti, t := range a.Trees {
		if err := validateTree(t, len(schema)); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrInvalidArtifact, ti, err)
		}
	}
	return &TreeEnsemble{columns: schema, base: a.BaseScore, rate: rate, trees: a.Trees}, nil
}

func validateTree(t tree, numFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			if !finite(n.Value) {
				return fmt.Errorf("leaf %d value is not finite", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d splits on feature %d, have %d", i, n.Feature, numFeatures)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d children (%d,%d) must point forward within %d nodes", i, n.Left, n.Right, len(t.Nodes))
		}
	}

	// Children point forward, so one pass in index order settles every node's depth.
	depth := make([]int, len(t.Nodes))
	depth[0] = 1
	for i, n := range t.Nodes {
		if depth[i] == 0 || n.Leaf {
			continue
		}
		if depth[i] >= maxTreeDepth {
			return fmt.Errorf("node %d at depth %d has children beyond %d levels", i, depth[i], maxTreeDepth)
		}
		depth[n.Left] = max(depth[n.Left], depth[i]+1)
		depth[n.Right] = max(depth[n.Right], depth[i]+1)
	}
	return nil
}

func (m *TreeEnsemble) Columns() features.Schema { return m.columns }

func (m *TreeEnsemble) Predict(_ context.Context, v features.Vector) (float64, error) {
	if err := checkShape(v, m.columns); err != nil {
		return 0, err
	}
	sum := 0.0
	for ti := range m.trees {
		leaf, err := m.trees[ti].eval(v)
		if err != nil {
			return 0, fmt.Errorf("%w: tree %d: %v", ErrPredictionFailed, ti, err)
		}
		sum += leaf
	}
	return m.base + m.rate*sum, nil
}

func (t *tree) eval(v features.Vector) (float64, error) {
	idx := 0
	for depth := 0; depth < maxTreeDepth; depth++ {
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Value, nil
		}
		if v[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return 0, fmt.Errorf("exceeded depth %d", maxTreeDepth)
}
