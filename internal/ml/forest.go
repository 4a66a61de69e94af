package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForest 自助采样 + 特征抽样的随机森林
// 每棵树以正类比例为目标，整体预测为各树均值
type RandomForest struct {
	Trees          []*Tree
	NumTrees       int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
	numFeatures    int
}

// NewRandomForest 创建随机森林估计器
func NewRandomForest(params Hyperparams) *RandomForest {
	return &RandomForest{
		NumTrees:       params.GetInt("n_estimators", 100),
		MaxDepth:       params.GetInt("max_depth", 8),
		MinSamplesLeaf: params.GetInt("min_samples_leaf", 2),
		Seed:           int64(params.GetInt("seed", 42)),
	}
}

// Fit 训练随机森林
func (m *RandomForest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}
	m.numFeatures = len(X[0])
	maxFeatures := int(math.Sqrt(float64(m.numFeatures)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	cfg := treeConfig{
		maxDepth:       m.MaxDepth,
		minSamplesLeaf: m.MinSamplesLeaf,
		maxFeatures:    maxFeatures,
	}

	rng := rand.New(rand.NewSource(m.Seed))
	m.Trees = make([]*Tree, m.NumTrees)
	indices := make([]int, len(X))
	for t := 0; t < m.NumTrees; t++ {
		// 自助采样
		for i := range indices {
			indices[i] = rng.Intn(len(X))
		}
		m.Trees[t] = &Tree{Root: growTree(X, y, indices, 0, cfg, rng)}
	}
	return nil
}

// PredictProba 各树预测的均值
func (m *RandomForest) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, x := range X {
		sum := 0.0
		for _, t := range m.Trees {
			sum += t.Predict(x)
		}
		probs[i] = Clip(sum/float64(len(m.Trees)), 0, 1)
	}
	return probs
}

// Decompose 逐树路径分解后取均值，base + sum(contrib) == 预测概率
func (m *RandomForest) Decompose(x []float64) (float64, []float64) {
	contrib := make([]float64, len(x))
	treeContrib := make([]float64, len(x))
	base := 0.0
	for _, t := range m.Trees {
		for j := range treeContrib {
			treeContrib[j] = 0
		}
		base += t.Decompose(x, treeContrib)
		for j, c := range treeContrib {
			contrib[j] += c
		}
	}
	n := float64(len(m.Trees))
	base /= n
	for j := range contrib {
		contrib[j] /= n
	}
	return base, contrib
}

// NumFeatures 返回训练时的特征数
func (m *RandomForest) NumFeatures() int {
	if m.numFeatures > 0 {
		return m.numFeatures
	}
	// gob 反序列化后从树结构恢复
	maxF := 0
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n == nil {
			return
		}
		if n.Feature+1 > maxF {
			maxF = n.Feature + 1
		}
		walk(n.Left)
		walk(n.Right)
	}
	for _, t := range m.Trees {
		walk(t.Root)
	}
	m.numFeatures = maxF
	return maxF
}

// FeatureImportances 按节点值变化幅度累计并归一化
func (m *RandomForest) FeatureImportances() []float64 {
	imp := make([]float64, m.NumFeatures())
	for _, t := range m.Trees {
		t.accumulateImportance(imp)
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}
