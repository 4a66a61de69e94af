package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// GradientBoosting 对数损失下的梯度提升树
// 每轮在概率残差上拟合一棵回归树，margin 空间累加
type GradientBoosting struct {
	Trees          []*Tree
	InitMargin     float64
	LearningRate   float64
	NumTrees       int
	MaxDepth       int
	MinSamplesLeaf int
	Subsample      float64
	Patience       int
	Seed           int64

	// 早停用的验证集，不随工件序列化
	valX [][]float64
	valY []float64
}

// NewGradientBoosting 创建梯度提升估计器
func NewGradientBoosting(params Hyperparams) *GradientBoosting {
	return &GradientBoosting{
		LearningRate:   params.Get("learning_rate", 0.1),
		NumTrees:       params.GetInt("n_estimators", 100),
		MaxDepth:       params.GetInt("max_depth", 3),
		MinSamplesLeaf: params.GetInt("min_samples_leaf", 2),
		Subsample:      params.Get("subsample", 0.8),
		Patience:       params.GetInt("early_stopping_rounds", 10),
		Seed:           int64(params.GetInt("seed", 42)),
	}
}

// SetValidation 设置早停用的验证集
func (m *GradientBoosting) SetValidation(X [][]float64, y []float64) {
	m.valX = X
	m.valY = y
}

// Fit 训练梯度提升树
func (m *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}

	pos := 0.0
	for _, v := range y {
		pos += v
	}
	p := Clip(pos/float64(len(y)), 1e-6, 1-1e-6)
	m.InitMargin = math.Log(p / (1 - p))

	cfg := treeConfig{maxDepth: m.MaxDepth, minSamplesLeaf: m.MinSamplesLeaf}
	rng := rand.New(rand.NewSource(m.Seed))

	margins := make([]float64, len(X))
	for i := range margins {
		margins[i] = m.InitMargin
	}
	residuals := make([]float64, len(X))
	m.Trees = make([]*Tree, 0, m.NumTrees)

	sampleSize := int(m.Subsample * float64(len(X)))
	if sampleSize < 1 {
		sampleSize = len(X)
	}

	valMargins := make([]float64, len(m.valX))
	for i := range valMargins {
		valMargins[i] = m.InitMargin
	}
	bestLoss := math.Inf(1)
	bestRound := 0
	stale := 0

	for t := 0; t < m.NumTrees; t++ {
		for i := range residuals {
			residuals[i] = y[i] - Sigmoid(margins[i])
		}

		// 无放回子采样
		perm := rng.Perm(len(X))
		indices := perm[:sampleSize]

		tree := &Tree{Root: growTree(X, residuals, indices, 0, cfg, rng)}
		m.Trees = append(m.Trees, tree)

		for i, x := range X {
			margins[i] += m.LearningRate * tree.Predict(x)
		}

		// 验证集损失不再改善时早停，裁回最优轮数
		if len(m.valX) > 0 && m.Patience > 0 {
			for i, x := range m.valX {
				valMargins[i] += m.LearningRate * tree.Predict(x)
			}
			loss := marginLogLoss(valMargins, m.valY)
			if loss < bestLoss-1e-9 {
				bestLoss = loss
				bestRound = t + 1
				stale = 0
			} else {
				stale++
				if stale >= m.Patience {
					m.Trees = m.Trees[:bestRound]
					break
				}
			}
		}
	}
	m.valX, m.valY = nil, nil
	return nil
}

func marginLogLoss(margins, y []float64) float64 {
	loss := 0.0
	for i, z := range margins {
		p := Clip(Sigmoid(z), 1e-12, 1-1e-12)
		loss += -(y[i]*math.Log(p) + (1-y[i])*math.Log(1-p))
	}
	return loss / float64(len(margins))
}

// Margin 返回 logit 空间的累计得分
func (m *GradientBoosting) Margin(x []float64) float64 {
	z := m.InitMargin
	for _, t := range m.Trees {
		z += m.LearningRate * t.Predict(x)
	}
	return z
}

// PredictProba 返回正类概率
func (m *GradientBoosting) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, x := range X {
		probs[i] = Sigmoid(m.Margin(x))
	}
	return probs
}

// Decompose 先在 margin 空间逐树路径分解，再线性缩放到概率空间
// 缩放保持 base + sum(contrib) == 预测概率
func (m *GradientBoosting) Decompose(x []float64) (float64, []float64) {
	contrib := make([]float64, len(x))
	treeContrib := make([]float64, len(x))
	baseMargin := m.InitMargin
	margin := m.InitMargin
	for _, t := range m.Trees {
		for j := range treeContrib {
			treeContrib[j] = 0
		}
		treeBase := t.Decompose(x, treeContrib)
		baseMargin += m.LearningRate * treeBase
		margin += m.LearningRate * treeBase
		for j, c := range treeContrib {
			contrib[j] += m.LearningRate * c
			margin += m.LearningRate * c
		}
	}

	baseProb := Sigmoid(baseMargin)
	prob := Sigmoid(margin)
	delta := margin - baseMargin
	scale := 0.0
	if math.Abs(delta) > 1e-12 {
		scale = (prob - baseProb) / delta
	}
	for j := range contrib {
		contrib[j] *= scale
	}
	return baseProb, contrib
}

// FeatureImportances 按节点值变化幅度累计并归一化
func (m *GradientBoosting) FeatureImportances() []float64 {
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

	imp := make([]float64, maxF)
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
