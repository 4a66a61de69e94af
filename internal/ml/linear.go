package ml

import (
	"fmt"
	"math/rand"
)

// LogisticRegression L2 正则的逻辑回归，小批量 SGD 训练
type LogisticRegression struct {
	Weights      []float64
	Bias         float64
	LearningRate float64
	L2           float64
	Epochs       int
	BatchSize    int
	Seed         int64
}

// NewLogisticRegression 创建逻辑回归估计器
func NewLogisticRegression(params Hyperparams) *LogisticRegression {
	return &LogisticRegression{
		LearningRate: params.Get("learning_rate", 0.1),
		L2:           params.Get("l2", 1e-4),
		Epochs:       params.GetInt("epochs", 100),
		BatchSize:    params.GetInt("batch_size", 64),
		Seed:         int64(params.GetInt("seed", 42)),
	}
}

// Fit 小批量 SGD 训练
func (m *LogisticRegression) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}
	nFeatures := len(X[0])
	m.Weights = make([]float64, nFeatures)
	m.Bias = 0

	rng := rand.New(rand.NewSource(m.Seed))
	order := rng.Perm(len(X))

	for epoch := 0; epoch < m.Epochs; epoch++ {
		// 逐 epoch 重新洗牌
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += m.BatchSize {
			end := start + m.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]

			grad := make([]float64, nFeatures)
			gradBias := 0.0
			for _, idx := range batch {
				p := Sigmoid(m.margin(X[idx]))
				diff := p - y[idx]
				for j, v := range X[idx] {
					grad[j] += diff * v
				}
				gradBias += diff
			}

			scale := m.LearningRate / float64(len(batch))
			for j := range m.Weights {
				m.Weights[j] -= scale*grad[j] + m.LearningRate*m.L2*m.Weights[j]
			}
			m.Bias -= scale * gradBias
		}
	}
	return nil
}

func (m *LogisticRegression) margin(x []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		z += w * x[j]
	}
	return z
}

// PredictProba 返回正类概率
func (m *LogisticRegression) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, x := range X {
		probs[i] = Sigmoid(m.margin(x))
	}
	return probs
}

// FeatureImportances 以 |w| 归一化作为全局重要性
func (m *LogisticRegression) FeatureImportances() []float64 {
	imp := make([]float64, len(m.Weights))
	total := 0.0
	for j, w := range m.Weights {
		if w < 0 {
			imp[j] = -w
		} else {
			imp[j] = w
		}
		total += imp[j]
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}
