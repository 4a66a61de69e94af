package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// MLP 单隐层多层感知机，ReLU 激活，对数损失
type MLP struct {
	W1           [][]float64 // hidden x input
	B1           []float64
	W2           []float64 // hidden
	B2           float64
	HiddenSize   int
	LearningRate float64
	Epochs       int
	BatchSize    int
	Seed         int64
}

// NewMLP 创建多层感知机估计器
func NewMLP(params Hyperparams) *MLP {
	return &MLP{
		HiddenSize:   params.GetInt("hidden_size", 32),
		LearningRate: params.Get("learning_rate", 0.01),
		Epochs:       params.GetInt("epochs", 50),
		BatchSize:    params.GetInt("batch_size", 64),
		Seed:         int64(params.GetInt("seed", 42)),
	}
}

// Fit 小批量 SGD 反向传播训练
func (m *MLP) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}
	nIn := len(X[0])
	rng := rand.New(rand.NewSource(m.Seed))

	// He 初始化
	scale := math.Sqrt(2.0 / float64(nIn))
	m.W1 = make([][]float64, m.HiddenSize)
	m.B1 = make([]float64, m.HiddenSize)
	m.W2 = make([]float64, m.HiddenSize)
	for h := range m.W1 {
		m.W1[h] = make([]float64, nIn)
		for j := range m.W1[h] {
			m.W1[h][j] = rng.NormFloat64() * scale
		}
		m.W2[h] = rng.NormFloat64() * math.Sqrt(2.0/float64(m.HiddenSize))
	}
	m.B2 = 0

	order := rng.Perm(len(X))
	hidden := make([]float64, m.HiddenSize)

	for epoch := 0; epoch < m.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += m.BatchSize {
			end := start + m.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]

			gradW1 := make([][]float64, m.HiddenSize)
			gradB1 := make([]float64, m.HiddenSize)
			gradW2 := make([]float64, m.HiddenSize)
			gradB2 := 0.0
			for h := range gradW1 {
				gradW1[h] = make([]float64, nIn)
			}

			for _, idx := range batch {
				x := X[idx]
				// 前向
				for h := range hidden {
					z := m.B1[h]
					for j, v := range x {
						z += m.W1[h][j] * v
					}
					if z < 0 {
						z = 0
					}
					hidden[h] = z
				}
				out := m.B2
				for h, a := range hidden {
					out += m.W2[h] * a
				}
				p := Sigmoid(out)

				// 反向
				dOut := p - y[idx]
				gradB2 += dOut
				for h, a := range hidden {
					gradW2[h] += dOut * a
					if a > 0 {
						dH := dOut * m.W2[h]
						gradB1[h] += dH
						for j, v := range x {
							gradW1[h][j] += dH * v
						}
					}
				}
			}

			lr := m.LearningRate / float64(len(batch))
			for h := range m.W1 {
				for j := range m.W1[h] {
					m.W1[h][j] -= lr * gradW1[h][j]
				}
				m.B1[h] -= lr * gradB1[h]
				m.W2[h] -= lr * gradW2[h]
			}
			m.B2 -= lr * gradB2
		}
	}
	return nil
}

// PredictProba 返回正类概率
func (m *MLP) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, x := range X {
		out := m.B2
		for h := range m.W1 {
			z := m.B1[h]
			for j, v := range x {
				z += m.W1[h][j] * v
			}
			if z > 0 {
				out += m.W2[h] * z
			}
		}
		probs[i] = Sigmoid(out)
	}
	return probs
}
