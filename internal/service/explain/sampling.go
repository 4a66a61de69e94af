package explain

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
)

// samplingAttributor 黑盒模型的采样归因
// 以二值掩码扰动样本（保留原值或代入背景样本值），在加权岭回归
// 代理模型上估计逐特征贡献。shap 模式使用 Shapley 核权重并强制
// 守恒；lime 模式使用指数距离核
type samplingAttributor struct {
	method     model.ExplanationMethod
	estimator  ml.Estimator
	background *ml.Frame
	baseValue  float64
	nSamples   int
	lambda     float64
	seed       int64
}

func newSamplingAttributor(method model.ExplanationMethod, est ml.Estimator, background *ml.Frame, nSamples int, seed int64) *samplingAttributor {
	if nSamples <= 0 {
		nSamples = 256
	}
	probs := est.PredictProba(background.X)
	return &samplingAttributor{
		method:     method,
		estimator:  est,
		background: background,
		baseValue:  ml.Mean(probs),
		nSamples:   nSamples,
		lambda:     1e-3,
		seed:       seed,
	}
}

// Method 返回解释方法名
func (a *samplingAttributor) Method() model.ExplanationMethod {
	return a.method
}

// Local 估计单样本的基准值与逐特征贡献
func (a *samplingAttributor) Local(x []float64) (float64, []float64, error) {
	nFeatures := len(x)
	if a.background.Rows() == 0 {
		return 0, nil, fmt.Errorf("empty background data")
	}

	rng := rand.New(rand.NewSource(a.seed))
	masks := make([][]float64, 0, a.nSamples+2)
	preds := make([]float64, 0, a.nSamples+2)
	weights := make([]float64, 0, a.nSamples+2)

	// 全零与全一掩码锚定基准值与原始预测
	full := make([]float64, nFeatures)
	for j := range full {
		full[j] = 1
	}
	prediction := ml.PredictOne(a.estimator, x)
	masks = append(masks, make([]float64, nFeatures), full)
	preds = append(preds, a.baseValue, prediction)
	weights = append(weights, 1e6, 1e6)

	perturbed := make([]float64, nFeatures)
	for k := 0; k < a.nSamples; k++ {
		mask := make([]float64, nFeatures)
		kept := 0
		ref := a.background.X[rng.Intn(a.background.Rows())]
		for j := range mask {
			if rng.Float64() < 0.5 {
				mask[j] = 1
				kept++
				perturbed[j] = x[j]
			} else {
				perturbed[j] = ref[j]
			}
		}
		p := ml.PredictOne(a.estimator, perturbed)

		masks = append(masks, mask)
		preds = append(preds, p)
		weights = append(weights, a.weight(mask, x, perturbed, kept, nFeatures))
	}

	contrib, err := weightedRidge(masks, preds, weights, a.baseValue, a.lambda)
	if err != nil {
		return 0, nil, err
	}

	// shap 模式下将残差均摊以保证守恒
	if a.method == model.ExplanationMethodSHAP {
		sum := a.baseValue
		for _, c := range contrib {
			sum += c
		}
		residual := (prediction - sum) / float64(nFeatures)
		for j := range contrib {
			contrib[j] += residual
		}
	}
	return a.baseValue, contrib, nil
}

// weight 计算扰动样本的核权重
func (a *samplingAttributor) weight(mask, x, perturbed []float64, kept, nFeatures int) float64 {
	switch a.method {
	case model.ExplanationMethodSHAP:
		// Shapley 核：极端掩码权重高
		if kept == 0 || kept == nFeatures {
			return 1e6
		}
		return float64(nFeatures-1) /
			(binomial(nFeatures, kept) * float64(kept) * float64(nFeatures-kept))
	default:
		// 指数距离核
		dist := 0.0
		for j := range x {
			d := x[j] - perturbed[j]
			dist += d * d
		}
		width := float64(nFeatures) * 0.75
		return math.Exp(-dist / width)
	}
}

func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	out := 1.0
	for i := 0; i < k; i++ {
		out = out * float64(n-i) / float64(i+1)
	}
	return out
}

// weightedRidge 固定截距的加权岭回归
// 求解 (A^T W A + λI) φ = A^T W (y - base)
func weightedRidge(masks [][]float64, preds, weights []float64, base, lambda float64) ([]float64, error) {
	if len(masks) == 0 {
		return nil, fmt.Errorf("no perturbation samples")
	}
	m := len(masks[0])

	ata := make([][]float64, m)
	atb := make([]float64, m)
	for i := range ata {
		ata[i] = make([]float64, m)
		ata[i][i] = lambda
	}
	for k, mask := range masks {
		w := weights[k]
		r := preds[k] - base
		for i := 0; i < m; i++ {
			if mask[i] == 0 {
				continue
			}
			atb[i] += w * r
			for j := i; j < m; j++ {
				if mask[j] != 0 {
					ata[i][j] += w
				}
			}
		}
	}
	for i := 0; i < m; i++ {
		for j := 0; j < i; j++ {
			ata[i][j] = ata[j][i]
		}
	}
	return solve(ata, atb)
}

// solve 列主元高斯消元
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for j := col; j < n; j++ {
				a[row][j] -= factor * a[col][j]
			}
			b[row] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i][j] * x[j]
		}
		x[i] = sum / a[i][i]
	}
	return x, nil
}
