// Package quality 提供解释质量评估
package quality

import (
	"math"
	"sort"

	"github.com/ashwinyue/xai-bench/internal/ml"
)

// 数值计算失败时各子分数的回退常数
const (
	fallbackFaithfulness = 0.5
	fallbackRobustness   = 0.8
	fallbackComplexity   = 0.7
)

const (
	topFeatureCount    = 5    // 单调性检验替换的特征数
	selectivityDivisor = 10.0 // 选择性归一化分母
	significanceShare  = 0.01 // 特征计入显著的最小归一化权重
	massThreshold      = 0.8  // 稀疏度累计权重阈值
	noiseRatio         = 0.01 // 鲁棒性扰动幅度，相对列标准差
)

// Monotonicity 将 top 特征替换为总体中位数后预测概率的平均非负下降
func Monotonicity(predict func(x []float64) float64, rows [][]float64, medians []float64, topIdx []int) float64 {
	if len(rows) == 0 || len(topIdx) == 0 {
		return math.NaN()
	}
	sum, count := 0.0, 0
	buf := make([]float64, len(medians))
	for _, x := range rows {
		p := predict(x)
		for _, j := range topIdx {
			if j < 0 || j >= len(x) {
				continue
			}
			copy(buf, x)
			buf[j] = medians[j]
			drop := p - predict(buf)
			if drop < 0 {
				drop = 0
			}
			sum += drop
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

// Selectivity 显著特征数相对期望上限的占比，封顶为 1
func Selectivity(importance []float64) float64 {
	total := absSum(importance)
	if total <= 0 {
		return 0
	}
	significant := 0
	for _, v := range importance {
		if math.Abs(v)/total > significanceShare {
			significant++
		}
	}
	return math.Min(1, float64(significant)/selectivityDivisor)
}

// Complexity 归一化 Gini 与稀疏度各占一半；权重集中在单个特征时趋向 1
func Complexity(importance []float64) float64 {
	if len(importance) == 0 {
		return math.NaN()
	}
	abs := make([]float64, len(importance))
	for j, v := range importance {
		abs[j] = math.Abs(v)
	}
	if absSum(abs) <= 0 {
		return math.NaN()
	}
	gini := NormalizedGini(abs)
	sparsity := 1 - float64(EffectiveFeatures(abs, massThreshold))/float64(len(abs))
	return 0.5*gini + 0.5*sparsity
}

// NormalizedGini 把 Gini 系数缩放到 [0, 1]：全部权重落在单个特征时为 1
func NormalizedGini(values []float64) float64 {
	n := len(values)
	if n <= 1 {
		if n == 1 && values[0] > 0 {
			return 1
		}
		return 0
	}
	g := ml.GiniCoefficient(values) * float64(n) / float64(n-1)
	return ml.Clip(g, 0, 1)
}

// EffectiveFeatures 按权重降序累计到阈值占比所需的特征数
func EffectiveFeatures(values []float64, threshold float64) int {
	total := absSum(values)
	if total <= 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	for j, v := range values {
		sorted[j] = math.Abs(v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	acc := 0.0
	for i, v := range sorted {
		acc += v
		if acc >= threshold*total {
			return i + 1
		}
	}
	return len(sorted)
}

// topIndices 返回 |importance| 最大的前 k 个下标，按权重降序
func topIndices(importance []float64, k int) []int {
	idx := make([]int, len(importance))
	for j := range idx {
		idx[j] = j
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(importance[idx[a]]) > math.Abs(importance[idx[b]])
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}

func absSum(xs []float64) float64 {
	total := 0.0
	for _, v := range xs {
		total += math.Abs(v)
	}
	return total
}

// columnMedians 逐列中位数
func columnMedians(X [][]float64, cols int) []float64 {
	medians := make([]float64, cols)
	if len(X) == 0 {
		return medians
	}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			medians[j] = (sorted[mid-1] + sorted[mid]) / 2
		} else {
			medians[j] = sorted[mid]
		}
	}
	return medians
}

// columnStds 逐列标准差
func columnStds(X [][]float64, cols int) []float64 {
	stds := make([]float64, cols)
	if len(X) == 0 {
		return stds
	}
	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		stds[j] = ml.Std(col)
	}
	return stds
}
