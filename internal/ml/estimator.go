package ml

import (
	"fmt"
)

// Estimator 二分类估计器
type Estimator interface {
	// Fit 在特征矩阵 X 和标签 y（0/1）上训练
	Fit(X [][]float64, y []float64) error
	// PredictProba 返回每个样本属于正类的概率
	PredictProba(X [][]float64) []float64
}

// PathDecomposer 支持按决策路径逐特征分解预测的估计器
type PathDecomposer interface {
	// Decompose 返回基准值与各特征贡献，满足 base + sum(contrib) == 预测值
	Decompose(x []float64) (base float64, contrib []float64)
}

// ValidationAware 支持用验证集做早停的估计器
type ValidationAware interface {
	// SetValidation 设置 Fit 期间监控的验证集
	SetValidation(X [][]float64, y []float64)
}

// FeatureRanker 自带全局特征重要性的估计器
type FeatureRanker interface {
	// FeatureImportances 返回归一化的全局特征重要性
	FeatureImportances() []float64
}

// Hyperparams 超参数集合，缺失键使用默认值
type Hyperparams map[string]float64

// Get 读取超参数，缺失时返回默认值
func (h Hyperparams) Get(key string, def float64) float64 {
	if h == nil {
		return def
	}
	if v, ok := h[key]; ok {
		return v
	}
	return def
}

// GetInt 读取整型超参数
func (h Hyperparams) GetInt(key string, def int) int {
	return int(h.Get(key, float64(def)))
}

// NewEstimator 按算法名创建估计器
func NewEstimator(kind string, params Hyperparams) (Estimator, error) {
	switch kind {
	case "logistic_regression":
		return NewLogisticRegression(params), nil
	case "random_forest":
		return NewRandomForest(params), nil
	case "gradient_boosting":
		return NewGradientBoosting(params), nil
	case "mlp":
		return NewMLP(params), nil
	default:
		return nil, fmt.Errorf("unsupported estimator kind %q", kind)
	}
}

// PredictOne 单样本预测
func PredictOne(e Estimator, x []float64) float64 {
	return e.PredictProba([][]float64{x})[0]
}
