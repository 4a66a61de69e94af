// Package explain 提供模型解释引擎
package explain

import (
	"sort"

	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
)

// Attributor 特征归因器
type Attributor interface {
	// Method 返回解释方法名
	Method() model.ExplanationMethod
	// Local 返回单样本的基准值与各特征贡献
	Local(x []float64) (base float64, contrib []float64, err error)
}

// FeatureRank 带排名的特征重要性
type FeatureRank struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Rank       int     `json:"rank"`
}

// GlobalAttribution 全局归因：样本上 |贡献| 的均值
func GlobalAttribution(a Attributor, X [][]float64) ([]float64, error) {
	if len(X) == 0 {
		return nil, nil
	}
	acc := make([]float64, len(X[0]))
	for _, x := range X {
		_, contrib, err := a.Local(x)
		if err != nil {
			return nil, err
		}
		for j, c := range contrib {
			if c < 0 {
				c = -c
			}
			acc[j] += c
		}
	}
	for j := range acc {
		acc[j] /= float64(len(X))
	}
	return acc, nil
}

// RankFeatures 按重要性降序排名
func RankFeatures(names []string, importance []float64) []FeatureRank {
	ranks := make([]FeatureRank, len(names))
	for j, name := range names {
		ranks[j] = FeatureRank{Feature: name, Importance: importance[j]}
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].Importance > ranks[j].Importance
	})
	for i := range ranks {
		ranks[i].Rank = i + 1
	}
	return ranks
}

// backgroundMeans 背景数据的逐列均值
func backgroundMeans(frame *ml.Frame) []float64 {
	means := make([]float64, frame.Cols())
	if frame.Rows() == 0 {
		return means
	}
	for _, row := range frame.X {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(frame.Rows())
	}
	return means
}
