// Package benchmark 提供解释方法间的一致性对比
package benchmark

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

var overlapDepths = []int{5, 10, 20}

// ExplanationSource 对比所需的解释访问能力，由 explain.Service 提供
type ExplanationSource interface {
	Get(ctx context.Context, id string) (*model.Explanation, error)
}

// Service 解释对比服务
type Service struct {
	explains ExplanationSource
}

// NewService 创建对比服务
func NewService(explains ExplanationSource) *Service {
	return &Service{explains: explains}
}

// CompareRequest 对比请求
type CompareRequest struct {
	ExplanationA string `json:"explanation_a" binding:"required"`
	ExplanationB string `json:"explanation_b" binding:"required"`
}

// Comparison 两份解释在特征排名上的一致性
type Comparison struct {
	ExplanationA    string             `json:"explanation_a"`
	ExplanationB    string             `json:"explanation_b"`
	ModelID         string             `json:"model_id"`
	MethodA         string             `json:"method_a"`
	MethodB         string             `json:"method_b"`
	CommonFeatures  int                `json:"common_features"`
	RankCorrelation float64            `json:"rank_correlation"`
	TopKOverlap     map[string]float64 `json:"top_k_overlap"`
}

// Compare 对比同一模型下两份已完成解释的特征排名一致性
func (s *Service) Compare(ctx context.Context, req *CompareRequest) (*Comparison, error) {
	a, err := s.completed(ctx, req.ExplanationA)
	if err != nil {
		return nil, err
	}
	b, err := s.completed(ctx, req.ExplanationB)
	if err != nil {
		return nil, err
	}
	if a.ModelID != b.ModelID {
		return nil, types.NewValidation("explanations %s and %s belong to different models", a.ID, b.ID)
	}

	result := CompareImportance(a.FeatureImportance, b.FeatureImportance)
	result.ExplanationA = a.ID
	result.ExplanationB = b.ID
	result.ModelID = a.ModelID
	result.MethodA = string(a.Method)
	result.MethodB = string(b.Method)
	return result, nil
}

func (s *Service) completed(ctx context.Context, id string) (*model.Explanation, error) {
	e, err := s.explains.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != model.ExplanationStatusCompleted {
		return nil, types.NewValidation("explanation %s is not completed (status %s)", e.ID, e.Status)
	}
	if len(e.FeatureImportance) == 0 {
		return nil, types.NewValidation("explanation %s has no feature importance to compare", e.ID)
	}
	return e, nil
}

// CompareImportance 计算公共特征上的 Spearman 秩相关与 top-k 重叠率
func CompareImportance(a, b model.FloatMap) *Comparison {
	common := commonFeatures(a, b)
	va := make([]float64, len(common))
	vb := make([]float64, len(common))
	for i, name := range common {
		va[i] = math.Abs(a[name])
		vb[i] = math.Abs(b[name])
	}

	rho := 0.0
	if len(common) >= 2 {
		rho = ml.Spearman(va, vb)
		if math.IsNaN(rho) {
			rho = 0
		}
	}

	overlap := make(map[string]float64, len(overlapDepths))
	for _, k := range overlapDepths {
		overlap[fmt.Sprintf("top_%d", k)] = topKOverlap(a, b, k)
	}

	return &Comparison{
		CommonFeatures:  len(common),
		RankCorrelation: rho,
		TopKOverlap:     overlap,
	}
}

// topKOverlap 各自 |重要性| 前 k 名的交集占比，k 超出特征数时取实际特征数
func topKOverlap(a, b model.FloatMap, k int) float64 {
	topA := topFeatures(a, k)
	topB := topFeatures(b, k)
	depth := len(topA)
	if len(topB) < depth {
		depth = len(topB)
	}
	if depth == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(topA))
	for _, name := range topA {
		set[name] = struct{}{}
	}
	hits := 0
	for _, name := range topB {
		if _, ok := set[name]; ok {
			hits++
		}
	}
	return float64(hits) / float64(depth)
}

// topFeatures 按 |重要性| 降序取前 k 个特征名；同值时按名称排序保证确定性
func topFeatures(importance model.FloatMap, k int) []string {
	names := make([]string, 0, len(importance))
	for name := range importance {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ai, aj := math.Abs(importance[names[i]]), math.Abs(importance[names[j]])
		if ai != aj {
			return ai > aj
		}
		return names[i] < names[j]
	})
	if k > len(names) {
		k = len(names)
	}
	return names[:k]
}

func commonFeatures(a, b model.FloatMap) []string {
	common := make([]string, 0, len(a))
	for name := range a {
		if _, ok := b[name]; ok {
			common = append(common, name)
		}
	}
	sort.Strings(common)
	return common
}
