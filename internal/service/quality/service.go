package quality

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/xai-bench/internal/config"
	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
	"github.com/ashwinyue/xai-bench/internal/repository"
	"github.com/ashwinyue/xai-bench/internal/service/explain"
	"github.com/ashwinyue/xai-bench/internal/service/task"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// 质量评估的采样与等待边界
const (
	defaultSampleRows = 50
	maxSampleRows     = 100
	robustnessRows    = 20
	evaluateTimeout   = 60 * time.Second
	metricSeed        = 42
)

// ModelSource 评估所需的模型访问能力，由 training.Service 提供
type ModelSource interface {
	Get(ctx context.Context, id string) (*model.Model, error)
}

// DatasetSource 评估所需的数据集访问能力，由 dataset.Service 提供
type DatasetSource interface {
	Get(ctx context.Context, id string) (*model.Dataset, error)
	LoadSplit(ctx context.Context, ds *model.Dataset, split string) (*ml.Frame, error)
}

// ExplanationSource 评估所需的解释访问能力，由 explain.Service 提供
type ExplanationSource interface {
	Get(ctx context.Context, id string) (*model.Explanation, error)
	AttributorFor(ctx context.Context, m *model.Model, ds *model.Dataset, method model.ExplanationMethod) (explain.Attributor, ml.Estimator, error)
}

// Service 解释质量评估服务
type Service struct {
	repo       *repository.Repositories
	trainer    ModelSource
	datasets   DatasetSource
	explains   ExplanationSource
	dispatcher *task.Dispatcher
	cfg        *config.Config
}

// NewService 创建质量评估服务
func NewService(repo *repository.Repositories, trainer ModelSource, datasets DatasetSource, explains ExplanationSource, dispatcher *task.Dispatcher, cfg *config.Config) *Service {
	return &Service{
		repo:       repo,
		trainer:    trainer,
		datasets:   datasets,
		explains:   explains,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// EvaluateRequest 质量评估请求
type EvaluateRequest struct {
	ExplanationID string `json:"explanation_id" binding:"required"`
	SampleSize    int    `json:"sample_size"`
}

// Evaluate 对一条已完成的解释做质量评估；评估在后台执行，
// 调用方最多等待 evaluateTimeout，超时后任务继续运行但调用返回错误
func (s *Service) Evaluate(ctx context.Context, req *EvaluateRequest) (*model.QualityEvaluation, error) {
	e, err := s.explains.Get(ctx, req.ExplanationID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.ExplanationStatusCompleted {
		return nil, types.NewValidation("explanation %s is not completed (status %s)", e.ID, e.Status)
	}
	if len(e.FeatureImportance) == 0 {
		return nil, types.NewValidation("explanation %s has no feature importance to evaluate", e.ID)
	}

	sample := clampSample(req.SampleSize)

	var result *model.QualityEvaluation
	t, err := s.dispatcher.Submit("quality:"+e.ID, func(ctx context.Context) error {
		qe, err := s.runEvaluation(ctx, e, sample)
		if err != nil {
			return err
		}
		result = qe
		return nil
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-t.Done():
		if err := t.Err(); err != nil {
			return nil, err
		}
		return result, nil
	case <-time.After(evaluateTimeout):
		return nil, types.NewComputation("quality evaluation", fmt.Errorf("evaluation of %s did not finish within %s", e.ID, evaluateTimeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func clampSample(requested int) int {
	if requested <= 0 {
		return defaultSampleRows
	}
	if requested > maxSampleRows {
		return maxSampleRows
	}
	return requested
}

// runEvaluation 计算三项子分数并持久化评估记录
func (s *Service) runEvaluation(ctx context.Context, e *model.Explanation, sample int) (*model.QualityEvaluation, error) {
	m, err := s.trainer.Get(ctx, e.ModelID)
	if err != nil {
		return nil, err
	}
	ds, err := s.datasets.Get(ctx, m.DatasetID)
	if err != nil {
		return nil, err
	}
	test, err := s.datasets.LoadSplit(ctx, ds, "test")
	if err != nil {
		return nil, err
	}
	if test.Rows() == 0 {
		return nil, types.NewComputation("quality evaluation", fmt.Errorf("test split is empty"))
	}
	attributor, estimator, err := s.explains.AttributorFor(ctx, m, ds, e.Method)
	if err != nil {
		return nil, err
	}

	if sample > test.Rows() {
		sample = test.Rows()
	}
	rows := test.X[:sample]
	importance := importanceVector(test.FeatureNames, e.FeatureImportance)
	medians := columnMedians(test.X, test.Cols())
	stds := columnStds(test.X, test.Cols())

	details := model.JSON{"sample_size": sample, "noise_ratio": noiseRatio}

	faith := s.faithfulness(estimator, rows, medians, importance, details)
	robust := s.robustness(attributor, rows, stds, details)
	complexity := s.complexity(importance, details)
	overall := 0.4*faith + 0.3*robust + 0.3*complexity

	qe := &model.QualityEvaluation{
		ExplanationID: e.ID,
		ModelID:       e.ModelID,
		Method:        e.Method,
		Faithfulness:  faith,
		Robustness:    robust,
		Complexity:    complexity,
		OverallScore:  overall,
		SampleSize:    sample,
		Details:       details,
	}
	if err := s.repo.Explanation.CreateQuality(ctx, qe); err != nil {
		return nil, fmt.Errorf("save quality evaluation: %w", err)
	}
	log.Printf("quality evaluation %s: explanation %s overall %.3f (F=%.3f R=%.3f C=%.3f)",
		qe.ID, e.ID, overall, faith, robust, complexity)
	return qe, nil
}

// faithfulness = 0.6*单调性 + 0.4*选择性
func (s *Service) faithfulness(estimator ml.Estimator, rows [][]float64, medians, importance []float64, details model.JSON) float64 {
	top := topIndices(importance, topFeatureCount)
	mono := Monotonicity(func(x []float64) float64 {
		return ml.PredictOne(estimator, x)
	}, rows, medians, top)
	sel := Selectivity(importance)
	if math.IsNaN(mono) || math.IsInf(mono, 0) {
		details["faithfulness_fallback"] = true
		return fallbackFaithfulness
	}
	details["monotonicity"] = mono
	details["selectivity"] = sel
	return ml.Clip(0.6*mono+0.4*sel, 0, 1)
}

// robustness 对每行加入与列标准差成比例的高斯噪声，
// 取原始与扰动归因向量的 Pearson 相关系数均值
func (s *Service) robustness(attributor explain.Attributor, rows [][]float64, stds []float64, details model.JSON) float64 {
	n := len(rows)
	if n > robustnessRows {
		n = robustnessRows
	}
	rng := rand.New(rand.NewSource(metricSeed))
	perturbed := make([]float64, 0)
	sum, count := 0.0, 0
	for _, x := range rows[:n] {
		_, orig, err := attributor.Local(x)
		if err != nil {
			continue
		}
		perturbed = perturbed[:0]
		for j, v := range x {
			perturbed = append(perturbed, v+rng.NormFloat64()*noiseRatio*stds[j])
		}
		_, noisy, err := attributor.Local(perturbed)
		if err != nil {
			continue
		}
		r := ml.Pearson(orig, noisy)
		if math.IsNaN(r) {
			continue
		}
		sum += r
		count++
	}
	if count == 0 {
		details["robustness_fallback"] = true
		return fallbackRobustness
	}
	details["robustness_rows"] = count
	return ml.Clip(sum/float64(count), 0, 1)
}

func (s *Service) complexity(importance []float64, details model.JSON) float64 {
	c := Complexity(importance)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		details["complexity_fallback"] = true
		return fallbackComplexity
	}
	abs := make([]float64, len(importance))
	for j, v := range importance {
		abs[j] = math.Abs(v)
	}
	details["gini"] = NormalizedGini(abs)
	details["effective_features"] = EffectiveFeatures(abs, massThreshold)
	return ml.Clip(c, 0, 1)
}

// importanceVector 按特征顺序展开重要性映射，缺失特征记 0
func importanceVector(names []string, importance model.FloatMap) []float64 {
	vec := make([]float64, len(names))
	for j, name := range names {
		vec[j] = importance[name]
	}
	return vec
}

// Get 获取质量评估记录
func (s *Service) Get(ctx context.Context, id string) (*model.QualityEvaluation, error) {
	qe, err := s.repo.Explanation.GetQualityByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewNotFound("quality evaluation", id)
		}
		return nil, fmt.Errorf("failed to get quality evaluation: %w", err)
	}
	return qe, nil
}

// List 列出某模型的质量评估记录
func (s *Service) List(ctx context.Context, modelID string) ([]*model.QualityEvaluation, error) {
	return s.repo.Explanation.ListQuality(ctx, modelID)
}
