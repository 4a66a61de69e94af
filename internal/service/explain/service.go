package explain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/xai-bench/internal/config"
	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
	"github.com/ashwinyue/xai-bench/internal/repository"
	"github.com/ashwinyue/xai-bench/internal/service/task"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// localWaitTimeout 局部解释的调用方最长等待时间
const localWaitTimeout = 30 * time.Second

// warmUpSampleSize 训练后自动预热解释的固定采样规模
const warmUpSampleSize = 100

// ModelSource 解释所需的模型访问能力，由 training.Service 提供
type ModelSource interface {
	Get(ctx context.Context, id string) (*model.Model, error)
	LoadEstimator(ctx context.Context, m *model.Model) (ml.Estimator, error)
}

// DatasetSource 解释所需的数据集访问能力，由 dataset.Service 提供
type DatasetSource interface {
	Get(ctx context.Context, id string) (*model.Dataset, error)
	LoadSplit(ctx context.Context, ds *model.Dataset, split string) (*ml.Frame, error)
}

// Service 解释服务
type Service struct {
	repo        *repository.Repositories
	trainer     ModelSource
	datasets    DatasetSource
	dispatcher  *task.Dispatcher
	cache       *ResultCache
	attributors *attributorCache
	cfg         *config.Config
}

// NewService 创建解释服务
func NewService(repo *repository.Repositories, trainer ModelSource, datasets DatasetSource, dispatcher *task.Dispatcher, cache *ResultCache, cfg *config.Config) *Service {
	return &Service{
		repo:        repo,
		trainer:     trainer,
		datasets:    datasets,
		dispatcher:  dispatcher,
		cache:       cache,
		attributors: newAttributorCache(),
		cfg:         cfg,
	}
}

// ExplainRequest 解释请求
type ExplainRequest struct {
	ModelID       string `json:"model_id" binding:"required"`
	Method        string `json:"method" binding:"required"`
	Scope         string `json:"scope"`
	InstanceIndex *int   `json:"instance_index"`
	SampleSize    int    `json:"sample_size"`
}

// Explain 发起解释计算；全局解释命中历史结果时直接复用
func (s *Service) Explain(ctx context.Context, req *ExplainRequest) (*model.Explanation, error) {
	method := model.ExplanationMethod(req.Method)
	if !method.Valid() {
		return nil, types.NewValidation("unsupported explanation method %q", req.Method)
	}
	scope := model.ExplanationScope(req.Scope)
	if req.Scope == "" {
		scope = model.ExplanationScopeGlobal
	}
	if !scope.Valid() {
		return nil, types.NewValidation("unsupported explanation scope %q", req.Scope)
	}
	if scope == model.ExplanationScopeLocal && req.InstanceIndex == nil {
		return nil, types.NewValidation("instance_index is required for local explanations")
	}

	m, err := s.trainer.Get(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.ModelStatusCompleted {
		return nil, types.NewValidation("model %s is not trained (status %s)", m.ID, m.Status)
	}

	sampleSize := s.clampSampleSize(req.SampleSize)

	// 全局解释按参数去重：先查 Redis 再回落数据库。
	// 采样规模先对齐测试分片行数，保证查询键与落库键一致
	if scope == model.ExplanationScopeGlobal {
		if ds, err := s.datasets.Get(ctx, m.DatasetID); err == nil && ds.TestRows > 0 && sampleSize > ds.TestRows {
			sampleSize = ds.TestRows
		}
		if cached, ok := s.cache.Get(ctx, m.ID, method, scope, sampleSize); ok {
			if existing, err := s.repo.Explanation.GetByID(ctx, cached.ExplanationID); err == nil {
				log.Printf("explanation cache hit: model %s method %s sample %d -> %s", m.ID, method, sampleSize, existing.ID)
				return existing, nil
			}
		}
		if existing, err := s.repo.Explanation.FindCompleted(ctx, m.ID, method, scope, sampleSize); err == nil {
			log.Printf("explanation reuse: model %s method %s sample %d -> %s", m.ID, method, sampleSize, existing.ID)
			s.cache.Put(ctx, existing)
			return existing, nil
		}
	}

	e := &model.Explanation{
		ModelID:       m.ID,
		Method:        method,
		Scope:         scope,
		Status:        model.ExplanationStatusPending,
		InstanceIndex: req.InstanceIndex,
		SampleSize:    sampleSize,
	}
	if err := s.repo.Explanation.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create explanation: %w", err)
	}

	t, err := s.startExplain(e.ID)
	if err != nil {
		return nil, err
	}

	// 局部解释等待完成后返回；超时后任务继续，返回在途记录
	if scope == model.ExplanationScopeLocal {
		select {
		case <-t.Done():
			if refreshed, gerr := s.repo.Explanation.GetByID(ctx, e.ID); gerr == nil {
				return refreshed, nil
			}
		case <-time.After(localWaitTimeout):
		case <-ctx.Done():
		}
	}
	return e, nil
}

func (s *Service) clampSampleSize(requested int) int {
	maxSize := s.cfg.Pipeline.MaxSampleSize
	if maxSize <= 0 {
		maxSize = 500
	}
	if requested <= 0 {
		return maxSize
	}
	if requested > maxSize {
		return maxSize
	}
	return requested
}

func (s *Service) startExplain(explanationID string) (*task.Task, error) {
	return s.dispatcher.Submit("explain:"+explanationID, func(ctx context.Context) error {
		if err := s.runExplain(ctx, explanationID); err != nil {
			if uerr := s.markFailed(ctx, explanationID, err); uerr != nil {
				log.Printf("mark explanation %s failed: %v", explanationID, uerr)
			}
			return err
		}
		return nil
	})
}

func (s *Service) markFailed(ctx context.Context, id string, cause error) error {
	e, err := s.repo.Explanation.GetByID(ctx, id)
	if err != nil {
		return err
	}
	e.Status = model.ExplanationStatusFailed
	e.ErrorMessage = cause.Error()
	return s.repo.Explanation.Update(ctx, e)
}

// runExplain 计算一次解释
func (s *Service) runExplain(ctx context.Context, explanationID string) error {
	e, err := s.repo.Explanation.GetByID(ctx, explanationID)
	if err != nil {
		return fmt.Errorf("load explanation %s: %w", explanationID, err)
	}
	if !e.Status.CanTransition(model.ExplanationStatusProcessing) {
		return types.NewValidation("explanation %s cannot start from status %s", e.ID, e.Status)
	}
	e.Status = model.ExplanationStatusProcessing
	if err := s.repo.Explanation.Update(ctx, e); err != nil {
		return fmt.Errorf("update explanation %s: %w", e.ID, err)
	}

	m, err := s.trainer.Get(ctx, e.ModelID)
	if err != nil {
		return err
	}
	ds, err := s.datasets.Get(ctx, m.DatasetID)
	if err != nil {
		return err
	}
	test, err := s.datasets.LoadSplit(ctx, ds, "test")
	if err != nil {
		return err
	}

	attributor, estimator, err := s.AttributorFor(ctx, m, ds, e.Method)
	if err != nil {
		return err
	}

	start := time.Now()
	switch e.Scope {
	case model.ExplanationScopeGlobal:
		err = s.computeGlobal(e, attributor, test)
	default:
		err = s.computeLocal(e, attributor, estimator, test)
	}
	if err != nil {
		return err
	}

	e.ElapsedSeconds = time.Since(start).Seconds()
	e.Status = model.ExplanationStatusCompleted
	e.ErrorMessage = ""
	if e.Scope == model.ExplanationScopeGlobal {
		e.CacheKey = s.cache.KeyFor(e)
		until := time.Now().Add(s.cache.TTL())
		e.CachedUntil = &until
	}
	if err := s.repo.Explanation.Update(ctx, e); err != nil {
		return fmt.Errorf("save explanation %s: %w", e.ID, err)
	}
	s.cache.Put(ctx, e)
	log.Printf("explanation %s: %s/%s on model %s completed in %.2fs",
		e.ID, e.Method, e.Scope, e.ModelID, e.ElapsedSeconds)
	return nil
}

// AttributorFor 取缓存的归因器，未命中时从工件构建
func (s *Service) AttributorFor(ctx context.Context, m *model.Model, ds *model.Dataset, method model.ExplanationMethod) (Attributor, ml.Estimator, error) {
	estimator, err := s.trainer.LoadEstimator(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	if cached, ok := s.attributors.Get(m.ID, method); ok {
		return cached, estimator, nil
	}

	background, err := s.backgroundFrame(ctx, ds)
	if err != nil {
		return nil, nil, err
	}
	attributor, err := NewAttributor(method, m, estimator, background, s.cfg.Pipeline.MaxSampleSize)
	if err != nil {
		return nil, nil, err
	}
	// 只缓存树路径分解器；采样归因器每次重建背景样本
	if _, ok := attributor.(*treeAttributor); ok {
		s.attributors.Put(m.ID, method, attributor)
	}
	return attributor, estimator, nil
}

// backgroundFrame 训练分片的子集作为背景数据
func (s *Service) backgroundFrame(ctx context.Context, ds *model.Dataset) (*ml.Frame, error) {
	train, err := s.datasets.LoadSplit(ctx, ds, "train")
	if err != nil {
		return nil, err
	}
	limit := 100
	if train.Rows() > limit {
		return train.Slice(0, limit), nil
	}
	return train, nil
}

// computeGlobal 样本集上的平均绝对归因
func (s *Service) computeGlobal(e *model.Explanation, attributor Attributor, test *ml.Frame) error {
	sample := e.SampleSize
	if sample > test.Rows() {
		sample = test.Rows()
	}
	if sample == 0 {
		return types.NewComputation("global attribution", fmt.Errorf("test split is empty"))
	}

	importance, err := GlobalAttribution(attributor, test.X[:sample])
	if err != nil {
		return types.NewComputation("global attribution", err)
	}

	ranks := RankFeatures(test.FeatureNames, importance)
	e.SampleSize = sample
	e.FeatureImportance = importanceMap(test.FeatureNames, importance)
	e.Payload = model.JSON{"ranking": rankingPayload(ranks)}
	return nil
}

// computeLocal 单样本归因，越界下标钳制到有效范围
func (s *Service) computeLocal(e *model.Explanation, attributor Attributor, estimator ml.Estimator, test *ml.Frame) error {
	if test.Rows() == 0 {
		return types.NewComputation("local attribution", fmt.Errorf("test split is empty"))
	}
	idx := 0
	if e.InstanceIndex != nil {
		idx = *e.InstanceIndex
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= test.Rows() {
		idx = test.Rows() - 1
	}
	x := test.X[idx]

	base, contrib, err := attributor.Local(x)
	if err != nil {
		return types.NewComputation("local attribution", err)
	}

	e.InstanceIndex = &idx
	e.SampleSize = 1
	e.BaseValue = base
	e.Prediction = ml.PredictOne(estimator, x)
	e.FeatureImportance = importanceMap(test.FeatureNames, contrib)
	e.Payload = model.JSON{
		"instance":      featureValues(test.FeatureNames, x),
		"contributions": importanceMap(test.FeatureNames, contrib),
		"actual_label":  test.Y[idx],
	}
	return nil
}

// Get 获取解释记录
func (s *Service) Get(ctx context.Context, id string) (*model.Explanation, error) {
	e, err := s.repo.Explanation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewNotFound("explanation", id)
		}
		return nil, fmt.Errorf("failed to get explanation: %w", err)
	}
	return e, nil
}

// List 列出解释记录
func (s *Service) List(ctx context.Context, modelID string, offset, limit int) ([]*model.Explanation, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.Explanation.List(ctx, modelID, offset, limit)
}

// Delete 删除解释记录
func (s *Service) Delete(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Status == model.ExplanationStatusProcessing {
		return types.NewValidation("explanation %s is still processing", id)
	}
	return s.repo.Explanation.Delete(ctx, id)
}

// InvalidateModel 模型删除或重训后清理缓存
func (s *Service) InvalidateModel(ctx context.Context, modelID string) {
	s.attributors.Invalidate(modelID)
	s.cache.InvalidateModel(ctx, modelID)
}

// WarmUp 训练完成后的尽力而为全局解释预热
func (s *Service) WarmUp(modelID string) {
	_, err := s.Explain(context.Background(), &ExplainRequest{
		ModelID:    modelID,
		Method:     string(model.ExplanationMethodSHAP),
		Scope:      string(model.ExplanationScopeGlobal),
		SampleSize: warmUpSampleSize,
	})
	if err != nil {
		log.Printf("warm up explanation for model %s: %v", modelID, err)
	}
}

func importanceMap(names []string, values []float64) model.FloatMap {
	out := make(model.FloatMap, len(names))
	for j, name := range names {
		out[name] = values[j]
	}
	return out
}

func featureValues(names []string, x []float64) map[string]interface{} {
	out := make(map[string]interface{}, len(names))
	for j, name := range names {
		out[name] = x[j]
	}
	return out
}

func rankingPayload(ranks []FeatureRank) []interface{} {
	out := make([]interface{}, len(ranks))
	for i, r := range ranks {
		out[i] = map[string]interface{}{
			"feature":    r.Feature,
			"importance": r.Importance,
			"rank":       r.Rank,
		}
	}
	return out
}
