// Package training 提供分类器训练与评估流水线
package training

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
	"github.com/ashwinyue/xai-bench/internal/service/storage"
	"github.com/ashwinyue/xai-bench/internal/service/task"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// DatasetSource 训练所需的数据集访问能力，由 dataset.Service 提供
type DatasetSource interface {
	Get(ctx context.Context, id string) (*model.Dataset, error)
	LoadSplit(ctx context.Context, ds *model.Dataset, split string) (*ml.Frame, error)
}

// Service 训练服务
type Service struct {
	repo       *repository.Repositories
	store      storage.Storage
	datasets   DatasetSource
	dispatcher *task.Dispatcher
	cfg        *config.Config

	// AfterTrain 训练成功后的回调，用于预热解释（尽力而为）
	AfterTrain func(modelID string)
	// OnInvalidate 重训或删除时的回调，用于清理解释缓存
	OnInvalidate func(modelID string)
}

// NewService 创建训练服务
func NewService(repo *repository.Repositories, store storage.Storage, datasets DatasetSource, dispatcher *task.Dispatcher, cfg *config.Config) *Service {
	return &Service{
		repo:       repo,
		store:      store,
		datasets:   datasets,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// TrainRequest 训练请求
type TrainRequest struct {
	DatasetID       string     `json:"dataset_id" binding:"required"`
	Name            string     `json:"name"`
	Type            string     `json:"type" binding:"required"`
	Hyperparameters model.JSON `json:"hyperparameters"`
}

// Train 登记模型并入队训练
func (s *Service) Train(ctx context.Context, req *TrainRequest) (*model.Model, error) {
	kind := model.ModelType(req.Type)
	if !kind.Valid() {
		return nil, types.NewValidation("unsupported model type %q", req.Type)
	}

	ds, err := s.datasets.Get(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	if ds.Status != model.DatasetStatusCompleted {
		return nil, types.NewValidation("dataset %s is not ready (status %s)", ds.ID, ds.Status)
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s on %s", kind, ds.Name)
	}
	m := &model.Model{
		Name:            name,
		DatasetID:       ds.ID,
		Type:            kind,
		Status:          model.ModelStatusPending,
		Hyperparameters: req.Hyperparameters,
	}
	if err := s.repo.Model.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	if _, err := s.startTraining(m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// Retrain 重新训练失败的模型
func (s *Service) Retrain(ctx context.Context, id string) (*task.Task, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Status.CanTransition(model.ModelStatusTraining) {
		return nil, types.NewValidation("model %s cannot be retrained from status %s", id, m.Status)
	}
	// 旧工件的解释缓存随重训作废
	if s.OnInvalidate != nil {
		s.OnInvalidate(id)
	}
	return s.startTraining(id)
}

func (s *Service) startTraining(modelID string) (*task.Task, error) {
	return s.dispatcher.Submit("train:"+modelID, func(ctx context.Context) error {
		if err := s.runTraining(ctx, modelID); err != nil {
			if uerr := s.repo.Model.UpdateStatus(ctx, modelID, model.ModelStatusFailed, err.Error()); uerr != nil {
				log.Printf("mark model %s failed: %v", modelID, uerr)
			}
			return err
		}
		if s.AfterTrain != nil {
			s.AfterTrain(modelID)
		}
		return nil
	})
}

// runTraining 拟合、评估并归档模型工件
func (s *Service) runTraining(ctx context.Context, modelID string) error {
	m, err := s.repo.Model.GetByID(ctx, modelID)
	if err != nil {
		return fmt.Errorf("load model %s: %w", modelID, err)
	}
	if !m.Status.CanTransition(model.ModelStatusTraining) {
		return types.NewValidation("model %s cannot start training from status %s", modelID, m.Status)
	}
	if err := s.repo.Model.UpdateStatus(ctx, modelID, model.ModelStatusTraining, ""); err != nil {
		return fmt.Errorf("update model %s status: %w", modelID, err)
	}

	ds, err := s.datasets.Get(ctx, m.DatasetID)
	if err != nil {
		return err
	}
	train, err := s.datasets.LoadSplit(ctx, ds, "train")
	if err != nil {
		return err
	}
	test, err := s.datasets.LoadSplit(ctx, ds, "test")
	if err != nil {
		return err
	}

	estimator, err := ml.NewEstimator(string(m.Type), toHyperparams(m.Hyperparameters))
	if err != nil {
		return types.NewValidation("%v", err)
	}

	// 支持早停的估计器用验证集监控损失
	if va, ok := estimator.(ml.ValidationAware); ok {
		if val, err := s.datasets.LoadSplit(ctx, ds, "val"); err == nil && val.Rows() > 0 {
			va.SetValidation(val.X, val.Y)
		}
	}

	log.Printf("model %s: training %s on %d rows", modelID, m.Type, train.Rows())
	start := time.Now()
	if err := estimator.Fit(train.X, train.Y); err != nil {
		return types.NewComputation("fit model", err)
	}
	elapsed := time.Since(start)

	// 测试集评估
	probs := estimator.PredictProba(test.X)
	ev := ml.Evaluate(test.Y, probs)

	// 模型工件归档
	data, hash, err := ml.Encode(string(m.Type), estimator)
	if err != nil {
		return types.NewComputation("encode model artifact", err)
	}
	key := fmt.Sprintf("models/%s/%s.gob", m.DatasetID, m.ID)
	if err := storage.PutBytes(ctx, s.store, key, data, "application/octet-stream"); err != nil {
		return types.NewUpstreamIO("upload model artifact", err)
	}

	// 指标先落库，completed 状态永远伴随指标记录
	metrics := &model.ModelMetrics{
		ModelID:        m.ID,
		Accuracy:       ev.Accuracy,
		Precision:      ev.Precision,
		Recall:         ev.Recall,
		F1Score:        ev.F1Score,
		ROCAUC:         ev.ROCAUC,
		PRAUC:          ev.PRAUC,
		LogLoss:        ev.LogLoss,
		BrierScore:     ev.BrierScore,
		ECE:            ev.ECE,
		MCE:            ev.MCE,
		TrueNegatives:  ev.TrueNegatives,
		FalsePositives: ev.FalsePositives,
		FalseNegatives: ev.FalseNegatives,
		TruePositives:  ev.TruePositives,
		ROCCurve:       curveJSON(ev.ROCCurve),
		PRCurve:        curveJSON(ev.PRCurve),
	}
	if err := s.repo.Model.SaveMetrics(ctx, metrics); err != nil {
		return fmt.Errorf("save metrics for model %s: %w", modelID, err)
	}

	m.Status = model.ModelStatusCompleted
	m.ModelPath = key
	m.ModelHash = hash
	m.TrainingTimeSeconds = elapsed.Seconds()
	m.ErrorMessage = ""
	m.Metrics = nil
	if err := s.repo.Model.Update(ctx, m); err != nil {
		return fmt.Errorf("save model %s: %w", modelID, err)
	}

	log.Printf("model %s: completed in %.2fs, roc_auc=%.4f", modelID, elapsed.Seconds(), ev.ROCAUC)
	return nil
}

// Get 获取模型
func (s *Service) Get(ctx context.Context, id string) (*model.Model, error) {
	m, err := s.repo.Model.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewNotFound("model", id)
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return m, nil
}

// List 列出模型
func (s *Service) List(ctx context.Context, datasetID, modelType string) ([]*model.Model, error) {
	var kind *model.ModelType
	if modelType != "" {
		k := model.ModelType(modelType)
		if !k.Valid() {
			return nil, types.NewValidation("unsupported model type %q", modelType)
		}
		kind = &k
	}
	return s.repo.Model.List(ctx, datasetID, kind)
}

// Delete 删除模型及其工件
func (s *Service) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status == model.ModelStatusTraining {
		return types.NewValidation("model %s is training", id)
	}
	if m.ModelPath != "" {
		if err := s.store.Delete(ctx, m.ModelPath); err != nil {
			log.Printf("delete artifact %s: %v", m.ModelPath, err)
		}
	}
	if s.OnInvalidate != nil {
		s.OnInvalidate(id)
	}
	return s.repo.Model.Delete(ctx, id)
}

// Leaderboard 某数据集上按 ROC-AUC 排序的模型榜单
func (s *Service) Leaderboard(ctx context.Context, datasetID string, limit int) ([]*model.Model, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if _, err := s.datasets.Get(ctx, datasetID); err != nil {
		return nil, err
	}
	return s.repo.Model.Leaderboard(ctx, datasetID, limit)
}

// LoadEstimator 拉取工件、校验摘要并还原估计器
func (s *Service) LoadEstimator(ctx context.Context, m *model.Model) (ml.Estimator, error) {
	if m.Status != model.ModelStatusCompleted {
		return nil, types.NewValidation("model %s is not trained (status %s)", m.ID, m.Status)
	}
	data, err := storage.GetBytes(ctx, s.store, m.ModelPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewNotFound("model artifact", m.ModelPath)
		}
		return nil, types.NewUpstreamIO("load model artifact", err)
	}
	if m.ModelHash != "" && ml.Checksum(data) != m.ModelHash {
		return nil, types.NewComputation("verify model artifact",
			fmt.Errorf("checksum mismatch for %s", m.ModelPath))
	}
	kind, estimator, err := ml.Decode(data)
	if err != nil {
		return nil, types.NewComputation("decode model artifact", err)
	}
	if kind != string(m.Type) {
		return nil, types.NewComputation("decode model artifact",
			fmt.Errorf("artifact kind %q does not match model type %q", kind, m.Type))
	}
	return estimator, nil
}

// toHyperparams 将 JSON 超参数转为数值映射，忽略非数值项
func toHyperparams(raw model.JSON) ml.Hyperparams {
	if len(raw) == 0 {
		return nil
	}
	params := make(ml.Hyperparams, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case float64:
			params[k] = n
		case int:
			params[k] = float64(n)
		}
	}
	return params
}

func curveJSON(points []ml.CurvePoint) model.JSON {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return model.JSON{"x": xs, "y": ys}
}
