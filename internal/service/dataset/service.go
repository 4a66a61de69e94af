// Package dataset 提供数据集接入与预处理流水线
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/ashwinyue/xai-bench/internal/config"
	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
	"github.com/ashwinyue/xai-bench/internal/repository"
	"github.com/ashwinyue/xai-bench/internal/service/provider"
	"github.com/ashwinyue/xai-bench/internal/service/storage"
	"github.com/ashwinyue/xai-bench/internal/service/task"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// Service 数据集服务
type Service struct {
	repo       *repository.Repositories
	store      storage.Storage
	provider   provider.Provider
	dispatcher *task.Dispatcher
	registry   *Registry
	cfg        *config.Config
}

// NewService 创建数据集服务
func NewService(repo *repository.Repositories, store storage.Storage, p provider.Provider, dispatcher *task.Dispatcher, registry *Registry, cfg *config.Config) *Service {
	return &Service{
		repo:       repo,
		store:      store,
		provider:   p,
		dispatcher: dispatcher,
		registry:   registry,
		cfg:        cfg,
	}
}

// ListRegistry 返回内置数据集登记表
func (s *Service) ListRegistry() []RegistryEntry {
	if s.registry == nil {
		return nil
	}
	return s.registry.List()
}

// CreateRequest 创建数据集请求
type CreateRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	Source        string `json:"source"`
	Identifier    string `json:"identifier"`
	TargetColumn  string `json:"target_column"`
	PositiveLabel string `json:"positive_label"`
}

// Create 登记数据集并入队处理，来源可取自注册表或请求参数
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*model.Dataset, error) {
	if req.Name == "" {
		return nil, types.NewValidation("dataset name is required")
	}

	dataset := &model.Dataset{
		Name:             req.Name,
		Description:      req.Description,
		Source:           req.Source,
		SourceIdentifier: req.Identifier,
		TargetColumn:     req.TargetColumn,
		Status:           model.DatasetStatusPending,
	}

	// 注册表条目补全省略的来源信息
	if s.registry != nil {
		if entry, ok := s.registry.Get(req.Name); ok {
			if dataset.Description == "" {
				dataset.Description = entry.Description
			}
			if dataset.Source == "" {
				dataset.Source = entry.Source
				dataset.SourceIdentifier = entry.Identifier
			}
			if dataset.TargetColumn == "" {
				dataset.TargetColumn = entry.TargetColumn
			}
			if req.PositiveLabel == "" {
				req.PositiveLabel = entry.PositiveLabel
			}
		}
	}
	if dataset.Source == "" || dataset.SourceIdentifier == "" {
		return nil, types.NewValidation("dataset %q is not in the registry, source and identifier are required", req.Name)
	}
	if existing, err := s.repo.Dataset.GetByName(req.Name); err == nil && existing != nil {
		return nil, types.NewValidation("dataset %q already exists", req.Name)
	}

	if err := s.repo.Dataset.Create(dataset); err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}

	if _, err := s.startPipeline(dataset, req.PositiveLabel); err != nil {
		return nil, err
	}
	return dataset, nil
}

// Get 获取数据集
func (s *Service) Get(ctx context.Context, id string) (*model.Dataset, error) {
	dataset, err := s.repo.Dataset.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewNotFound("dataset", id)
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return dataset, nil
}

// List 分页列出数据集
func (s *Service) List(ctx context.Context, status string, offset, limit int) ([]*model.Dataset, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.Dataset.List(status, offset, limit)
}

// Delete 删除数据集及其存储对象
func (s *Service) Delete(ctx context.Context, id string) error {
	dataset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if dataset.Status == model.DatasetStatusDownloading || dataset.Status == model.DatasetStatusProcessing {
		return types.NewValidation("dataset %s is being processed", id)
	}

	if dataset.FilePath != "" {
		keys, err := s.store.List(ctx, dataset.FilePath+"/")
		if err != nil {
			log.Printf("list objects for dataset %s: %v", id, err)
		}
		for _, key := range keys {
			if err := s.store.Delete(ctx, key); err != nil {
				log.Printf("delete object %s: %v", key, err)
			}
		}
	}
	return s.repo.Dataset.Delete(id)
}

// Reprocess 重新运行失败数据集的流水线
func (s *Service) Reprocess(ctx context.Context, id string, positiveLabel string) (*task.Task, error) {
	dataset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !dataset.Status.CanTransition(model.DatasetStatusDownloading) {
		return nil, types.NewValidation("dataset %s cannot be reprocessed from status %s", id, dataset.Status)
	}
	return s.startPipeline(dataset, positiveLabel)
}

// startPipeline 提交下载与预处理任务
func (s *Service) startPipeline(dataset *model.Dataset, positiveLabel string) (*task.Task, error) {
	id := dataset.ID
	return s.dispatcher.Submit("dataset:"+id, func(ctx context.Context) error {
		if err := s.runPipeline(ctx, id, positiveLabel); err != nil {
			if uerr := s.repo.Dataset.UpdateStatus(id, model.DatasetStatusFailed, err.Error()); uerr != nil {
				log.Printf("mark dataset %s failed: %v", id, uerr)
			}
			return err
		}
		return nil
	})
}

// runPipeline 下载、预处理、切分、上传并落统计信息
func (s *Service) runPipeline(ctx context.Context, id, positiveLabel string) error {
	dataset, err := s.repo.Dataset.GetByID(id)
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", id, err)
	}

	if err := s.transition(dataset, model.DatasetStatusDownloading); err != nil {
		return err
	}
	log.Printf("dataset %s: downloading from %s", id, dataset.SourceIdentifier)

	raw, err := s.provider.Fetch(ctx, dataset.Source, dataset.SourceIdentifier)
	if err != nil {
		return err
	}

	if err := s.transition(dataset, model.DatasetStatusProcessing); err != nil {
		return err
	}
	log.Printf("dataset %s: preprocessing %d bytes", id, len(raw))

	result, err := Preprocess(raw, PreprocessOptions{
		TargetColumn:  dataset.TargetColumn,
		PositiveLabel: positiveLabel,
		TrainRatio:    s.cfg.Pipeline.TrainRatio,
		ValRatio:      s.cfg.Pipeline.ValRatio,
		MaxRows:       s.cfg.Pipeline.MaxBalancedRows,
		OutlierSigma:  s.cfg.Pipeline.OutlierSigma,
		Seed:          42,
	})
	if err != nil {
		return types.NewComputation("preprocess dataset", err)
	}

	prefix := "datasets/" + dataset.ID
	splits := map[string]*ml.Frame{
		"train.csv": result.Train,
		"val.csv":   result.Val,
		"test.csv":  result.Test,
	}
	for name, frame := range splits {
		var buf bytes.Buffer
		if err := frame.WriteCSV(&buf); err != nil {
			return types.NewComputation("serialize split", err)
		}
		if err := storage.PutBytes(ctx, s.store, prefix+"/"+name, buf.Bytes(), "text/csv"); err != nil {
			return types.NewUpstreamIO("upload split", err)
		}
	}

	// 回填统计信息
	dataset.FilePath = prefix
	dataset.TotalRows = result.TotalRows
	dataset.TotalColumns = len(result.FeatureNames)
	dataset.TrainRows = result.Train.Rows()
	dataset.ValRows = result.Val.Rows()
	dataset.TestRows = result.Test.Rows()
	dataset.PositiveCount = result.PositiveCount
	dataset.NegativeCount = result.NegativeCount
	if result.TotalRows > 0 {
		dataset.PositivePercentage = 100 * float64(result.PositiveCount) / float64(result.TotalRows)
	}
	dataset.FeatureNames = result.FeatureNames
	dataset.Statistics = columnStatistics(result.FeatureNames, result.Stats)
	dataset.Status = model.DatasetStatusCompleted
	dataset.ErrorMessage = ""
	if err := s.repo.Dataset.Update(dataset); err != nil {
		return fmt.Errorf("save dataset %s: %w", id, err)
	}
	log.Printf("dataset %s: completed, %d rows (%d/%d/%d)", id,
		dataset.TotalRows, dataset.TrainRows, dataset.ValRows, dataset.TestRows)
	return nil
}

func (s *Service) transition(dataset *model.Dataset, to model.DatasetStatus) error {
	if !dataset.Status.CanTransition(to) {
		return types.NewValidation("dataset %s cannot move from %s to %s", dataset.ID, dataset.Status, to)
	}
	dataset.Status = to
	return s.repo.Dataset.UpdateStatus(dataset.ID, to, "")
}

func columnStatistics(names []string, stats []ml.ColumnStats) model.JSON {
	out := model.JSON{}
	for j, name := range names {
		out[name] = map[string]interface{}{
			"mean": stats[j].Mean,
			"std":  stats[j].Std,
			"min":  stats[j].Min,
			"max":  stats[j].Max,
		}
	}
	return out
}

// LoadSplit 从对象存储读取数据分片，split 取 train/val/test
func (s *Service) LoadSplit(ctx context.Context, dataset *model.Dataset, split string) (*ml.Frame, error) {
	if dataset.Status != model.DatasetStatusCompleted {
		return nil, types.NewValidation("dataset %s is not ready (status %s)", dataset.ID, dataset.Status)
	}
	key := dataset.FilePath + "/" + split + ".csv"
	data, err := storage.GetBytes(ctx, s.store, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewNotFound("dataset split", key)
		}
		return nil, types.NewUpstreamIO("load dataset split", err)
	}
	frame, err := ml.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewComputation("parse dataset split", err)
	}
	return frame, nil
}
