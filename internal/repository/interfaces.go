// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/xai-bench/internal/model"
)

// ========== DatasetStore 接口 ==========

// DatasetStore 数据集数据访问接口
// 接口定义使 Service 层可以轻松 mock 进行单元测试
type DatasetStore interface {
	Create(dataset *model.Dataset) error
	GetByID(id string) (*model.Dataset, error)
	GetByName(name string) (*model.Dataset, error)
	List(status string, offset, limit int) ([]*model.Dataset, int64, error)
	Update(dataset *model.Dataset) error
	UpdateStatus(id string, status model.DatasetStatus, errMsg string) error
	Delete(id string) error
}

// ========== ModelStore 接口 ==========

// ModelStore 模型数据访问接口
type ModelStore interface {
	Create(ctx context.Context, m *model.Model) error
	GetByID(ctx context.Context, id string) (*model.Model, error)
	List(ctx context.Context, datasetID string, modelType *model.ModelType) ([]*model.Model, error)
	Update(ctx context.Context, m *model.Model) error
	UpdateStatus(ctx context.Context, id string, status model.ModelStatus, errMsg string) error
	Delete(ctx context.Context, id string) error
	SaveMetrics(ctx context.Context, metrics *model.ModelMetrics) error
	Leaderboard(ctx context.Context, datasetID string, limit int) ([]*model.Model, error)
}

// ========== ExplanationStore 接口 ==========

// ExplanationStore 解释结果数据访问接口
type ExplanationStore interface {
	Create(ctx context.Context, e *model.Explanation) error
	GetByID(ctx context.Context, id string) (*model.Explanation, error)
	List(ctx context.Context, modelID string, offset, limit int) ([]*model.Explanation, int64, error)
	FindCompleted(ctx context.Context, modelID string, method model.ExplanationMethod, scope model.ExplanationScope, sampleSize int) (*model.Explanation, error)
	Update(ctx context.Context, e *model.Explanation) error
	Delete(ctx context.Context, id string) error
	CreateQuality(ctx context.Context, q *model.QualityEvaluation) error
	GetQualityByID(ctx context.Context, id string) (*model.QualityEvaluation, error)
	ListQuality(ctx context.Context, modelID string) ([]*model.QualityEvaluation, error)
}

// 确保具体实现满足接口
var (
	_ DatasetStore     = (*DatasetRepository)(nil)
	_ ModelStore       = (*ModelRepository)(nil)
	_ ExplanationStore = (*ExplanationRepository)(nil)
)
