// Package repository 提供数据访问层
package repository

import (
	"context"

	"github.com/ashwinyue/xai-bench/internal/model"
	"gorm.io/gorm"
)

// ModelRepository 模型数据访问
type ModelRepository struct {
	db *gorm.DB
}

// NewModelRepository 创建模型仓库
func NewModelRepository(db *gorm.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// Create 创建模型
func (r *ModelRepository) Create(ctx context.Context, m *model.Model) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID 根据 ID 获取模型
func (r *ModelRepository) GetByID(ctx context.Context, id string) (*model.Model, error) {
	var m model.Model
	err := r.db.WithContext(ctx).Preload("Metrics").Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List 列出模型
func (r *ModelRepository) List(ctx context.Context, datasetID string, modelType *model.ModelType) ([]*model.Model, error) {
	var models []*model.Model
	query := r.db.WithContext(ctx).Model(&model.Model{}).Preload("Metrics")

	if datasetID != "" {
		query = query.Where("dataset_id = ?", datasetID)
	}
	if modelType != nil {
		query = query.Where("type = ?", *modelType)
	}

	err := query.Order("created_at DESC").Find(&models).Error
	return models, err
}

// Update 更新模型
func (r *ModelRepository) Update(ctx context.Context, m *model.Model) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// UpdateStatus 更新模型状态
func (r *ModelRepository) UpdateStatus(ctx context.Context, id string, status model.ModelStatus, errMsg string) error {
	return r.db.WithContext(ctx).Model(&model.Model{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error_message": errMsg}).Error
}

// Delete 删除模型及其指标
func (r *ModelRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.ModelMetrics{}, "model_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Model{}, "id = ?", id).Error
	})
}

// SaveMetrics 保存评估指标（存在则覆盖）
func (r *ModelRepository) SaveMetrics(ctx context.Context, metrics *model.ModelMetrics) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.ModelMetrics{}, "model_id = ?", metrics.ModelID).Error; err != nil {
			return err
		}
		return tx.Create(metrics).Error
	})
}

// Leaderboard 按 ROC-AUC 降序列出某数据集上已完成的模型
func (r *ModelRepository) Leaderboard(ctx context.Context, datasetID string, limit int) ([]*model.Model, error) {
	var models []*model.Model
	err := r.db.WithContext(ctx).
		Joins("JOIN model_metrics ON model_metrics.model_id = models.id").
		Where("models.dataset_id = ? AND models.status = ?", datasetID, model.ModelStatusCompleted).
		Order("model_metrics.roc_auc DESC").
		Limit(limit).
		Preload("Metrics").
		Find(&models).Error
	return models, err
}
