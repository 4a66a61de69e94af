package repository

import (
	"context"

	"github.com/ashwinyue/xai-bench/internal/model"
	"gorm.io/gorm"
)

// ExplanationRepository 解释结果数据访问
type ExplanationRepository struct {
	db *gorm.DB
}

// NewExplanationRepository 创建解释仓库
func NewExplanationRepository(db *gorm.DB) *ExplanationRepository {
	return &ExplanationRepository{db: db}
}

// Create 创建解释记录
func (r *ExplanationRepository) Create(ctx context.Context, e *model.Explanation) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// GetByID 根据 ID 获取解释
func (r *ExplanationRepository) GetByID(ctx context.Context, id string) (*model.Explanation, error) {
	var e model.Explanation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List 列出某模型的解释记录
func (r *ExplanationRepository) List(ctx context.Context, modelID string, offset, limit int) ([]*model.Explanation, int64, error) {
	var explanations []*model.Explanation
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Explanation{})
	if modelID != "" {
		query = query.Where("model_id = ?", modelID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&explanations).Error
	return explanations, total, err
}

// FindCompleted 查找同参数下已完成的全局解释，用于结果复用
func (r *ExplanationRepository) FindCompleted(ctx context.Context, modelID string, method model.ExplanationMethod, scope model.ExplanationScope, sampleSize int) (*model.Explanation, error) {
	var e model.Explanation
	err := r.db.WithContext(ctx).
		Where("model_id = ? AND method = ? AND scope = ? AND sample_size = ? AND status = ?",
			modelID, method, scope, sampleSize, model.ExplanationStatusCompleted).
		Order("created_at DESC").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Update 更新解释记录
func (r *ExplanationRepository) Update(ctx context.Context, e *model.Explanation) error {
	return r.db.WithContext(ctx).Save(e).Error
}

// Delete 删除解释记录及其质量评估
func (r *ExplanationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.QualityEvaluation{}, "explanation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Explanation{}, "id = ?", id).Error
	})
}

// ========== 质量评估操作 ==========

// CreateQuality 创建质量评估记录
func (r *ExplanationRepository) CreateQuality(ctx context.Context, q *model.QualityEvaluation) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// GetQualityByID 根据 ID 获取质量评估
func (r *ExplanationRepository) GetQualityByID(ctx context.Context, id string) (*model.QualityEvaluation, error) {
	var q model.QualityEvaluation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuality 列出某模型的质量评估记录
func (r *ExplanationRepository) ListQuality(ctx context.Context, modelID string) ([]*model.QualityEvaluation, error) {
	var evaluations []*model.QualityEvaluation
	err := r.db.WithContext(ctx).
		Where("model_id = ?", modelID).
		Order("created_at DESC").
		Find(&evaluations).Error
	return evaluations, err
}
