package repository

import (
	"github.com/ashwinyue/xai-bench/internal/model"
	"gorm.io/gorm"
)

// DatasetRepository 数据集仓库
type DatasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建数据集仓库
func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Create 创建数据集
func (r *DatasetRepository) Create(dataset *model.Dataset) error {
	return r.db.Create(dataset).Error
}

// GetByID 根据ID获取数据集
func (r *DatasetRepository) GetByID(id string) (*model.Dataset, error) {
	var dataset model.Dataset
	err := r.db.Where("id = ?", id).First(&dataset).Error
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// GetByName 根据名称获取数据集
func (r *DatasetRepository) GetByName(name string) (*model.Dataset, error) {
	var dataset model.Dataset
	err := r.db.Where("name = ?", name).First(&dataset).Error
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// List 列出数据集
func (r *DatasetRepository) List(status string, offset, limit int) ([]*model.Dataset, int64, error) {
	var datasets []*model.Dataset
	var total int64

	query := r.db.Model(&model.Dataset{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&datasets).Error
	return datasets, total, err
}

// Update 更新数据集
func (r *DatasetRepository) Update(dataset *model.Dataset) error {
	return r.db.Save(dataset).Error
}

// UpdateStatus 更新数据集状态
func (r *DatasetRepository) UpdateStatus(id string, status model.DatasetStatus, errMsg string) error {
	return r.db.Model(&model.Dataset{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error_message": errMsg}).Error
}

// Delete 删除数据集及其派生记录
func (r *DatasetRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var modelIDs []string
		if err := tx.Model(&model.Model{}).Where("dataset_id = ?", id).
			Pluck("id", &modelIDs).Error; err != nil {
			return err
		}
		if len(modelIDs) > 0 {
			if err := tx.Delete(&model.QualityEvaluation{}, "model_id IN ?", modelIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.Explanation{}, "model_id IN ?", modelIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.ModelMetrics{}, "model_id IN ?", modelIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.Model{}, "id IN ?", modelIDs).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Dataset{}, "id = ?", id).Error
	})
}
