package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DatasetStatus 数据集状态
type DatasetStatus string

const (
	DatasetStatusPending     DatasetStatus = "pending"
	DatasetStatusDownloading DatasetStatus = "downloading"
	DatasetStatusProcessing  DatasetStatus = "processing"
	DatasetStatusCompleted   DatasetStatus = "completed"
	DatasetStatusFailed      DatasetStatus = "failed"
)

// CanTransition 判断能否迁移到目标状态
func (s DatasetStatus) CanTransition(to DatasetStatus) bool {
	switch s {
	case DatasetStatusPending:
		return to == DatasetStatusDownloading || to == DatasetStatusFailed
	case DatasetStatusDownloading:
		return to == DatasetStatusProcessing || to == DatasetStatusFailed
	case DatasetStatusProcessing:
		return to == DatasetStatusCompleted || to == DatasetStatusFailed
	case DatasetStatusFailed:
		return to == DatasetStatusDownloading
	default:
		return false
	}
}

// Terminal 是否为终态
func (s DatasetStatus) Terminal() bool {
	return s == DatasetStatusCompleted || s == DatasetStatusFailed
}

// Dataset 数据集
type Dataset struct {
	ID                 string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name               string        `json:"name" gorm:"type:varchar(255);uniqueIndex"`
	Description        string        `json:"description" gorm:"type:text"`
	Source             string        `json:"source" gorm:"type:varchar(32)"` // http, local
	SourceIdentifier   string        `json:"source_identifier" gorm:"type:varchar(512)"`
	Status             DatasetStatus `json:"status" gorm:"type:varchar(32);index;default:pending"`
	FilePath           string        `json:"file_path" gorm:"type:varchar(512)"` // 对象存储中的前缀
	TargetColumn       string        `json:"target_column" gorm:"type:varchar(128)"`
	TotalRows          int           `json:"total_rows"`
	TotalColumns       int           `json:"total_columns"`
	TrainRows          int           `json:"train_rows"`
	ValRows            int           `json:"val_rows"`
	TestRows           int           `json:"test_rows"`
	PositiveCount      int           `json:"positive_count"`
	NegativeCount      int           `json:"negative_count"`
	PositivePercentage float64       `json:"positive_percentage"`
	FeatureNames       StringList    `json:"feature_names" gorm:"type:jsonb"`
	Statistics         JSON          `json:"statistics" gorm:"type:jsonb"`
	ErrorMessage       string        `json:"error_message" gorm:"type:text"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TableName 指定表名
func (Dataset) TableName() string {
	return "datasets"
}

// BeforeCreate 创建前生成 ID
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = "ds_" + uuid.New().String()[:8]
	}
	return nil
}
