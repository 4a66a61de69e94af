// Package model 提供实体数据模型
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModelType 模型算法类型
type ModelType string

const (
	ModelTypeLogisticRegression ModelType = "logistic_regression" // 逻辑回归
	ModelTypeRandomForest       ModelType = "random_forest"       // 随机森林
	ModelTypeGradientBoosting   ModelType = "gradient_boosting"   // 梯度提升树
	ModelTypeMLP                ModelType = "mlp"                 // 多层感知机
)

// Valid 判断算法类型是否受支持
func (t ModelType) Valid() bool {
	switch t {
	case ModelTypeLogisticRegression, ModelTypeRandomForest, ModelTypeGradientBoosting, ModelTypeMLP:
		return true
	default:
		return false
	}
}

// TreeBased 是否为树模型家族
func (t ModelType) TreeBased() bool {
	return t == ModelTypeRandomForest || t == ModelTypeGradientBoosting
}

// ModelStatus 模型训练状态
type ModelStatus string

const (
	ModelStatusPending   ModelStatus = "pending"
	ModelStatusTraining  ModelStatus = "training"
	ModelStatusCompleted ModelStatus = "completed"
	ModelStatusFailed    ModelStatus = "failed"
)

// CanTransition 判断能否迁移到目标状态
func (s ModelStatus) CanTransition(to ModelStatus) bool {
	switch s {
	case ModelStatusPending:
		return to == ModelStatusTraining || to == ModelStatusFailed
	case ModelStatusTraining:
		return to == ModelStatusCompleted || to == ModelStatusFailed
	case ModelStatusFailed:
		return to == ModelStatusTraining
	default:
		return false
	}
}

// Model 在某个数据集上训练出的分类器
type Model struct {
	ID                  string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name                string        `json:"name" gorm:"type:varchar(255);not null"`
	DatasetID           string        `json:"dataset_id" gorm:"type:varchar(64);index;not null"`
	Type                ModelType     `json:"type" gorm:"type:varchar(50);not null"`
	Status              ModelStatus   `json:"status" gorm:"type:varchar(32);index;default:pending"`
	Hyperparameters     JSON          `json:"hyperparameters" gorm:"type:jsonb"`
	ModelPath           string        `json:"model_path" gorm:"type:varchar(512)"`
	ModelHash           string        `json:"model_hash" gorm:"type:varchar(64)"`
	TrainingTimeSeconds float64       `json:"training_time_seconds"`
	ErrorMessage        string        `json:"error_message" gorm:"type:text"`
	Metrics             *ModelMetrics `json:"metrics,omitempty" gorm:"foreignKey:ModelID"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// TableName 指定表名
func (Model) TableName() string {
	return "models"
}

// BeforeCreate 创建前生成 ID
func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = string(m.Type) + "_" + uuid.New().String()[:8]
	}
	return nil
}

// ModelMetrics 模型在测试集上的评估指标
type ModelMetrics struct {
	ID             string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	ModelID        string    `json:"model_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	Accuracy       float64   `json:"accuracy"`
	Precision      float64   `json:"precision"`
	Recall         float64   `json:"recall"`
	F1Score        float64   `json:"f1_score"`
	ROCAUC         float64   `json:"roc_auc"`
	PRAUC          float64   `json:"pr_auc"`
	LogLoss        float64   `json:"log_loss"`
	BrierScore     float64   `json:"brier_score"`
	ECE            float64   `json:"ece"`
	MCE            float64   `json:"mce"`
	TrueNegatives  int       `json:"true_negatives"`
	FalsePositives int       `json:"false_positives"`
	FalseNegatives int       `json:"false_negatives"`
	TruePositives  int       `json:"true_positives"`
	ROCCurve       JSON      `json:"roc_curve" gorm:"type:jsonb"`
	PRCurve        JSON      `json:"pr_curve" gorm:"type:jsonb"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 指定表名
func (ModelMetrics) TableName() string {
	return "model_metrics"
}

// BeforeCreate 创建前生成 ID
func (m *ModelMetrics) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = "metrics_" + uuid.New().String()[:8]
	}
	return nil
}
