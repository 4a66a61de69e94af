package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExplanationMethod 解释方法
type ExplanationMethod string

const (
	ExplanationMethodSHAP ExplanationMethod = "shap"
	ExplanationMethodLIME ExplanationMethod = "lime"
)

// Valid 判断解释方法是否受支持
func (m ExplanationMethod) Valid() bool {
	return m == ExplanationMethodSHAP || m == ExplanationMethodLIME
}

// ExplanationScope 解释范围
type ExplanationScope string

const (
	ExplanationScopeGlobal ExplanationScope = "global"
	ExplanationScopeLocal  ExplanationScope = "local"
)

// Valid 判断解释范围是否受支持
func (s ExplanationScope) Valid() bool {
	return s == ExplanationScopeGlobal || s == ExplanationScopeLocal
}

// ExplanationStatus 解释任务状态
type ExplanationStatus string

const (
	ExplanationStatusPending    ExplanationStatus = "pending"
	ExplanationStatusProcessing ExplanationStatus = "processing"
	ExplanationStatusCompleted  ExplanationStatus = "completed"
	ExplanationStatusFailed     ExplanationStatus = "failed"
)

// CanTransition 判断能否迁移到目标状态
func (s ExplanationStatus) CanTransition(to ExplanationStatus) bool {
	switch s {
	case ExplanationStatusPending:
		return to == ExplanationStatusProcessing || to == ExplanationStatusFailed
	case ExplanationStatusProcessing:
		return to == ExplanationStatusCompleted || to == ExplanationStatusFailed
	case ExplanationStatusFailed:
		return to == ExplanationStatusProcessing
	default:
		return false
	}
}

// Terminal 是否为终态
func (s ExplanationStatus) Terminal() bool {
	return s == ExplanationStatusCompleted || s == ExplanationStatusFailed
}

// Explanation 一次模型解释的结果
type Explanation struct {
	ID                string            `json:"id" gorm:"type:varchar(64);primaryKey"`
	ModelID           string            `json:"model_id" gorm:"type:varchar(64);index;not null"`
	Method            ExplanationMethod `json:"method" gorm:"type:varchar(16);not null"`
	Scope             ExplanationScope  `json:"scope" gorm:"type:varchar(16);not null"`
	Status            ExplanationStatus `json:"status" gorm:"type:varchar(32);index;default:pending"`
	InstanceIndex     *int              `json:"instance_index,omitempty"` // scope=local 时使用
	SampleSize        int               `json:"sample_size"`
	FeatureImportance FloatMap          `json:"feature_importance" gorm:"type:jsonb"`
	BaseValue         float64           `json:"base_value"`
	Prediction        float64           `json:"prediction"`
	Payload           JSON              `json:"payload" gorm:"type:jsonb"` // 排名、贡献明细等
	CacheKey          string            `json:"cache_key,omitempty" gorm:"type:varchar(255)"`
	CachedUntil       *time.Time        `json:"cached_until,omitempty"`
	ElapsedSeconds    float64           `json:"elapsed_seconds"`
	ErrorMessage      string            `json:"error_message" gorm:"type:text"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TableName 指定表名
func (Explanation) TableName() string {
	return "explanations"
}

// BeforeCreate 创建前生成 ID
func (e *Explanation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = "exp_" + uuid.New().String()[:8]
	}
	return nil
}

// QualityEvaluation 解释质量评估结果
type QualityEvaluation struct {
	ID            string            `json:"id" gorm:"type:varchar(64);primaryKey"`
	ExplanationID string            `json:"explanation_id" gorm:"type:varchar(64);index;not null"`
	ModelID       string            `json:"model_id" gorm:"type:varchar(64);index;not null"`
	Method        ExplanationMethod `json:"method" gorm:"type:varchar(16)"`
	Faithfulness  float64           `json:"faithfulness"`
	Robustness    float64           `json:"robustness"`
	Complexity    float64           `json:"complexity"`
	OverallScore  float64           `json:"overall_score"`
	SampleSize    int               `json:"sample_size"`
	Details       JSON              `json:"details" gorm:"type:jsonb"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TableName 指定表名
func (QualityEvaluation) TableName() string {
	return "quality_evaluations"
}

// BeforeCreate 创建前生成 ID
func (q *QualityEvaluation) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = "qe_" + uuid.New().String()[:8]
	}
	return nil
}
