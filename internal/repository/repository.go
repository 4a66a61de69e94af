package repository

import "gorm.io/gorm"

// Repositories 仓库集合，用于统一管理所有仓库。
// 字段为接口类型，服务层测试可以注入内存实现
type Repositories struct {
	DB          *gorm.DB // 直接访问数据库
	Dataset     DatasetStore
	Model       ModelStore
	Explanation ExplanationStore
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Dataset:     NewDatasetRepository(db),
		Model:       NewModelRepository(db),
		Explanation: NewExplanationRepository(db),
	}
}
