package handler

import (
	"github.com/ashwinyue/xai-bench/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Dataset     *DatasetHandler
	Model       *ModelHandler
	Explanation *ExplanationHandler
	Quality     *QualityHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Dataset:     NewDatasetHandler(svc.Dataset),
		Model:       NewModelHandler(svc.Training),
		Explanation: NewExplanationHandler(svc.Explain, svc.Interpret),
		Quality:     NewQualityHandler(svc.Quality, svc.Benchmark),
	}
}
