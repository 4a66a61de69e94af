package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/xai-bench/internal/service/benchmark"
	"github.com/ashwinyue/xai-bench/internal/service/quality"
)

// QualityHandler 质量评估与对比处理器
type QualityHandler struct {
	svc     *quality.Service
	compare *benchmark.Service
}

// NewQualityHandler 创建质量评估处理器
func NewQualityHandler(svc *quality.Service, compare *benchmark.Service) *QualityHandler {
	return &QualityHandler{svc: svc, compare: compare}
}

// EvaluateQuality 对一条已完成的解释做质量评估，调用方同步等待结果
func (h *QualityHandler) EvaluateQuality(c *gin.Context) {
	var req quality.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	qe, err := h.svc.Evaluate(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, qe)
}

// GetQuality 获取质量评估记录
func (h *QualityHandler) GetQuality(c *gin.Context) {
	qe, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, qe)
}

// ListQuality 列出某模型的质量评估记录
func (h *QualityHandler) ListQuality(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Query("model_id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, items)
}

// CompareExplanations 对比两份解释的特征排名一致性
func (h *QualityHandler) CompareExplanations(c *gin.Context) {
	var req benchmark.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := h.compare.Compare(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, result)
}
