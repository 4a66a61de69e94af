package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/xai-bench/internal/service/training"
)

// ModelHandler 模型处理器
type ModelHandler struct {
	svc *training.Service
}

// NewModelHandler 创建模型处理器
func NewModelHandler(svc *training.Service) *ModelHandler {
	return &ModelHandler{svc: svc}
}

// TrainModel 登记模型并启动后台训练
func (h *ModelHandler) TrainModel(c *gin.Context) {
	var req training.TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	m, err := h.svc.Train(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Accepted(c, m)
}

// GetModel 获取模型及其评估指标
func (h *ModelHandler) GetModel(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, m)
}

// ListModels 列出模型，支持按数据集和类型过滤
func (h *ModelHandler) ListModels(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Query("dataset_id"), c.Query("type"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, items)
}

// GetModelMetrics 获取模型评估指标
func (h *ModelHandler) GetModelMetrics(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	if m.Metrics == nil {
		NotFound(c, "model "+m.ID+" has no metrics yet")
		return
	}

	Success(c, m.Metrics)
}

// RetrainModel 重新训练模型
func (h *ModelHandler) RetrainModel(c *gin.Context) {
	t, err := h.svc.Retrain(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Accepted(c, gin.H{"task_id": t.ID, "model_id": c.Param("id")})
}

// DeleteModel 删除模型及其工件
func (h *ModelHandler) DeleteModel(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// Leaderboard 按 ROC-AUC 排序的排行榜
func (h *ModelHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	items, err := h.svc.Leaderboard(c.Request.Context(), c.Query("dataset_id"), limit)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, items)
}
