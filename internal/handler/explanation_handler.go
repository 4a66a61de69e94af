package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/xai-bench/internal/service/explain"
	"github.com/ashwinyue/xai-bench/internal/service/interpret"
)

// ExplanationHandler 解释处理器
type ExplanationHandler struct {
	svc        *explain.Service
	interprets *interpret.Service
}

// NewExplanationHandler 创建解释处理器
func NewExplanationHandler(svc *explain.Service, interprets *interpret.Service) *ExplanationHandler {
	return &ExplanationHandler{svc: svc, interprets: interprets}
}

// CreateExplanation 发起解释计算；命中已有结果时直接返回
func (h *ExplanationHandler) CreateExplanation(c *gin.Context) {
	var req explain.ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	e, err := h.svc.Explain(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Accepted(c, e)
}

// GetExplanation 获取解释记录
func (h *ExplanationHandler) GetExplanation(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, e)
}

// ListExplanations 列出解释记录，支持按模型过滤
func (h *ExplanationHandler) ListExplanations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.svc.List(c.Request.Context(), c.Query("model_id"), (page-1)*pageSize, pageSize)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, items, total, page, pageSize)
}

// InterpretExplanation 把解释结果转译为可读叙述；请求体可省略，默认规则模式
func (h *ExplanationHandler) InterpretExplanation(c *gin.Context) {
	var req interpret.InterpretRequest
	_ = c.ShouldBindJSON(&req)

	res, err := h.interprets.Interpret(c.Request.Context(), c.Param("id"), req.Mode)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

// DeleteExplanation 删除解释记录
func (h *ExplanationHandler) DeleteExplanation(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}
