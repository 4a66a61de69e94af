package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/xai-bench/internal/service/dataset"
)

// DatasetHandler 数据集处理器
type DatasetHandler struct {
	svc *dataset.Service
}

// NewDatasetHandler 创建数据集处理器
func NewDatasetHandler(svc *dataset.Service) *DatasetHandler {
	return &DatasetHandler{svc: svc}
}

// CreateDataset 登记数据集并启动下载与预处理流水线
func (h *DatasetHandler) CreateDataset(c *gin.Context) {
	var req dataset.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	data, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Accepted(c, data)
}

// GetDataset 获取数据集
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	data, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, data)
}

// ListDatasets 列出数据集，支持按状态过滤
func (h *DatasetHandler) ListDatasets(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.svc.List(c.Request.Context(), status, (page-1)*pageSize, pageSize)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, items, total, page, pageSize)
}

// ReprocessDataset 重新运行数据集流水线
func (h *DatasetHandler) ReprocessDataset(c *gin.Context) {
	var req struct {
		PositiveLabel string `json:"positive_label"`
	}
	// 请求体可为空
	_ = c.ShouldBindJSON(&req)

	t, err := h.svc.Reprocess(c.Request.Context(), c.Param("id"), req.PositiveLabel)
	if err != nil {
		Error(c, err)
		return
	}

	Accepted(c, gin.H{"task_id": t.ID, "dataset_id": c.Param("id")})
}

// DeleteDataset 删除数据集及其派生产物
func (h *DatasetHandler) DeleteDataset(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// ListRegistry 列出内置数据集登记表
func (h *DatasetHandler) ListRegistry(c *gin.Context) {
	Success(c, h.svc.ListRegistry())
}
