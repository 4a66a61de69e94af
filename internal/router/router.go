package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/xai-bench/internal/handler"
	"github.com/ashwinyue/xai-bench/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Dataset 数据集
		datasets := v1.Group("/datasets")
		{
			datasets.POST("", h.Dataset.CreateDataset)
			datasets.GET("", h.Dataset.ListDatasets)
			datasets.GET("/registry", h.Dataset.ListRegistry)
			datasets.GET("/:id", h.Dataset.GetDataset)
			datasets.POST("/:id/reprocess", h.Dataset.ReprocessDataset)
			datasets.DELETE("/:id", h.Dataset.DeleteDataset)
		}

		// Model 模型训练
		models := v1.Group("/models")
		{
			models.POST("", h.Model.TrainModel)
			models.GET("", h.Model.ListModels)
			models.GET("/leaderboard", h.Model.Leaderboard)
			models.GET("/:id", h.Model.GetModel)
			models.GET("/:id/metrics", h.Model.GetModelMetrics)
			models.POST("/:id/retrain", h.Model.RetrainModel)
			models.DELETE("/:id", h.Model.DeleteModel)
		}

		// Explanation 解释
		explanations := v1.Group("/explanations")
		{
			explanations.POST("", h.Explanation.CreateExplanation)
			explanations.GET("", h.Explanation.ListExplanations)
			explanations.GET("/:id", h.Explanation.GetExplanation)
			explanations.POST("/:id/interpretation", h.Explanation.InterpretExplanation)
			explanations.DELETE("/:id", h.Explanation.DeleteExplanation)
			explanations.POST("/compare", h.Quality.CompareExplanations)
		}

		// Quality 质量评估
		quality := v1.Group("/quality")
		{
			quality.POST("", h.Quality.EvaluateQuality)
			quality.GET("", h.Quality.ListQuality)
			quality.GET("/:id", h.Quality.GetQuality)
		}
	}

	return r
}
