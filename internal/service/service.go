package service

import (
	"context"
	"fmt"
	"log"
	"time"

	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/xai-bench/internal/config"
	"github.com/ashwinyue/xai-bench/internal/repository"
	"github.com/ashwinyue/xai-bench/internal/service/benchmark"
	"github.com/ashwinyue/xai-bench/internal/service/dataset"
	"github.com/ashwinyue/xai-bench/internal/service/explain"
	"github.com/ashwinyue/xai-bench/internal/service/interpret"
	"github.com/ashwinyue/xai-bench/internal/service/provider"
	"github.com/ashwinyue/xai-bench/internal/service/quality"
	"github.com/ashwinyue/xai-bench/internal/service/storage"
	"github.com/ashwinyue/xai-bench/internal/service/task"
	"github.com/ashwinyue/xai-bench/internal/service/training"
)

// Services 服务集合
type Services struct {
	Dataset   *dataset.Service
	Training  *training.Service
	Explain   *explain.Service
	Interpret *interpret.Service
	Quality   *quality.Service
	Benchmark *benchmark.Service

	Config     *config.Config
	Dispatcher *task.Dispatcher
	Storage    storage.Storage
}

// NewServices 创建所有服务
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client) (*Services, error) {
	store, err := storage.New(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	registry, err := dataset.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load dataset registry: %w", err)
	}
	log.Printf("dataset registry: %d entries from %s", len(registry.List()), cfg.Registry.Path)

	dispatcher := task.NewDispatcher(cfg.Pipeline.Workers)
	downloader := provider.NewDownloader(time.Duration(cfg.Pipeline.DownloadTimeout) * time.Second)
	resultCache := explain.NewResultCache(redisClient, time.Duration(cfg.Pipeline.CacheTTLSeconds)*time.Second)

	datasets := dataset.NewService(repo, store, downloader, dispatcher, registry, cfg)
	trainer := training.NewService(repo, store, datasets, dispatcher, cfg)
	explains := explain.NewService(repo, trainer, datasets, dispatcher, resultCache, cfg)
	qualities := quality.NewService(repo, trainer, datasets, explains, dispatcher, cfg)

	var chatModel ecomodel.ChatModel
	if cm, err := newChatModel(context.Background(), cfg); err != nil {
		log.Printf("llm interpretation disabled: %v", err)
	} else {
		chatModel = cm
	}
	interprets := interpret.NewService(explains, trainer, chatModel)

	// 训练完成后预热全局 SHAP 解释；重训或删除时清理解释缓存
	trainer.AfterTrain = explains.WarmUp
	trainer.OnInvalidate = func(modelID string) {
		explains.InvalidateModel(context.Background(), modelID)
	}

	return &Services{
		Dataset:   datasets,
		Training:  trainer,
		Explain:   explains,
		Interpret: interprets,
		Quality:   qualities,
		Benchmark: benchmark.NewService(explains),

		Config:     cfg,
		Dispatcher: dispatcher,
		Storage:    store,
	}, nil
}

// Shutdown 等待在途后台任务结束
func (s *Services) Shutdown(ctx context.Context) error {
	return s.Dispatcher.Shutdown(ctx)
}
