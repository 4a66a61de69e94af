package service

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	ecomodel "github.com/cloudwego/eino/components/model"

	"github.com/ashwinyue/xai-bench/internal/config"
)

// newChatModel 创建解释转译用的 ChatModel；未配置密钥时返回错误，调用方降级为纯规则模式
func newChatModel(ctx context.Context, cfg *config.Config) (ecomodel.ChatModel, error) {
	aiCfg := cfg.AI

	switch aiCfg.Provider {
	case "", "openai":
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	if aiCfg.APIKey == "" {
		return nil, fmt.Errorf("ai.apiKey is not configured")
	}

	modelName := aiCfg.Model
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  aiCfg.APIKey,
		BaseURL: aiCfg.BaseURL,
		Model:   modelName,
	})
}
