package interpret

import (
	"context"

	ecomodel "github.com/cloudwego/eino/components/model"

	"github.com/ashwinyue/xai-bench/internal/model"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// 解释转译模式
const (
	ModeRuleBased = "rule-based"
	ModeLLM       = "llm"
	ModeBoth      = "both"
)

// ExplanationSource 转译所需的解释访问能力，由 explain.Service 提供
type ExplanationSource interface {
	Get(ctx context.Context, id string) (*model.Explanation, error)
}

// ModelSource 转译所需的模型访问能力，由 training.Service 提供
type ModelSource interface {
	Get(ctx context.Context, id string) (*model.Model, error)
}

// Service 解释转译服务：把归因数值翻译成可读的决策说明。
// chatModel 为 nil 时仅提供规则模式。
type Service struct {
	explains  ExplanationSource
	trainer   ModelSource
	chatModel ecomodel.ChatModel
}

// NewService 创建解释转译服务
func NewService(explains ExplanationSource, trainer ModelSource, chatModel ecomodel.ChatModel) *Service {
	return &Service{
		explains:  explains,
		trainer:   trainer,
		chatModel: chatModel,
	}
}

// InterpretRequest 转译请求；mode 为空时默认规则模式
type InterpretRequest struct {
	Mode string `json:"mode"`
}

// Narrative 单个转译结果
type Narrative struct {
	Mode        string   `json:"mode"`
	Engine      string   `json:"engine"`
	Text        string   `json:"text"`
	TopFeatures []string `json:"top_features"`
	Confidence  float64  `json:"confidence"`
	Prediction  string   `json:"prediction,omitempty"`
}

// Result 转译响应
type Result struct {
	ExplanationID string     `json:"explanation_id"`
	ModelID       string     `json:"model_id"`
	Method        string     `json:"method"`
	Scope         string     `json:"scope"`
	RuleBased     *Narrative `json:"rule_based,omitempty"`
	LLM           *Narrative `json:"llm,omitempty"`
}

// Available 当前可用的 LLM 能力
func (s *Service) Available() bool {
	return s.chatModel != nil
}

// Interpret 将已完成的解释转译为人类可读的叙述
func (s *Service) Interpret(ctx context.Context, explanationID, mode string) (*Result, error) {
	if mode == "" {
		mode = ModeRuleBased
	}
	if mode != ModeRuleBased && mode != ModeLLM && mode != ModeBoth {
		return nil, types.NewValidation("unsupported interpretation mode %q", mode)
	}
	if (mode == ModeLLM || mode == ModeBoth) && s.chatModel == nil {
		return nil, types.NewValidation("llm interpretation is not configured, set ai.apiKey or use rule-based mode")
	}

	e, err := s.explains.Get(ctx, explanationID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.ExplanationStatusCompleted {
		return nil, types.NewValidation("explanation %s is %s, only completed explanations can be interpreted", e.ID, e.Status)
	}
	if len(e.FeatureImportance) == 0 {
		return nil, types.NewValidation("explanation %s carries no feature attribution", e.ID)
	}

	m, err := s.trainer.Get(ctx, e.ModelID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ExplanationID: e.ID,
		ModelID:       m.ID,
		Method:        string(e.Method),
		Scope:         string(e.Scope),
	}

	if mode == ModeRuleBased || mode == ModeBoth {
		res.RuleBased = ruleBasedNarrative(e)
	}
	if mode == ModeLLM || mode == ModeBoth {
		n, err := s.llmNarrative(ctx, e, m)
		if err != nil {
			return nil, types.NewUpstreamIO("generate llm interpretation", err)
		}
		res.LLM = n
	}
	return res, nil
}
