package interpret

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/xai-bench/internal/model"
)

// systemPrompt 固定的转译人设：面向信审与风控人员解释归因结果
const systemPrompt = `You are a financial AI expert explaining risk model decisions to analysts and applicants.

Your task is to translate feature attribution values (SHAP or LIME) into clear, human-understandable reasoning about why the model scored a case the way it did.

Guidelines:
1. Use plain language, avoid technical jargon
2. Focus on the top 3-5 most important factors
3. Explain both risk-increasing and risk-decreasing factors
4. Provide actionable insights when possible
5. Be empathetic but factual
6. Structure your explanation clearly with sections`

// llmNarrative 经由 ChatModel 生成自由文本叙述
func (s *Service) llmNarrative(ctx context.Context, e *model.Explanation, m *model.Model) (*Narrative, error) {
	factors := rankedFactors(e)
	top := make([]string, len(factors))
	for i, f := range factors {
		top[i] = f.name
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: buildUserPrompt(e, m, factors)},
	}

	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}

	n := &Narrative{
		Mode:        ModeLLM,
		Engine:      "chat model",
		Text:        resp.Content,
		TopFeatures: top,
	}
	if e.Scope == model.ExplanationScopeLocal {
		n.Confidence = riskConfidence(e.Prediction)
		n.Prediction = riskLabel(e.Prediction)
	}
	return n, nil
}

// buildUserPrompt 把归因数据整理成提示词
func buildUserPrompt(e *model.Explanation, m *model.Model, factors []factor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please explain this decision of a %s model trained on dataset %s.\n\n", m.Type, m.DatasetID)

	if e.Scope == model.ExplanationScopeLocal {
		if e.Prediction > 0.5 {
			fmt.Fprintf(&b, "**Prediction:** HIGH RISK\n**Confidence:** %.1f%%\n", e.Prediction*100)
		} else {
			fmt.Fprintf(&b, "**Prediction:** LOW RISK\n**Confidence:** %.1f%%\n", (1-e.Prediction)*100)
		}
	} else {
		fmt.Fprintf(&b, "**Scope:** global importance over %d samples\n", e.SampleSize)
	}

	fmt.Fprintf(&b, "\n**%s Feature Contributions:**\n", strings.ToUpper(string(e.Method)))
	for i, f := range factors {
		effect := "decreases risk"
		if f.contribution > 0 {
			effect = "increases risk"
		}
		if e.Scope == model.ExplanationScopeGlobal {
			effect = "drives model behaviour"
		}
		fmt.Fprintf(&b, "%d. **%s**\n   - attribution: %.3f\n   - effect: %s\n", i+1, f.name, f.contribution, effect)
		if f.value != nil {
			fmt.Fprintf(&b, "   - value: %.4g\n", *f.value)
		}
	}

	b.WriteString(`
Generate a clear, empathetic explanation that:
1. States the decision and confidence level
2. Explains the top 3-5 key factors
3. Provides a summary of the overall reasoning
4. Uses markdown formatting for readability`)
	return b.String()
}
