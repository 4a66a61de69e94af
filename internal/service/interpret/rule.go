package interpret

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ashwinyue/xai-bench/internal/model"
)

// 贡献强度阈值与入选因子数
const (
	strongContribution   = 0.3
	moderateContribution = 0.15
	topFactorCount       = 5
)

// factor 参与叙述的单个特征
type factor struct {
	name         string
	contribution float64
	value        *float64
}

// rankedFactors 按绝对贡献降序取前 topFactorCount 个特征，同值按名称排序
func rankedFactors(e *model.Explanation) []factor {
	values := instanceValues(e)
	factors := make([]factor, 0, len(e.FeatureImportance))
	for name, contrib := range e.FeatureImportance {
		f := factor{name: name, contribution: contrib}
		if v, ok := values[name]; ok {
			v := v
			f.value = &v
		}
		factors = append(factors, f)
	}
	sort.Slice(factors, func(i, j int) bool {
		ai, aj := math.Abs(factors[i].contribution), math.Abs(factors[j].contribution)
		if ai != aj {
			return ai > aj
		}
		return factors[i].name < factors[j].name
	})
	if len(factors) > topFactorCount {
		factors = factors[:topFactorCount]
	}
	return factors
}

// instanceValues 从局部解释的载荷里取出样本特征值
func instanceValues(e *model.Explanation) map[string]float64 {
	raw, ok := e.Payload["instance"].(map[string]interface{})
	if !ok {
		return nil
	}
	values := make(map[string]float64, len(raw))
	for name, v := range raw {
		if f, ok := v.(float64); ok {
			values[name] = f
		}
	}
	return values
}

// strengthWord 贡献强度用词
func strengthWord(contribution float64) string {
	abs := math.Abs(contribution)
	switch {
	case abs > strongContribution:
		return "strongly"
	case abs > moderateContribution:
		return "moderately"
	default:
		return "slightly"
	}
}

// ruleBasedNarrative 确定性的规则叙述：符号给方向，幅度给强度
func ruleBasedNarrative(e *model.Explanation) *Narrative {
	factors := rankedFactors(e)
	top := make([]string, len(factors))
	for i, f := range factors {
		top[i] = f.name
	}

	n := &Narrative{
		Mode:        ModeRuleBased,
		Engine:      "deterministic attribution reasoning",
		TopFeatures: top,
	}
	if e.Scope == model.ExplanationScopeLocal {
		n.Text = localNarrativeText(e, factors)
		n.Confidence = riskConfidence(e.Prediction)
		n.Prediction = riskLabel(e.Prediction)
	} else {
		n.Text = globalNarrativeText(e, factors)
	}
	return n
}

// riskLabel 依据正类概率给出风险结论
func riskLabel(proba float64) string {
	if proba > 0.5 {
		return "high_risk"
	}
	return "low_risk"
}

// riskConfidence 结论侧的置信度
func riskConfidence(proba float64) float64 {
	if proba > 0.5 {
		return proba
	}
	return 1 - proba
}

// localNarrativeText 单样本叙述：结论、关键因子、汇总
func localNarrativeText(e *model.Explanation, factors []factor) string {
	var b strings.Builder
	if e.Prediction > 0.5 {
		fmt.Fprintf(&b, "The model predicts **HIGH RISK** with %.1f%% confidence.\n", e.Prediction*100)
	} else {
		fmt.Fprintf(&b, "The model predicts **LOW RISK** with %.1f%% confidence.\n", (1-e.Prediction)*100)
	}
	b.WriteString("\n**Key Factors:**\n\n")

	risky, protective := 0, 0
	for i, f := range factors {
		direction, impact := "decreases", "safe"
		if f.contribution > 0 {
			direction, impact = "increases", "risky"
			risky++
		} else if f.contribution < 0 {
			protective++
		}
		value := "N/A"
		if f.value != nil {
			value = fmt.Sprintf("%.4g", *f.value)
		}
		fmt.Fprintf(&b, "%d. **%s** (value: %s): This %s %s the risk. The current value makes the applicant appear more %s.\n",
			i+1, f.name, value, strengthWord(f.contribution), direction, impact)
	}

	b.WriteString("\n**Summary:**\n")
	switch {
	case risky > protective:
		fmt.Fprintf(&b, "The decision is primarily driven by %d risk-increasing factors, which outweigh the %d protective factors.", risky, protective)
	case protective > risky:
		fmt.Fprintf(&b, "The decision is primarily driven by %d protective factors, which outweigh the %d risk-increasing factors.", protective, risky)
	default:
		b.WriteString("The decision reflects a balance between risk-increasing and protective factors.")
	}
	return b.String()
}

// globalNarrativeText 全局叙述：重要性排名与头部特征的占比
func globalNarrativeText(e *model.Explanation, factors []factor) string {
	total := 0.0
	for _, v := range e.FeatureImportance {
		total += math.Abs(v)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Global %s attribution over %d test samples.\n", strings.ToUpper(string(e.Method)), e.SampleSize)
	b.WriteString("\n**Top Drivers:**\n\n")
	for i, f := range factors {
		share := 0.0
		if total > 0 {
			share = math.Abs(f.contribution) / total * 100
		}
		fmt.Fprintf(&b, "%d. **%s**: mean attribution %.4f (%.1f%% of total).\n", i+1, f.name, math.Abs(f.contribution), share)
	}

	b.WriteString("\n**Summary:**\n")
	if len(factors) > 0 && total > 0 {
		topShare := math.Abs(factors[0].contribution) / total * 100
		fmt.Fprintf(&b, "Model behaviour is led by **%s**, which accounts for %.1f%% of the total attribution mass.", factors[0].name, topShare)
	} else {
		b.WriteString("No feature carries meaningful attribution mass.")
	}
	return b.String()
}
