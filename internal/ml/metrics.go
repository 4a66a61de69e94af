package ml

import (
	"math"
	"sort"
)

// CurvePoint 曲线上的一个点
type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Evaluation 二分类评估结果
type Evaluation struct {
	Accuracy       float64
	Precision      float64
	Recall         float64
	F1Score        float64
	ROCAUC         float64
	PRAUC          float64
	LogLoss        float64
	BrierScore     float64
	ECE            float64
	MCE            float64
	TrueNegatives  int
	FalsePositives int
	FalseNegatives int
	TruePositives  int
	ROCCurve       []CurvePoint
	PRCurve        []CurvePoint
}

// Evaluate 在标签与预测概率上计算全部评估指标，阈值 0.5
func Evaluate(y, probs []float64) *Evaluation {
	ev := &Evaluation{}
	n := len(y)
	if n == 0 || len(probs) != n {
		return ev
	}

	// 混淆矩阵
	for i := range y {
		pred := probs[i] >= 0.5
		actual := y[i] > 0.5
		switch {
		case pred && actual:
			ev.TruePositives++
		case pred && !actual:
			ev.FalsePositives++
		case !pred && actual:
			ev.FalseNegatives++
		default:
			ev.TrueNegatives++
		}
	}
	ev.Accuracy = float64(ev.TruePositives+ev.TrueNegatives) / float64(n)
	if ev.TruePositives+ev.FalsePositives > 0 {
		ev.Precision = float64(ev.TruePositives) / float64(ev.TruePositives+ev.FalsePositives)
	}
	if ev.TruePositives+ev.FalseNegatives > 0 {
		ev.Recall = float64(ev.TruePositives) / float64(ev.TruePositives+ev.FalseNegatives)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1Score = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}

	// 概率质量
	for i := range y {
		p := Clip(probs[i], 1e-15, 1-1e-15)
		if y[i] > 0.5 {
			ev.LogLoss -= math.Log(p)
		} else {
			ev.LogLoss -= math.Log(1 - p)
		}
		d := probs[i] - y[i]
		ev.BrierScore += d * d
	}
	ev.LogLoss /= float64(n)
	ev.BrierScore /= float64(n)

	ev.ROCAUC = rocAUC(y, probs)
	ev.ECE, ev.MCE = calibrationErrors(y, probs, 10)
	ev.ROCCurve, ev.PRCurve, ev.PRAUC = curves(y, probs)
	return ev
}

// rocAUC 基于平均秩的 Mann-Whitney 统计量
func rocAUC(y, probs []float64) float64 {
	nPos, nNeg := 0, 0
	for _, v := range y {
		if v > 0.5 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	ranks := Ranks(probs)
	sumPos := 0.0
	for i, v := range y {
		if v > 0.5 {
			sumPos += ranks[i]
		}
	}
	return (sumPos - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
}

// calibrationErrors 等宽分箱的期望/最大校准误差
func calibrationErrors(y, probs []float64, bins int) (float64, float64) {
	counts := make([]int, bins)
	sumProb := make([]float64, bins)
	sumTrue := make([]float64, bins)
	for i, p := range probs {
		b := int(p * float64(bins))
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
		sumProb[b] += p
		sumTrue[b] += y[i]
	}
	ece, mce := 0.0, 0.0
	n := float64(len(y))
	for b := 0; b < bins; b++ {
		if counts[b] == 0 {
			continue
		}
		gap := math.Abs(sumProb[b]-sumTrue[b]) / float64(counts[b])
		ece += gap * float64(counts[b]) / n
		if gap > mce {
			mce = gap
		}
	}
	return ece, mce
}

// curves 按阈值扫描生成 ROC 与 PR 曲线，并计算 PR-AUC
func curves(y, probs []float64) ([]CurvePoint, []CurvePoint, float64) {
	type pair struct{ p, y float64 }
	pairs := make([]pair, len(y))
	for i := range y {
		pairs[i] = pair{probs[i], y[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].p > pairs[j].p })

	nPos, nNeg := 0, 0
	for _, pr := range pairs {
		if pr.y > 0.5 {
			nPos++
		} else {
			nNeg++
		}
	}

	var roc, pr []CurvePoint
	roc = append(roc, CurvePoint{0, 0})
	tp, fp := 0, 0
	prAUC := 0.0
	prevRecall := 0.0
	for i := 0; i < len(pairs); {
		// 同分值的样本一并处理
		j := i
		for j < len(pairs) && pairs[j].p == pairs[i].p {
			if pairs[j].y > 0.5 {
				tp++
			} else {
				fp++
			}
			j++
		}
		i = j

		var tpr, fpr, precision, recall float64
		if nPos > 0 {
			tpr = float64(tp) / float64(nPos)
			recall = tpr
		}
		if nNeg > 0 {
			fpr = float64(fp) / float64(nNeg)
		}
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		roc = append(roc, CurvePoint{fpr, tpr})
		pr = append(pr, CurvePoint{recall, precision})
		prAUC += (recall - prevRecall) * precision
		prevRecall = recall
	}
	return downsample(roc, 100), downsample(pr, 100), prAUC
}

// downsample 等距抽稀曲线到不超过 maxPoints 个点，保留首尾
func downsample(points []CurvePoint, maxPoints int) []CurvePoint {
	if len(points) <= maxPoints {
		return points
	}
	out := make([]CurvePoint, 0, maxPoints)
	step := float64(len(points)-1) / float64(maxPoints-1)
	for i := 0; i < maxPoints; i++ {
		out = append(out, points[int(float64(i)*step+0.5)])
	}
	out[len(out)-1] = points[len(points)-1]
	return out
}
