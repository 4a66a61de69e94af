// Package ml 提供纯 Go 实现的表格二分类训练与推理能力
package ml

import (
	"math"
	"testing"
)

// ========== 混淆矩阵与阈值指标测试 ==========

func TestEvaluate_Confusion(t *testing.T) {
	y := []float64{1, 1, 0, 0, 1, 0}
	probs := []float64{0.9, 0.4, 0.2, 0.6, 0.8, 0.1}

	ev := Evaluate(y, probs)

	if ev.TruePositives != 2 {
		t.Errorf("TruePositives = %d, want 2", ev.TruePositives)
	}
	if ev.FalsePositives != 1 {
		t.Errorf("FalsePositives = %d, want 1", ev.FalsePositives)
	}
	if ev.FalseNegatives != 1 {
		t.Errorf("FalseNegatives = %d, want 1", ev.FalseNegatives)
	}
	if ev.TrueNegatives != 2 {
		t.Errorf("TrueNegatives = %d, want 2", ev.TrueNegatives)
	}
	if !almostEqual(ev.Accuracy, 4.0/6.0, 1e-9) {
		t.Errorf("Accuracy = %v, want %v", ev.Accuracy, 4.0/6.0)
	}
	if !almostEqual(ev.Precision, 2.0/3.0, 1e-9) {
		t.Errorf("Precision = %v, want %v", ev.Precision, 2.0/3.0)
	}
	if !almostEqual(ev.Recall, 2.0/3.0, 1e-9) {
		t.Errorf("Recall = %v, want %v", ev.Recall, 2.0/3.0)
	}
	if !almostEqual(ev.F1Score, 2.0/3.0, 1e-9) {
		t.Errorf("F1Score = %v, want %v", ev.F1Score, 2.0/3.0)
	}
}

// ========== ROC-AUC 测试 ==========

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name     string
		y        []float64
		probs    []float64
		expected float64
	}{
		{
			name:     "perfect separation",
			y:        []float64{0, 0, 1, 1},
			probs:    []float64{0.1, 0.2, 0.8, 0.9},
			expected: 1.0,
		},
		{
			name:     "inverted",
			y:        []float64{0, 0, 1, 1},
			probs:    []float64{0.9, 0.8, 0.2, 0.1},
			expected: 0.0,
		},
		{
			name:     "single class",
			y:        []float64{1, 1, 1},
			probs:    []float64{0.3, 0.6, 0.9},
			expected: 0.5,
		},
		{
			name:     "ties averaged",
			y:        []float64{0, 1},
			probs:    []float64{0.5, 0.5},
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rocAUC(tt.y, tt.probs)
			if !almostEqual(got, tt.expected, 1e-9) {
				t.Errorf("rocAUC() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// ========== 校准误差测试 ==========

func TestCalibrationErrors_Calibrated(t *testing.T) {
	// 每箱内预测概率等于真实正类比例时误差为 0
	y := []float64{0, 1, 0, 1}
	probs := []float64{0.5, 0.5, 0.5, 0.5}

	ece, mce := calibrationErrors(y, probs, 10)
	if !almostEqual(ece, 0, 1e-9) {
		t.Errorf("ece = %v, want 0", ece)
	}
	if !almostEqual(mce, 0, 1e-9) {
		t.Errorf("mce = %v, want 0", mce)
	}
}

func TestCalibrationErrors_Overconfident(t *testing.T) {
	// 全部预测 0.95 但一半为负类
	y := []float64{1, 0, 1, 0}
	probs := []float64{0.95, 0.95, 0.95, 0.95}

	ece, mce := calibrationErrors(y, probs, 10)
	if !almostEqual(ece, 0.45, 1e-9) {
		t.Errorf("ece = %v, want 0.45", ece)
	}
	if !almostEqual(mce, 0.45, 1e-9) {
		t.Errorf("mce = %v, want 0.45", mce)
	}
}

// ========== 曲线抽稀测试 ==========

func TestDownsample(t *testing.T) {
	points := make([]CurvePoint, 1000)
	for i := range points {
		points[i] = CurvePoint{X: float64(i), Y: float64(i) * 2}
	}

	out := downsample(points, 100)
	if len(out) != 100 {
		t.Fatalf("len = %d, want 100", len(out))
	}
	if out[0].X != 0 {
		t.Errorf("first X = %v, want 0", out[0].X)
	}
	if out[len(out)-1].X != 999 {
		t.Errorf("last X = %v, want 999", out[len(out)-1].X)
	}
}

func TestDownsample_Short(t *testing.T) {
	points := []CurvePoint{{0, 0}, {1, 1}}
	out := downsample(points, 100)
	if len(out) != 2 {
		t.Errorf("len = %d, want 2", len(out))
	}
}

func TestEvaluate_CurveLimit(t *testing.T) {
	n := 5000
	y := make([]float64, n)
	probs := make([]float64, n)
	for i := range y {
		y[i] = float64(i % 2)
		probs[i] = float64(i) / float64(n)
	}

	ev := Evaluate(y, probs)
	if len(ev.ROCCurve) > 100 {
		t.Errorf("ROCCurve has %d points, want <= 100", len(ev.ROCCurve))
	}
	if len(ev.PRCurve) > 100 {
		t.Errorf("PRCurve has %d points, want <= 100", len(ev.PRCurve))
	}
}

// ========== 概率质量指标测试 ==========

func TestEvaluate_BrierAndLogLoss(t *testing.T) {
	y := []float64{1, 0}
	probs := []float64{0.8, 0.3}

	ev := Evaluate(y, probs)

	wantBrier := (0.2*0.2 + 0.3*0.3) / 2
	if !almostEqual(ev.BrierScore, wantBrier, 1e-9) {
		t.Errorf("BrierScore = %v, want %v", ev.BrierScore, wantBrier)
	}
	wantLogLoss := -(math.Log(0.8) + math.Log(0.7)) / 2
	if !almostEqual(ev.LogLoss, wantLogLoss, 1e-9) {
		t.Errorf("LogLoss = %v, want %v", ev.LogLoss, wantLogLoss)
	}
}

// almostEqual 比较两个浮点数是否近似相等
func almostEqual(a, b, epsilon float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) < epsilon
}
