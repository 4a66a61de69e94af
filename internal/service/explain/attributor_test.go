// Package explain 提供模型解释引擎
package explain

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
)

// trainFixture 线性可分数据上训练一个估计器
func trainFixture(t *testing.T, kind string) (ml.Estimator, *ml.Frame) {
	t.Helper()
	rng := rand.New(rand.NewSource(17))
	n := 400
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		x1, x2, x3 := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		X[i] = []float64{x1, x2, x3}
		if 3*x1-x2 > 0 {
			y[i] = 1
		}
	}

	est, err := ml.NewEstimator(kind, ml.Hyperparams{"n_estimators": 30})
	if err != nil {
		t.Fatalf("NewEstimator() error = %v", err)
	}
	if err := est.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	frame := &ml.Frame{FeatureNames: []string{"x1", "x2", "x3"}, X: X, Y: y}
	return est, frame
}

// ========== 策略选择测试 ==========

func TestNewAttributor_StrategySelection(t *testing.T) {
	forest, frame := trainFixture(t, "random_forest")
	linear, _ := trainFixture(t, "logistic_regression")

	tests := []struct {
		name      string
		method    model.ExplanationMethod
		modelType model.ModelType
		estimator ml.Estimator
		wantTree  bool
	}{
		{"shap on forest uses tree paths", model.ExplanationMethodSHAP, model.ModelTypeRandomForest, forest, true},
		{"shap on linear falls back to sampling", model.ExplanationMethodSHAP, model.ModelTypeLogisticRegression, linear, false},
		{"lime on forest uses sampling", model.ExplanationMethodLIME, model.ModelTypeRandomForest, forest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &model.Model{ID: "m1", Type: tt.modelType}
			a, err := NewAttributor(tt.method, m, tt.estimator, frame, 64)
			if err != nil {
				t.Fatalf("NewAttributor() error = %v", err)
			}
			_, isTree := a.(*treeAttributor)
			if isTree != tt.wantTree {
				t.Errorf("attributor type = %T, wantTree = %v", a, tt.wantTree)
			}
		})
	}
}

func TestNewAttributor_InvalidMethod(t *testing.T) {
	est, frame := trainFixture(t, "logistic_regression")
	m := &model.Model{ID: "m1", Type: model.ModelTypeLogisticRegression}
	if _, err := NewAttributor("gradcam", m, est, frame, 64); err == nil {
		t.Error("NewAttributor() expected error for unknown method")
	}
}

// ========== 守恒性测试 ==========

func TestTreeAttributor_Conservation(t *testing.T) {
	est, frame := trainFixture(t, "random_forest")
	m := &model.Model{ID: "m1", Type: model.ModelTypeRandomForest}
	a, err := NewAttributor(model.ExplanationMethodSHAP, m, est, frame, 64)
	if err != nil {
		t.Fatalf("NewAttributor() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		x := frame.X[i]
		base, contrib, err := a.Local(x)
		if err != nil {
			t.Fatalf("Local() error = %v", err)
		}
		sum := base
		for _, c := range contrib {
			sum += c
		}
		pred := ml.PredictOne(est, x)
		if math.Abs(sum-pred) > 1e-3 {
			t.Errorf("sample %d: base+sum = %v, prediction = %v", i, sum, pred)
		}
	}
}

func TestSamplingAttributor_SHAPConservation(t *testing.T) {
	est, frame := trainFixture(t, "logistic_regression")
	a := newSamplingAttributor(model.ExplanationMethodSHAP, est, frame.Slice(0, 100), 256, 42)

	x := frame.X[0]
	base, contrib, err := a.Local(x)
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}
	sum := base
	for _, c := range contrib {
		sum += c
	}
	pred := ml.PredictOne(est, x)
	if math.Abs(sum-pred) > 1e-3 {
		t.Errorf("base+sum = %v, prediction = %v", sum, pred)
	}
}

// ========== 归因合理性测试 ==========

func TestGlobalAttribution_IdentifiesSignal(t *testing.T) {
	est, frame := trainFixture(t, "random_forest")
	m := &model.Model{ID: "m1", Type: model.ModelTypeRandomForest}
	a, _ := NewAttributor(model.ExplanationMethodSHAP, m, est, frame, 64)

	importance, err := GlobalAttribution(a, frame.X[:100])
	if err != nil {
		t.Fatalf("GlobalAttribution() error = %v", err)
	}
	// x1 是主信号，应显著强于噪声特征 x3
	if importance[0] <= importance[2] {
		t.Errorf("importance = %v, want x1 > x3", importance)
	}
}

func TestRankFeatures(t *testing.T) {
	ranks := RankFeatures([]string{"a", "b", "c"}, []float64{0.1, 0.7, 0.2})

	if ranks[0].Feature != "b" || ranks[0].Rank != 1 {
		t.Errorf("top feature = %+v, want b at rank 1", ranks[0])
	}
	if ranks[2].Feature != "a" || ranks[2].Rank != 3 {
		t.Errorf("bottom feature = %+v, want a at rank 3", ranks[2])
	}
}

// ========== 采样归因确定性测试 ==========

func TestSamplingAttributor_Deterministic(t *testing.T) {
	est, frame := trainFixture(t, "mlp")
	background := frame.Slice(0, 50)

	a := newSamplingAttributor(model.ExplanationMethodLIME, est, background, 128, 42)
	b := newSamplingAttributor(model.ExplanationMethodLIME, est, background, 128, 42)

	_, ca, err := a.Local(frame.X[3])
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}
	_, cb, err := b.Local(frame.X[3])
	if err != nil {
		t.Fatalf("Local() error = %v", err)
	}
	for j := range ca {
		if ca[j] != cb[j] {
			t.Errorf("contribution %d differs between identical runs: %v vs %v", j, ca[j], cb[j])
		}
	}
}
