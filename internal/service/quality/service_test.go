package quality

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/ashwinyue/xai-bench/internal/config"
	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
	"github.com/ashwinyue/xai-bench/internal/repository"
	"github.com/ashwinyue/xai-bench/internal/service/explain"
	"github.com/ashwinyue/xai-bench/internal/service/task"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// stubAttributor 贡献向量为输入的线性变换，便于验证扰动相关性
type stubAttributor struct {
	fail bool
}

func (s *stubAttributor) Method() model.ExplanationMethod {
	return model.ExplanationMethodSHAP
}

func (s *stubAttributor) Local(x []float64) (float64, []float64, error) {
	if s.fail {
		return 0, nil, errors.New("attribution failed")
	}
	contrib := make([]float64, len(x))
	for j, v := range x {
		contrib[j] = 2 * v
	}
	return 0.1, contrib, nil
}

func robustnessFixture() ([][]float64, []float64) {
	rows := [][]float64{
		{1.0, -2.0, 0.5},
		{0.2, 1.5, -1.0},
		{-0.8, 0.3, 2.0},
		{1.5, -0.5, 0.1},
	}
	stds := []float64{1.0, 1.2, 0.9}
	return rows, stds
}

func TestRobustness_StableAttributor(t *testing.T) {
	svc := &Service{}
	rows, stds := robustnessFixture()
	details := model.JSON{}

	got := svc.robustness(&stubAttributor{}, rows, stds, details)
	if got < 0.9 || got > 1.0 {
		t.Errorf("robustness of linear attributor = %v, want near 1", got)
	}
	if _, ok := details["robustness_rows"]; !ok {
		t.Error("expected robustness_rows in details")
	}
}

func TestRobustness_Deterministic(t *testing.T) {
	svc := &Service{}
	rows, stds := robustnessFixture()

	a := svc.robustness(&stubAttributor{}, rows, stds, model.JSON{})
	b := svc.robustness(&stubAttributor{}, rows, stds, model.JSON{})
	if a != b {
		t.Errorf("robustness is not deterministic: %v vs %v", a, b)
	}
}

func TestRobustness_FallbackOnFailure(t *testing.T) {
	svc := &Service{}
	rows, stds := robustnessFixture()
	details := model.JSON{}

	got := svc.robustness(&stubAttributor{fail: true}, rows, stds, details)
	if got != fallbackRobustness {
		t.Errorf("robustness fallback = %v, want %v", got, fallbackRobustness)
	}
	if details["robustness_fallback"] != true {
		t.Error("expected robustness_fallback flag in details")
	}
}

// ========== 评估编排测试 ==========

// fakeQualityStore 只实现评估读写的内存仓库
type fakeQualityStore struct {
	mu           sync.Mutex
	explanations map[string]*model.Explanation
	evaluations  map[string]*model.QualityEvaluation
}

func newFakeQualityStore() *fakeQualityStore {
	return &fakeQualityStore{
		explanations: make(map[string]*model.Explanation),
		evaluations:  make(map[string]*model.QualityEvaluation),
	}
}

func (f *fakeQualityStore) Create(ctx context.Context, e *model.Explanation) error { return nil }

func (f *fakeQualityStore) GetByID(ctx context.Context, id string) (*model.Explanation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.explanations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeQualityStore) List(ctx context.Context, modelID string, offset, limit int) ([]*model.Explanation, int64, error) {
	return nil, 0, nil
}

func (f *fakeQualityStore) FindCompleted(ctx context.Context, modelID string, method model.ExplanationMethod, scope model.ExplanationScope, sampleSize int) (*model.Explanation, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeQualityStore) Update(ctx context.Context, e *model.Explanation) error { return nil }
func (f *fakeQualityStore) Delete(ctx context.Context, id string) error            { return nil }

func (f *fakeQualityStore) CreateQuality(ctx context.Context, q *model.QualityEvaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.ID == "" {
		q.ID = "qe_1"
	}
	cp := *q
	f.evaluations[q.ID] = &cp
	return nil
}

func (f *fakeQualityStore) GetQualityByID(ctx context.Context, id string) (*model.QualityEvaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.evaluations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQualityStore) ListQuality(ctx context.Context, modelID string) ([]*model.QualityEvaluation, error) {
	return nil, nil
}

// stubModels / stubFrames / stubExplains 为评估服务提供固定依赖
type stubModels struct{}

func (stubModels) Get(ctx context.Context, id string) (*model.Model, error) {
	return &model.Model{
		ID:        id,
		DatasetID: "ds1",
		Type:      model.ModelTypeLogisticRegression,
		Status:    model.ModelStatusCompleted,
	}, nil
}

type stubFrames struct {
	test *ml.Frame
}

func (s *stubFrames) Get(ctx context.Context, id string) (*model.Dataset, error) {
	return &model.Dataset{ID: id, Status: model.DatasetStatusCompleted, TestRows: s.test.Rows()}, nil
}

func (s *stubFrames) LoadSplit(ctx context.Context, ds *model.Dataset, split string) (*ml.Frame, error) {
	return s.test, nil
}

type stubExplains struct {
	store *fakeQualityStore
	est   ml.Estimator
}

func (s *stubExplains) Get(ctx context.Context, id string) (*model.Explanation, error) {
	return s.store.GetByID(ctx, id)
}

func (s *stubExplains) AttributorFor(ctx context.Context, m *model.Model, ds *model.Dataset, method model.ExplanationMethod) (explain.Attributor, ml.Estimator, error) {
	return &stubAttributor{}, s.est, nil
}

func evaluationFrame(rows int) *ml.Frame {
	f := &ml.Frame{FeatureNames: []string{"amount", "age", "balance"}}
	for i := 0; i < rows; i++ {
		a := float64(i%6) / 6
		b := float64((i*5)%6) / 6
		c := float64((i*7)%6) / 6
		label := 0.0
		if a+c > 1 {
			label = 1
		}
		f.X = append(f.X, []float64{a, b, c})
		f.Y = append(f.Y, label)
	}
	return f
}

func TestEvaluate_PersistsEvaluation(t *testing.T) {
	frame := evaluationFrame(60)
	est, err := ml.NewEstimator("logistic_regression", nil)
	if err != nil {
		t.Fatalf("NewEstimator() error = %v", err)
	}
	if err := est.Fit(frame.X, frame.Y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	store := newFakeQualityStore()
	store.explanations["exp_1"] = &model.Explanation{
		ID:      "exp_1",
		ModelID: "m1",
		Method:  model.ExplanationMethodSHAP,
		Scope:   model.ExplanationScopeGlobal,
		Status:  model.ExplanationStatusCompleted,
		FeatureImportance: model.FloatMap{
			"amount": 0.6, "age": 0.1, "balance": 0.3,
		},
	}

	d := task.NewDispatcher(1)
	t.Cleanup(func() { d.Shutdown(context.Background()) })
	svc := NewService(
		&repository.Repositories{Explanation: store},
		stubModels{},
		&stubFrames{test: frame},
		&stubExplains{store: store, est: est},
		d,
		&config.Config{},
	)

	qe, err := svc.Evaluate(context.Background(), &EvaluateRequest{ExplanationID: "exp_1", SampleSize: 20})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if qe.ExplanationID != "exp_1" || qe.ModelID != "m1" {
		t.Errorf("evaluation references %s/%s, want exp_1/m1", qe.ExplanationID, qe.ModelID)
	}
	for name, score := range map[string]float64{
		"faithfulness": qe.Faithfulness,
		"robustness":   qe.Robustness,
		"complexity":   qe.Complexity,
		"overall":      qe.OverallScore,
	} {
		if score < 0 || score > 1 {
			t.Errorf("%s = %v, want within [0, 1]", name, score)
		}
	}
	want := 0.4*qe.Faithfulness + 0.3*qe.Robustness + 0.3*qe.Complexity
	if !almostEqual(qe.OverallScore, want, 1e-9) {
		t.Errorf("overall = %v, want %v", qe.OverallScore, want)
	}

	// 记录已持久化并可回查
	got, err := svc.Get(context.Background(), qe.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OverallScore != qe.OverallScore {
		t.Errorf("persisted overall = %v, want %v", got.OverallScore, qe.OverallScore)
	}
}

func TestEvaluate_RejectsIncompleteExplanation(t *testing.T) {
	store := newFakeQualityStore()
	store.explanations["exp_1"] = &model.Explanation{
		ID:      "exp_1",
		ModelID: "m1",
		Status:  model.ExplanationStatusProcessing,
	}
	d := task.NewDispatcher(1)
	t.Cleanup(func() { d.Shutdown(context.Background()) })
	svc := NewService(&repository.Repositories{Explanation: store}, stubModels{}, nil, &stubExplains{store: store}, d, &config.Config{})

	_, err := svc.Evaluate(context.Background(), &EvaluateRequest{ExplanationID: "exp_1"})
	if !types.IsValidation(err) {
		t.Errorf("Evaluate() error = %v, want validation error", err)
	}
}

func TestComplexity_FallbackOnZeroAttribution(t *testing.T) {
	svc := &Service{}
	details := model.JSON{}

	got := svc.complexity([]float64{0, 0, 0}, details)
	if got != fallbackComplexity {
		t.Errorf("complexity fallback = %v, want %v", got, fallbackComplexity)
	}
	if details["complexity_fallback"] != true {
		t.Error("expected complexity_fallback flag in details")
	}
}

func TestComplexity_SingleFeatureDetails(t *testing.T) {
	svc := &Service{}
	details := model.JSON{}

	got := svc.complexity([]float64{0, 0.7, 0, 0}, details)
	if !almostEqual(got, 0.875, 1e-9) {
		t.Errorf("complexity = %v, want 0.875", got)
	}
	if details["effective_features"] != 1 {
		t.Errorf("effective_features = %v, want 1", details["effective_features"])
	}
	if !almostEqual(details["gini"].(float64), 1.0, 1e-9) {
		t.Errorf("gini = %v, want 1.0", details["gini"])
	}
}
