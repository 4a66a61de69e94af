// Package training 提供分类器训练与评估流水线
package training

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/xai-bench/internal/config"
	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
	"github.com/ashwinyue/xai-bench/internal/repository"
	"github.com/ashwinyue/xai-bench/internal/service/storage"
	"github.com/ashwinyue/xai-bench/internal/service/task"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// ========== 超参数转换测试 ==========

func TestToHyperparams(t *testing.T) {
	raw := model.JSON{
		"n_estimators":  float64(50),
		"learning_rate": 0.05,
		"note":          "ignored",
	}

	params := toHyperparams(raw)
	if params.GetInt("n_estimators", 0) != 50 {
		t.Errorf("n_estimators = %d, want 50", params.GetInt("n_estimators", 0))
	}
	if params.Get("learning_rate", 0) != 0.05 {
		t.Errorf("learning_rate = %v, want 0.05", params.Get("learning_rate", 0))
	}
	if _, ok := params["note"]; ok {
		t.Error("non-numeric hyperparameter was not ignored")
	}
}

func TestToHyperparams_Empty(t *testing.T) {
	if toHyperparams(nil) != nil {
		t.Error("toHyperparams(nil) should return nil")
	}
}

// ========== 曲线序列化测试 ==========

func TestCurveJSON(t *testing.T) {
	points := []ml.CurvePoint{{X: 0, Y: 0}, {X: 0.5, Y: 0.8}, {X: 1, Y: 1}}
	out := curveJSON(points)

	xs, ok := out["x"].([]float64)
	if !ok || len(xs) != 3 {
		t.Fatalf("x = %v", out["x"])
	}
	ys := out["y"].([]float64)
	if xs[1] != 0.5 || ys[1] != 0.8 {
		t.Errorf("point 1 = (%v, %v), want (0.5, 0.8)", xs[1], ys[1])
	}
}

// ========== 工件加载测试 ==========

func newArtifact(t *testing.T) (storage.Storage, *model.Model) {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}

	est, _ := ml.NewEstimator("logistic_regression", nil)
	X := [][]float64{{0, 0}, {1, 1}, {0, 1}, {1, 0}}
	y := []float64{0, 1, 0, 1}
	if err := est.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	data, hash, err := ml.Encode("logistic_regression", est)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	key := "models/ds_1/lr_1.gob"
	if err := storage.PutBytes(context.Background(), st, key, data, "application/octet-stream"); err != nil {
		t.Fatalf("PutBytes() error = %v", err)
	}

	return st, &model.Model{
		ID:        "lr_1",
		Type:      model.ModelTypeLogisticRegression,
		Status:    model.ModelStatusCompleted,
		ModelPath: key,
		ModelHash: hash,
	}
}

func TestLoadEstimator(t *testing.T) {
	st, m := newArtifact(t)
	s := &Service{store: st}

	est, err := s.LoadEstimator(context.Background(), m)
	if err != nil {
		t.Fatalf("LoadEstimator() error = %v", err)
	}
	probs := est.PredictProba([][]float64{{1, 1}})
	if len(probs) != 1 || probs[0] < 0 || probs[0] > 1 {
		t.Errorf("restored estimator returned %v", probs)
	}
}

func TestLoadEstimator_ChecksumMismatch(t *testing.T) {
	st, m := newArtifact(t)
	m.ModelHash = "deadbeef"
	s := &Service{store: st}

	_, err := s.LoadEstimator(context.Background(), m)
	if err == nil {
		t.Fatal("LoadEstimator() expected checksum error, got nil")
	}
}

func TestLoadEstimator_NotTrained(t *testing.T) {
	s := &Service{}
	_, err := s.LoadEstimator(context.Background(), &model.Model{
		ID:     "m1",
		Status: model.ModelStatusPending,
	})
	if !types.IsValidation(err) {
		t.Errorf("LoadEstimator() error = %v, want validation error", err)
	}
}

func TestLoadEstimator_MissingArtifact(t *testing.T) {
	st, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	s := &Service{store: st}

	_, err = s.LoadEstimator(context.Background(), &model.Model{
		ID:        "m1",
		Type:      model.ModelTypeLogisticRegression,
		Status:    model.ModelStatusCompleted,
		ModelPath: "models/ds_1/gone.gob",
	})
	if !types.IsNotFound(err) {
		t.Errorf("LoadEstimator() error = %v, want not-found error", err)
	}
}

// ========== 训练流水线测试 ==========

// fakeModelStore 内存模型仓库，按发生顺序记录所有写操作
type fakeModelStore struct {
	mu      sync.Mutex
	models  map[string]*model.Model
	metrics map[string]*model.ModelMetrics
	events  []string
}

func newFakeModelStore() *fakeModelStore {
	return &fakeModelStore{
		models:  make(map[string]*model.Model),
		metrics: make(map[string]*model.ModelMetrics),
	}
}

func (f *fakeModelStore) Create(ctx context.Context, m *model.Model) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.models[m.ID] = &cp
	return nil
}

func (f *fakeModelStore) GetByID(ctx context.Context, id string) (*model.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.models[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeModelStore) List(ctx context.Context, datasetID string, modelType *model.ModelType) ([]*model.Model, error) {
	return nil, nil
}

func (f *fakeModelStore) Update(ctx context.Context, m *model.Model) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "update:"+string(m.Status))
	cp := *m
	f.models[m.ID] = &cp
	return nil
}

func (f *fakeModelStore) UpdateStatus(ctx context.Context, id string, status model.ModelStatus, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "status:"+string(status))
	if m, ok := f.models[id]; ok {
		m.Status = status
		m.ErrorMessage = errMsg
	}
	return nil
}

func (f *fakeModelStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.models, id)
	return nil
}

func (f *fakeModelStore) SaveMetrics(ctx context.Context, metrics *model.ModelMetrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "save_metrics")
	cp := *metrics
	f.metrics[metrics.ModelID] = &cp
	return nil
}

func (f *fakeModelStore) Leaderboard(ctx context.Context, datasetID string, limit int) ([]*model.Model, error) {
	return nil, nil
}

func (f *fakeModelStore) snapshot(id string) (model.Model, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := append([]string(nil), f.events...)
	return *f.models[id], events
}

// stubDatasets 返回固定分片的内存数据集源
type stubDatasets struct {
	splitErr error
}

func (s *stubDatasets) Get(ctx context.Context, id string) (*model.Dataset, error) {
	return &model.Dataset{ID: id, Status: model.DatasetStatusCompleted, TestRows: 40}, nil
}

func (s *stubDatasets) LoadSplit(ctx context.Context, ds *model.Dataset, split string) (*ml.Frame, error) {
	if s.splitErr != nil {
		return nil, s.splitErr
	}
	f := &ml.Frame{FeatureNames: []string{"f1", "f2"}}
	for i := 0; i < 120; i++ {
		x1 := float64(i%10) / 10
		x2 := float64((i*7)%10) / 10
		label := 0.0
		if x1+x2 > 1 {
			label = 1
		}
		f.X = append(f.X, []float64{x1, x2})
		f.Y = append(f.Y, label)
	}
	return f, nil
}

func newPipelineService(t *testing.T, fms *fakeModelStore, splits *stubDatasets) *Service {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	d := task.NewDispatcher(1)
	t.Cleanup(func() { d.Shutdown(context.Background()) })
	return NewService(&repository.Repositories{Model: fms}, st, splits, d, &config.Config{})
}

func TestRunTraining_MetricsPersistedBeforeCompleted(t *testing.T) {
	fms := newFakeModelStore()
	fms.models["m1"] = &model.Model{
		ID:        "m1",
		DatasetID: "ds1",
		Type:      model.ModelTypeLogisticRegression,
		Status:    model.ModelStatusPending,
	}
	svc := newPipelineService(t, fms, &stubDatasets{})

	if err := svc.runTraining(context.Background(), "m1"); err != nil {
		t.Fatalf("runTraining() error = %v", err)
	}

	m, events := fms.snapshot("m1")
	if m.Status != model.ModelStatusCompleted {
		t.Errorf("status = %s, want completed", m.Status)
	}
	if m.ModelPath == "" || m.ModelHash == "" {
		t.Error("completed model is missing artifact path or hash")
	}
	if fms.metrics["m1"] == nil {
		t.Fatal("completed model has no metrics record")
	}

	// completed 状态必须在指标落库之后写入
	iMetrics, iCompleted := -1, -1
	for i, ev := range events {
		if ev == "save_metrics" && iMetrics == -1 {
			iMetrics = i
		}
		if ev == "update:completed" {
			iCompleted = i
		}
	}
	if iMetrics == -1 || iCompleted == -1 {
		t.Fatalf("events = %v, missing save_metrics or update:completed", events)
	}
	if iMetrics > iCompleted {
		t.Errorf("metrics saved after completed status: %v", events)
	}
	// 状态只能前进：pending -> training -> completed
	if events[0] != "status:training" {
		t.Errorf("first write = %s, want status:training", events[0])
	}
}

func TestRunTraining_SplitErrorMarksFailed(t *testing.T) {
	fms := newFakeModelStore()
	fms.models["m1"] = &model.Model{
		ID:        "m1",
		DatasetID: "ds1",
		Type:      model.ModelTypeLogisticRegression,
		Status:    model.ModelStatusPending,
	}
	svc := newPipelineService(t, fms, &stubDatasets{splitErr: errors.New("split unavailable")})

	taskRef, err := svc.startTraining("m1")
	if err != nil {
		t.Fatalf("startTraining() error = %v", err)
	}
	select {
	case <-taskRef.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("training task did not finish")
	}
	if taskRef.Err() == nil {
		t.Fatal("task error = nil, want split failure")
	}

	m, _ := fms.snapshot("m1")
	if m.Status != model.ModelStatusFailed {
		t.Errorf("status = %s, want failed", m.Status)
	}
	if fms.metrics["m1"] != nil {
		t.Error("failed model must not have a metrics record")
	}
}

func TestLoadEstimator_KindMismatch(t *testing.T) {
	st, m := newArtifact(t)
	m.Type = model.ModelTypeRandomForest
	s := &Service{store: st}

	if _, err := s.LoadEstimator(context.Background(), m); err == nil {
		t.Fatal("LoadEstimator() expected kind mismatch error, got nil")
	}
}
