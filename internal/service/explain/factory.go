package explain

import (
	"sync"

	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
	"github.com/ashwinyue/xai-bench/internal/service/types"
)

// NewAttributor 按解释方法与模型家族选择归因策略
// 树模型的 shap 走精确路径分解，其余组合走采样归因
func NewAttributor(method model.ExplanationMethod, m *model.Model, est ml.Estimator, background *ml.Frame, nSamples int) (Attributor, error) {
	if !method.Valid() {
		return nil, types.NewValidation("unsupported explanation method %q", method)
	}
	if method == model.ExplanationMethodSHAP {
		if dec, ok := est.(ml.PathDecomposer); ok && m.Type.TreeBased() {
			return newTreeAttributor(dec), nil
		}
		return newSamplingAttributor(method, est, background, nSamples, 42), nil
	}
	return newSamplingAttributor(method, est, background, nSamples, 42), nil
}

// attributorCache 归因器缓存，键为 {model_id}_{method}
// 避免重复加载工件与重算背景统计
type attributorCache struct {
	mu      sync.Mutex
	entries map[string]Attributor
}

func newAttributorCache() *attributorCache {
	return &attributorCache{entries: make(map[string]Attributor)}
}

func (c *attributorCache) key(modelID string, method model.ExplanationMethod) string {
	return modelID + "_" + string(method)
}

// Get 查找缓存的归因器
func (c *attributorCache) Get(modelID string, method model.ExplanationMethod) (Attributor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[c.key(modelID, method)]
	return a, ok
}

// Put 写入缓存
func (c *attributorCache) Put(modelID string, method model.ExplanationMethod, a Attributor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(modelID, method)] = a
}

// Invalidate 删除某模型的全部缓存项
func (c *attributorCache) Invalidate(modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, method := range []model.ExplanationMethod{model.ExplanationMethodSHAP, model.ExplanationMethodLIME} {
		delete(c.entries, c.key(modelID, method))
	}
}
