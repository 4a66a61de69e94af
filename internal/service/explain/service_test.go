package explain

import (
	"context"
	"testing"
	"time"

	"github.com/ashwinyue/xai-bench/internal/config"
	"github.com/ashwinyue/xai-bench/internal/model"
)

// ========== 采样规模钳制测试 ==========

func TestClampSampleSize(t *testing.T) {
	s := &Service{cfg: &config.Config{Pipeline: config.PipelineConfig{MaxSampleSize: 500}}}

	tests := []struct {
		name      string
		requested int
		expected  int
	}{
		{"zero uses default", 0, 500},
		{"negative uses default", -5, 500},
		{"within limit", 100, 100},
		{"above limit clamped", 10000, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.clampSampleSize(tt.requested); got != tt.expected {
				t.Errorf("clampSampleSize(%d) = %d, want %d", tt.requested, got, tt.expected)
			}
		})
	}
}

// ========== 归因器缓存测试 ==========

func TestAttributorCache(t *testing.T) {
	c := newAttributorCache()

	if _, ok := c.Get("m1", model.ExplanationMethodSHAP); ok {
		t.Error("empty cache reported a hit")
	}

	a := &treeAttributor{}
	c.Put("m1", model.ExplanationMethodSHAP, a)

	got, ok := c.Get("m1", model.ExplanationMethodSHAP)
	if !ok || got != Attributor(a) {
		t.Error("cached attributor not returned")
	}
	// 方法不同则不命中
	if _, ok := c.Get("m1", model.ExplanationMethodLIME); ok {
		t.Error("cache hit for wrong method")
	}

	c.Invalidate("m1")
	if _, ok := c.Get("m1", model.ExplanationMethodSHAP); ok {
		t.Error("cache hit after invalidation")
	}
}

// ========== 结果缓存降级测试 ==========

func TestResultCache_NilRedis(t *testing.T) {
	c := NewResultCache(nil, time.Hour)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "m1", model.ExplanationMethodSHAP, model.ExplanationScopeGlobal, 100); ok {
		t.Error("nil redis cache reported a hit")
	}
	// 写入与失效不应崩溃
	c.Put(ctx, &model.Explanation{Status: model.ExplanationStatusCompleted})
	c.InvalidateModel(ctx, "m1")
}

// ========== 载荷构造测试 ==========

func TestImportanceMap(t *testing.T) {
	m := importanceMap([]string{"a", "b"}, []float64{0.3, -0.1})
	if m["a"] != 0.3 || m["b"] != -0.1 {
		t.Errorf("importanceMap = %v", m)
	}
}
