package benchmark

import (
	"math"
	"reflect"
	"testing"

	"github.com/ashwinyue/xai-bench/internal/model"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestCompareImportance_Identical(t *testing.T) {
	imp := model.FloatMap{"f1": 0.5, "f2": 0.3, "f3": 0.1}

	got := CompareImportance(imp, imp)
	if got.CommonFeatures != 3 {
		t.Errorf("common features = %d, want 3", got.CommonFeatures)
	}
	if !almostEqual(got.RankCorrelation, 1.0, 1e-9) {
		t.Errorf("rank correlation = %v, want 1", got.RankCorrelation)
	}
	for key, v := range got.TopKOverlap {
		if !almostEqual(v, 1.0, 1e-9) {
			t.Errorf("%s overlap = %v, want 1", key, v)
		}
	}
}

func TestCompareImportance_ReversedRanks(t *testing.T) {
	a := model.FloatMap{"f1": 0.5, "f2": 0.3, "f3": 0.1}
	b := model.FloatMap{"f1": 0.1, "f2": 0.3, "f3": 0.5}

	got := CompareImportance(a, b)
	if !almostEqual(got.RankCorrelation, -1.0, 1e-9) {
		t.Errorf("rank correlation = %v, want -1", got.RankCorrelation)
	}
	// 排名相反但特征集合相同，top-k 重叠率仍为 1
	if !almostEqual(got.TopKOverlap["top_5"], 1.0, 1e-9) {
		t.Errorf("top_5 overlap = %v, want 1", got.TopKOverlap["top_5"])
	}
}

func TestCompareImportance_DisjointFeatures(t *testing.T) {
	a := model.FloatMap{"f1": 0.5, "f2": 0.3}
	b := model.FloatMap{"g1": 0.5, "g2": 0.3}

	got := CompareImportance(a, b)
	if got.CommonFeatures != 0 {
		t.Errorf("common features = %d, want 0", got.CommonFeatures)
	}
	if got.RankCorrelation != 0 {
		t.Errorf("rank correlation = %v, want 0", got.RankCorrelation)
	}
	if got.TopKOverlap["top_5"] != 0 {
		t.Errorf("top_5 overlap = %v, want 0", got.TopKOverlap["top_5"])
	}
}

func TestCompareImportance_PartialOverlap(t *testing.T) {
	a := model.FloatMap{"f1": 0.9, "f2": 0.5, "f3": 0.2, "f4": 0.1, "f5": 0.05, "f6": 0.01}
	b := model.FloatMap{"f1": 0.8, "f2": 0.6, "f7": 0.3, "f8": 0.2, "f9": 0.1, "f10": 0.05}

	got := CompareImportance(a, b)
	if got.CommonFeatures != 2 {
		t.Errorf("common features = %d, want 2", got.CommonFeatures)
	}
	// 各自前 5 名中只有 f1、f2 重合
	if !almostEqual(got.TopKOverlap["top_5"], 0.4, 1e-9) {
		t.Errorf("top_5 overlap = %v, want 0.4", got.TopKOverlap["top_5"])
	}
}

func TestCompareImportance_Deterministic(t *testing.T) {
	a := model.FloatMap{"f1": 0.5, "f2": 0.5, "f3": 0.2, "f4": 0.2}
	b := model.FloatMap{"f1": 0.4, "f2": 0.3, "f3": 0.3, "f4": 0.1}

	first := CompareImportance(a, b)
	second := CompareImportance(a, b)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("comparison is not deterministic: %+v vs %+v", first, second)
	}
}

func TestTopFeatures_TieBreakByName(t *testing.T) {
	imp := model.FloatMap{"b": 0.5, "a": 0.5, "c": 0.1}
	got := topFeatures(imp, 2)
	if got[0] != "a" || got[1] != "b" {
		t.Errorf("topFeatures = %v, want [a b]", got)
	}
}
