package ml

import (
	"bytes"
	"strings"
	"testing"
)

// ========== CSV 读写测试 ==========

func TestReadCSV(t *testing.T) {
	csv := "amount,age,label\n100.5,30,1\n20,45,0\n"
	frame, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if frame.Rows() != 2 || frame.Cols() != 2 {
		t.Fatalf("frame shape = %dx%d, want 2x2", frame.Rows(), frame.Cols())
	}
	if frame.FeatureNames[0] != "amount" || frame.FeatureNames[1] != "age" {
		t.Errorf("feature names = %v", frame.FeatureNames)
	}
	if frame.Y[0] != 1 || frame.Y[1] != 0 {
		t.Errorf("labels = %v, want [1 0]", frame.Y)
	}
	if frame.PositiveCount() != 1 {
		t.Errorf("PositiveCount() = %d, want 1", frame.PositiveCount())
	}
}

func TestReadCSV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"non numeric cell", "a,label\nfoo,1\n"},
		{"single column", "label\n1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.csv)); err == nil {
				t.Error("ReadCSV() expected error, got nil")
			}
		})
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	frame := &Frame{
		FeatureNames: []string{"f1", "f2"},
		X:            [][]float64{{1.5, 2}, {3, 4.25}},
		Y:            []float64{0, 1},
	}

	var buf bytes.Buffer
	if err := frame.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	back, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if back.Rows() != 2 || back.X[1][1] != 4.25 || back.Y[1] != 1 {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

// ========== 列统计测试 ==========

func TestFrameStats(t *testing.T) {
	frame := &Frame{
		FeatureNames: []string{"v"},
		X:            [][]float64{{2}, {4}, {6}},
		Y:            []float64{0, 0, 1},
	}

	stats := frame.Stats()
	if len(stats) != 1 {
		t.Fatalf("len(stats) = %d, want 1", len(stats))
	}
	if !almostEqual(stats[0].Mean, 4, 1e-9) {
		t.Errorf("Mean = %v, want 4", stats[0].Mean)
	}
	if stats[0].Min != 2 || stats[0].Max != 6 {
		t.Errorf("Min/Max = %v/%v, want 2/6", stats[0].Min, stats[0].Max)
	}
	if !almostEqual(stats[0].Std, 1.632993161855452, 1e-9) {
		t.Errorf("Std = %v", stats[0].Std)
	}
}
