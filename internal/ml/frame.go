// Package ml 提供纯 Go 实现的表格二分类训练与推理能力
package ml

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Frame 数值化后的表格数据
type Frame struct {
	FeatureNames []string
	X            [][]float64
	Y            []float64 // 二分类标签 0/1
}

// Rows 返回样本数
func (f *Frame) Rows() int {
	return len(f.X)
}

// Cols 返回特征数
func (f *Frame) Cols() int {
	return len(f.FeatureNames)
}

// Slice 返回子区间 [lo, hi) 的浅拷贝
func (f *Frame) Slice(lo, hi int) *Frame {
	return &Frame{
		FeatureNames: f.FeatureNames,
		X:            f.X[lo:hi],
		Y:            f.Y[lo:hi],
	}
}

// PositiveCount 返回正类样本数
func (f *Frame) PositiveCount() int {
	n := 0
	for _, y := range f.Y {
		if y > 0.5 {
			n++
		}
	}
	return n
}

// ReadCSV 从 CSV 读取数值化数据，最后一列为标签
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("csv must have at least one feature column and a label column")
	}

	frame := &Frame{FeatureNames: header[:len(header)-1]}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		line++

		row := make([]float64, len(record)-1)
		for i := 0; i < len(record)-1; i++ {
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s at line %d: %w", header[i], line, err)
			}
			row[i] = v
		}
		label, err := strconv.ParseFloat(record[len(record)-1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse label at line %d: %w", line, err)
		}
		frame.X = append(frame.X, row)
		frame.Y = append(frame.Y, label)
	}
	return frame, nil
}

// WriteCSV 写出数值化数据，最后一列为标签
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, len(f.FeatureNames)+1)
	header = append(header, f.FeatureNames...)
	header = append(header, "label")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(header))
	for i, row := range f.X {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(record)-1] = strconv.FormatFloat(f.Y[i], 'g', -1, 64)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv line %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ColumnStats 单列统计量
type ColumnStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Stats 逐列计算统计量
func (f *Frame) Stats() []ColumnStats {
	n := f.Rows()
	stats := make([]ColumnStats, f.Cols())
	if n == 0 {
		return stats
	}
	for j := range stats {
		s := ColumnStats{Min: f.X[0][j], Max: f.X[0][j]}
		for _, row := range f.X {
			v := row[j]
			s.Mean += v
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
		}
		s.Mean /= float64(n)
		for _, row := range f.X {
			d := row[j] - s.Mean
			s.Std += d * d
		}
		s.Std = math.Sqrt(s.Std / float64(n))
		stats[j] = s
	}
	return stats
}
