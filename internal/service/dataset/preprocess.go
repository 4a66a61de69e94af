package dataset

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/ashwinyue/xai-bench/internal/ml"
)

// PreprocessOptions 预处理参数
type PreprocessOptions struct {
	TargetColumn  string  // 为空时取最后一列
	PositiveLabel string  // 为空时按数值 > 0.5 判定
	TrainRatio    float64 // 训练集比例
	ValRatio      float64 // 验证集比例
	MaxRows       int     // 平衡采样后的最大行数，<=0 不限制
	OutlierSigma  float64 // 离群值裁剪阈值
	Seed          int64
}

// PreprocessResult 预处理产物
type PreprocessResult struct {
	Train         *ml.Frame
	Val           *ml.Frame
	Test          *ml.Frame
	FeatureNames  []string
	TotalRows     int
	PositiveCount int
	NegativeCount int
	Stats         []ml.ColumnStats // 训练集上的缩放统计量
}

// missingTokens 视作缺失值的单元格内容
var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "null": true, "none": true, "?": true,
}

func isMissing(cell string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(cell))]
}

// Preprocess 将原始 CSV 清洗为可训练的三个数值分片
// 流程：类型推断、缺失填充、类别编码、离群裁剪、平衡采样、切分、标准化
func Preprocess(raw []byte, opts PreprocessOptions) (*PreprocessResult, error) {
	header, records, err := parseCSV(raw)
	if err != nil {
		return nil, err
	}

	targetIdx, err := findTarget(header, opts.TargetColumn)
	if err != nil {
		return nil, err
	}

	labels, err := encodeLabels(records, targetIdx, opts.PositiveLabel)
	if err != nil {
		return nil, err
	}

	featureIdx := make([]int, 0, len(header)-1)
	featureNames := make([]string, 0, len(header)-1)
	for j, name := range header {
		if j != targetIdx {
			featureIdx = append(featureIdx, j)
			featureNames = append(featureNames, name)
		}
	}
	if len(featureIdx) == 0 {
		return nil, fmt.Errorf("dataset has no feature columns")
	}

	X := encodeFeatures(records, featureIdx)
	clipOutliers(X, opts.OutlierSigma)

	rng := rand.New(rand.NewSource(opts.Seed))
	X, labels = balancedSubsample(X, labels, opts.MaxRows, rng)

	totalRows := len(X)
	positive := 0
	for _, y := range labels {
		if y > 0.5 {
			positive++
		}
	}

	train, val, test := split(X, labels, featureNames, opts.TrainRatio, opts.ValRatio, rng)

	// 标准化统计量只在训练集上拟合
	stats := train.Stats()
	for _, frame := range []*ml.Frame{train, val, test} {
		applyScaling(frame, stats)
	}

	return &PreprocessResult{
		Train:         train,
		Val:           val,
		Test:          test,
		FeatureNames:  featureNames,
		TotalRows:     totalRows,
		PositiveCount: positive,
		NegativeCount: totalRows - positive,
		Stats:         stats,
	}, nil
}

func parseCSV(raw []byte) ([]string, [][]string, error) {
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse raw csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("dataset must have a header and at least one row")
	}

	header := rows[0]
	var records [][]string
	for _, row := range rows[1:] {
		if len(row) == len(header) {
			records = append(records, row)
		}
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("dataset has no well-formed rows")
	}
	return header, records, nil
}

func findTarget(header []string, target string) (int, error) {
	if target == "" {
		return len(header) - 1, nil
	}
	for j, name := range header {
		if strings.EqualFold(name, target) {
			return j, nil
		}
	}
	return 0, fmt.Errorf("target column %q not found", target)
}

// encodeLabels 将目标列编码为 0/1
func encodeLabels(records [][]string, targetIdx int, positiveLabel string) ([]float64, error) {
	labels := make([]float64, len(records))
	for i, row := range records {
		cell := strings.TrimSpace(row[targetIdx])
		if positiveLabel != "" {
			if strings.EqualFold(cell, positiveLabel) {
				labels[i] = 1
			}
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric label %q at row %d (set positive label for string targets)", cell, i+1)
		}
		if v > 0.5 {
			labels[i] = 1
		}
	}
	return labels, nil
}

// encodeFeatures 逐列推断类型并数值化
func encodeFeatures(records [][]string, featureIdx []int) [][]float64 {
	n := len(records)
	X := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, len(featureIdx))
	}

	for out, j := range featureIdx {
		column := make([]string, n)
		numeric := true
		for i, row := range records {
			column[i] = strings.TrimSpace(row[j])
			if !isMissing(column[i]) {
				if _, err := strconv.ParseFloat(column[i], 64); err != nil {
					numeric = false
				}
			}
		}

		if numeric {
			encodeNumericColumn(column, X, out)
		} else {
			encodeCategoricalColumn(column, X, out)
		}
	}
	return X
}

// encodeNumericColumn 中位数填充缺失值
func encodeNumericColumn(column []string, X [][]float64, out int) {
	var present []float64
	for _, cell := range column {
		if !isMissing(cell) {
			v, _ := strconv.ParseFloat(cell, 64)
			present = append(present, v)
		}
	}
	median := 0.0
	if len(present) > 0 {
		sorted := append([]float64(nil), present...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			median = sorted[mid]
		} else {
			median = (sorted[mid-1] + sorted[mid]) / 2
		}
	}
	for i, cell := range column {
		if isMissing(cell) {
			X[i][out] = median
		} else {
			X[i][out], _ = strconv.ParseFloat(cell, 64)
		}
	}
}

// encodeCategoricalColumn 缺失并入 missing 类别后按字典序标签编码
func encodeCategoricalColumn(column []string, X [][]float64, out int) {
	categories := make(map[string]bool)
	for i, cell := range column {
		if isMissing(cell) {
			column[i] = "missing"
		}
		categories[column[i]] = true
	}
	ordered := make([]string, 0, len(categories))
	for c := range categories {
		ordered = append(ordered, c)
	}
	sort.Strings(ordered)
	codes := make(map[string]float64, len(ordered))
	for k, c := range ordered {
		codes[c] = float64(k)
	}
	for i, cell := range column {
		X[i][out] = codes[cell]
	}
}

// clipOutliers 将每列裁剪到均值 ± sigma 倍标准差
func clipOutliers(X [][]float64, sigma float64) {
	if sigma <= 0 || len(X) == 0 {
		return
	}
	cols := len(X[0])
	column := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i := range X {
			column[i] = X[i][j]
		}
		mean := ml.Mean(column)
		std := ml.Std(column)
		if std == 0 {
			continue
		}
		lo, hi := mean-sigma*std, mean+sigma*std
		for i := range X {
			X[i][j] = ml.Clip(X[i][j], lo, hi)
		}
	}
}

// balancedSubsample 超过上限时保留少数类并下采样多数类
func balancedSubsample(X [][]float64, y []float64, maxRows int, rng *rand.Rand) ([][]float64, []float64) {
	if maxRows <= 0 || len(X) <= maxRows {
		return X, y
	}

	var minority, majority []int
	pos := 0
	for _, v := range y {
		if v > 0.5 {
			pos++
		}
	}
	minorityIsPositive := pos*2 <= len(y)
	for i, v := range y {
		if (v > 0.5) == minorityIsPositive {
			minority = append(minority, i)
		} else {
			majority = append(majority, i)
		}
	}

	keepMinority := minority
	if len(keepMinority) > maxRows/2 {
		rng.Shuffle(len(keepMinority), func(a, b int) { keepMinority[a], keepMinority[b] = keepMinority[b], keepMinority[a] })
		keepMinority = keepMinority[:maxRows/2]
	}
	keepMajority := majority
	if len(keepMajority) > maxRows-len(keepMinority) {
		rng.Shuffle(len(keepMajority), func(a, b int) { keepMajority[a], keepMajority[b] = keepMajority[b], keepMajority[a] })
		keepMajority = keepMajority[:maxRows-len(keepMinority)]
	}

	keep := append(append([]int(nil), keepMinority...), keepMajority...)
	sort.Ints(keep)

	outX := make([][]float64, len(keep))
	outY := make([]float64, len(keep))
	for k, i := range keep {
		outX[k] = X[i]
		outY[k] = y[i]
	}
	return outX, outY
}

// split 洗牌后按比例切分，向下取整给训练与验证集，余量归测试集
func split(X [][]float64, y []float64, featureNames []string, trainRatio, valRatio float64, rng *rand.Rand) (*ml.Frame, *ml.Frame, *ml.Frame) {
	n := len(X)
	perm := rng.Perm(n)

	shuffledX := make([][]float64, n)
	shuffledY := make([]float64, n)
	for k, i := range perm {
		shuffledX[k] = X[i]
		shuffledY[k] = y[i]
	}

	nTrain := int(float64(n) * trainRatio)
	nVal := int(float64(n) * valRatio)

	mk := func(lo, hi int) *ml.Frame {
		return &ml.Frame{FeatureNames: featureNames, X: shuffledX[lo:hi], Y: shuffledY[lo:hi]}
	}
	return mk(0, nTrain), mk(nTrain, nTrain+nVal), mk(nTrain+nVal, n)
}

// applyScaling 按训练集统计量做标准化，零方差列置零
func applyScaling(frame *ml.Frame, stats []ml.ColumnStats) {
	for _, row := range frame.X {
		for j := range row {
			if stats[j].Std > 0 {
				row[j] = (row[j] - stats[j].Mean) / stats[j].Std
			} else {
				row[j] = 0
			}
		}
	}
}
