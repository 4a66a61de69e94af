// Package testutil 提供测试辅助工具
package testutil

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

// FraudCSV 生成确定性的合成欺诈检测数据集
// 正类约占 10%，amount 列与标签相关，category 为分类特征
func FraudCSV(rows int) []byte {
	rng := rand.New(rand.NewSource(7))
	categories := []string{"online", "pos", "transfer"}

	var buf bytes.Buffer
	buf.WriteString("amount,age,balance,category,is_fraud\n")
	for i := 0; i < rows; i++ {
		label := 0
		if rng.Float64() < 0.1 {
			label = 1
		}
		amount := rng.Float64() * 100
		if label == 1 {
			amount += 400
		}
		fmt.Fprintf(&buf, "%.2f,%d,%.2f,%s,%d\n",
			amount,
			18+rng.Intn(60),
			rng.Float64()*10000,
			categories[rng.Intn(len(categories))],
			label,
		)
	}
	return buf.Bytes()
}

// NumericFrameCSV 生成全数值列的 CSV，最后一列为标签，标签由首列符号决定
func NumericFrameCSV(rows, cols int) []byte {
	rng := rand.New(rand.NewSource(11))

	var buf bytes.Buffer
	for j := 0; j < cols; j++ {
		fmt.Fprintf(&buf, "x%d,", j+1)
	}
	buf.WriteString("label\n")
	for i := 0; i < rows; i++ {
		label := 0
		for j := 0; j < cols; j++ {
			v := rng.NormFloat64()
			if j == 0 && v > 0 {
				label = 1
			}
			fmt.Fprintf(&buf, "%.4f,", v)
		}
		fmt.Fprintf(&buf, "%d\n", label)
	}
	return buf.Bytes()
}

// AssertHelper 提供断言相关的测试辅助
type AssertHelper struct {
	t *testing.T
}

// NewAssertHelper 创建断言辅助器
func NewAssertHelper(t *testing.T) *AssertHelper {
	return &AssertHelper{t: t}
}

// NoError 断言没有错误
func (h *AssertHelper) NoError(err error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("Unexpected error: %v %v", err, msgAndArgs)
	}
}

// Error 断言有错误
func (h *AssertHelper) Error(err error, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err == nil {
		h.t.Fatal("Expected error, got nil")
	}
}

// ErrorContains 断言错误包含指定字符串
func (h *AssertHelper) ErrorContains(err error, substr string, msgAndArgs ...interface{}) {
	h.t.Helper()
	if err == nil {
		h.t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), substr) {
		h.t.Fatalf("Error %q does not contain %q %v", err.Error(), substr, msgAndArgs)
	}
}

// Equal 断言相等
func (h *AssertHelper) Equal(expected, actual interface{}, msgAndArgs ...interface{}) {
	h.t.Helper()
	if expected != actual {
		h.t.Fatalf("Expected %v, got %v %v", expected, actual, msgAndArgs)
	}
}

// True 断言为真
func (h *AssertHelper) True(condition bool, msgAndArgs ...interface{}) {
	h.t.Helper()
	if !condition {
		h.t.Fatalf("Expected true, got false %v", msgAndArgs)
	}
}

// InRange 断言数值落在 [lo, hi] 区间
func (h *AssertHelper) InRange(v, lo, hi float64, msgAndArgs ...interface{}) {
	h.t.Helper()
	if v < lo || v > hi {
		h.t.Fatalf("Expected value in [%v, %v], got %v %v", lo, hi, v, msgAndArgs)
	}
}
