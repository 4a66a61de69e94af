package explain

import (
	"github.com/ashwinyue/xai-bench/internal/ml"
	"github.com/ashwinyue/xai-bench/internal/model"
)

// treeAttributor 树模型的精确路径归因
// 沿每棵树的决策路径分解预测，基准值加贡献之和严格等于预测值
type treeAttributor struct {
	dec ml.PathDecomposer
}

func newTreeAttributor(dec ml.PathDecomposer) *treeAttributor {
	return &treeAttributor{dec: dec}
}

// Method 树路径归因服务于 shap 方法
func (a *treeAttributor) Method() model.ExplanationMethod {
	return model.ExplanationMethodSHAP
}

// Local 返回基准值与逐特征贡献
func (a *treeAttributor) Local(x []float64) (float64, []float64, error) {
	base, contrib := a.dec.Decompose(x)
	return base, contrib, nil
}
