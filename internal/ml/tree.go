package ml

import (
	"math/rand"
	"sort"
)

// TreeNode 回归树节点，导出字段以支持 gob 序列化
type TreeNode struct {
	Feature   int // 分裂特征，-1 表示叶子
	Threshold float64
	Value     float64 // 节点样本均值
	Left      *TreeNode
	Right     *TreeNode
}

// Tree 方差缩减准则的回归树
// 分类场景下以正类比例作为目标值
type Tree struct {
	Root *TreeNode
}

// treeConfig 建树配置
type treeConfig struct {
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int // <=0 表示使用全部特征
}

// growTree 在样本下标集合上递归建树
func growTree(X [][]float64, y []float64, indices []int, depth int, cfg treeConfig, rng *rand.Rand) *TreeNode {
	node := &TreeNode{Feature: -1, Value: meanAt(y, indices)}
	if depth >= cfg.maxDepth || len(indices) < 2*cfg.minSamplesLeaf {
		return node
	}

	feature, threshold, ok := bestSplit(X, y, indices, cfg, rng)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range indices {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < cfg.minSamplesLeaf || len(right) < cfg.minSamplesLeaf {
		return node
	}

	node.Feature = feature
	node.Threshold = threshold
	node.Left = growTree(X, y, left, depth+1, cfg, rng)
	node.Right = growTree(X, y, right, depth+1, cfg, rng)
	return node
}

// bestSplit 在（可能抽样的）特征集合中寻找方差缩减最大的分裂点
func bestSplit(X [][]float64, y []float64, indices []int, cfg treeConfig, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(X[indices[0]])
	features := make([]int, nFeatures)
	for j := range features {
		features[j] = j
	}
	if cfg.maxFeatures > 0 && cfg.maxFeatures < nFeatures {
		rng.Shuffle(nFeatures, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:cfg.maxFeatures]
	}

	total := 0.0
	for _, i := range indices {
		total += y[i]
	}
	n := float64(len(indices))
	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0

	values := make([]float64, len(indices))
	order := make([]int, len(indices))
	for _, f := range features {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })
		for k, i := range order {
			values[k] = X[i][f]
		}

		leftSum, leftN := 0.0, 0.0
		for k := 0; k < len(order)-1; k++ {
			leftSum += y[order[k]]
			leftN++
			if values[k] == values[k+1] {
				continue
			}
			rightSum := total - leftSum
			rightN := n - leftN
			// 方差缩减等价于加权均值平方和的提升
			gain := leftSum*leftSum/leftN + rightSum*rightSum/rightN - total*total/n
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = (values[k] + values[k+1]) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func meanAt(y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range indices {
		sum += y[i]
	}
	return sum / float64(len(indices))
}

// Predict 单样本预测
func (t *Tree) Predict(x []float64) float64 {
	node := t.Root
	for node.Feature >= 0 {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// Decompose 沿决策路径逐特征分解预测值
// 返回 base + sum(contrib) == Predict(x)
func (t *Tree) Decompose(x []float64, contrib []float64) float64 {
	node := t.Root
	base := node.Value
	for node.Feature >= 0 {
		var next *TreeNode
		if x[node.Feature] <= node.Threshold {
			next = node.Left
		} else {
			next = node.Right
		}
		contrib[node.Feature] += next.Value - node.Value
		node = next
	}
	return base
}

// featureImportance 按方差缩减累计特征使用频度
func (t *Tree) accumulateImportance(imp []float64) {
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n == nil || n.Feature < 0 {
			return
		}
		imp[n.Feature] += abs(n.Left.Value-n.Value) + abs(n.Right.Value-n.Value)
		walk(n.Left)
		walk(n.Right)
	}
	walk(t.Root)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
