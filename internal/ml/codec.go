package ml

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
)

func init() {
	gob.Register(&LogisticRegression{})
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
	gob.Register(&MLP{})
}

// artifact 序列化载体，携带算法种类便于解码
type artifact struct {
	Kind      string
	Estimator Estimator
}

// Encode 将估计器序列化为 gob 字节流，并返回 SHA-256 摘要
func Encode(kind string, e Estimator) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&artifact{Kind: kind, Estimator: e}); err != nil {
		return nil, "", fmt.Errorf("encode model artifact: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:]), nil
}

// Decode 从 gob 字节流还原估计器
func Decode(data []byte) (string, Estimator, error) {
	var a artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return "", nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if a.Estimator == nil {
		return "", nil, fmt.Errorf("decode model artifact: empty estimator")
	}
	return a.Kind, a.Estimator, nil
}

// Checksum 计算字节流的 SHA-256 摘要
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
