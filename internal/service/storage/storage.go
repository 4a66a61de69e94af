// Package storage 提供数据与模型工件的对象存储抽象
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ashwinyue/xai-bench/internal/config"
)

// ErrNotFound 对象不存在时由各后端包装返回
var ErrNotFound = errors.New("object not found")

// Storage 对象存储接口
type Storage interface {
	// Put 写入对象
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get 读取对象内容
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Exists 判断对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Delete 删除对象
	Delete(ctx context.Context, key string) error
	// List 列出前缀下的对象键
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeMinIO StorageType = "minio"
)

// New 根据配置创建存储后端
func New(cfg *config.StorageConfig) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeMinIO:
		return NewMinIOStorage(cfg)
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// PutBytes 写入字节切片
func PutBytes(ctx context.Context, s Storage, key string, data []byte, contentType string) error {
	return s.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// GetBytes 读取完整对象内容
func GetBytes(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
