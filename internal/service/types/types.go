// Package types 定义服务层共享的类型和错误
package types

import (
	"errors"
	"fmt"
)

// NotFoundError 资源不存在
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFound 构造 NotFoundError
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError 请求参数或状态迁移非法
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidation 构造 ValidationError
func NewValidation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// UpstreamIOError 外部依赖（对象存储、下载源）出错
type UpstreamIOError struct {
	Op  string
	Err error
}

func (e *UpstreamIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamIOError) Unwrap() error {
	return e.Err
}

// NewUpstreamIO 构造 UpstreamIOError
func NewUpstreamIO(op string, err error) error {
	return &UpstreamIOError{Op: op, Err: err}
}

// ComputationError 训练或解释计算失败
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// NewComputation 构造 ComputationError
func NewComputation(stage string, err error) error {
	return &ComputationError{Stage: stage, Err: err}
}

// IsNotFound 判断是否为资源不存在错误
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation 判断是否为参数校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
