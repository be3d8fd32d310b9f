// Package apperr 定义媒体相册服务的错误分类
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConfiguration Kind = "configuration"
	KindStorage       Kind = "storage"
	KindProcessing    Kind = "processing"
)

// 类别哨兵，配合 errors.Is 使用
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrStorage       = &Error{Kind: KindStorage}
	ErrProcessing    = &Error{Kind: KindProcessing}
)

// Error 带类别的错误
type Error struct {
	Kind Kind
	Op   string
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.Op != "" && e.Path != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按类别匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation 输入校验失败
func Validation(op, format string, args ...interface{}) error {
	return newf(KindValidation, op, format, args...)
}

// NotFound 资源不存在
func NotFound(op, format string, args ...interface{}) error {
	return newf(KindNotFound, op, format, args...)
}

// Configuration 集成配置错误
func Configuration(op, format string, args ...interface{}) error {
	return newf(KindConfiguration, op, format, args...)
}

// Storage 文件系统错误
func Storage(op, path string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Path: path, Err: err}
}

// Processing 图片处理错误
func Processing(op, path string, err error) error {
	return &Error{Kind: KindProcessing, Op: op, Path: path, Err: err}
}

// KindOf 返回错误类别，未分类返回空
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus 将错误类别映射为 HTTP 状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindProcessing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
