package errors

import (
	"errors"
	"fmt"
)

// ErrUpstream 所有上游 HTTP 服务失败的公共哨兵错误
var ErrUpstream = errors.New("上游服务请求失败")

// StatusError 上游服务返回非 2xx 时的类型化错误，携带状态码与响应体
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s 返回 HTTP %d: %s", e.Service, e.StatusCode, body)
}

// Unwrap 使 errors.Is(err, ErrUpstream) 成立
func (e *StatusError) Unwrap() error { return ErrUpstream }

// StatusCode 从错误链中提取上游状态码，不存在时返回 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
