package inspection

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound 记录不存在（与校验失败区分开，transport 层映射为 404）。
var ErrNotFound = errors.New("inspection not found")

// ValidationError 单个字段的校验失败。消息直接面向 API 调用方。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotReschedulableError 改期前置条件失败：当前状态不是 passed / failed。
type NotReschedulableError struct {
	CurrentStatus Status
}

func (e *NotReschedulableError) Error() string {
	return fmt.Sprintf("only passed or failed inspections can be rescheduled, current status is %q", e.CurrentStatus)
}

// DateNotInFutureError 改期日期没有严格晚于今天。
type DateNotInFutureError struct {
	Today time.Time
}

func (e *DateNotInFutureError) Error() string {
	return fmt.Sprintf("new inspection date must be after today (%s)", e.Today.Format(time.DateOnly))
}
