package inspection

import (
	"fmt"
	"strings"
	"time"
)

// 校验规则：全部为纯函数，不访问存储，方便单独做单元测试。
// 消息风格对齐 API 响应（按字段返回）。

// NormalizePlate 归一化车牌：去首尾空白 + 大写。空串/全空白视为非法。
// 幂等：对已归一化的输入再调用结果不变。
func NormalizePlate(raw string) (string, error) {
	plate := strings.ToUpper(strings.TrimSpace(raw))
	if plate == "" {
		return "", &ValidationError{Field: "vehicle_plate", Message: "Vehicle plate cannot be empty."}
	}
	return plate, nil
}

// ParseStatus 解析状态字符串，仅接受已定义的枚举值。
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		names := make([]string, 0, len(Statuses()))
		for _, v := range Statuses() {
			names = append(names, string(v))
		}
		return "", &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("Invalid status %q. Status must be one of: %s.", raw, strings.Join(names, ", ")),
		}
	}
	return s, nil
}

// ParseDate 严格按 YYYY-MM-DD 解析，返回 UTC 零点。
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "inspection_date",
			Message: fmt.Sprintf("Invalid date format %q. Date must be YYYY-MM-DD.", raw),
		}
	}
	return t.UTC(), nil
}

// ValidateDate 状态相关的日期规则：
// - scheduled：日期不得早于今天
// - passed / failed：任意日期（允许补录历史检测）
// 规则对每次写入都生效，不只在创建时。
func ValidateDate(date time.Time, status Status, today time.Time) error {
	if status == StatusScheduled && date.Before(today) {
		return &ValidationError{
			Field: "inspection_date",
			Message: fmt.Sprintf(
				"Inspections scheduled for a past date are not allowed. Today is %s, but received %s. "+
					"Note: You can record a historic inspection by using status 'passed' or 'failed'.",
				today.Format(time.DateOnly), date.Format(time.DateOnly)),
		}
	}
	return nil
}

// DateOf 截断到日历日（UTC 零点），用作“今天”的统一口径。
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
