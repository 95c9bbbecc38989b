package inspection

import (
	"fmt"
	"time"
)

// Status 车检记录状态枚举（持久化为字符串）。
type Status string

const (
	StatusScheduled Status = "scheduled" // 已预约，待检测
	StatusPassed    Status = "passed"    // 检测通过
	StatusFailed    Status = "failed"    // 检测未通过
)

// Valid 判断是否为已定义的状态值。
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusPassed, StatusFailed:
		return true
	}
	return false
}

// Display 返回展示用文案。
func (s Status) Display() string {
	switch s {
	case StatusScheduled:
		return "Scheduled"
	case StatusPassed:
		return "Passed"
	case StatusFailed:
		return "Failed"
	}
	return string(s)
}

// Statuses 全部合法状态，按定义顺序。
func Statuses() []Status {
	return []Status{StatusScheduled, StatusPassed, StatusFailed}
}

// Inspection 是 inspections 表的 GORM 模型。
// InspectionDate 只保留日期（UTC 零点），序列化格式见 transport 层。
type Inspection struct {
	ID             string    `gorm:"primaryKey;size:36"`
	VehiclePlate   string    `gorm:"index;size:20;not null"` // 已归一化：去空白 + 大写
	InspectionDate time.Time `gorm:"type:date;index;not null"`
	Status         Status    `gorm:"type:varchar(16);index;not null;default:'scheduled'"`
	Notes          *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// String 人类可读的摘要，日志/排障用。
func (i Inspection) String() string {
	return fmt.Sprintf("%s - %s (%s)", i.VehiclePlate, i.InspectionDate.Format(time.DateOnly), i.Status.Display())
}

// InspectionHistory 是 inspection_histories 表的 GORM 模型。
// 只追加不修改：仅在持久化的状态真正发生变化时由 Service 写入一条。
type InspectionHistory struct {
	ID           string    `gorm:"primaryKey;size:36"`
	InspectionID string    `gorm:"index:idx_history_inspection_changed,priority:1;size:36;not null"`
	OldStatus    Status    `gorm:"type:varchar(16);not null"`
	NewStatus    Status    `gorm:"type:varchar(16);not null"`
	ChangedAt    time.Time `gorm:"index:idx_history_inspection_changed,priority:2;not null"`
	Notes        *string   `gorm:"type:text"`
}
