package inspection

import (
	"context"
	"fmt"
	"time"

	"github.com/NovaFleet/inspection-service/internal/common/logger"
	"github.com/google/uuid"
)

// Store 是 Service 消费的持久化契约。实现需要保证 Transact 内的
// 读-校验-写-记账作为一个原子单元提交（并发请求靠存储侧隔离串行化）。
type Store interface {
	Insert(ctx context.Context, rec *Inspection) error
	GetByID(ctx context.Context, id string) (*Inspection, error)
	Update(ctx context.Context, rec *Inspection) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]Inspection, error)

	AppendHistory(ctx context.Context, entry *InspectionHistory) error
	ListHistory(ctx context.Context, inspectionID string) ([]InspectionHistory, error)

	Transact(ctx context.Context, fn func(tx Store) error) error
}

// Filter 列表查询条件。车牌按归一化后的值精确匹配。
type Filter struct {
	VehiclePlate string
	Status       Status
	Offset       int
	Limit        int
}

// Service 封装车检记录领域的核心用例（不依赖 HTTP），便于复用和测试。
// now 可注入，测试里用固定时钟。
type Service struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

func NewService(store Store, log logger.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// today 返回当前日历日（UTC 零点），所有日期规则用同一口径。
func (s *Service) today() time.Time {
	return DateOf(s.now())
}

// CreateInput 创建入参。Status 为空时默认 scheduled。
type CreateInput struct {
	VehiclePlate   string
	InspectionDate string
	Status         string
	Notes          *string
}

// UpdateInput 更新入参。nil 字段表示保留存量值（PATCH 语义；PUT 由 transport 层补齐必填校验）。
type UpdateInput struct {
	VehiclePlate   *string
	InspectionDate *string
	Status         *string
	Notes          *string
}

// RescheduleInput 改期入参。Notes 非 nil 时整体替换备注。
type RescheduleInput struct {
	InspectionDate string
	Notes          *string
}

// Create 校验并持久化一条新记录。创建不产生历史（没有先前状态可比较）。
// 任一校验失败即返回，不做部分写入。
func (s *Service) Create(ctx context.Context, in CreateInput) (*Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	plate, err := NormalizePlate(in.VehiclePlate)
	if err != nil {
		return nil, err
	}

	status := StatusScheduled
	if in.Status != "" {
		if status, err = ParseStatus(in.Status); err != nil {
			return nil, err
		}
	}

	date, err := ParseDate(in.InspectionDate)
	if err != nil {
		return nil, err
	}
	if err := ValidateDate(date, status, s.today()); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &Inspection{
		ID:             uuid.NewString(),
		VehiclePlate:   plate,
		InspectionDate: date,
		Status:         status,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"id":     rec.ID,
		"plate":  rec.VehiclePlate,
		"status": string(rec.Status),
	}).Info("inspection created")
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if f.VehiclePlate != "" {
		plate, err := NormalizePlate(f.VehiclePlate)
		if err != nil {
			return nil, err
		}
		f.VehiclePlate = plate
	}
	return s.store.List(ctx, f)
}

// Update 更新记录（全量或部分字段）。
// 先算出“生效值”（入参优先、缺省取存量），再统一校验 —— 日期规则永远针对
// 生效状态判断，而不是看状态由哪一侧提供。
// 状态真正变化时在同一事务里追加一条历史。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	var out *Inspection
	err := s.store.Transact(ctx, func(tx Store) error {
		rec, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		prior := rec.Status

		plate := rec.VehiclePlate
		if in.VehiclePlate != nil {
			if plate, err = NormalizePlate(*in.VehiclePlate); err != nil {
				return err
			}
		}
		status := prior
		if in.Status != nil {
			if status, err = ParseStatus(*in.Status); err != nil {
				return err
			}
		}
		date := rec.InspectionDate
		if in.InspectionDate != nil {
			if date, err = ParseDate(*in.InspectionDate); err != nil {
				return err
			}
		}
		if err := ValidateDate(date, status, s.today()); err != nil {
			return err
		}

		rec.VehiclePlate = plate
		rec.InspectionDate = date
		rec.Status = status
		if in.Notes != nil {
			rec.Notes = in.Notes
		}
		rec.UpdatedAt = s.now().UTC()

		if err := tx.Update(ctx, rec); err != nil {
			return err
		}
		if err := s.recordTransition(ctx, tx, rec, prior); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("id", out.ID).Info("inspection updated")
	return out, nil
}

// Delete 删除记录并级联删除其全部历史。
func (s *Service) Delete(ctx context.Context, id string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("service not initialized")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("id", id).Info("inspection deleted")
	return nil
}

// Reschedule 让已完成（passed / failed）的检测重新进入排期。
// 前置条件依次检查：当前状态、日期格式、日期严格晚于今天；
// 任一失败记录保持原样。成功后状态必然从 passed/failed 变为 scheduled，
// 因此走与 Update 相同的持久化+记账路径时一定会产生一条历史。
func (s *Service) Reschedule(ctx context.Context, id string, in RescheduleInput) (*Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	var out *Inspection
	err := s.store.Transact(ctx, func(tx Store) error {
		rec, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != StatusPassed && rec.Status != StatusFailed {
			return &NotReschedulableError{CurrentStatus: rec.Status}
		}

		date, err := ParseDate(in.InspectionDate)
		if err != nil {
			return err
		}
		today := s.today()
		if !date.After(today) {
			return &DateNotInFutureError{Today: today}
		}

		prior := rec.Status
		rec.Status = StatusScheduled
		rec.InspectionDate = date
		if in.Notes != nil {
			rec.Notes = in.Notes
		}
		rec.UpdatedAt = s.now().UTC()

		if err := tx.Update(ctx, rec); err != nil {
			return err
		}
		if err := s.recordTransition(ctx, tx, rec, prior); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"id":   out.ID,
		"date": out.InspectionDate.Format(time.DateOnly),
	}).Info("inspection rescheduled")
	return out, nil
}

// History 返回某条记录的状态变更历史，按 changed_at 倒序。
// 记录不存在时返回 ErrNotFound。
func (s *Service) History(ctx context.Context, id string) ([]InspectionHistory, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

// recordTransition 在状态发生实际变化时追加一条历史；状态未变则什么都不写。
// 状态对比由调用方在内存里显式完成（prior 来自事务内首次加载），
// 不在持久化路径里隐式重查。
func (s *Service) recordTransition(ctx context.Context, tx Store, rec *Inspection, prior Status) error {
	if prior == rec.Status {
		return nil
	}
	note := fmt.Sprintf("Status changed from %s to %s", prior, rec.Status)
	return tx.AppendHistory(ctx, &InspectionHistory{
		ID:           uuid.NewString(),
		InspectionID: rec.ID,
		OldStatus:    prior,
		NewStatus:    rec.Status,
		ChangedAt:    s.now().UTC(),
		Notes:        &note,
	})
}
