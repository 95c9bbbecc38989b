package inspection

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repo 基于 GORM 的 Store 实现。Transact 返回的 Store 绑定到同一个事务句柄。
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

var _ Store = (*Repo)(nil)

func (r *Repo) withCtx(ctx context.Context) (*gorm.DB, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx), nil
}

func (r *Repo) Insert(ctx context.Context, rec *Inspection) error {
	db, err := r.withCtx(ctx)
	if err != nil {
		return err
	}
	return db.Create(rec).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Inspection, error) {
	db, err := r.withCtx(ctx)
	if err != nil {
		return nil, err
	}
	var rec Inspection
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) Update(ctx context.Context, rec *Inspection) error {
	db, err := r.withCtx(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&Inspection{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"vehicle_plate":   rec.VehiclePlate,
		"inspection_date": rec.InspectionDate,
		"status":          rec.Status,
		"notes":           rec.Notes,
		"updated_at":      rec.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 在一个事务里先删历史再删记录（级联），保证不会留下孤儿历史。
func (r *Repo) Delete(ctx context.Context, id string) error {
	db, err := r.withCtx(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("inspection_id = ?", id).Delete(&InspectionHistory{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Inspection{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// List 按条件过滤，固定排序 inspection_date desc, created_at desc。
// Limit <= 0 表示不限制（分页由调用方自行决定）。
func (r *Repo) List(ctx context.Context, f Filter) ([]Inspection, error) {
	db, err := r.withCtx(ctx)
	if err != nil {
		return nil, err
	}

	q := db.Model(&Inspection{})
	if f.VehiclePlate != "" {
		q = q.Where("vehicle_plate = ?", f.VehiclePlate)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var recs []Inspection
	if err := q.Order("inspection_date DESC, created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *Repo) AppendHistory(ctx context.Context, entry *InspectionHistory) error {
	db, err := r.withCtx(ctx)
	if err != nil {
		return err
	}
	return db.Create(entry).Error
}

func (r *Repo) ListHistory(ctx context.Context, inspectionID string) ([]InspectionHistory, error) {
	db, err := r.withCtx(ctx)
	if err != nil {
		return nil, err
	}
	var entries []InspectionHistory
	err = db.Where("inspection_id = ?", inspectionID).
		Order("changed_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Transact 把回调放进一个数据库事务执行；回调内拿到的 Store 复用事务句柄，
// 因此 Service 的读-校验-写-记账整体要么全部提交要么全部回滚。
func (r *Repo) Transact(ctx context.Context, fn func(tx Store) error) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}
