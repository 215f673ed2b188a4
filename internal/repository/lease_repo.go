package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"osm-eval/backend/internal/model"
)

// LeaseRepository 批次租约数据访问接口
// 所有状态变更均为条件更新，返回受影响行数供调用方判断是否抢到
type LeaseRepository interface {
	Create(ctx context.Context, lease *model.Lease) error
	GetByID(ctx context.Context, id string) (*model.Lease, error)
	// FindActive 查找 is_active = true 的租约；subjectCode 为空时返回最近创建的一条
	FindActive(ctx context.Context, evaluatorID, subjectCode string) (*model.Lease, error)
	// FindLive 查找有效且未到期的租约；subjectCode 为空时返回最近创建的一条
	FindLive(ctx context.Context, evaluatorID, subjectCode string, now time.Time) (*model.Lease, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Lease, error)
	Extend(ctx context.Context, leaseID string, expiresAt time.Time) (int64, error)
	Complete(ctx context.Context, leaseID string, at time.Time) (int64, error)
	// Expire 仅当租约仍有效且确已过期时置为失效
	Expire(ctx context.Context, leaseID string, now time.Time) (int64, error)
}

type leaseRepo struct {
	db *gorm.DB
}

func NewLeaseRepo(db *gorm.DB) LeaseRepository {
	return &leaseRepo{db: db}
}

func (r *leaseRepo) Create(ctx context.Context, lease *model.Lease) error {
	return r.db.WithContext(ctx).Create(lease).Error
}

func (r *leaseRepo) GetByID(ctx context.Context, id string) (*model.Lease, error) {
	var lease model.Lease
	err := r.db.WithContext(ctx).
		Where("lease_id = ?", id).
		First(&lease).Error
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *leaseRepo) FindActive(ctx context.Context, evaluatorID, subjectCode string) (*model.Lease, error) {
	var lease model.Lease
	db := r.db.WithContext(ctx).
		Where("evaluator_id = ? AND is_active = ?", evaluatorID, true)
	if subjectCode != "" {
		db = db.Where("subject_code = ?", subjectCode)
	}
	err := db.Order("created_at DESC").First(&lease).Error
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *leaseRepo) FindLive(ctx context.Context, evaluatorID, subjectCode string, now time.Time) (*model.Lease, error) {
	var lease model.Lease
	db := r.db.WithContext(ctx).
		Where("evaluator_id = ? AND is_active = ? AND expires_at > ?", evaluatorID, true, now)
	if subjectCode != "" {
		db = db.Where("subject_code = ?", subjectCode)
	}
	err := db.Order("created_at DESC").First(&lease).Error
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *leaseRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Lease, error) {
	var leases []model.Lease
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at < ?", true, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&leases).Error
	return leases, err
}

func (r *leaseRepo) Extend(ctx context.Context, leaseID string, expiresAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Lease{}).
		Where("lease_id = ? AND is_active = ?", leaseID, true).
		Update("expires_at", expiresAt)
	return result.RowsAffected, result.Error
}

func (r *leaseRepo) Complete(ctx context.Context, leaseID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Lease{}).
		Where("lease_id = ? AND is_active = ?", leaseID, true).
		Updates(map[string]interface{}{
			"is_active":    false,
			"completed_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *leaseRepo) Expire(ctx context.Context, leaseID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Lease{}).
		Where("lease_id = ? AND is_active = ? AND expires_at < ?", leaseID, true, now).
		Updates(map[string]interface{}{
			"is_active":    false,
			"reclaimed_at": now,
		})
	return result.RowsAffected, result.Error
}
