package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"osm-eval/backend/internal/model"
)

// LedgerCounts 评阅员台账统计
type LedgerCounts struct {
	Leased  int64 // 名下全部台账（含已完成）
	Checked int64 // 已完成
	Pending int64 // 有效租约下未完成
}

// LedgerRepository 分配台账数据访问接口
type LedgerRepository interface {
	BatchCreate(ctx context.Context, entries []model.LedgerEntry) error
	// FindOpen 查找某评阅员名下该答卷的未完成台账
	FindOpen(ctx context.Context, barcode, evaluatorID string) (*model.LedgerEntry, error)
	// FindOpenByBarcode 查找该答卷的未完成台账（不限评阅员）
	FindOpenByBarcode(ctx context.Context, barcode string) (*model.LedgerEntry, error)
	ListOpenByLease(ctx context.Context, leaseID string) ([]model.LedgerEntry, error)
	CountOpenByLease(ctx context.Context, leaseID string) (int64, error)
	MarkChecked(ctx context.Context, entryID string, at time.Time) (int64, error)
	MarkStarted(ctx context.Context, entryID string, at time.Time) error
	// DeleteOpen 仅当台账仍未完成时删除；已被提交抢先完成则返回 0
	DeleteOpen(ctx context.Context, entryID string) (int64, error)
	CountByEvaluator(ctx context.Context, evaluatorID, subjectCode string) (*LedgerCounts, error)
}

type ledgerRepo struct {
	db *gorm.DB
}

func NewLedgerRepo(db *gorm.DB) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) BatchCreate(ctx context.Context, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *ledgerRepo) FindOpen(ctx context.Context, barcode, evaluatorID string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("barcode = ? AND evaluator_id = ? AND is_checked = ?", barcode, evaluatorID, false).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepo) FindOpenByBarcode(ctx context.Context, barcode string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("barcode = ? AND is_checked = ?", barcode, false).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepo) ListOpenByLease(ctx context.Context, leaseID string) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("lease_id = ? AND is_checked = ?", leaseID, false).
		Order("assigned_at ASC, barcode ASC").
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) CountOpenByLease(ctx context.Context, leaseID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("lease_id = ? AND is_checked = ?", leaseID, false).
		Count(&count).Error
	return count, err
}

func (r *ledgerRepo) MarkChecked(ctx context.Context, entryID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("entry_id = ? AND is_checked = ?", entryID, false).
		Updates(map[string]interface{}{
			"is_checked": true,
			"checked_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *ledgerRepo) MarkStarted(ctx context.Context, entryID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("entry_id = ?", entryID).
		Update("started_at", at).Error
}

func (r *ledgerRepo) DeleteOpen(ctx context.Context, entryID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("entry_id = ? AND is_checked = ?", entryID, false).
		Delete(&model.LedgerEntry{})
	return result.RowsAffected, result.Error
}

func (r *ledgerRepo) CountByEvaluator(ctx context.Context, evaluatorID, subjectCode string) (*LedgerCounts, error) {
	// 每次计数使用独立查询链，避免条件相互污染
	base := func() *gorm.DB {
		db := r.db.WithContext(ctx).
			Model(&model.LedgerEntry{}).
			Joins("JOIN leases ON leases.lease_id = ledger_entries.lease_id").
			Where("ledger_entries.evaluator_id = ?", evaluatorID)
		if subjectCode != "" {
			db = db.Where("leases.subject_code = ?", subjectCode)
		}
		return db
	}

	var counts LedgerCounts
	if err := base().Count(&counts.Leased).Error; err != nil {
		return nil, err
	}
	if err := base().Where("ledger_entries.is_checked = ?", true).Count(&counts.Checked).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("ledger_entries.is_checked = ? AND leases.is_active = ?", false, true).
		Count(&counts.Pending).Error; err != nil {
		return nil, err
	}
	return &counts, nil
}
