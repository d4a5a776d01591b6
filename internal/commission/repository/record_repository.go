package repository

import (
	"context"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"gorm.io/gorm"
)

// RecordRepository 提成/处罚记录仓库
// 记录是不可变的计算结果，仓库只提供创建、查询和结算归属
type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// CreateCommissionRecords 批量写入提成记录
func (r *RecordRepository) CreateCommissionRecords(ctx context.Context, records []entity.CommissionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

// CreatePenaltyRecord 写入处罚记录
func (r *RecordRepository) CreatePenaltyRecord(ctx context.Context, record *entity.PenaltyRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListCommissionRecords 查询提成记录列表
func (r *RecordRepository) ListCommissionRecords(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.CommissionRecord, int64, error) {
	var items []entity.CommissionRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.CommissionRecord{})
	if salespersonID := filters["salesperson_id"]; salespersonID != "" {
		query = query.Where("salesperson_id = ?", salespersonID)
	}
	if month := filters["month"]; month != "" {
		query = query.Where("record_month = ?", month)
	}
	if settled := filters["settled"]; settled == "false" {
		query = query.Where("settlement_id IS NULL")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// ListPenaltyRecords 查询处罚记录列表
func (r *RecordRepository) ListPenaltyRecords(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PenaltyRecord, int64, error) {
	var items []entity.PenaltyRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PenaltyRecord{})
	if salespersonID := filters["salesperson_id"]; salespersonID != "" {
		query = query.Where("salesperson_id = ?", salespersonID)
	}
	if month := filters["month"]; month != "" {
		query = query.Where("record_month = ?", month)
	}
	if penaltyType := filters["penalty_type"]; penaltyType != "" {
		query = query.Where("penalty_type = ?", penaltyType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindUnsettledCommissions 查询某业务员某月未结算的提成记录
func (r *RecordRepository) FindUnsettledCommissions(ctx context.Context, tx *gorm.DB, salespersonID, month string) ([]entity.CommissionRecord, error) {
	if tx == nil {
		tx = r.db
	}
	var records []entity.CommissionRecord
	err := tx.WithContext(ctx).
		Where("salesperson_id = ? AND record_month = ? AND settlement_id IS NULL", salespersonID, month).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// FindUnsettledPenalties 查询某业务员某月未结算的处罚记录
func (r *RecordRepository) FindUnsettledPenalties(ctx context.Context, tx *gorm.DB, salespersonID, month string) ([]entity.PenaltyRecord, error) {
	if tx == nil {
		tx = r.db
	}
	var records []entity.PenaltyRecord
	err := tx.WithContext(ctx).
		Where("salesperson_id = ? AND record_month = ? AND settlement_id IS NULL", salespersonID, month).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// AttachToSettlement 把记录挂到结算单（在结算事务内调用）
func (r *RecordRepository) AttachToSettlement(ctx context.Context, tx *gorm.DB, settlementID, salespersonID, month string) error {
	if err := tx.WithContext(ctx).
		Model(&entity.CommissionRecord{}).
		Where("salesperson_id = ? AND record_month = ? AND settlement_id IS NULL", salespersonID, month).
		Update("settlement_id", settlementID).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).
		Model(&entity.PenaltyRecord{}).
		Where("salesperson_id = ? AND record_month = ? AND settlement_id IS NULL", salespersonID, month).
		Update("settlement_id", settlementID).Error
}

// SumMonthlyReward 汇总某业务员某月已入账的提成（含未结算），处罚上限用
func (r *RecordRepository) SumMonthlyReward(ctx context.Context, salespersonID, month string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&entity.CommissionRecord{}).
		Select("COALESCE(SUM(commission_amount), 0)").
		Where("salesperson_id = ? AND record_month = ?", salespersonID, month).
		Scan(&total).Error
	return total, err
}

// FindUnsettledSalespeople 查询某月有未结算记录的业务员（提成或处罚任一即算）
func (r *RecordRepository) FindUnsettledSalespeople(ctx context.Context, month string) ([]string, error) {
	var fromCommissions []string
	if err := r.db.WithContext(ctx).
		Model(&entity.CommissionRecord{}).
		Distinct("salesperson_id").
		Where("record_month = ? AND settlement_id IS NULL", month).
		Pluck("salesperson_id", &fromCommissions).Error; err != nil {
		return nil, err
	}

	var fromPenalties []string
	if err := r.db.WithContext(ctx).
		Model(&entity.PenaltyRecord{}).
		Distinct("salesperson_id").
		Where("record_month = ? AND settlement_id IS NULL", month).
		Pluck("salesperson_id", &fromPenalties).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(fromCommissions)+len(fromPenalties))
	var ids []string
	for _, id := range append(fromCommissions, fromPenalties...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
