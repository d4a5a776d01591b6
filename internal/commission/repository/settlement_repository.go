package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"gorm.io/gorm"
)

// SettlementRepository 结算单仓库
type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// FindAll 查询结算单列表
func (r *SettlementRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Settlement, int64, error) {
	var items []entity.Settlement
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Settlement{})

	if salespersonID := filters["salesperson_id"]; salespersonID != "" {
		query = query.Where("salesperson_id = ?", salespersonID)
	}
	if month := filters["month"]; month != "" {
		query = query.Where("settlement_month = ?", month)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找结算单（含明细记录）
func (r *SettlementRepository) FindByID(ctx context.Context, id string) (*entity.Settlement, error) {
	var s entity.Settlement
	err := r.db.WithContext(ctx).
		Preload("RewardRecords").
		Preload("PenaltyRecords").
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ExistsActive 指定业务员/月份是否已存在非 rejected 的结算单
// 与迁移SQL里的部分唯一索引一致，先查后插只是提前给出友好错误，
// 并发窗口由唯一索引兜底
func (r *SettlementRepository) ExistsActive(ctx context.Context, tx *gorm.DB, salespersonID, month string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&entity.Settlement{}).
		Where("salesperson_id = ? AND settlement_month = ? AND status <> ?",
			salespersonID, month, entity.SettlementStatusRejected).
		Count(&count).Error
	return count > 0, err
}

// Create 创建结算单
func (r *SettlementRepository) Create(ctx context.Context, tx *gorm.DB, s *entity.Settlement) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(s).Error
}

// GenerateCode 生成结算单编码 CS-YYYYMM-XXXX
// 取当月已有最大序号递增，驳回/删除留下的空洞不会导致撞号；
// 并发取到同号由 settlement_code 唯一索引拦截，调用方换号重试
func (r *SettlementRepository) GenerateCode(ctx context.Context, tx *gorm.DB) (string, error) {
	if tx == nil {
		tx = r.db
	}
	prefix := fmt.Sprintf("CS-%s", time.Now().Format("200601"))
	var maxCode sql.NullString
	err := tx.WithContext(ctx).
		Model(&entity.Settlement{}).
		Where("settlement_code LIKE ?", prefix+"%").
		Select("MAX(settlement_code)").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}
	seq := 1
	if maxCode.Valid && len(maxCode.String) > len(prefix)+1 {
		if n, err := strconv.Atoi(maxCode.String[len(prefix)+1:]); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, seq), nil
}

// UpdateStatusFrom 带前置状态守卫的状态更新
// 返回实际命中的行数：0 表示状态已被并发修改（或不存在），由调用方判定
func (r *SettlementRepository) UpdateStatusFrom(ctx context.Context, tx *gorm.DB, id, fromStatus string, updates map[string]interface{}) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&entity.Settlement{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// MonthSummary 某月结算汇总
type MonthSummary struct {
	SettlementMonth string  `json:"settlement_month"`
	TotalCount      int64   `json:"total_count"`
	DraftCount      int64   `json:"draft_count"`
	PendingCount    int64   `json:"pending_count"`
	ApprovedCount   int64   `json:"approved_count"`
	RejectedCount   int64   `json:"rejected_count"`
	PaidCount       int64   `json:"paid_count"`
	TotalReward     float64 `json:"total_reward"`
	TotalPenalty    float64 `json:"total_penalty"`
	TotalNet        float64 `json:"total_net"`
}

// Summarize 汇总某月结算单（金额只统计非 rejected）
func (r *SettlementRepository) Summarize(ctx context.Context, month string) (*MonthSummary, error) {
	summary := &MonthSummary{SettlementMonth: month}

	base := r.db.WithContext(ctx).Model(&entity.Settlement{}).Where("settlement_month = ?", month)

	if err := base.Session(&gorm.Session{}).Count(&summary.TotalCount).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status string
		Count  int64
	}{}
	if err := base.Session(&gorm.Session{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}
	for _, sc := range statusCounts {
		switch sc.Status {
		case entity.SettlementStatusDraft:
			summary.DraftCount = sc.Count
		case entity.SettlementStatusPending:
			summary.PendingCount = sc.Count
		case entity.SettlementStatusApproved:
			summary.ApprovedCount = sc.Count
		case entity.SettlementStatusRejected:
			summary.RejectedCount = sc.Count
		case entity.SettlementStatusPaid:
			summary.PaidCount = sc.Count
		}
	}

	type sums struct {
		Reward  float64
		Penalty float64
		Net     float64
	}
	var s sums
	if err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total_reward),0) as reward, COALESCE(SUM(total_penalty),0) as penalty, COALESCE(SUM(net_amount),0) as net").
		Where("status <> ?", entity.SettlementStatusRejected).
		Scan(&s).Error; err != nil {
		return nil, err
	}
	summary.TotalReward = s.Reward
	summary.TotalPenalty = s.Penalty
	summary.TotalNet = s.Net

	return summary, nil
}
