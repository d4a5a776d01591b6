package repository

import (
	"context"
	"errors"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"gorm.io/gorm"
)

// PenaltyRuleRepository 处罚规则仓库
type PenaltyRuleRepository struct {
	db *gorm.DB
}

func NewPenaltyRuleRepository(db *gorm.DB) *PenaltyRuleRepository {
	return &PenaltyRuleRepository{db: db}
}

// FindAll 查询处罚规则列表
func (r *PenaltyRuleRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PenaltyRule, int64, error) {
	var items []entity.PenaltyRule
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PenaltyRule{})

	if penaltyType := filters["penalty_type"]; penaltyType != "" {
		query = query.Where("penalty_type = ?", penaltyType)
	}
	if active := filters["is_active"]; active != "" {
		query = query.Where("is_active = ?", active == "true")
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

// FindByID 根据ID查找处罚规则
func (r *PenaltyRuleRepository) FindByID(ctx context.Context, id string) (*entity.PenaltyRule, error) {
	var rule entity.PenaltyRule
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// Create 创建处罚规则
func (r *PenaltyRuleRepository) Create(ctx context.Context, rule *entity.PenaltyRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// Update 更新处罚规则
func (r *PenaltyRuleRepository) Update(ctx context.Context, rule *entity.PenaltyRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Delete 删除处罚规则
func (r *PenaltyRuleRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.PenaltyRule{}).Error
}

// SetActive 启用/停用处罚规则
func (r *PenaltyRuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&entity.PenaltyRule{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
