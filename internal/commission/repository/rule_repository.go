package repository

import (
	"context"
	"errors"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"gorm.io/gorm"
)

// RuleRepository 提成规则仓库
type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// FindAll 查询规则列表
func (r *RuleRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.CommissionRule, int64, error) {
	var items []entity.CommissionRule
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.CommissionRule{})

	if ruleType := filters["rule_type"]; ruleType != "" {
		query = query.Where("rule_type = ?", ruleType)
	}
	if level := filters["customer_level"]; level != "" {
		query = query.Where("customer_level = ?", level)
	}
	if active := filters["is_active"]; active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_count ASC")
		}).
		Order("priority DESC, created_at ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找规则，阶梯按 min_count 升序
func (r *RuleRepository) FindByID(ctx context.Context, id string) (*entity.CommissionRule, error) {
	var rule entity.CommissionRule
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_count ASC")
		}).
		Where("id = ?", id).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// FindActive 查询所有启用规则（评估用），优先级高在前、同级按创建时间早在前
func (r *RuleRepository) FindActive(ctx context.Context) ([]entity.CommissionRule, error) {
	var rules []entity.CommissionRule
	err := r.db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB {
			return db.Order("min_count ASC")
		}).
		Where("is_active = ?", true).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error
	return rules, err
}

// Create 创建规则（含阶梯）
func (r *RuleRepository) Create(ctx context.Context, rule *entity.CommissionRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// Update 更新规则本体，不触碰阶梯
func (r *RuleRepository) Update(ctx context.Context, rule *entity.CommissionRule) error {
	return r.db.WithContext(ctx).Omit("Tiers").Save(rule).Error
}

// Delete 删除规则及其阶梯
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", id).Delete(&entity.CommissionTier{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entity.CommissionRule{}).Error
	})
}

// SetActive 启用/停用规则
func (r *RuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&entity.CommissionRule{}).
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

// ReplaceTiers 整体替换规则的阶梯（删除阶梯后重新编号的落库入口）
func (r *RuleRepository) ReplaceTiers(ctx context.Context, ruleID string, tiers []entity.CommissionTier) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", ruleID).Delete(&entity.CommissionTier{}).Error; err != nil {
			return err
		}
		if len(tiers) == 0 {
			return nil
		}
		return tx.Create(&tiers).Error
	})
}
