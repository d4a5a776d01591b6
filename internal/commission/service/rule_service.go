package service

import (
	"context"
	"fmt"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RuleService 提成规则管理
type RuleService struct {
	ruleRepo *repository.RuleRepository
	logger   *zap.Logger
}

func NewRuleService(ruleRepo *repository.RuleRepository, logger *zap.Logger) *RuleService {
	return &RuleService{ruleRepo: ruleRepo, logger: logger}
}

// TierInput 阶梯配置入参
type TierInput struct {
	MinCount        int     `json:"min_count"`
	MaxCount        *int    `json:"max_count"`
	SupervisorBonus float64 `json:"supervisor_bonus"`
	SalesBonus      float64 `json:"sales_bonus"`
	DocumentBonus   float64 `json:"document_bonus"`
}

// RuleRequest 创建/更新提成规则入参
type RuleRequest struct {
	RuleName      string `json:"rule_name" binding:"required"`
	RuleType      string `json:"rule_type" binding:"required,oneof=percentage fixed tiered"`
	CustomerLevel string `json:"customer_level"`

	CommissionBase string   `json:"commission_base"`
	CommissionRate *float64 `json:"commission_rate"`

	FixedSupervisorAmount *float64 `json:"fixed_supervisor_amount"`
	FixedSalesAmount      *float64 `json:"fixed_sales_amount"`
	FixedDocumentAmount   *float64 `json:"fixed_document_amount"`

	MinBaseAmount float64  `json:"min_base_amount"`
	MaxCommission *float64 `json:"max_commission"`

	IsStackable bool   `json:"is_stackable"`
	Priority    int    `json:"priority"`
	Notes       string `json:"notes"`

	Tiers []TierInput `json:"tiers"`
}

func (s *RuleService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.CommissionRule, int64, error) {
	return s.ruleRepo.FindAll(ctx, page, pageSize, filters)
}

func (s *RuleService) Get(ctx context.Context, id string) (*entity.CommissionRule, error) {
	return s.ruleRepo.FindByID(ctx, id)
}

// Create 创建规则，返回非阻断性的配置提示（阶梯重叠、断档等）
func (s *RuleService) Create(ctx context.Context, req *RuleRequest, createdBy string) (*entity.CommissionRule, []string, error) {
	if err := validateRuleRequest(req); err != nil {
		return nil, nil, err
	}

	rule := &entity.CommissionRule{
		ID:                    uuid.New().String()[:32],
		RuleName:              req.RuleName,
		RuleType:              req.RuleType,
		CustomerLevel:         req.CustomerLevel,
		CommissionBase:        req.CommissionBase,
		CommissionRate:        req.CommissionRate,
		FixedSupervisorAmount: req.FixedSupervisorAmount,
		FixedSalesAmount:      req.FixedSalesAmount,
		FixedDocumentAmount:   req.FixedDocumentAmount,
		MinBaseAmount:         req.MinBaseAmount,
		MaxCommission:         req.MaxCommission,
		IsStackable:           req.IsStackable,
		Priority:              req.Priority,
		IsActive:              true,
		CreatedBy:             createdBy,
	}
	if rule.CommissionBase == "" {
		rule.CommissionBase = entity.CommissionBaseOrder
	}
	rule.Notes = req.Notes
	rule.Tiers = buildTiers(rule.ID, req.Tiers)

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, nil, err
	}

	warnings := tierWarnings(rule.Tiers)
	for _, w := range warnings {
		s.logger.Warn("规则配置提示", zap.String("rule_id", rule.ID), zap.String("warning", w))
	}
	return rule, warnings, nil
}

// Update 更新规则，传入阶梯时整体替换
func (s *RuleService) Update(ctx context.Context, id string, req *RuleRequest) (*entity.CommissionRule, []string, error) {
	if err := validateRuleRequest(req); err != nil {
		return nil, nil, err
	}

	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rule.RuleName = req.RuleName
	rule.RuleType = req.RuleType
	rule.CustomerLevel = req.CustomerLevel
	rule.CommissionBase = req.CommissionBase
	if rule.CommissionBase == "" {
		rule.CommissionBase = entity.CommissionBaseOrder
	}
	rule.CommissionRate = req.CommissionRate
	rule.FixedSupervisorAmount = req.FixedSupervisorAmount
	rule.FixedSalesAmount = req.FixedSalesAmount
	rule.FixedDocumentAmount = req.FixedDocumentAmount
	rule.MinBaseAmount = req.MinBaseAmount
	rule.MaxCommission = req.MaxCommission
	rule.IsStackable = req.IsStackable
	rule.Priority = req.Priority
	rule.Notes = req.Notes

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, nil, err
	}

	if req.Tiers != nil {
		rule.Tiers = buildTiers(rule.ID, req.Tiers)
		if err := s.ruleRepo.ReplaceTiers(ctx, rule.ID, rule.Tiers); err != nil {
			return nil, nil, err
		}
	}

	warnings := tierWarnings(rule.Tiers)
	return rule, warnings, nil
}

func (s *RuleService) Delete(ctx context.Context, id string) error {
	if _, err := s.ruleRepo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.ruleRepo.Delete(ctx, id)
}

func (s *RuleService) SetActive(ctx context.Context, id string, active bool) error {
	return s.ruleRepo.SetActive(ctx, id, active)
}

// RemoveTier 删除单个阶梯并重排剩余阶梯的编号
func (s *RuleService) RemoveTier(ctx context.Context, ruleID, tierID string) (*entity.CommissionRule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	var remaining []entity.CommissionTier
	found := false
	for _, tier := range rule.Tiers {
		if tier.ID == tierID {
			found = true
			continue
		}
		remaining = append(remaining, tier)
	}
	if !found {
		return nil, repository.ErrNotFound
	}

	// Tiers 已按 min_count 升序，删除后重新连续编号
	for i := range remaining {
		remaining[i].TierLevel = i + 1
	}

	if err := s.ruleRepo.ReplaceTiers(ctx, ruleID, remaining); err != nil {
		return nil, err
	}
	rule.Tiers = remaining
	return rule, nil
}

func validateRuleRequest(req *RuleRequest) error {
	switch req.RuleType {
	case entity.RuleTypePercentage:
		if req.CommissionRate == nil {
			return fmt.Errorf("%w: 按比例规则必须设置提成比例", ErrInvalidRuleConfig)
		}
		if *req.CommissionRate < 0 {
			return fmt.Errorf("%w: 提成比例不能为负数", ErrInvalidRuleConfig)
		}
	case entity.RuleTypeFixed:
		if req.FixedSupervisorAmount == nil && req.FixedSalesAmount == nil && req.FixedDocumentAmount == nil {
			return fmt.Errorf("%w: 固定金额规则至少设置一个角色金额", ErrInvalidRuleConfig)
		}
	case entity.RuleTypeTiered:
		if len(req.Tiers) == 0 {
			return fmt.Errorf("%w: 阶梯规则至少配置一个阶梯", ErrInvalidRuleConfig)
		}
		for _, tier := range req.Tiers {
			if tier.MinCount < 0 {
				return fmt.Errorf("%w: 阶梯起始单量不能为负数", ErrInvalidRuleConfig)
			}
			if tier.MaxCount != nil && *tier.MaxCount < tier.MinCount {
				return fmt.Errorf("%w: 阶梯上限不能小于下限", ErrInvalidRuleConfig)
			}
		}
	default:
		return fmt.Errorf("%w: 未知规则类型 %s", ErrInvalidRuleConfig, req.RuleType)
	}
	if req.MinBaseAmount < 0 {
		return fmt.Errorf("%w: 最低基数不能为负数", ErrInvalidRuleConfig)
	}
	return nil
}

// buildTiers 按 min_count 升序生成阶梯记录，TierLevel 从1开始
func buildTiers(ruleID string, inputs []TierInput) []entity.CommissionTier {
	sorted := make([]TierInput, len(inputs))
	copy(sorted, inputs)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].MinCount < sorted[i].MinCount {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	tiers := make([]entity.CommissionTier, 0, len(sorted))
	for i, in := range sorted {
		tiers = append(tiers, entity.CommissionTier{
			ID:              uuid.New().String()[:32],
			RuleID:          ruleID,
			TierLevel:       i + 1,
			MinCount:        in.MinCount,
			MaxCount:        in.MaxCount,
			SupervisorBonus: in.SupervisorBonus,
			SalesBonus:      in.SalesBonus,
			DocumentBonus:   in.DocumentBonus,
		})
	}
	return tiers
}

// tierWarnings 检查阶梯区间的重叠和断档，只提示不阻断
func tierWarnings(tiers []entity.CommissionTier) []string {
	var warnings []string
	for i := 1; i < len(tiers); i++ {
		prev, cur := tiers[i-1], tiers[i]
		if prev.MaxCount == nil {
			warnings = append(warnings, fmt.Sprintf("阶梯%d无上限，其后的阶梯%d不会命中", prev.TierLevel, cur.TierLevel))
			continue
		}
		if cur.MinCount <= *prev.MaxCount {
			warnings = append(warnings, fmt.Sprintf("阶梯%d与阶梯%d区间重叠", prev.TierLevel, cur.TierLevel))
		} else if cur.MinCount > *prev.MaxCount+1 {
			warnings = append(warnings, fmt.Sprintf("阶梯%d与阶梯%d之间存在断档", prev.TierLevel, cur.TierLevel))
		}
	}
	return warnings
}
