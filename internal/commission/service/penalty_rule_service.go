package service

import (
	"context"
	"fmt"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PenaltyRuleService 处罚规则管理
type PenaltyRuleService struct {
	penaltyRuleRepo *repository.PenaltyRuleRepository
	logger          *zap.Logger
}

func NewPenaltyRuleService(penaltyRuleRepo *repository.PenaltyRuleRepository, logger *zap.Logger) *PenaltyRuleService {
	return &PenaltyRuleService{penaltyRuleRepo: penaltyRuleRepo, logger: logger}
}

// PenaltyRuleRequest 创建/更新处罚规则入参
type PenaltyRuleRequest struct {
	RuleName    string `json:"rule_name" binding:"required"`
	PenaltyType string `json:"penalty_type" binding:"required,oneof=inspection mistake loss"`

	SupervisorPenalty *float64 `json:"supervisor_penalty"`
	SalesPenalty      *float64 `json:"sales_penalty"`
	DocumentPenalty   *float64 `json:"document_penalty"`

	LossPercentage *float64 `json:"loss_percentage"`

	MaxPenaltyRate *float64 `json:"max_penalty_rate"`
	Notes          string   `json:"notes"`
}

func (s *PenaltyRuleService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PenaltyRule, int64, error) {
	return s.penaltyRuleRepo.FindAll(ctx, page, pageSize, filters)
}

func (s *PenaltyRuleService) Get(ctx context.Context, id string) (*entity.PenaltyRule, error) {
	return s.penaltyRuleRepo.FindByID(ctx, id)
}

func (s *PenaltyRuleService) Create(ctx context.Context, req *PenaltyRuleRequest, createdBy string) (*entity.PenaltyRule, error) {
	if err := validatePenaltyRuleRequest(req); err != nil {
		return nil, err
	}

	rule := &entity.PenaltyRule{
		ID:                uuid.New().String()[:32],
		RuleName:          req.RuleName,
		PenaltyType:       req.PenaltyType,
		SupervisorPenalty: req.SupervisorPenalty,
		SalesPenalty:      req.SalesPenalty,
		DocumentPenalty:   req.DocumentPenalty,
		LossPercentage:    req.LossPercentage,
		MaxPenaltyRate:    100,
		IsActive:          true,
		CreatedBy:         createdBy,
		Notes:             req.Notes,
	}
	if req.MaxPenaltyRate != nil {
		rule.MaxPenaltyRate = *req.MaxPenaltyRate
	}

	if err := s.penaltyRuleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *PenaltyRuleService) Update(ctx context.Context, id string, req *PenaltyRuleRequest) (*entity.PenaltyRule, error) {
	if err := validatePenaltyRuleRequest(req); err != nil {
		return nil, err
	}

	rule, err := s.penaltyRuleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.RuleName = req.RuleName
	rule.PenaltyType = req.PenaltyType
	rule.SupervisorPenalty = req.SupervisorPenalty
	rule.SalesPenalty = req.SalesPenalty
	rule.DocumentPenalty = req.DocumentPenalty
	rule.LossPercentage = req.LossPercentage
	if req.MaxPenaltyRate != nil {
		rule.MaxPenaltyRate = *req.MaxPenaltyRate
	}
	rule.Notes = req.Notes

	if err := s.penaltyRuleRepo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *PenaltyRuleService) Delete(ctx context.Context, id string) error {
	if _, err := s.penaltyRuleRepo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.penaltyRuleRepo.Delete(ctx, id)
}

func (s *PenaltyRuleService) SetActive(ctx context.Context, id string, active bool) error {
	return s.penaltyRuleRepo.SetActive(ctx, id, active)
}

func validatePenaltyRuleRequest(req *PenaltyRuleRequest) error {
	switch req.PenaltyType {
	case entity.PenaltyTypeInspection, entity.PenaltyTypeMistake:
		if req.SupervisorPenalty == nil && req.SalesPenalty == nil && req.DocumentPenalty == nil {
			return fmt.Errorf("%w: 处罚规则至少设置一个角色扣罚金额", ErrInvalidRuleConfig)
		}
	case entity.PenaltyTypeLoss:
		if req.LossPercentage == nil {
			return fmt.Errorf("%w: 经济损失规则必须设置损失比例", ErrInvalidRuleConfig)
		}
		if *req.LossPercentage < 0 || *req.LossPercentage > 100 {
			return fmt.Errorf("%w: 损失比例必须在 0-100 之间", ErrInvalidRuleConfig)
		}
	default:
		return fmt.Errorf("%w: 未知处罚类型 %s", ErrInvalidRuleConfig, req.PenaltyType)
	}
	if req.MaxPenaltyRate != nil && (*req.MaxPenaltyRate < 0 || *req.MaxPenaltyRate > 100) {
		return fmt.Errorf("%w: 扣罚上限比例必须在 0-100 之间", ErrInvalidRuleConfig)
	}
	return nil
}
