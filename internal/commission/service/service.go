package service

import (
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/scheme"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/finance"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/shared/notify"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 提成域全部服务的汇集点，cmd/server 装配用
type Services struct {
	Scheme      *scheme.Calculator
	Rule        *RuleService
	PenaltyRule *PenaltyRuleService
	Evaluator   *EvaluatorService
	Settlement  *SettlementService
}

func NewServices(
	db *gorm.DB,
	repos *repository.Repositories,
	calc *scheme.Calculator,
	rdb *redis.Client,
	financeSvc *finance.Service,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *Services {
	return &Services{
		Scheme:      calc,
		Rule:        NewRuleService(repos.Rule, logger),
		PenaltyRule: NewPenaltyRuleService(repos.PenaltyRule, logger),
		Evaluator:   NewEvaluatorService(repos.Rule, repos.PenaltyRule, repos.Record, calc, rdb, logger),
		Settlement:  NewSettlementService(db, repos.Settlement, repos.Record, financeSvc, notifier, logger),
	}
}
