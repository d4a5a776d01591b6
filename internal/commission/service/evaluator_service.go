package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/scheme"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 当月奖励合计缓存，处罚上限计算用
const (
	rewardCacheKeyFmt = "commission:reward:%s:%s" // salesperson:month
	rewardCacheTTL    = time.Hour
)

// EvaluatorService 规则引擎：业务事件→提成记录，违规事件→处罚记录
type EvaluatorService struct {
	ruleRepo        *repository.RuleRepository
	penaltyRuleRepo *repository.PenaltyRuleRepository
	recordRepo      *repository.RecordRepository
	calc            *scheme.Calculator
	rdb             *redis.Client
	logger          *zap.Logger
}

func NewEvaluatorService(
	ruleRepo *repository.RuleRepository,
	penaltyRuleRepo *repository.PenaltyRuleRepository,
	recordRepo *repository.RecordRepository,
	calc *scheme.Calculator,
	rdb *redis.Client,
	logger *zap.Logger,
) *EvaluatorService {
	return &EvaluatorService{
		ruleRepo:        ruleRepo,
		penaltyRuleRepo: penaltyRuleRepo,
		recordRepo:      recordRepo,
		calc:            calc,
		rdb:             rdb,
		logger:          logger,
	}
}

// BusinessEvent 业务事件（订单/合同/回款）
type BusinessEvent struct {
	SalespersonID string    `json:"salesperson_id" binding:"required"`
	CustomerLevel string    `json:"customer_level"`
	BaseAmount    float64   `json:"base_amount"`
	UnitCount     int       `json:"unit_count"`
	SourceType    string    `json:"source_type" binding:"required"`
	SourceID      string    `json:"source_id" binding:"required"`
	EventDate     time.Time `json:"event_date"`
}

// Incident 违规事件
type Incident struct {
	SalespersonID string    `json:"salesperson_id" binding:"required"`
	RuleID        string    `json:"rule_id" binding:"required"`
	LossAmount    *float64  `json:"loss_amount"`
	IncidentDate  time.Time `json:"incident_date"`
	SourceType    string    `json:"source_type"`
	SourceID      string    `json:"source_id"`
	Notes         string    `json:"notes"`
}

// Evaluate 用单条规则计算一次提成
// 规则停用或缺少该类型必需字段时返回 ErrInvalidRuleConfig；
// 阶梯规则单量未落入任何阶梯时返回 (nil, nil)
func (s *EvaluatorService) Evaluate(rule *entity.CommissionRule, event *BusinessEvent) (*entity.CommissionRecord, error) {
	if !rule.IsActive {
		return nil, fmt.Errorf("%w: 规则 %s 已停用", ErrInvalidRuleConfig, rule.RuleName)
	}

	record := &entity.CommissionRecord{
		ID:            uuid.New().String()[:32],
		SalespersonID: event.SalespersonID,
		RecordMonth:   monthOf(event.EventDate),
		RuleID:        rule.ID,
		RuleName:      rule.RuleName,
		RuleType:      rule.RuleType,
		BaseAmount:    event.BaseAmount,
		UnitCount:     event.UnitCount,
		SourceType:    event.SourceType,
		SourceID:      event.SourceID,
	}

	switch rule.RuleType {
	case entity.RuleTypePercentage:
		if rule.CommissionRate == nil {
			return nil, fmt.Errorf("%w: 按比例规则 %s 缺少提成比例", ErrInvalidRuleConfig, rule.RuleName)
		}
		base := decimal.NewFromFloat(event.BaseAmount).Sub(decimal.NewFromFloat(rule.MinBaseAmount))
		if base.IsNegative() {
			base = decimal.Zero
		}
		amount := base.Mul(decimal.NewFromFloat(*rule.CommissionRate)).Div(decimal.NewFromInt(100))
		if rule.MaxCommission != nil {
			limit := decimal.NewFromFloat(*rule.MaxCommission)
			if amount.GreaterThan(limit) {
				amount = limit
			}
		}
		// 按比例规则原方案未定义角色拆分，整体记入跟单（sales）口径
		record.SalesAmount = round2(amount)
		record.CommissionAmount = record.SalesAmount

	case entity.RuleTypeFixed:
		if rule.FixedSupervisorAmount == nil && rule.FixedSalesAmount == nil && rule.FixedDocumentAmount == nil {
			return nil, fmt.Errorf("%w: 固定金额规则 %s 未配置任何角色金额", ErrInvalidRuleConfig, rule.RuleName)
		}
		record.SupervisorAmount = deref(rule.FixedSupervisorAmount)
		record.SalesAmount = deref(rule.FixedSalesAmount)
		record.DocumentAmount = deref(rule.FixedDocumentAmount)
		record.CommissionAmount = round2(
			decimal.NewFromFloat(record.SupervisorAmount).
				Add(decimal.NewFromFloat(record.SalesAmount)).
				Add(decimal.NewFromFloat(record.DocumentAmount)))

	case entity.RuleTypeTiered:
		if len(rule.Tiers) == 0 {
			return nil, fmt.Errorf("%w: 阶梯规则 %s 没有配置阶梯", ErrInvalidRuleConfig, rule.RuleName)
		}
		tier := matchTier(rule.Tiers, event.UnitCount)
		if tier == nil {
			return nil, nil
		}
		record.SupervisorAmount = tier.SupervisorBonus
		record.SalesAmount = tier.SalesBonus
		record.DocumentAmount = tier.DocumentBonus
		record.CommissionAmount = round2(
			decimal.NewFromFloat(tier.SupervisorBonus).
				Add(decimal.NewFromFloat(tier.SalesBonus)).
				Add(decimal.NewFromFloat(tier.DocumentBonus)))

	default:
		return nil, fmt.Errorf("%w: 未知规则类型 %s", ErrInvalidRuleConfig, rule.RuleType)
	}

	return record, nil
}

// EvaluateAll 用全部启用规则评估一个业务事件并落库
// 可叠加规则全部计提；不可叠加规则之间按优先级取一条
// （同优先级时创建早的规则胜出）。单条规则配置错误只跳过该规则
func (s *EvaluatorService) EvaluateAll(ctx context.Context, event *BusinessEvent) ([]entity.CommissionRecord, error) {
	if event.EventDate.IsZero() {
		event.EventDate = time.Now()
	}
	if event.UnitCount == 0 {
		event.UnitCount = 1
	}

	rules, err := s.ruleRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	var records []entity.CommissionRecord
	var exclusive *entity.CommissionRecord
	exclusivePriority := 0

	for i := range rules {
		rule := &rules[i]
		if rule.CustomerLevel != "" && rule.CustomerLevel != event.CustomerLevel {
			continue
		}

		record, err := s.Evaluate(rule, event)
		if err != nil {
			// 单条规则的配置问题不阻断其它规则
			s.logger.Warn("规则评估跳过",
				zap.String("rule_id", rule.ID),
				zap.String("source_id", event.SourceID),
				zap.Error(err))
			continue
		}
		if record == nil {
			continue
		}

		if rule.IsStackable {
			records = append(records, *record)
			continue
		}

		// FindActive 按 priority DESC, created_at ASC 排序，
		// 先遇到的不可叠加规则即胜出
		if exclusive == nil || rule.Priority > exclusivePriority {
			exclusive = record
			exclusivePriority = rule.Priority
		}
	}

	if exclusive != nil {
		records = append(records, *exclusive)
	}

	if len(records) == 0 {
		return []entity.CommissionRecord{}, nil
	}

	if err := s.recordRepo.CreateCommissionRecords(ctx, records); err != nil {
		return nil, err
	}
	s.invalidateRewardCache(ctx, event.SalespersonID, monthOf(event.EventDate))

	return records, nil
}

// EvaluatePenalty 用处罚规则评估一次违规事件并落库
// 扣罚总额不超过该业务员当月奖励 × MaxPenaltyRate；
// 试行期内照常计算、打标记，结算时金额按0计
func (s *EvaluatorService) EvaluatePenalty(ctx context.Context, incident *Incident) (*entity.PenaltyRecord, error) {
	rule, err := s.penaltyRuleRepo.FindByID(ctx, incident.RuleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return nil, fmt.Errorf("%w: 处罚规则 %s 已停用", ErrInvalidRuleConfig, rule.RuleName)
	}

	if incident.IncidentDate.IsZero() {
		incident.IncidentDate = time.Now()
	}
	month := monthOf(incident.IncidentDate)

	record := &entity.PenaltyRecord{
		ID:            uuid.New().String()[:32],
		SalespersonID: incident.SalespersonID,
		RecordMonth:   month,
		RuleID:        rule.ID,
		RuleName:      rule.RuleName,
		PenaltyType:   rule.PenaltyType,
		IncidentDate:  incident.IncidentDate,
		SourceType:    incident.SourceType,
		SourceID:      incident.SourceID,
		Notes:         incident.Notes,
	}

	var total decimal.Decimal
	switch rule.PenaltyType {
	case entity.PenaltyTypeInspection, entity.PenaltyTypeMistake:
		if rule.SupervisorPenalty == nil && rule.SalesPenalty == nil && rule.DocumentPenalty == nil {
			return nil, fmt.Errorf("%w: 处罚规则 %s 未配置任何角色扣罚金额", ErrInvalidRuleConfig, rule.RuleName)
		}
		record.SupervisorPenalty = deref(rule.SupervisorPenalty)
		record.SalesPenalty = deref(rule.SalesPenalty)
		record.DocumentPenalty = deref(rule.DocumentPenalty)
		total = decimal.NewFromFloat(record.SupervisorPenalty).
			Add(decimal.NewFromFloat(record.SalesPenalty)).
			Add(decimal.NewFromFloat(record.DocumentPenalty))

	case entity.PenaltyTypeLoss:
		if rule.LossPercentage == nil {
			return nil, fmt.Errorf("%w: 经济损失规则 %s 缺少损失比例", ErrInvalidRuleConfig, rule.RuleName)
		}
		if incident.LossAmount == nil {
			return nil, fmt.Errorf("%w: 经济损失事件缺少损失金额", ErrValidation)
		}
		record.LossAmount = incident.LossAmount
		total = decimal.NewFromFloat(*incident.LossAmount).
			Mul(decimal.NewFromFloat(*rule.LossPercentage)).
			Div(decimal.NewFromInt(100))
		// 损失类原方案未定义角色拆分，整体记入跟单（sales）口径
		record.SalesPenalty = round2(total)

	default:
		return nil, fmt.Errorf("%w: 未知处罚类型 %s", ErrInvalidRuleConfig, rule.PenaltyType)
	}

	// 当月扣罚上限：超出部分按比例压缩各角色金额
	monthlyReward, err := s.monthlyReward(ctx, incident.SalespersonID, month)
	if err != nil {
		return nil, err
	}
	capAmount := decimal.NewFromFloat(monthlyReward).
		Mul(decimal.NewFromFloat(rule.MaxPenaltyRate)).
		Div(decimal.NewFromInt(100))
	if total.GreaterThan(capAmount) {
		if total.IsPositive() {
			ratio := capAmount.Div(total)
			record.SupervisorPenalty = round2(decimal.NewFromFloat(record.SupervisorPenalty).Mul(ratio))
			record.SalesPenalty = round2(decimal.NewFromFloat(record.SalesPenalty).Mul(ratio))
			record.DocumentPenalty = round2(decimal.NewFromFloat(record.DocumentPenalty).Mul(ratio))
		}
		total = capAmount
	}
	record.TotalPenalty = round2(total)

	// 试行期：照常记录，结算时不扣减
	record.IsTrialPeriod = s.calc.InPenaltyTrial(incident.IncidentDate)

	if err := s.recordRepo.CreatePenaltyRecord(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListCommissionRecords 查询提成记录
func (s *EvaluatorService) ListCommissionRecords(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.CommissionRecord, int64, error) {
	return s.recordRepo.ListCommissionRecords(ctx, page, pageSize, filters)
}

// ListPenaltyRecords 查询处罚记录
func (s *EvaluatorService) ListPenaltyRecords(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PenaltyRecord, int64, error) {
	return s.recordRepo.ListPenaltyRecords(ctx, page, pageSize, filters)
}

// MonthlyReward 某业务员某月奖励合计（缓存读穿）
func (s *EvaluatorService) MonthlyReward(ctx context.Context, salespersonID, month string) (float64, error) {
	return s.monthlyReward(ctx, salespersonID, month)
}

// monthlyReward 读取当月奖励合计，缓存未命中时回源数据库
func (s *EvaluatorService) monthlyReward(ctx context.Context, salespersonID, month string) (float64, error) {
	key := fmt.Sprintf(rewardCacheKeyFmt, salespersonID, month)

	if s.rdb != nil {
		if val, err := s.rdb.Get(ctx, key).Result(); err == nil {
			if total, perr := strconv.ParseFloat(val, 64); perr == nil {
				return total, nil
			}
		}
	}

	total, err := s.recordRepo.SumMonthlyReward(ctx, salespersonID, month)
	if err != nil {
		return 0, err
	}

	if s.rdb != nil {
		s.rdb.Set(ctx, key, strconv.FormatFloat(total, 'f', 2, 64), rewardCacheTTL)
	}
	return total, nil
}

func (s *EvaluatorService) invalidateRewardCache(ctx context.Context, salespersonID, month string) {
	if s.rdb == nil {
		return
	}
	key := fmt.Sprintf(rewardCacheKeyFmt, salespersonID, month)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("清理奖励缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// matchTier 按 min_count 升序找第一个命中的阶梯
// 阶梯区间重叠属于配置问题，这里不检测，先配置的阶梯胜出
func matchTier(tiers []entity.CommissionTier, unitCount int) *entity.CommissionTier {
	sorted := make([]entity.CommissionTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinCount < sorted[j].MinCount
	})
	for i := range sorted {
		if sorted[i].Contains(unitCount) {
			return &sorted[i]
		}
	}
	return nil
}

func monthOf(t time.Time) string {
	return t.Format("2006-01")
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
