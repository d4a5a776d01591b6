package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/finance"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/shared/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// SettlementService 结算单生成与审批流
// 状态机：draft -> pending -> approved/rejected，approved -> paid
type SettlementService struct {
	db             *gorm.DB
	settlementRepo *repository.SettlementRepository
	recordRepo     *repository.RecordRepository
	finance        *finance.Service
	notifier       *notify.Notifier
	logger         *zap.Logger
}

func NewSettlementService(
	db *gorm.DB,
	settlementRepo *repository.SettlementRepository,
	recordRepo *repository.RecordRepository,
	financeSvc *finance.Service,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		db:             db,
		settlementRepo: settlementRepo,
		recordRepo:     recordRepo,
		finance:        financeSvc,
		notifier:       notifier,
		logger:         logger,
	}
}

// Reviewer 审批人信息，取自登录态
type Reviewer struct {
	ID   string
	Name string
}

// GenerateRequest 生成结算单入参
type GenerateRequest struct {
	SalespersonID   string `json:"salesperson_id" binding:"required"`
	SalespersonName string `json:"salesperson_name"`
	SettlementMonth string `json:"settlement_month" binding:"required"`
}

func (s *SettlementService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Settlement, int64, error) {
	return s.settlementRepo.FindAll(ctx, page, pageSize, filters)
}

func (s *SettlementService) Get(ctx context.Context, id string) (*entity.Settlement, error) {
	return s.settlementRepo.FindByID(ctx, id)
}

func (s *SettlementService) Summarize(ctx context.Context, month string) (*repository.MonthSummary, error) {
	if !monthPattern.MatchString(month) {
		return nil, fmt.Errorf("%w: 结算月份格式应为 YYYY-MM", ErrValidation)
	}
	return s.settlementRepo.Summarize(ctx, month)
}

// 编码撞号时的换号重试次数
const maxCodeRetries = 3

// Generate 为指定业务员/月份生成结算单
// 同一业务员同一月份已存在非 rejected 结算单时返回 ErrDuplicateSettlement；
// 并发窗口由部分唯一索引兜底，唯一键冲突同样归一为 ErrDuplicateSettlement。
// 手工路径允许没有可结算记录，生成全零的草稿结算单
func (s *SettlementService) Generate(ctx context.Context, req *GenerateRequest, createdBy string) (*entity.Settlement, error) {
	if !monthPattern.MatchString(req.SettlementMonth) {
		return nil, fmt.Errorf("%w: 结算月份格式应为 YYYY-MM", ErrValidation)
	}
	if strings.TrimSpace(req.SalespersonID) == "" {
		return nil, fmt.Errorf("%w: 业务员ID不能为空", ErrValidation)
	}

	var settlement *entity.Settlement
	var err error
	for attempt := 0; attempt < maxCodeRetries; attempt++ {
		settlement, err = s.generateOnce(ctx, req, createdBy)
		// 并发取到同一编码时换号重试，其余错误直接返回
		if err == nil || !isDuplicateOf(err, "settlement_code") {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (s *SettlementService) generateOnce(ctx context.Context, req *GenerateRequest, createdBy string) (*entity.Settlement, error) {
	var settlement *entity.Settlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.settlementRepo.ExistsActive(ctx, tx, req.SalespersonID, req.SettlementMonth)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: 业务员 %s 在 %s 已有结算单", ErrDuplicateSettlement, req.SalespersonID, req.SettlementMonth)
		}

		commissions, err := s.recordRepo.FindUnsettledCommissions(ctx, tx, req.SalespersonID, req.SettlementMonth)
		if err != nil {
			return err
		}
		penalties, err := s.recordRepo.FindUnsettledPenalties(ctx, tx, req.SalespersonID, req.SettlementMonth)
		if err != nil {
			return err
		}
		// 手工生成允许无记录，产出全零结算单；批量路径只遍历有未结算记录的业务员
		code, err := s.settlementRepo.GenerateCode(ctx, tx)
		if err != nil {
			return err
		}

		settlement = buildSettlement(code, req, commissions, penalties, createdBy)
		if settlement.NetAmount < 0 {
			s.logger.Warn("结算单净额为负",
				zap.String("settlement_code", code),
				zap.String("salesperson_id", req.SalespersonID),
				zap.Float64("net_amount", settlement.NetAmount))
		}

		if err := s.settlementRepo.Create(ctx, tx, settlement); err != nil {
			if isDuplicateOf(err, "uniq_settlement_person_month") {
				return fmt.Errorf("%w: 业务员 %s 在 %s 已有结算单", ErrDuplicateSettlement, req.SalespersonID, req.SettlementMonth)
			}
			return err
		}
		return s.recordRepo.AttachToSettlement(ctx, tx, settlement.ID, req.SalespersonID, req.SettlementMonth)
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// AutoGenerateResult 批量生成的结果
type AutoGenerateResult struct {
	SettlementMonth string              `json:"settlement_month"`
	GeneratedCount  int                 `json:"generated_count"`
	SkippedCount    int                 `json:"skipped_count"`
	Settlements     []entity.Settlement `json:"settlements"`
	Skipped         []SkippedItem       `json:"skipped,omitempty"`
}

// SkippedItem 被跳过的业务员及原因
type SkippedItem struct {
	SalespersonID string `json:"salesperson_id"`
	Reason        string `json:"reason"`
}

// AutoGenerate 月度批量生成：为该月所有有未结算记录的业务员各生成一张结算单
// 已有结算单的业务员跳过，重复执行不产生重复结算单
func (s *SettlementService) AutoGenerate(ctx context.Context, month, createdBy string) (*AutoGenerateResult, error) {
	if !monthPattern.MatchString(month) {
		return nil, fmt.Errorf("%w: 结算月份格式应为 YYYY-MM", ErrValidation)
	}

	salespeople, err := s.recordRepo.FindUnsettledSalespeople(ctx, month)
	if err != nil {
		return nil, err
	}

	result := &AutoGenerateResult{SettlementMonth: month, Settlements: []entity.Settlement{}}
	for _, salespersonID := range salespeople {
		settlement, err := s.Generate(ctx, &GenerateRequest{
			SalespersonID:   salespersonID,
			SettlementMonth: month,
		}, createdBy)
		if err != nil {
			result.SkippedCount++
			result.Skipped = append(result.Skipped, SkippedItem{
				SalespersonID: salespersonID,
				Reason:        err.Error(),
			})
			if !errors.Is(err, ErrDuplicateSettlement) && !errors.Is(err, ErrValidation) {
				s.logger.Error("批量生成结算单失败",
					zap.String("salesperson_id", salespersonID),
					zap.String("month", month),
					zap.Error(err))
			}
			continue
		}
		result.GeneratedCount++
		result.Settlements = append(result.Settlements, *settlement)
	}
	return result, nil
}

// Submit 提交审批 draft -> pending
func (s *SettlementService) Submit(ctx context.Context, id string) (*entity.Settlement, error) {
	now := time.Now()
	affected, err := s.settlementRepo.UpdateStatusFrom(ctx, nil, id, entity.SettlementStatusDraft, map[string]interface{}{
		"status":      entity.SettlementStatusPending,
		"submit_time": &now,
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, s.transitionFailure(ctx, id, entity.SettlementStatusPending)
	}
	return s.settlementRepo.FindByID(ctx, id)
}

// BatchSubmitResult 批量提交的结果
type BatchSubmitResult struct {
	SucceededCount int      `json:"succeeded_count"`
	FailedCount    int      `json:"failed_count"`
	Failed         []string `json:"failed,omitempty"` // 失败的结算单ID
}

// BatchSubmit 批量提交审批，单个失败不影响其余
func (s *SettlementService) BatchSubmit(ctx context.Context, ids []string) (*BatchSubmitResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: 结算单ID列表不能为空", ErrValidation)
	}
	result := &BatchSubmitResult{}
	for _, id := range ids {
		if _, err := s.Submit(ctx, id); err != nil {
			result.FailedCount++
			result.Failed = append(result.Failed, id)
			s.logger.Warn("批量提交失败", zap.String("settlement_id", id), zap.Error(err))
			continue
		}
		result.SucceededCount++
	}
	return result, nil
}

// Approve 审批通过 pending -> approved，必须填写审批意见，同一事务内开具应付凭证
// 凭证开具失败时整体回滚，结算单停留在 pending
func (s *SettlementService) Approve(ctx context.Context, id string, reviewer Reviewer, comment string) (*entity.Settlement, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("%w: 审批必须填写意见", ErrValidation)
	}

	current, err := s.settlementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		affected, err := s.settlementRepo.UpdateStatusFrom(ctx, tx, id, entity.SettlementStatusPending, map[string]interface{}{
			"status":         entity.SettlementStatusApproved,
			"reviewer_id":    reviewer.ID,
			"reviewer_name":  reviewer.Name,
			"review_time":    &now,
			"review_comment": comment,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return s.transitionFailure(ctx, id, entity.SettlementStatusApproved)
		}

		voucher, err := s.finance.CreatePayable(ctx, tx, &finance.PayableRequest{
			Amount:     current.NetAmount,
			SourceType: "commission_settlement",
			SourceID:   id,
			PayeeID:    current.SalespersonID,
			PayeeName:  current.SalespersonName,
			Summary:    fmt.Sprintf("%s %s月提成结算", current.SalespersonName, current.SettlementMonth),
			CreatedBy:  reviewer.ID,
		})
		if err != nil {
			return fmt.Errorf("%w: 开具应付凭证失败: %v", ErrExternalService, err)
		}

		return tx.Model(&entity.Settlement{}).
			Where("id = ?", id).
			Update("financial_voucher_id", voucher.ID).Error
	})
	if err != nil {
		return nil, err
	}

	settlement, err := s.settlementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.sendResultCard(settlement, "approved", comment)
	return settlement, nil
}

// Reject 驳回 pending -> rejected，必须填写驳回原因
// 驳回同时释放挂在该结算单下的记录，修正后可重新生成
func (s *SettlementService) Reject(ctx context.Context, id string, reviewer Reviewer, comment string) (*entity.Settlement, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("%w: 驳回必须填写原因", ErrValidation)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		affected, err := s.settlementRepo.UpdateStatusFrom(ctx, tx, id, entity.SettlementStatusPending, map[string]interface{}{
			"status":         entity.SettlementStatusRejected,
			"reviewer_id":    reviewer.ID,
			"reviewer_name":  reviewer.Name,
			"review_time":    &now,
			"review_comment": comment,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return s.transitionFailure(ctx, id, entity.SettlementStatusRejected)
		}

		// 释放记录，重新生成时可再次归集
		if err := tx.Model(&entity.CommissionRecord{}).
			Where("settlement_id = ?", id).
			Update("settlement_id", nil).Error; err != nil {
			return err
		}
		return tx.Model(&entity.PenaltyRecord{}).
			Where("settlement_id = ?", id).
			Update("settlement_id", nil).Error
	})
	if err != nil {
		return nil, err
	}

	settlement, err := s.settlementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.sendResultCard(settlement, "rejected", comment)
	return settlement, nil
}

// MarkPaid 发放完成 approved -> paid，同时核销财务凭证
func (s *SettlementService) MarkPaid(ctx context.Context, id string) (*entity.Settlement, error) {
	current, err := s.settlementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		affected, err := s.settlementRepo.UpdateStatusFrom(ctx, tx, id, entity.SettlementStatusApproved, map[string]interface{}{
			"status":    entity.SettlementStatusPaid,
			"paid_time": &now,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return s.transitionFailure(ctx, id, entity.SettlementStatusPaid)
		}

		if current.FinancialVoucherID != nil {
			if err := s.finance.MarkPaid(ctx, tx, *current.FinancialVoucherID); err != nil {
				return fmt.Errorf("%w: 核销财务凭证失败: %v", ErrExternalService, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.settlementRepo.FindByID(ctx, id)
}

// Export 导出某月结算单 Excel
func (s *SettlementService) Export(ctx context.Context, month string) (*excelize.File, error) {
	if !monthPattern.MatchString(month) {
		return nil, fmt.Errorf("%w: 结算月份格式应为 YYYY-MM", ErrValidation)
	}

	settlements, _, err := s.settlementRepo.FindAll(ctx, 1, 1000, map[string]string{"month": month})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "结算单"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"结算单号", "业务员", "结算月份", "状态", "奖励笔数", "奖励合计", "处罚笔数", "处罚合计", "净额", "审批人", "审批意见"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, item := range settlements {
		values := []interface{}{
			item.SettlementCode,
			item.SalespersonName,
			item.SettlementMonth,
			item.Status,
			item.RewardRecordCount,
			item.TotalReward,
			item.PenaltyRecordCount,
			item.TotalPenalty,
			item.NetAmount,
			item.ReviewerName,
			item.ReviewComment,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return f, nil
}

// transitionFailure 守卫更新未命中时，回查当前状态给出准确的错误
func (s *SettlementService) transitionFailure(ctx context.Context, id, requested string) error {
	current, err := s.settlementRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return NewStateTransitionError(current.Status, requested)
}

func (s *SettlementService) sendResultCard(settlement *entity.Settlement, result, comment string) {
	card := notify.NewSettlementResultCard(
		settlement.SettlementCode,
		settlement.SalespersonName,
		result,
		comment,
		settlement.NetAmount,
	)
	// 通知尽力而为，不阻塞审批主流程
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.notifier.Send(ctx, card)
	}()
}

// buildSettlement 汇总记录生成结算单
// 试行期处罚记录照常挂单，但金额按0计入合计
func buildSettlement(code string, req *GenerateRequest, commissions []entity.CommissionRecord, penalties []entity.PenaltyRecord, createdBy string) *entity.Settlement {
	totalReward := decimal.Zero
	for _, r := range commissions {
		totalReward = totalReward.Add(decimal.NewFromFloat(r.CommissionAmount))
	}

	totalPenalty := decimal.Zero
	for _, p := range penalties {
		if p.IsTrialPeriod {
			continue
		}
		totalPenalty = totalPenalty.Add(decimal.NewFromFloat(p.TotalPenalty))
	}

	return &entity.Settlement{
		ID:                 uuid.New().String()[:32],
		SettlementCode:     code,
		SalespersonID:      req.SalespersonID,
		SalespersonName:    req.SalespersonName,
		SettlementMonth:    req.SettlementMonth,
		Status:             entity.SettlementStatusDraft,
		RewardRecordCount:  len(commissions),
		TotalReward:        round2(totalReward),
		PenaltyRecordCount: len(penalties),
		TotalPenalty:       round2(totalPenalty),
		NetAmount:          round2(totalReward.Sub(totalPenalty)),
		CreatedBy:          createdBy,
	}
}

// isDuplicateOf 判断唯一键冲突是否来自指定约束
// Postgres 的冲突错误信息携带约束名，据此区分人月部分唯一索引与编码唯一索引
func isDuplicateOf(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) && !strings.Contains(err.Error(), "duplicate key") {
		return false
	}
	return strings.Contains(err.Error(), constraint)
}
