package service

import (
	"context"
	"errors"
	"testing"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/testutil"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/finance"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/shared/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func settlementTestService(t *testing.T) (*SettlementService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	financeSvc := finance.NewService(db)
	notifier := notify.NewNotifier("", 0, zap.NewNop())
	svc := NewSettlementService(db, repos.Settlement, repos.Record, financeSvc, notifier, zap.NewNop())
	return svc, db
}

func TestGenerateSettlement(t *testing.T) {
	svc, db := settlementTestService(t)
	ctx := context.Background()

	testutil.SeedCommissionRecord(t, db, "cr-001", "sp-001", "2026-05", 700)
	testutil.SeedCommissionRecord(t, db, "cr-002", "sp-001", "2026-05", 500)
	testutil.SeedPenaltyRecord(t, db, "pr-001", "sp-001", "2026-05", 300, false)
	// 试行期处罚：挂单但金额按0计
	testutil.SeedPenaltyRecord(t, db, "pr-002", "sp-001", "2026-05", 999, true)

	settlement, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID:   "sp-001",
		SalespersonName: "张三",
		SettlementMonth: "2026-05",
	}, "admin-001")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if settlement.TotalReward != 1200 {
		t.Errorf("TotalReward = %v, want 1200", settlement.TotalReward)
	}
	if settlement.TotalPenalty != 300 {
		t.Errorf("TotalPenalty = %v, want 300 (trial record excluded)", settlement.TotalPenalty)
	}
	if settlement.NetAmount != 900 {
		t.Errorf("NetAmount = %v, want 900", settlement.NetAmount)
	}
	if settlement.Status != entity.SettlementStatusDraft {
		t.Errorf("Status = %s, want draft", settlement.Status)
	}
	if settlement.RewardRecordCount != 2 || settlement.PenaltyRecordCount != 2 {
		t.Errorf("record counts = %d/%d, want 2/2", settlement.RewardRecordCount, settlement.PenaltyRecordCount)
	}

	// 记录已挂到结算单
	var attached int64
	db.Model(&entity.CommissionRecord{}).
		Where("settlement_id = ?", settlement.ID).
		Count(&attached)
	if attached != 2 {
		t.Errorf("attached commission records = %d, want 2", attached)
	}
}

func TestGenerateDuplicateSettlement(t *testing.T) {
	svc, db := settlementTestService(t)
	ctx := context.Background()

	testutil.SeedCommissionRecord(t, db, "cr-dup-001", "sp-001", "2026-05", 500)

	if _, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-001", SettlementMonth: "2026-05",
	}, "admin-001"); err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}

	testutil.SeedCommissionRecord(t, db, "cr-dup-002", "sp-001", "2026-05", 200)
	_, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-001", SettlementMonth: "2026-05",
	}, "admin-001")
	if !errors.Is(err, ErrDuplicateSettlement) {
		t.Fatalf("expected ErrDuplicateSettlement, got %v", err)
	}

	// 其他月份不受影响
	testutil.SeedCommissionRecord(t, db, "cr-dup-003", "sp-001", "2026-06", 100)
	if _, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-001", SettlementMonth: "2026-06",
	}, "admin-001"); err != nil {
		t.Fatalf("Generate for another month failed: %v", err)
	}
}

func TestGenerateValidation(t *testing.T) {
	svc, _ := settlementTestService(t)
	ctx := context.Background()

	// 月份格式错误
	_, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-001", SettlementMonth: "202605",
	}, "admin-001")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad month, got %v", err)
	}

	// 业务员ID为空
	_, err = svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "", SettlementMonth: "2026-05",
	}, "admin-001")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty salesperson, got %v", err)
	}
}

func TestGenerateWithoutRecords(t *testing.T) {
	svc, _ := settlementTestService(t)
	ctx := context.Background()

	// 手工路径允许无记录，生成全零草稿
	settlement, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-empty", SalespersonName: "王五", SettlementMonth: "2026-05",
	}, "admin-001")
	if err != nil {
		t.Fatalf("Generate without records failed: %v", err)
	}
	if settlement.Status != entity.SettlementStatusDraft {
		t.Errorf("Status = %s, want draft", settlement.Status)
	}
	if settlement.TotalReward != 0 || settlement.TotalPenalty != 0 || settlement.NetAmount != 0 {
		t.Errorf("amounts = %v/%v/%v, want all zero",
			settlement.TotalReward, settlement.TotalPenalty, settlement.NetAmount)
	}
	if settlement.RewardRecordCount != 0 || settlement.PenaltyRecordCount != 0 {
		t.Errorf("record counts = %d/%d, want 0/0",
			settlement.RewardRecordCount, settlement.PenaltyRecordCount)
	}

	// 全零结算单同样占用人月唯一位
	_, err = svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-empty", SettlementMonth: "2026-05",
	}, "admin-001")
	if !errors.Is(err, ErrDuplicateSettlement) {
		t.Fatalf("expected ErrDuplicateSettlement, got %v", err)
	}
}

func TestDuplicateKeyClassification(t *testing.T) {
	personMonth := errors.New(`ERROR: duplicate key value violates unique constraint "uniq_settlement_person_month" (SQLSTATE 23505)`)
	code := errors.New(`ERROR: duplicate key value violates unique constraint "idx_commission_settlements_settlement_code" (SQLSTATE 23505)`)
	other := errors.New("connection refused")

	if !isDuplicateOf(personMonth, "uniq_settlement_person_month") {
		t.Error("person/month conflict should match its constraint")
	}
	if isDuplicateOf(personMonth, "settlement_code") {
		t.Error("person/month conflict should not match the code constraint")
	}
	if !isDuplicateOf(code, "settlement_code") {
		t.Error("code conflict should match the code constraint")
	}
	if isDuplicateOf(other, "settlement_code") || isDuplicateOf(nil, "settlement_code") {
		t.Error("non-duplicate errors should never match")
	}
}

func TestAutoGenerateIdempotent(t *testing.T) {
	svc, db := settlementTestService(t)
	ctx := context.Background()

	testutil.SeedCommissionRecord(t, db, "cr-auto-001", "sp-001", "2026-05", 500)
	testutil.SeedCommissionRecord(t, db, "cr-auto-002", "sp-002", "2026-05", 800)
	testutil.SeedPenaltyRecord(t, db, "pr-auto-001", "sp-003", "2026-05", 100, false)

	result, err := svc.AutoGenerate(ctx, "2026-05", "admin-001")
	if err != nil {
		t.Fatalf("AutoGenerate failed: %v", err)
	}
	// 只有处罚记录的业务员也要生成（负净额）
	if result.GeneratedCount != 3 {
		t.Fatalf("GeneratedCount = %d, want 3", result.GeneratedCount)
	}

	// 二次执行不重复生成
	result2, err := svc.AutoGenerate(ctx, "2026-05", "admin-001")
	if err != nil {
		t.Fatalf("second AutoGenerate failed: %v", err)
	}
	if result2.GeneratedCount != 0 {
		t.Errorf("second run GeneratedCount = %d, want 0", result2.GeneratedCount)
	}
}

func TestSettlementLifecycle(t *testing.T) {
	svc, db := settlementTestService(t)
	ctx := context.Background()

	testutil.SeedCommissionRecord(t, db, "cr-life-001", "sp-001", "2026-05", 1000)
	settlement, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-001", SalespersonName: "张三", SettlementMonth: "2026-05",
	}, "admin-001")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// draft -> pending
	submitted, err := svc.Submit(ctx, settlement.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submitted.Status != entity.SettlementStatusPending {
		t.Errorf("Status = %s, want pending", submitted.Status)
	}
	if submitted.SubmitTime == nil {
		t.Error("SubmitTime should be set")
	}

	// 重复提交被守卫拦下
	if _, err := svc.Submit(ctx, settlement.ID); err == nil {
		t.Fatal("second Submit should fail")
	} else {
		var transitionErr *StateTransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("expected StateTransitionError, got %v", err)
		}
	}

	// 审批必须填写意见
	reviewer := Reviewer{ID: "mgr-001", Name: "李经理"}
	if _, err := svc.Approve(ctx, settlement.ID, reviewer, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty approve comment, got %v", err)
	}

	// pending -> approved，同时开具凭证
	approved, err := svc.Approve(ctx, settlement.ID, reviewer, "核对无误")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != entity.SettlementStatusApproved {
		t.Errorf("Status = %s, want approved", approved.Status)
	}
	if approved.FinancialVoucherID == nil {
		t.Fatal("FinancialVoucherID should be set after approve")
	}
	var voucher finance.Voucher
	if err := db.Where("id = ?", *approved.FinancialVoucherID).First(&voucher).Error; err != nil {
		t.Fatalf("voucher not found: %v", err)
	}
	if voucher.Amount != 1000 {
		t.Errorf("voucher amount = %v, want 1000", voucher.Amount)
	}

	// 重复审批被拦下
	if _, err := svc.Approve(ctx, settlement.ID, reviewer, "再次审批"); err == nil {
		t.Fatal("second Approve should fail")
	}

	// approved -> paid，核销凭证
	paid, err := svc.MarkPaid(ctx, settlement.ID)
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if paid.Status != entity.SettlementStatusPaid {
		t.Errorf("Status = %s, want paid", paid.Status)
	}
	if paid.PaidTime == nil {
		t.Error("PaidTime should be set")
	}
	db.Where("id = ?", *approved.FinancialVoucherID).First(&voucher)
	if voucher.Status != finance.VoucherStatusPaid {
		t.Errorf("voucher status = %s, want paid", voucher.Status)
	}
}

func TestRejectReleasesRecords(t *testing.T) {
	svc, db := settlementTestService(t)
	ctx := context.Background()

	testutil.SeedCommissionRecord(t, db, "cr-rej-001", "sp-001", "2026-05", 400)
	settlement, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-001", SettlementMonth: "2026-05",
	}, "admin-001")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := svc.Submit(ctx, settlement.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	reviewer := Reviewer{ID: "mgr-001", Name: "李经理"}

	// 驳回必须填写原因
	if _, err := svc.Reject(ctx, settlement.ID, reviewer, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty comment, got %v", err)
	}

	rejected, err := svc.Reject(ctx, settlement.ID, reviewer, "金额有误")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != entity.SettlementStatusRejected {
		t.Errorf("Status = %s, want rejected", rejected.Status)
	}

	// 记录已释放，可重新生成
	var unsettled int64
	db.Model(&entity.CommissionRecord{}).
		Where("salesperson_id = ? AND record_month = ? AND settlement_id IS NULL", "sp-001", "2026-05").
		Count(&unsettled)
	if unsettled != 1 {
		t.Fatalf("unsettled records after reject = %d, want 1", unsettled)
	}

	regenerated, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-001", SettlementMonth: "2026-05",
	}, "admin-001")
	if err != nil {
		t.Fatalf("regenerate after reject failed: %v", err)
	}
	if regenerated.TotalReward != 400 {
		t.Errorf("regenerated TotalReward = %v, want 400", regenerated.TotalReward)
	}

	// 驳回是终态：不能再提交
	if _, err := svc.Submit(ctx, settlement.ID); err == nil {
		t.Fatal("Submit on rejected settlement should fail")
	}
}

func TestMarkPaidGuard(t *testing.T) {
	svc, db := settlementTestService(t)
	ctx := context.Background()

	testutil.SeedCommissionRecord(t, db, "cr-paid-001", "sp-001", "2026-05", 100)
	settlement, err := svc.Generate(ctx, &GenerateRequest{
		SalespersonID: "sp-001", SettlementMonth: "2026-05",
	}, "admin-001")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// draft 不能直接发放
	_, err = svc.MarkPaid(ctx, settlement.ID)
	var transitionErr *StateTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected StateTransitionError, got %v", err)
	}
	if transitionErr.Current != entity.SettlementStatusDraft {
		t.Errorf("transition error current = %s, want draft", transitionErr.Current)
	}
}

func TestBatchSubmit(t *testing.T) {
	svc, db := settlementTestService(t)
	ctx := context.Background()

	testutil.SeedCommissionRecord(t, db, "cr-bat-001", "sp-001", "2026-05", 100)
	testutil.SeedCommissionRecord(t, db, "cr-bat-002", "sp-002", "2026-05", 200)
	s1, _ := svc.Generate(ctx, &GenerateRequest{SalespersonID: "sp-001", SettlementMonth: "2026-05"}, "admin-001")
	s2, _ := svc.Generate(ctx, &GenerateRequest{SalespersonID: "sp-002", SettlementMonth: "2026-05"}, "admin-001")

	// 其中一张已提交，批量提交时会失败但不影响其余
	if _, err := svc.Submit(ctx, s2.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	result, err := svc.BatchSubmit(ctx, []string{s1.ID, s2.ID, "nonexistent"})
	if err != nil {
		t.Fatalf("BatchSubmit failed: %v", err)
	}
	if result.SucceededCount != 1 {
		t.Errorf("SucceededCount = %d, want 1", result.SucceededCount)
	}
	if result.FailedCount != 2 {
		t.Errorf("FailedCount = %d, want 2", result.FailedCount)
	}
}

func TestMonthSummary(t *testing.T) {
	svc, db := settlementTestService(t)
	ctx := context.Background()

	testutil.SeedCommissionRecord(t, db, "cr-sum-001", "sp-001", "2026-05", 1000)
	testutil.SeedCommissionRecord(t, db, "cr-sum-002", "sp-002", "2026-05", 2000)
	s1, _ := svc.Generate(ctx, &GenerateRequest{SalespersonID: "sp-001", SettlementMonth: "2026-05"}, "admin-001")
	svc.Generate(ctx, &GenerateRequest{SalespersonID: "sp-002", SettlementMonth: "2026-05"}, "admin-001")
	svc.Submit(ctx, s1.ID)

	summary, err := svc.Summarize(ctx, "2026-05")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", summary.TotalCount)
	}
	if summary.DraftCount != 1 || summary.PendingCount != 1 {
		t.Errorf("counts draft=%d pending=%d, want 1/1", summary.DraftCount, summary.PendingCount)
	}
	if summary.TotalReward != 3000 {
		t.Errorf("TotalReward = %v, want 3000", summary.TotalReward)
	}
}
