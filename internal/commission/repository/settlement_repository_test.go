package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/entity"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/testutil"
)

func seedSettlement(t *testing.T, repo *SettlementRepository, id, salespersonID, month, status string) *entity.Settlement {
	t.Helper()
	s := &entity.Settlement{
		ID:              id,
		SettlementCode:  "CS-TEST-" + id,
		SalespersonID:   salespersonID,
		SettlementMonth: month,
		Status:          status,
		CreatedAt:       time.Now(),
	}
	if err := repo.Create(context.Background(), nil, s); err != nil {
		t.Fatalf("seed settlement failed: %v", err)
	}
	return s
}

func TestExistsActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()

	seedSettlement(t, repo, "st-001", "sp-001", "2026-05", entity.SettlementStatusDraft)

	exists, err := repo.ExistsActive(ctx, nil, "sp-001", "2026-05")
	if err != nil {
		t.Fatalf("ExistsActive failed: %v", err)
	}
	if !exists {
		t.Error("draft settlement should count as active")
	}

	// rejected 不算占位
	seedSettlement(t, repo, "st-002", "sp-002", "2026-05", entity.SettlementStatusRejected)
	exists, err = repo.ExistsActive(ctx, nil, "sp-002", "2026-05")
	if err != nil {
		t.Fatalf("ExistsActive failed: %v", err)
	}
	if exists {
		t.Error("rejected settlement should not count as active")
	}
}

func TestPartialUniqueIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()

	seedSettlement(t, repo, "st-idx-001", "sp-001", "2026-05", entity.SettlementStatusDraft)

	// 同人同月再插一张非 rejected 的，索引拦下
	dup := &entity.Settlement{
		ID:              "st-idx-002",
		SettlementCode:  "CS-TEST-st-idx-002",
		SalespersonID:   "sp-001",
		SettlementMonth: "2026-05",
		Status:          entity.SettlementStatusDraft,
	}
	err := repo.Create(ctx, nil, dup)
	if err == nil {
		t.Fatal("expected unique index violation")
	}
	if !strings.Contains(err.Error(), "duplicate key") {
		t.Errorf("unexpected error: %v", err)
	}

	// rejected 的不受索引约束
	rejected := &entity.Settlement{
		ID:              "st-idx-003",
		SettlementCode:  "CS-TEST-st-idx-003",
		SalespersonID:   "sp-001",
		SettlementMonth: "2026-05",
		Status:          entity.SettlementStatusRejected,
	}
	if err := repo.Create(ctx, nil, rejected); err != nil {
		t.Fatalf("rejected settlement should not conflict: %v", err)
	}
}

func TestUpdateStatusFromGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()

	seedSettlement(t, repo, "st-guard-001", "sp-001", "2026-05", entity.SettlementStatusDraft)

	// 前置状态匹配，命中1行
	affected, err := repo.UpdateStatusFrom(ctx, nil, "st-guard-001", entity.SettlementStatusDraft,
		map[string]interface{}{"status": entity.SettlementStatusPending})
	if err != nil {
		t.Fatalf("UpdateStatusFrom failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}

	// 状态已变，再按旧前置状态更新命中0行
	affected, err = repo.UpdateStatusFrom(ctx, nil, "st-guard-001", entity.SettlementStatusDraft,
		map[string]interface{}{"status": entity.SettlementStatusPending})
	if err != nil {
		t.Fatalf("UpdateStatusFrom failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("affected = %d, want 0 (stale precondition)", affected)
	}
}

func TestGenerateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()

	code, err := repo.GenerateCode(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	wantPrefix := "CS-" + time.Now().Format("200601") + "-"
	if !strings.HasPrefix(code, wantPrefix) {
		t.Errorf("code = %s, want prefix %s", code, wantPrefix)
	}
	if !strings.HasSuffix(code, "0001") {
		t.Errorf("first code = %s, want suffix 0001", code)
	}
}

func TestGenerateCodeSkipsGaps(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()

	prefix := "CS-" + time.Now().Format("200601")
	seeds := []struct{ id, code, salespersonID string }{
		{"st-gap-001", prefix + "-0001", "sp-001"},
		{"st-gap-002", prefix + "-0003", "sp-002"},
	}
	for _, seed := range seeds {
		s := &entity.Settlement{
			ID:              seed.id,
			SettlementCode:  seed.code,
			SalespersonID:   seed.salespersonID,
			SettlementMonth: "2026-05",
			Status:          entity.SettlementStatusDraft,
		}
		if err := repo.Create(ctx, nil, s); err != nil {
			t.Fatalf("seed settlement failed: %v", err)
		}
	}

	// 编号按最大序号递增，空洞不会导致撞号
	code, err := repo.GenerateCode(ctx, nil)
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if code != prefix+"-0004" {
		t.Errorf("code = %s, want %s", code, prefix+"-0004")
	}
}
