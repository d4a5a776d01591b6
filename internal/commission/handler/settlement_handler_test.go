package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/scheme"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/service"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/testutil"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/finance"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/middleware"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/shared/notify"
	"go.uber.org/zap"
)

func setupCommissionTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	calc := scheme.NewCalculator(scheme.Config{
		StartDate:         time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		TrialPeriodMonths: 3,
		SchemeMinMonths:   6,
		SchemeMaxMonths:   12,
	})
	financeSvc := finance.NewService(db)
	notifier := notify.NewNotifier("", 0, zap.NewNop())
	services := service.NewServices(db, repos, calc, nil, financeSvc, notifier, zap.NewNop())
	h := NewHandlers(services)

	api := testutil.AuthGroup(router, "/api/v1")
	commission := api.Group("/commission")

	commission.GET("/scheme/status", h.Scheme.Status)

	rules := commission.Group("/rules")
	rules.GET("", h.Rule.List)
	rules.POST("", h.Rule.Create)
	rules.GET("/:id", h.Rule.Get)
	rules.PUT("/:id", h.Rule.Update)
	rules.DELETE("/:id", h.Rule.Delete)
	rules.POST("/:id/activate", h.Rule.Activate)
	rules.POST("/:id/deactivate", h.Rule.Deactivate)
	rules.DELETE("/:id/tiers/:tierId", h.Rule.RemoveTier)

	records := commission.Group("/records")
	records.GET("", h.Record.ListCommissions)
	records.POST("/evaluate", h.Record.Evaluate)
	records.POST("/penalty", h.Record.EvaluatePenalty)

	settlements := commission.Group("/settlements")
	settlements.GET("", h.Settlement.List)
	settlements.GET("/summary", h.Settlement.Summary)
	settlements.POST("/generate", h.Settlement.Generate)
	settlements.POST("/auto-generate", h.Settlement.AutoGenerate)
	settlements.GET("/:id", h.Settlement.Get)
	settlements.POST("/:id/submit", h.Settlement.Submit)

	review := settlements.Group("")
	review.Use(middleware.RequireRole("finance_manager"), middleware.RequirePermission("commission:review"))
	review.POST("/:id/approve", h.Settlement.Approve)
	review.POST("/:id/reject", h.Settlement.Reject)
	review.POST("/:id/paid", h.Settlement.MarkPaid)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestSettlementHTTPLifecycle(t *testing.T) {
	env := setupCommissionTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedCommissionRecord(t, env.DB, "cr-http-001", "sp-001", "2026-05", 1200)
	testutil.SeedPenaltyRecord(t, env.DB, "pr-http-001", "sp-001", "2026-05", 300, false)

	// 生成
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/commission/settlements/generate",
		map[string]interface{}{
			"salesperson_id":   "sp-001",
			"salesperson_name": "张三",
			"settlement_month": "2026-05",
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	settlementID := data["id"].(string)
	if data["net_amount"].(float64) != 900 {
		t.Errorf("net_amount = %v, want 900", data["net_amount"])
	}

	// 重复生成 → 409
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/commission/settlements/generate",
		map[string]interface{}{
			"salesperson_id":   "sp-001",
			"settlement_month": "2026-05",
		}, token)
	if w2.Code != http.StatusConflict {
		t.Fatalf("duplicate generate: expected 409, got %d: %s", w2.Code, w2.Body.String())
	}

	// 提交
	w3 := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/submit", nil, token)
	if w3.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", w3.Code, w3.Body.String())
	}

	// 空意见审批 → 400
	wEmpty := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/approve", nil, token)
	if wEmpty.Code != http.StatusBadRequest {
		t.Fatalf("approve without comment: expected 400, got %d: %s", wEmpty.Code, wEmpty.Body.String())
	}

	// 审批通过
	w4 := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/approve",
		map[string]interface{}{"comment": "核对无误"}, token)
	if w4.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w4.Code, w4.Body.String())
	}
	resp4 := testutil.ParseResponse(w4)
	data4 := resp4["data"].(map[string]interface{})
	if data4["financial_voucher_id"] == nil {
		t.Error("financial_voucher_id should be set after approve")
	}

	// 重复审批 → 409
	w5 := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/approve",
		map[string]interface{}{"comment": "再来一次"}, token)
	if w5.Code != http.StatusConflict {
		t.Fatalf("second approve: expected 409, got %d: %s", w5.Code, w5.Body.String())
	}

	// 发放
	w6 := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/paid", nil, token)
	if w6.Code != http.StatusOK {
		t.Fatalf("paid: expected 200, got %d: %s", w6.Code, w6.Body.String())
	}

	// 详情含明细记录
	w7 := testutil.DoRequest(env.Router, "GET",
		"/api/v1/commission/settlements/"+settlementID, nil, token)
	if w7.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", w7.Code, w7.Body.String())
	}
	resp7 := testutil.ParseResponse(w7)
	data7 := resp7["data"].(map[string]interface{})
	if data7["status"] != "paid" {
		t.Errorf("status = %v, want paid", data7["status"])
	}
	rewardRecords := data7["reward_records"].([]interface{})
	if len(rewardRecords) != 1 {
		t.Errorf("reward_records length = %d, want 1", len(rewardRecords))
	}
}

func TestSettlementRejectValidation(t *testing.T) {
	env := setupCommissionTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedCommissionRecord(t, env.DB, "cr-rj-001", "sp-002", "2026-05", 500)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/commission/settlements/generate",
		map[string]interface{}{
			"salesperson_id":   "sp-002",
			"settlement_month": "2026-05",
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("generate: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	settlementID := data["id"].(string)

	testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/submit", nil, token)

	// 空原因驳回 → 400
	w2 := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/reject",
		map[string]interface{}{"comment": ""}, token)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("reject without comment: expected 400, got %d: %s", w2.Code, w2.Body.String())
	}

	// 带原因驳回成功
	w3 := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/reject",
		map[string]interface{}{"comment": "金额有误"}, token)
	if w3.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", w3.Code, w3.Body.String())
	}
}

func TestSettlementGenerateEmptyHTTP(t *testing.T) {
	env := setupCommissionTest(t)
	token := testutil.DefaultTestToken()

	// 没有任何记录也能手工生成全零草稿
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/commission/settlements/generate",
		map[string]interface{}{
			"salesperson_id":   "sp-none",
			"settlement_month": "2026-06",
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("empty generate: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["net_amount"].(float64) != 0 {
		t.Errorf("net_amount = %v, want 0", data["net_amount"])
	}
	if data["status"] != "draft" {
		t.Errorf("status = %v, want draft", data["status"])
	}
}

func TestSettlementReviewPermission(t *testing.T) {
	env := setupCommissionTest(t)
	admin := testutil.DefaultTestToken()

	testutil.SeedCommissionRecord(t, env.DB, "cr-perm-001", "sp-001", "2026-05", 500)
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/commission/settlements/generate",
		map[string]interface{}{
			"salesperson_id":   "sp-001",
			"settlement_month": "2026-05",
		}, admin)
	if w.Code != http.StatusCreated {
		t.Fatalf("generate: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	settlementID := data["id"].(string)
	testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/submit", nil, admin)

	// 财务角色但缺少审批权限 → 403
	noPerm := testutil.GenerateTestToken("user-fin-001", "财务小王", "fin@example.com",
		[]string{"finance_manager"}, []string{"commission:read"})
	w2 := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/approve",
		map[string]interface{}{"comment": "核对无误"}, noPerm)
	if w2.Code != http.StatusForbidden {
		t.Fatalf("approve without permission: expected 403, got %d: %s", w2.Code, w2.Body.String())
	}

	// 角色+权限齐备可审批
	reviewer := testutil.GenerateTestToken("user-fin-002", "财务李经理", "mgr@example.com",
		[]string{"finance_manager"}, []string{"commission:review"})
	w3 := testutil.DoRequest(env.Router, "POST",
		"/api/v1/commission/settlements/"+settlementID+"/approve",
		map[string]interface{}{"comment": "核对无误"}, reviewer)
	if w3.Code != http.StatusOK {
		t.Fatalf("approve with permission: expected 200, got %d: %s", w3.Code, w3.Body.String())
	}
}

func TestSettlementAutoGenerateHTTP(t *testing.T) {
	env := setupCommissionTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedCommissionRecord(t, env.DB, "cr-ag-001", "sp-001", "2026-07", 500)
	testutil.SeedCommissionRecord(t, env.DB, "cr-ag-002", "sp-002", "2026-07", 800)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/commission/settlements/auto-generate",
		map[string]interface{}{"settlement_month": "2026-07"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("auto-generate: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["generated_count"].(float64) != 2 {
		t.Errorf("generated_count = %v, want 2", data["generated_count"])
	}

	// 幂等：再次执行生成0张
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/commission/settlements/auto-generate",
		map[string]interface{}{"settlement_month": "2026-07"}, token)
	data2 := testutil.ParseResponse(w2)["data"].(map[string]interface{})
	if data2["generated_count"].(float64) != 0 {
		t.Errorf("second generated_count = %v, want 0", data2["generated_count"])
	}

	// 汇总
	w3 := testutil.DoRequest(env.Router, "GET",
		"/api/v1/commission/settlements/summary?month=2026-07", nil, token)
	if w3.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d: %s", w3.Code, w3.Body.String())
	}
	data3 := testutil.ParseResponse(w3)["data"].(map[string]interface{})
	if data3["total_count"].(float64) != 2 {
		t.Errorf("total_count = %v, want 2", data3["total_count"])
	}
}

func TestSchemeStatusHTTP(t *testing.T) {
	env := setupCommissionTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "GET",
		"/api/v1/commission/scheme/status?at=2026-01-15", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("scheme status: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["phase"] != "penalty_trial" {
		t.Errorf("phase = %v, want penalty_trial", data["phase"])
	}

	// 未认证 → 401
	w2 := testutil.DoRequest(env.Router, "GET",
		"/api/v1/commission/scheme/status", nil, "")
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w2.Code)
	}
}
