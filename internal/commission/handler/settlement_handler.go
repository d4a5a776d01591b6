package handler

import (
	"fmt"
	"net/http"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/service"
	"github.com/gin-gonic/gin"
)

// SettlementHandler 结算单接口
type SettlementHandler struct {
	svc *service.SettlementService
}

func NewSettlementHandler(svc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

// List 结算单列表
// GET /api/v1/commission/settlements?salesperson_id=&month=&status=
func (h *SettlementHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"salesperson_id": c.Query("salesperson_id"),
		"month":          c.Query("month"),
		"status":         c.Query("status"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取结算单列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items":      items,
		"pagination": paginationOf(page, pageSize, total),
	})
}

// Summary 某月结算汇总
// GET /api/v1/commission/settlements/summary?month=YYYY-MM
func (h *SettlementHandler) Summary(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		BadRequest(c, "month 不能为空")
		return
	}

	summary, err := h.svc.Summarize(c.Request.Context(), month)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, summary)
}

// Get 结算单详情（含明细记录）
// GET /api/v1/commission/settlements/:id
func (h *SettlementHandler) Get(c *gin.Context) {
	settlement, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, settlement)
}

// Generate 生成结算单
// POST /api/v1/commission/settlements/generate
func (h *SettlementHandler) Generate(c *gin.Context) {
	var req service.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	settlement, err := h.svc.Generate(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, settlement)
}

// AutoGenerate 月度批量生成
// POST /api/v1/commission/settlements/auto-generate
func (h *SettlementHandler) AutoGenerate(c *gin.Context) {
	var req struct {
		SettlementMonth string `json:"settlement_month" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.AutoGenerate(c.Request.Context(), req.SettlementMonth, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

// Submit 提交审批
// POST /api/v1/commission/settlements/:id/submit
func (h *SettlementHandler) Submit(c *gin.Context) {
	settlement, err := h.svc.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, settlement)
}

// BatchSubmit 批量提交审批
// POST /api/v1/commission/settlements/batch-submit
func (h *SettlementHandler) BatchSubmit(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.BatchSubmit(c.Request.Context(), req.IDs)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, result)
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

// Approve 审批通过
// POST /api/v1/commission/settlements/:id/approve
func (h *SettlementHandler) Approve(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	reviewer := service.Reviewer{ID: GetUserID(c), Name: GetUserName(c)}
	settlement, err := h.svc.Approve(c.Request.Context(), c.Param("id"), reviewer, req.Comment)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, settlement)
}

// Reject 驳回
// POST /api/v1/commission/settlements/:id/reject
func (h *SettlementHandler) Reject(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	reviewer := service.Reviewer{ID: GetUserID(c), Name: GetUserName(c)}
	settlement, err := h.svc.Reject(c.Request.Context(), c.Param("id"), reviewer, req.Comment)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, settlement)
}

// MarkPaid 发放完成
// POST /api/v1/commission/settlements/:id/paid
func (h *SettlementHandler) MarkPaid(c *gin.Context) {
	settlement, err := h.svc.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, settlement)
}

// Export 导出某月结算单 Excel
// GET /api/v1/commission/settlements/export?month=YYYY-MM
func (h *SettlementHandler) Export(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		BadRequest(c, "month 不能为空")
		return
	}

	f, err := h.svc.Export(c.Request.Context(), month)
	if err != nil {
		ServiceError(c, err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("commission-settlements-%s.xlsx", month)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
