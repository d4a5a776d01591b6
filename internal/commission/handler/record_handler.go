package handler

import (
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/service"
	"github.com/gin-gonic/gin"
)

// RecordHandler 提成/处罚记录接口，入口是规则引擎评估
type RecordHandler struct {
	svc *service.EvaluatorService
}

func NewRecordHandler(svc *service.EvaluatorService) *RecordHandler {
	return &RecordHandler{svc: svc}
}

// Evaluate 评估业务事件，生成提成记录
// POST /api/v1/commission/records/evaluate
func (h *RecordHandler) Evaluate(c *gin.Context) {
	var event service.BusinessEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	records, err := h.svc.EvaluateAll(c.Request.Context(), &event)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// EvaluatePenalty 评估违规事件，生成处罚记录
// POST /api/v1/commission/records/penalty
func (h *RecordHandler) EvaluatePenalty(c *gin.Context) {
	var incident service.Incident
	if err := c.ShouldBindJSON(&incident); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.svc.EvaluatePenalty(c.Request.Context(), &incident)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, record)
}

// ListCommissions 提成记录列表
// GET /api/v1/commission/records?salesperson_id=&month=&settled=
func (h *RecordHandler) ListCommissions(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"salesperson_id": c.Query("salesperson_id"),
		"month":          c.Query("month"),
		"settled":        c.Query("settled"),
	}

	items, total, err := h.svc.ListCommissionRecords(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取提成记录失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items":      items,
		"pagination": paginationOf(page, pageSize, total),
	})
}

// ListPenalties 处罚记录列表
// GET /api/v1/commission/records/penalties?salesperson_id=&month=&penalty_type=
func (h *RecordHandler) ListPenalties(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"salesperson_id": c.Query("salesperson_id"),
		"month":          c.Query("month"),
		"penalty_type":   c.Query("penalty_type"),
	}

	items, total, err := h.svc.ListPenaltyRecords(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取处罚记录失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items":      items,
		"pagination": paginationOf(page, pageSize, total),
	})
}

// MonthlyReward 某业务员某月奖励合计
// GET /api/v1/commission/records/monthly-reward?salesperson_id=&month=
func (h *RecordHandler) MonthlyReward(c *gin.Context) {
	salespersonID := c.Query("salesperson_id")
	month := c.Query("month")
	if salespersonID == "" || month == "" {
		BadRequest(c, "salesperson_id 和 month 不能为空")
		return
	}

	total, err := h.svc.MonthlyReward(c.Request.Context(), salespersonID, month)
	if err != nil {
		InternalError(c, "获取当月奖励合计失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"salesperson_id": salespersonID,
		"month":          month,
		"total_reward":   total,
	})
}
