package handler

import (
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/service"
	"github.com/gin-gonic/gin"
)

// PenaltyRuleHandler 处罚规则接口
type PenaltyRuleHandler struct {
	svc *service.PenaltyRuleService
}

func NewPenaltyRuleHandler(svc *service.PenaltyRuleService) *PenaltyRuleHandler {
	return &PenaltyRuleHandler{svc: svc}
}

// List 处罚规则列表
// GET /api/v1/commission/penalty-rules?penalty_type=&is_active=
func (h *PenaltyRuleHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"penalty_type": c.Query("penalty_type"),
		"is_active":    c.Query("is_active"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取处罚规则列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items":      items,
		"pagination": paginationOf(page, pageSize, total),
	})
}

// Get 处罚规则详情
// GET /api/v1/commission/penalty-rules/:id
func (h *PenaltyRuleHandler) Get(c *gin.Context) {
	rule, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, rule)
}

// Create 创建处罚规则
// POST /api/v1/commission/penalty-rules
func (h *PenaltyRuleHandler) Create(c *gin.Context) {
	var req service.PenaltyRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rule, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, rule)
}

// Update 更新处罚规则
// PUT /api/v1/commission/penalty-rules/:id
func (h *PenaltyRuleHandler) Update(c *gin.Context) {
	var req service.PenaltyRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rule, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, rule)
}

// Delete 删除处罚规则
// DELETE /api/v1/commission/penalty-rules/:id
func (h *PenaltyRuleHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "处罚规则已删除"})
}

// Activate 启用处罚规则
// POST /api/v1/commission/penalty-rules/:id/activate
func (h *PenaltyRuleHandler) Activate(c *gin.Context) {
	if err := h.svc.SetActive(c.Request.Context(), c.Param("id"), true); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "处罚规则已启用"})
}

// Deactivate 停用处罚规则
// POST /api/v1/commission/penalty-rules/:id/deactivate
func (h *PenaltyRuleHandler) Deactivate(c *gin.Context) {
	if err := h.svc.SetActive(c.Request.Context(), c.Param("id"), false); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "处罚规则已停用"})
}
