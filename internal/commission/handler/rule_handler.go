package handler

import (
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/service"
	"github.com/gin-gonic/gin"
)

// RuleHandler 提成规则接口
type RuleHandler struct {
	svc *service.RuleService
}

func NewRuleHandler(svc *service.RuleService) *RuleHandler {
	return &RuleHandler{svc: svc}
}

// List 规则列表
// GET /api/v1/commission/rules?rule_type=&customer_level=&is_active=
func (h *RuleHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"rule_type":      c.Query("rule_type"),
		"customer_level": c.Query("customer_level"),
		"is_active":      c.Query("is_active"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取规则列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"items":      items,
		"pagination": paginationOf(page, pageSize, total),
	})
}

// Get 规则详情
// GET /api/v1/commission/rules/:id
func (h *RuleHandler) Get(c *gin.Context) {
	rule, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, rule)
}

// Create 创建规则
// POST /api/v1/commission/rules
func (h *RuleHandler) Create(c *gin.Context) {
	var req service.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rule, warnings, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, gin.H{
		"rule":     rule,
		"warnings": warnings,
	})
}

// Update 更新规则
// PUT /api/v1/commission/rules/:id
func (h *RuleHandler) Update(c *gin.Context) {
	var req service.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rule, warnings, err := h.svc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"rule":     rule,
		"warnings": warnings,
	})
}

// Delete 删除规则
// DELETE /api/v1/commission/rules/:id
func (h *RuleHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "规则已删除"})
}

// Activate 启用规则
// POST /api/v1/commission/rules/:id/activate
func (h *RuleHandler) Activate(c *gin.Context) {
	if err := h.svc.SetActive(c.Request.Context(), c.Param("id"), true); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "规则已启用"})
}

// Deactivate 停用规则
// POST /api/v1/commission/rules/:id/deactivate
func (h *RuleHandler) Deactivate(c *gin.Context) {
	if err := h.svc.SetActive(c.Request.Context(), c.Param("id"), false); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "规则已停用"})
}

// RemoveTier 删除阶梯（剩余阶梯自动重排编号）
// DELETE /api/v1/commission/rules/:id/tiers/:tierId
func (h *RuleHandler) RemoveTier(c *gin.Context) {
	rule, err := h.svc.RemoveTier(c.Request.Context(), c.Param("id"), c.Param("tierId"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, rule)
}
