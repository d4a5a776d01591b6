package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/repository"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/scheme"
	"github.com/FrankZheng1985/sysafari-logistics-sub002/internal/commission/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Rule        *RuleHandler
	PenaltyRule *PenaltyRuleHandler
	Record      *RecordHandler
	Settlement  *SettlementHandler
	Scheme      *SchemeHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Rule:        NewRuleHandler(svc.Rule),
		PenaltyRule: NewPenaltyRuleHandler(svc.PenaltyRule),
		Record:      NewRecordHandler(svc.Evaluator),
		Settlement:  NewSettlementHandler(svc.Settlement),
		Scheme:      NewSchemeHandler(svc.Scheme),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ServiceError 把服务层错误翻译为统一响应
func ServiceError(c *gin.Context, err error) {
	var transitionErr *service.StateTransitionError
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidRuleConfig):
		BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrDuplicateSettlement):
		Conflict(c, err.Error())
	case errors.As(err, &transitionErr):
		Conflict(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetUserName 从上下文获取用户名
func GetUserName(c *gin.Context) string {
	userName, _ := c.Get("user_name")
	if name, ok := userName.(string); ok {
		return name
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func paginationOf(page, pageSize int, total int64) *Pagination {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      int(total),
		TotalPages: totalPages,
	}
}

// ============================================================
// Scheme Handler
// ============================================================

type SchemeHandler struct {
	calc *scheme.Calculator
}

func NewSchemeHandler(calc *scheme.Calculator) *SchemeHandler {
	return &SchemeHandler{calc: calc}
}

// Status 方案当前阶段
// GET /api/v1/commission/scheme/status
func (h *SchemeHandler) Status(c *gin.Context) {
	at := time.Now()
	if v := c.Query("at"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			BadRequest(c, "at 参数格式应为 YYYY-MM-DD")
			return
		}
		at = parsed
	}
	Success(c, h.calc.StatusAt(at))
}
