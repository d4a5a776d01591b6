package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 请求参数校验失败（如驳回意见为空）
	ErrValidation = errors.New("validation failed")

	// ErrInvalidRuleConfig 规则被停用或缺少该类型必需的字段
	ErrInvalidRuleConfig = errors.New("invalid rule config")

	// ErrDuplicateSettlement 该业务员该月已存在未驳回的结算单
	ErrDuplicateSettlement = errors.New("duplicate settlement for period")

	// ErrExternalService 财务凭证等外部协作方调用失败
	ErrExternalService = errors.New("external service error")
)

// StateTransitionError 状态迁移被拒绝（含并发竞争落败的情况）
type StateTransitionError struct {
	Current   string
	Requested string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("状态转换不允许: %s -> %s", e.Current, e.Requested)
}

// NewStateTransitionError 构造状态迁移错误
func NewStateTransitionError(current, requested string) *StateTransitionError {
	return &StateTransitionError{Current: current, Requested: requested}
}
