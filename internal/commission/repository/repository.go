package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 提成模块仓库集合
type Repositories struct {
	Rule        *RuleRepository
	PenaltyRule *PenaltyRuleRepository
	Record      *RecordRepository
	Settlement  *SettlementRepository
}

// NewRepositories 创建提成模块仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Rule:        NewRuleRepository(db),
		PenaltyRule: NewPenaltyRuleRepository(db),
		Record:      NewRecordRepository(db),
		Settlement:  NewSettlementRepository(db),
	}
}
