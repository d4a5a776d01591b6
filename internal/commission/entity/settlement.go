package entity

import "time"

// 结算单状态
const (
	SettlementStatusDraft    = "draft"
	SettlementStatusPending  = "pending"
	SettlementStatusApproved = "approved"
	SettlementStatusRejected = "rejected"
	SettlementStatusPaid     = "paid"
)

// Settlement 提成结算单
// 每个业务员每个结算月最多存在一张非 rejected 的结算单
// （部分唯一索引见 cmd/server 的迁移SQL）
type Settlement struct {
	ID              string `json:"id" gorm:"primaryKey;size:32"`
	SettlementCode  string `json:"settlement_code" gorm:"size:32;uniqueIndex;not null"`
	SalespersonID   string `json:"salesperson_id" gorm:"size:32;not null;index"`
	SalespersonName string `json:"salesperson_name" gorm:"size:100"`
	SettlementMonth string `json:"settlement_month" gorm:"size:7;not null;index"` // YYYY-MM

	Status string `json:"status" gorm:"size:20;default:draft;index"` // draft/pending/approved/rejected/paid

	// 汇总金额
	RewardRecordCount  int     `json:"reward_record_count" gorm:"default:0"`
	TotalReward        float64 `json:"total_reward" gorm:"type:decimal(15,2);default:0"`
	PenaltyRecordCount int     `json:"penalty_record_count" gorm:"default:0"`
	TotalPenalty       float64 `json:"total_penalty" gorm:"type:decimal(15,2);default:0"`
	NetAmount          float64 `json:"net_amount" gorm:"type:decimal(15,2);default:0"` // = TotalReward - TotalPenalty，允许为负

	// 审批
	SubmitTime    *time.Time `json:"submit_time"`
	ReviewerID    string     `json:"reviewer_id" gorm:"size:32"`
	ReviewerName  string     `json:"reviewer_name" gorm:"size:100"`
	ReviewTime    *time.Time `json:"review_time"`
	ReviewComment string     `json:"review_comment" gorm:"type:text"`

	// 财务凭证，审批通过后写入
	FinancialVoucherID *string `json:"financial_voucher_id" gorm:"size:32"`
	PaidTime           *time.Time `json:"paid_time"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联明细
	RewardRecords  []CommissionRecord `json:"reward_records,omitempty" gorm:"foreignKey:SettlementID"`
	PenaltyRecords []PenaltyRecord    `json:"penalty_records,omitempty" gorm:"foreignKey:SettlementID"`
}

func (Settlement) TableName() string {
	return "commission_settlements"
}

// CanTransition 判断当前状态是否允许迁移到目标状态
func (s *Settlement) CanTransition(target string) bool {
	allowed, ok := settlementTransitions[s.Status]
	if !ok {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// rejected / paid 为终态：驳回后需修正记录重新生成结算单
var settlementTransitions = map[string][]string{
	SettlementStatusDraft:    {SettlementStatusPending},
	SettlementStatusPending:  {SettlementStatusApproved, SettlementStatusRejected},
	SettlementStatusApproved: {SettlementStatusPaid},
}
