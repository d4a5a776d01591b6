package finance

import "time"

// 凭证状态
const (
	VoucherStatusCreated = "created"
	VoucherStatusPaid    = "paid"
)

// 结算凭证固定挂账科目
const AccountStaffBonus = "应付职工薪酬——绩效奖金"

// Voucher 应付凭证
// 提成结算单审批通过后由财务子系统开具，标记付款后结算单进入 paid
type Voucher struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	VoucherNo string `json:"voucher_no" gorm:"size:32;uniqueIndex;not null"`
	Account   string `json:"account" gorm:"size:100;not null"`

	Amount   float64 `json:"amount" gorm:"type:decimal(15,2);not null"`
	Currency string  `json:"currency" gorm:"size:10;default:CNY"`
	Status   string  `json:"status" gorm:"size:20;default:created"` // created/paid

	// 业务来源
	SourceType string `json:"source_type" gorm:"size:30"` // commission_settlement
	SourceID   string `json:"source_id" gorm:"size:32;index"`
	PayeeID    string `json:"payee_id" gorm:"size:32"`
	PayeeName  string `json:"payee_name" gorm:"size:100"`
	Summary    string `json:"summary" gorm:"size:200"`

	PaidAt    *time.Time `json:"paid_at"`
	CreatedBy string     `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Voucher) TableName() string {
	return "finance_vouchers"
}
