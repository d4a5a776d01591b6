package entity

import "time"

// 业务事件来源类型
const (
	SourceTypeOrder    = "order"
	SourceTypeContract = "contract"
	SourceTypePayment  = "payment"
	SourceTypeIncident = "incident"
)

// CommissionRecord 提成记录
// 规则引擎一次计算的不可变结果，生成后不再修改，结算时挂到 Settlement
type CommissionRecord struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	SalespersonID string `json:"salesperson_id" gorm:"size:32;not null;index:idx_commission_records_person_month"`
	RecordMonth   string `json:"record_month" gorm:"size:7;not null;index:idx_commission_records_person_month"` // YYYY-MM

	RuleID   string `json:"rule_id" gorm:"size:32;not null"`
	RuleName string `json:"rule_name" gorm:"size:100"`
	RuleType string `json:"rule_type" gorm:"size:20"`

	// 计算结果
	BaseAmount       float64 `json:"base_amount" gorm:"type:decimal(15,2);default:0"`
	UnitCount        int     `json:"unit_count" gorm:"default:0"`
	SupervisorAmount float64 `json:"supervisor_amount" gorm:"type:decimal(15,2);default:0"`
	SalesAmount      float64 `json:"sales_amount" gorm:"type:decimal(15,2);default:0"`
	DocumentAmount   float64 `json:"document_amount" gorm:"type:decimal(15,2);default:0"`
	CommissionAmount float64 `json:"commission_amount" gorm:"type:decimal(15,2);not null"` // = 三个角色合计

	// 业务来源
	SourceType string `json:"source_type" gorm:"size:20"` // order/contract/payment
	SourceID   string `json:"source_id" gorm:"size:64;index"`

	// 结算归属，null 表示未结算
	SettlementID *string `json:"settlement_id" gorm:"size:32;index"`

	CreatedAt time.Time `json:"created_at"`
}

func (CommissionRecord) TableName() string {
	return "commission_records"
}

// PenaltyRecord 处罚记录
// 试行期内照常计算并记录（IsTrialPeriod=true），但结算时金额按0计
type PenaltyRecord struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	SalespersonID string `json:"salesperson_id" gorm:"size:32;not null;index:idx_penalty_records_person_month"`
	RecordMonth   string `json:"record_month" gorm:"size:7;not null;index:idx_penalty_records_person_month"` // YYYY-MM

	RuleID      string `json:"rule_id" gorm:"size:32;not null"`
	RuleName    string `json:"rule_name" gorm:"size:100"`
	PenaltyType string `json:"penalty_type" gorm:"size:20;not null"`

	// 计算结果
	SupervisorPenalty float64 `json:"supervisor_penalty" gorm:"type:decimal(15,2);default:0"`
	SalesPenalty      float64 `json:"sales_penalty" gorm:"type:decimal(15,2);default:0"`
	DocumentPenalty   float64 `json:"document_penalty" gorm:"type:decimal(15,2);default:0"`
	TotalPenalty      float64 `json:"total_penalty" gorm:"type:decimal(15,2);not null"`
	LossAmount        *float64 `json:"loss_amount" gorm:"type:decimal(15,2)"` // loss 类型的实际损失额

	IsTrialPeriod bool      `json:"is_trial_period" gorm:"default:false"`
	IncidentDate  time.Time `json:"incident_date"`

	SourceType string `json:"source_type" gorm:"size:20"`
	SourceID   string `json:"source_id" gorm:"size:64;index"`

	SettlementID *string `json:"settlement_id" gorm:"size:32;index"`

	CreatedAt time.Time `json:"created_at"`
	Notes     string    `json:"notes" gorm:"type:text"`
}

func (PenaltyRecord) TableName() string {
	return "commission_penalty_records"
}
