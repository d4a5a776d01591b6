package entity

import "time"

// 提成规则类型
const (
	RuleTypePercentage = "percentage" // 按比例
	RuleTypeFixed      = "fixed"      // 固定金额
	RuleTypeTiered     = "tiered"     // 阶梯
)

// 提成基数
const (
	CommissionBaseOrder    = "order_amount"    // 订单金额
	CommissionBaseContract = "contract_amount" // 合同金额
	CommissionBasePayment  = "payment_amount"  // 回款金额
)

// CommissionRule 提成规则
// ruleType 决定哪些金额字段生效：percentage 用 CommissionRate，
// fixed 用三个 Fixed*Amount，tiered 用 Tiers
type CommissionRule struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RuleName      string `json:"rule_name" gorm:"size:100;not null"`
	RuleType      string `json:"rule_type" gorm:"size:20;not null;index"` // percentage/fixed/tiered
	CustomerLevel string `json:"customer_level" gorm:"size:20"`           // 为空表示不限客户等级

	// 按比例
	CommissionBase string   `json:"commission_base" gorm:"size:30;default:order_amount"`
	CommissionRate *float64 `json:"commission_rate" gorm:"type:decimal(8,4)"` // 百分比，5 表示 5%

	// 固定金额（按单计提，三个角色各自金额）
	FixedSupervisorAmount *float64 `json:"fixed_supervisor_amount" gorm:"type:decimal(15,2)"`
	FixedSalesAmount      *float64 `json:"fixed_sales_amount" gorm:"type:decimal(15,2)"`
	FixedDocumentAmount   *float64 `json:"fixed_document_amount" gorm:"type:decimal(15,2)"`

	// 通用约束
	MinBaseAmount float64  `json:"min_base_amount" gorm:"type:decimal(15,2);default:0"`
	MaxCommission *float64 `json:"max_commission" gorm:"type:decimal(15,2)"` // null = 不封顶

	IsStackable bool `json:"is_stackable" gorm:"default:false"`
	Priority    int  `json:"priority" gorm:"default:0"`
	IsActive    bool `json:"is_active" gorm:"default:true;index"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联
	Tiers []CommissionTier `json:"tiers,omitempty" gorm:"foreignKey:RuleID"`
}

func (CommissionRule) TableName() string {
	return "commission_rules"
}

// CommissionTier 阶梯规则的单个阶梯
// 同一规则下按 MinCount 升序排列，TierLevel 从1开始连续编号
type CommissionTier struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	RuleID    string `json:"rule_id" gorm:"size:32;not null;index"`
	TierLevel int    `json:"tier_level" gorm:"not null"`
	MinCount  int    `json:"min_count" gorm:"not null"`
	MaxCount  *int   `json:"max_count"` // null = 无上限

	SupervisorBonus float64 `json:"supervisor_bonus" gorm:"type:decimal(15,2);default:0"`
	SalesBonus      float64 `json:"sales_bonus" gorm:"type:decimal(15,2);default:0"`
	DocumentBonus   float64 `json:"document_bonus" gorm:"type:decimal(15,2);default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CommissionTier) TableName() string {
	return "commission_tiers"
}

// TotalBonus 阶梯三个角色的合计
func (t *CommissionTier) TotalBonus() float64 {
	return t.SupervisorBonus + t.SalesBonus + t.DocumentBonus
}

// Contains 判断单量是否落在本阶梯区间 [MinCount, MaxCount]
func (t *CommissionTier) Contains(unitCount int) bool {
	if unitCount < t.MinCount {
		return false
	}
	if t.MaxCount != nil && unitCount > *t.MaxCount {
		return false
	}
	return true
}
