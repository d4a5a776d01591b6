package entity

import "time"

// 处罚类型
const (
	PenaltyTypeInspection = "inspection" // 查验
	PenaltyTypeMistake    = "mistake"    // 操作失误
	PenaltyTypeLoss       = "loss"       // 经济损失
)

// PenaltyRule 处罚规则
// inspection/mistake 直接取三个角色字段；loss 按实际损失的 LossPercentage 计提
type PenaltyRule struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	RuleName    string `json:"rule_name" gorm:"size:100;not null"`
	PenaltyType string `json:"penalty_type" gorm:"size:20;not null;index"` // inspection/mistake/loss

	// inspection / mistake：按角色固定扣罚
	SupervisorPenalty *float64 `json:"supervisor_penalty" gorm:"type:decimal(15,2)"`
	SalesPenalty      *float64 `json:"sales_penalty" gorm:"type:decimal(15,2)"`
	DocumentPenalty   *float64 `json:"document_penalty" gorm:"type:decimal(15,2)"`

	// loss：按损失金额比例
	LossPercentage *float64 `json:"loss_percentage" gorm:"type:decimal(8,4)"`

	// 当月扣罚上限：不超过该业务员当月奖励的百分比，对所有处罚类型生效
	MaxPenaltyRate float64 `json:"max_penalty_rate" gorm:"type:decimal(8,4);default:100"`

	IsActive bool `json:"is_active" gorm:"default:true;index"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`
}

func (PenaltyRule) TableName() string {
	return "commission_penalty_rules"
}
