package finance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrVoucherNotFound = errors.New("voucher not found")

// Service 财务凭证服务
// 结算引擎的外部协作方：开具应付凭证、标记付款。
// 与结算审批在同一个数据库事务里执行，凭证开具失败时审批整体回滚
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// PayableRequest 开具应付凭证请求
type PayableRequest struct {
	Amount     float64
	SourceType string
	SourceID   string
	PayeeID    string
	PayeeName  string
	Summary    string
	CreatedBy  string
}

// CreatePayable 开具应付凭证（职工绩效奖金科目）
func (s *Service) CreatePayable(ctx context.Context, tx *gorm.DB, req *PayableRequest) (*Voucher, error) {
	if tx == nil {
		tx = s.db
	}

	no, err := s.generateNo(ctx, tx)
	if err != nil {
		return nil, err
	}

	voucher := &Voucher{
		ID:         uuid.New().String()[:32],
		VoucherNo:  no,
		Account:    AccountStaffBonus,
		Amount:     req.Amount,
		Currency:   "CNY",
		Status:     VoucherStatusCreated,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		PayeeID:    req.PayeeID,
		PayeeName:  req.PayeeName,
		Summary:    req.Summary,
		CreatedBy:  req.CreatedBy,
	}

	if err := tx.WithContext(ctx).Create(voucher).Error; err != nil {
		return nil, err
	}
	return voucher, nil
}

// MarkPaid 标记凭证已付款
func (s *Service) MarkPaid(ctx context.Context, tx *gorm.DB, voucherID string) error {
	if tx == nil {
		tx = s.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&Voucher{}).
		Where("id = ? AND status = ?", voucherID, VoucherStatusCreated).
		Updates(map[string]interface{}{
			"status":  VoucherStatusPaid,
			"paid_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

// Get 查询凭证
func (s *Service) Get(ctx context.Context, voucherID string) (*Voucher, error) {
	var v Voucher
	err := s.db.WithContext(ctx).Where("id = ?", voucherID).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &v, nil
}

// generateNo 生成凭证号 FV-YYYYMM-XXXX
// 取当月已有最大序号递增，历史空洞不会导致撞号
func (s *Service) generateNo(ctx context.Context, tx *gorm.DB) (string, error) {
	prefix := fmt.Sprintf("FV-%s", time.Now().Format("200601"))
	var maxNo sql.NullString
	err := tx.WithContext(ctx).
		Model(&Voucher{}).
		Where("voucher_no LIKE ?", prefix+"%").
		Select("MAX(voucher_no)").
		Scan(&maxNo).Error
	if err != nil {
		return "", err
	}
	seq := 1
	if maxNo.Valid && len(maxNo.String) > len(prefix)+1 {
		if n, err := strconv.Atoi(maxNo.String[len(prefix)+1:]); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, seq), nil
}
