package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// Notifier — 审批结果通知客户端
// 结算单审批通过/驳回后向协作平台 webhook 推送消息卡片。
// 通知是尽力而为的：失败只记日志，不影响审批结果
// =============================================================================

// Notifier webhook通知客户端
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNotifier 创建通知客户端，webhookURL 为空时所有发送都是空操作
func NewNotifier(webhookURL string, timeout time.Duration, logger *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Card 消息卡片
type Card struct {
	Title  string   `json:"title"`
	Lines  []string `json:"lines"`
	Color  string   `json:"color"` // green / red / grey
	SentAt string   `json:"sent_at"`
}

// NewSettlementResultCard 结算审批结果卡片
func NewSettlementResultCard(settlementCode, salespersonName, result, comment string, netAmount float64) Card {
	color := "green"
	title := "提成结算单已通过"
	if result == "rejected" {
		color = "red"
		title = "提成结算单已驳回"
	}
	return Card{
		Title: title,
		Lines: []string{
			fmt.Sprintf("结算单号：%s", settlementCode),
			fmt.Sprintf("业务员：%s", salespersonName),
			fmt.Sprintf("净结算金额：%.2f 元", netAmount),
			fmt.Sprintf("审批意见：%s", comment),
		},
		Color: color,
	}
}

// Send 推送卡片
func (n *Notifier) Send(ctx context.Context, card Card) {
	if n.webhookURL == "" {
		return
	}

	card.SentAt = time.Now().Format(time.RFC3339)
	bodyBytes, _ := json.Marshal(card)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(bodyBytes))
	if err != nil {
		n.logger.Warn("构建通知请求失败", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("推送审批通知失败", zap.String("title", card.Title), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("审批通知返回异常状态", zap.String("title", card.Title), zap.Int("status", resp.StatusCode))
	}
}
