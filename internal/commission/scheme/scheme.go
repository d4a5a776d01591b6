// Package scheme 计算提成方案所处阶段。
// 方案启动后有一段试行期：试行期内处罚照常计算、照常记录，但结算时不实际扣减。
package scheme

import "time"

// 方案阶段
const (
	PhaseNotStarted   = "not_started"   // 方案未启动
	PhasePenaltyTrial = "penalty_trial" // 试行期（处罚只记录不扣减）
	PhaseRunning      = "running"       // 正式执行
	PhaseReview       = "review"        // 超过方案期上限，待复盘
)

// Config 方案配置，由外部注入，不做包级单例
type Config struct {
	StartDate         time.Time
	TrialPeriodMonths int
	SchemeMinMonths   int // 仅供展示，阶段判定不使用
	SchemeMaxMonths   int
}

// Calculator 试行期计算器
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Status 方案状态
type Status struct {
	Phase          string `json:"phase"`
	InPenaltyTrial bool   `json:"in_penalty_trial"`
	MonthsElapsed  int    `json:"months_elapsed"`
	StartDate      string `json:"start_date"`
	TrialMonths    int    `json:"trial_months"`
	SchemeMin      int    `json:"scheme_min_months"`
	SchemeMax      int    `json:"scheme_max_months"`
}

// MonthsSinceStart 按整月计算距离方案启动的月数，忽略日
func (c *Calculator) MonthsSinceStart(now time.Time) int {
	return (now.Year()-c.cfg.StartDate.Year())*12 + int(now.Month()) - int(c.cfg.StartDate.Month())
}

// PhaseAt 返回指定时间点的方案阶段，全函数，无失败分支
func (c *Calculator) PhaseAt(now time.Time) string {
	if now.Before(c.cfg.StartDate) {
		return PhaseNotStarted
	}
	months := c.MonthsSinceStart(now)
	switch {
	case months < c.cfg.TrialPeriodMonths:
		return PhasePenaltyTrial
	case months >= c.cfg.SchemeMaxMonths:
		return PhaseReview
	default:
		return PhaseRunning
	}
}

// InPenaltyTrial 指定时间点是否处于处罚试行期
func (c *Calculator) InPenaltyTrial(now time.Time) bool {
	return c.PhaseAt(now) == PhasePenaltyTrial
}

// StatusAt 汇总阶段信息，供前端方案横幅展示
func (c *Calculator) StatusAt(now time.Time) Status {
	phase := c.PhaseAt(now)
	months := c.MonthsSinceStart(now)
	if now.Before(c.cfg.StartDate) {
		months = 0
	}
	return Status{
		Phase:          phase,
		InPenaltyTrial: phase == PhasePenaltyTrial,
		MonthsElapsed:  months,
		StartDate:      c.cfg.StartDate.Format("2006-01-02"),
		TrialMonths:    c.cfg.TrialPeriodMonths,
		SchemeMin:      c.cfg.SchemeMinMonths,
		SchemeMax:      c.cfg.SchemeMaxMonths,
	}
}
