package service

import (
	"context"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/gorm"
)

// DashboardService 管道看板统计服务
type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// StageSummary 单个阶段汇总
type StageSummary struct {
	Stage           string  `json:"stage"`
	Count           int     `json:"count"`
	ExpectedRevenue float64 `json:"expected_revenue"`
	DealValue       float64 `json:"deal_value"`
}

// PipelineSummary 管道汇总
type PipelineSummary struct {
	Stages     []StageSummary `json:"stages"`
	TotalLeads int            `json:"total_leads"`
	OpenLeads  int            `json:"open_leads"`
	WonValue   float64        `json:"won_value"`
	LostValue  float64        `json:"lost_value"`
	WinRate    float64        `json:"win_rate"`
}

// GetPipelineSummary 获取管道汇总：各阶段数量与金额、赢单率
func (s *DashboardService) GetPipelineSummary(ctx context.Context) (*PipelineSummary, error) {
	rows, err := s.db.WithContext(ctx).Raw(`
		SELECT
			stage,
			COUNT(*) as count,
			COALESCE(SUM(expected_revenue), 0) as expected_revenue,
			COALESCE(SUM(deal_value), 0) as deal_value
		FROM crm_leads
		GROUP BY stage
	`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byStage := make(map[string]StageSummary)
	for rows.Next() {
		var s StageSummary
		if err := rows.Scan(&s.Stage, &s.Count, &s.ExpectedRevenue, &s.DealValue); err != nil {
			return nil, err
		}
		byStage[s.Stage] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary := &PipelineSummary{
		Stages: make([]StageSummary, 0, len(entity.StageOrder)),
	}

	var wonCount, lostCount int
	for _, stage := range entity.StageOrder {
		ss, ok := byStage[stage]
		if !ok {
			ss = StageSummary{Stage: stage}
		}
		summary.Stages = append(summary.Stages, ss)
		summary.TotalLeads += ss.Count

		switch stage {
		case entity.StageWon:
			wonCount = ss.Count
			summary.WonValue = ss.DealValue
		case entity.StageLost:
			lostCount = ss.Count
			summary.LostValue = ss.DealValue
		default:
			summary.OpenLeads += ss.Count
		}
	}

	if wonCount+lostCount > 0 {
		summary.WinRate = float64(wonCount) / float64(wonCount+lostCount) * 100
	}

	return summary, nil
}

// LostReasonSummary 丢单原因分布
type LostReasonSummary struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// GetLostReasons 获取丢单原因分布
func (s *DashboardService) GetLostReasons(ctx context.Context) ([]LostReasonSummary, error) {
	var items []LostReasonSummary
	err := s.db.WithContext(ctx).Raw(`
		SELECT lost_reason as reason, COUNT(*) as count
		FROM crm_leads
		WHERE stage = ? AND lost_reason <> ''
		GROUP BY lost_reason
		ORDER BY count DESC
	`, entity.StageLost).Scan(&items).Error
	return items, err
}
