package service

import (
	"context"
	"log"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/shared/feishu"
)

// StageNotifier 阶段变更飞书通知，发送失败只记录日志不影响主流程
type StageNotifier struct {
	client *feishu.Client
	chatID string
}

// NewStageNotifier 创建阶段通知器
func NewStageNotifier(client *feishu.Client, chatID string) *StageNotifier {
	return &StageNotifier{client: client, chatID: chatID}
}

// NotifyStageChange 推送阶段变更卡片，赢单/丢单使用专用卡片
func (n *StageNotifier) NotifyStageChange(lead *entity.Lead, fromStage, changedBy string) {
	if n == nil || n.client == nil || n.chatID == "" {
		return
	}

	var card feishu.InteractiveCard
	switch lead.Stage {
	case entity.StageWon, entity.StageLost:
		dealValue := 0.0
		if lead.DealValue != nil {
			dealValue = *lead.DealValue
		}
		card = feishu.NewDealClosedCard(lead.OpportunityName, dealValue, lead.Stage == entity.StageWon, lead.LostReason)
	default:
		card = feishu.NewStageChangeCard(lead.OpportunityName, fromStage, lead.Stage, changedBy)
	}

	// 异步发送，不阻塞阶段变更请求
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.client.SendCard(ctx, n.chatID, card); err != nil {
			log.Printf("[Feishu] send stage card failed: %v", err)
		}
	}()
}
