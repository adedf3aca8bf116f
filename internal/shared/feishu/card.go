package feishu

import (
	"context"
	"encoding/json"
	"fmt"
)

// SendCard 向群聊发送消息卡片
func (c *Client) SendCard(ctx context.Context, chatID string, card InteractiveCard) error {
	return c.sendCard(ctx, "chat_id", chatID, card)
}

// SendUserCard 向个人发送消息卡片（open_id）
func (c *Client) SendUserCard(ctx context.Context, userID string, card InteractiveCard) error {
	return c.sendCard(ctx, "open_id", userID, card)
}

func (c *Client) sendCard(ctx context.Context, idType, id string, card InteractiveCard) error {
	cardBytes, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("序列化卡片内容失败: %w", err)
	}

	reqBody := map[string]interface{}{
		"receive_id_type": idType,
		"receive_id":      id,
		"msg_type":        "interactive",
		"content":         string(cardBytes),
	}

	path := fmt.Sprintf("/open-apis/im/v1/messages?receive_id_type=%s", idType)

	var resp SendMessageResponse
	if err := c.doRequest(ctx, "POST", path, reqBody, &resp); err != nil {
		return fmt.Errorf("发送消息卡片失败: %w", err)
	}

	return nil
}

// =============================================================================
// 预设卡片模板 — CRM业务通知卡片
// =============================================================================

// NewStageChangeCard 线索阶段变更通知卡片
// opportunityName: 商机名称
// fromStage/toStage: 变更前后的阶段
// changedBy: 操作人名称
func NewStageChangeCard(opportunityName, fromStage, toStage, changedBy string) InteractiveCard {
	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "📈 线索阶段变更通知"},
			Template: "blue",
		},
		Elements: []CardElement{
			{
				Tag: "div",
				Fields: []CardField{
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**商机名称**\n%s", opportunityName)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**操作人**\n%s", changedBy)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**原阶段**\n%s", fromStage)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**新阶段**\n%s", toStage)}},
				},
			},
		},
	}
}

// NewDealClosedCard 线索关闭（Won/Lost）通知卡片
// won为true时绿色模板，否则红色并附丢单原因
func NewDealClosedCard(opportunityName string, dealValue float64, won bool, lostReason string) InteractiveCard {
	template := "green"
	title := "🎉 商机赢单通知"
	if !won {
		template = "red"
		title = "📉 商机丢单通知"
	}

	elements := []CardElement{
		{
			Tag: "div",
			Fields: []CardField{
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**商机名称**\n%s", opportunityName)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**成交金额**\n%.2f", dealValue)}},
			},
		},
	}

	if !won && lostReason != "" {
		elements = append(elements,
			CardElement{Tag: "hr"},
			CardElement{
				Tag:  "div",
				Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**丢单原因**\n%s", lostReason)},
			},
		)
	}

	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: title},
			Template: template,
		},
		Elements: elements,
	}
}

// NewFollowUpCard 跟进提醒卡片
// followUpDate: 计划跟进日期（格式如 "2024-03-15"）
func NewFollowUpCard(opportunityName, assignedTo, followUpDate string) InteractiveCard {
	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "⏰ 线索跟进提醒"},
			Template: "orange",
		},
		Elements: []CardElement{
			{
				Tag: "div",
				Fields: []CardField{
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**商机名称**\n%s", opportunityName)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**负责人**\n%s", assignedTo)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**跟进日期**\n%s", followUpDate)}},
				},
			},
			{Tag: "hr"},
			{
				Tag: "note",
				Elements: []CardElement{
					{Tag: "plain_text", Content: "请及时跟进该线索"},
				},
			},
		},
	}
}
