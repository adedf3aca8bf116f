package feishu

// BaseResponse 飞书API通用响应结构
type BaseResponse struct {
	Code int    `json:"code"` // 错误码，0表示成功
	Msg  string `json:"msg"`
}

// InteractiveCard 飞书交互式消息卡片
type InteractiveCard struct {
	Config   *CardConfig   `json:"config,omitempty"`
	Header   *CardHeader   `json:"header,omitempty"`
	Elements []CardElement `json:"elements,omitempty"`
}

// CardConfig 卡片配置
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader 卡片标题
type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template,omitempty"` // 标题颜色：blue/green/red/orange等
}

// CardText 卡片文本
type CardText struct {
	Tag     string `json:"tag"` // plain_text / lark_md
	Content string `json:"content"`
}

// CardElement 卡片元素
type CardElement struct {
	Tag      string        `json:"tag"` // div/hr/note等
	Text     *CardText     `json:"text,omitempty"`
	Fields   []CardField   `json:"fields,omitempty"`
	Elements []CardElement `json:"elements,omitempty"`
	Content  string        `json:"content,omitempty"`
}

// CardField 卡片字段
type CardField struct {
	IsShort bool     `json:"is_short"` // 是否并排显示
	Text    CardText `json:"text"`
}

// SendMessageResponse 发送消息响应
type SendMessageResponse struct {
	BaseResponse
	Data struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}
