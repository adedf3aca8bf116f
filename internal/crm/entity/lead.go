package entity

import "time"

// Lead 销售线索
type Lead struct {
	ID   string `json:"id" gorm:"primaryKey;size:32"`
	Code string `json:"code" gorm:"size:32;uniqueIndex;not null"`

	// 商机信息
	OpportunityName string `json:"opportunity_name" gorm:"size:200;not null"`
	ClientName      string `json:"client_name" gorm:"size:100"`
	Email           string `json:"email" gorm:"size:200"`
	Phone           string `json:"phone" gorm:"size:50"`
	Company         string `json:"company" gorm:"size:200"`
	Website         string `json:"website" gorm:"size:200"`
	LeadSource      string `json:"lead_source" gorm:"size:50"`
	LeadScore       int    `json:"lead_score" gorm:"default:0"` // 0-100
	InternalNotes   string `json:"internal_notes" gorm:"type:text"`

	// 客户分类
	IsExistingClient bool    `json:"is_existing_client" gorm:"default:false"`
	ContactID        *string `json:"contact_id" gorm:"size:32;index"`

	// 负责人
	AssignedTo           string `json:"assigned_to" gorm:"size:32;index"`
	AssignedToName       string `json:"assigned_to_name" gorm:"size:100"`
	AssignedToEmail      string `json:"assigned_to_email" gorm:"size:200"`
	AssignedToDepartment string `json:"assigned_to_department" gorm:"size:100"`

	// 管道状态
	Stage string `json:"stage" gorm:"size:20;not null;default:New;index"`

	// 财务
	ExpectedRevenue float64  `json:"expected_revenue" gorm:"type:decimal(15,2);default:0"`
	DealValue       *float64 `json:"deal_value" gorm:"type:decimal(15,2)"`

	// 时间跟踪
	LastContactDate      *time.Time `json:"last_contact_date"`
	NextFollowUp         *time.Time `json:"next_follow_up"`
	ProposalSentDate     *time.Time `json:"proposal_sent_date"`
	NegotiationStartDate *time.Time `json:"negotiation_start_date"`
	WonLostDate          *time.Time `json:"won_lost_date"`

	// 结果字段
	LostReason       string  `json:"lost_reason" gorm:"size:20"`
	CompetitorInfo   string  `json:"competitor_info" gorm:"type:text"`
	ClientFeedback   string  `json:"client_feedback" gorm:"type:text"`
	ProposalDocument *string `json:"proposal_document" gorm:"size:256"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Contact         *Contact             `json:"contact,omitempty" gorm:"foreignKey:ContactID"`
	ContactAttempts []LeadContactAttempt `json:"contact_attempts,omitempty" gorm:"foreignKey:LeadID"`
	StageHistory    []LeadStageHistory   `json:"stage_history,omitempty" gorm:"foreignKey:LeadID"`
	StageNotes      []LeadStageNote      `json:"stage_notes,omitempty" gorm:"foreignKey:LeadID"`
}

func (Lead) TableName() string {
	return "crm_leads"
}

// LeadContactAttempt 联系记录
type LeadContactAttempt struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	LeadID    string    `json:"lead_id" gorm:"size:32;not null;index"`
	Date      time.Time `json:"date" gorm:"not null"`
	Details   string    `json:"details" gorm:"type:text"`
	Type      string    `json:"type" gorm:"size:20;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (LeadContactAttempt) TableName() string {
	return "crm_lead_contact_attempts"
}

// LeadStageHistory 阶段变更历史（仅追加，不可修改）
type LeadStageHistory struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	LeadID    string    `json:"lead_id" gorm:"size:32;not null;index"`
	Stage     string    `json:"stage" gorm:"size:20;not null"`
	Date      time.Time `json:"date" gorm:"not null"`
	Notes     string    `json:"notes" gorm:"type:text"`
	ChangedBy string    `json:"changed_by" gorm:"size:100"`
	CreatedAt time.Time `json:"created_at"`
}

func (LeadStageHistory) TableName() string {
	return "crm_lead_stage_history"
}

// LeadStageNote 阶段备注
type LeadStageNote struct {
	ID        string     `json:"id" gorm:"primaryKey;size:32"`
	LeadID    string     `json:"lead_id" gorm:"size:32;not null;index"`
	Stage     string     `json:"stage" gorm:"size:20;not null"`
	Content   string     `json:"content" gorm:"type:text;not null"`
	CreatedBy string     `json:"created_by" gorm:"size:100"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (LeadStageNote) TableName() string {
	return "crm_lead_stage_notes"
}

// 管道阶段（值与前端看板列一致）
const (
	StageNew          = "New"
	StageQualified    = "Qualified"
	StageProposalSent = "Proposal Sent"
	StageNegotiation  = "Negotiation"
	StageWon          = "Won"
	StageLost         = "Lost"
)

// StageOrder 管道阶段顺序
var StageOrder = []string{
	StageNew,
	StageQualified,
	StageProposalSent,
	StageNegotiation,
	StageWon,
	StageLost,
}

// StageIndex 返回阶段在管道中的序号，未知阶段返回-1
func StageIndex(stage string) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// IsValidStage 校验阶段取值
func IsValidStage(stage string) bool {
	return StageIndex(stage) >= 0
}

// IsTerminalStage 赢单/丢单为终态
func IsTerminalStage(stage string) bool {
	return stage == StageWon || stage == StageLost
}

// 丢单原因
const (
	LostReasonPrice      = "price"
	LostReasonCompetitor = "competitor"
	LostReasonTiming     = "timing"
	LostReasonNeeds      = "needs"
	LostReasonBudget     = "budget"
	LostReasonNoDecision = "noDecision"
	LostReasonOther      = "other"
)

// LostReasons 丢单原因取值集合
var LostReasons = []string{
	LostReasonPrice,
	LostReasonCompetitor,
	LostReasonTiming,
	LostReasonNeeds,
	LostReasonBudget,
	LostReasonNoDecision,
	LostReasonOther,
}

// IsValidLostReason 校验丢单原因取值
func IsValidLostReason(reason string) bool {
	for _, r := range LostReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// 联系记录类型
const (
	AttemptTypeQualification = "qualification"
	AttemptTypeCall          = "call"
	AttemptTypeEmail         = "email"
	AttemptTypeMeeting       = "meeting"
)

// 线索来源
const (
	LeadSourceWebsite    = "website"
	LeadSourceReferral   = "referral"
	LeadSourceCampaign   = "campaign"
	LeadSourceColdCall   = "cold_call"
	LeadSourceExhibition = "exhibition"
	LeadSourceOther      = "other"
)
