package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// LeadService 线索服务
type LeadService struct {
	repo         *repository.LeadRepository
	contactRepo  *repository.ContactRepository
	employeeRepo *repository.EmployeeRepository
	db           *gorm.DB
	notifier     *StageNotifier
}

// SetNotifier 启用阶段变更飞书通知
func (s *LeadService) SetNotifier(n *StageNotifier) {
	s.notifier = n
}

// NewLeadService 创建线索服务
func NewLeadService(repo *repository.LeadRepository, contactRepo *repository.ContactRepository, employeeRepo *repository.EmployeeRepository, db *gorm.DB) *LeadService {
	return &LeadService{
		repo:         repo,
		contactRepo:  contactRepo,
		employeeRepo: employeeRepo,
		db:           db,
	}
}

// NewContactInput 随线索一并创建的新客户
type NewContactInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Website string `json:"website"`
}

// CreateLeadRequest 创建线索请求
type CreateLeadRequest struct {
	OpportunityName  string           `json:"opportunity_name" binding:"required"`
	ClientName       string           `json:"client_name"`
	Email            string           `json:"email"`
	Phone            string           `json:"phone"`
	Company          string           `json:"company"`
	Website          string           `json:"website"`
	LeadSource       string           `json:"lead_source"`
	LeadScore        int              `json:"lead_score"`
	InternalNotes    string           `json:"internal_notes"`
	IsExistingClient bool             `json:"is_existing_client"`
	ContactID        *string          `json:"contact_id"`
	NewContact       *NewContactInput `json:"new_contact"`
	AssignedTo       string           `json:"assigned_to"`
	ExpectedRevenue  float64          `json:"expected_revenue"`
	NextFollowUp     *time.Time       `json:"next_follow_up"`
}

// UpdateLeadRequest 更新线索请求
type UpdateLeadRequest struct {
	OpportunityName *string    `json:"opportunity_name"`
	ClientName      *string    `json:"client_name"`
	Email           *string    `json:"email"`
	Phone           *string    `json:"phone"`
	Company         *string    `json:"company"`
	Website         *string    `json:"website"`
	LeadSource      *string    `json:"lead_source"`
	LeadScore       *int       `json:"lead_score"`
	InternalNotes   *string    `json:"internal_notes"`
	ContactID       *string    `json:"contact_id"`
	AssignedTo      *string    `json:"assigned_to"`
	ExpectedRevenue *float64   `json:"expected_revenue"`
	NextFollowUp    *time.Time `json:"next_follow_up"`
}

// List 获取线索列表
func (s *LeadService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Lead, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// Board 获取看板视图，按管道阶段分组
func (s *LeadService) Board(ctx context.Context) (map[string][]entity.Lead, error) {
	leads, err := s.repo.ListBoard(ctx)
	if err != nil {
		return nil, err
	}

	board := make(map[string][]entity.Lead, len(entity.StageOrder))
	for _, stage := range entity.StageOrder {
		board[stage] = []entity.Lead{}
	}
	for _, lead := range leads {
		board[lead.Stage] = append(board[lead.Stage], lead)
	}
	return board, nil
}

// Get 获取线索详情
func (s *LeadService) Get(ctx context.Context, id string) (*entity.Lead, error) {
	return s.repo.FindByID(ctx, id)
}

// Create 创建线索。新客户线索在同一事务里先建联系人再建线索，
// 任一步失败则整体回滚，不留半边数据。
func (s *LeadService) Create(ctx context.Context, userID string, req *CreateLeadRequest) (*entity.Lead, error) {
	code, err := s.repo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成线索编码失败: %w", err)
	}

	now := time.Now()
	lead := &entity.Lead{
		ID:               uuid.New().String()[:32],
		Code:             code,
		OpportunityName:  req.OpportunityName,
		ClientName:       req.ClientName,
		Email:            req.Email,
		Phone:            req.Phone,
		Company:          req.Company,
		Website:          req.Website,
		LeadSource:       req.LeadSource,
		LeadScore:        req.LeadScore,
		InternalNotes:    req.InternalNotes,
		IsExistingClient: req.IsExistingClient,
		Stage:            entity.StageNew,
		ExpectedRevenue:  req.ExpectedRevenue,
		NextFollowUp:     req.NextFollowUp,
		CreatedBy:        userID,
	}

	changedBy := "System"
	if req.AssignedTo != "" {
		employee, err := s.employeeRepo.FindByID(ctx, req.AssignedTo)
		if err != nil {
			return nil, fmt.Errorf("负责人不存在: %w", err)
		}
		lead.AssignedTo = employee.ID
		lead.AssignedToName = employee.Name
		lead.AssignedToEmail = employee.Email
		lead.AssignedToDepartment = employee.Department
		changedBy = employee.Name
	}

	if req.IsExistingClient && req.ContactID != nil && *req.ContactID != "" {
		if _, err := s.contactRepo.FindByID(ctx, *req.ContactID); err != nil {
			return nil, fmt.Errorf("联系人不存在: %w", err)
		}
		lead.ContactID = req.ContactID
	}

	history := &entity.LeadStageHistory{
		ID:        uuid.New().String()[:32],
		LeadID:    lead.ID,
		Stage:     entity.StageNew,
		Date:      now,
		Notes:     "Lead created",
		ChangedBy: changedBy,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !req.IsExistingClient && req.NewContact != nil {
			contact := &entity.Contact{
				ID:        uuid.New().String()[:32],
				Name:      req.NewContact.Name,
				Email:     req.NewContact.Email,
				Phone:     req.NewContact.Phone,
				Company:   req.NewContact.Company,
				Website:   req.NewContact.Website,
				Notes:     "Created from lead form",
				CreatedBy: userID,
			}
			if err := tx.Create(contact).Error; err != nil {
				return fmt.Errorf("创建联系人失败: %w", err)
			}
			lead.ContactID = &contact.ID
		}

		if err := tx.Create(lead).Error; err != nil {
			return fmt.Errorf("创建线索失败: %w", err)
		}
		if err := tx.Create(history).Error; err != nil {
			return fmt.Errorf("写入阶段历史失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sse.PublishLeadUpdate(lead.ID, lead.Stage, "created")
	return lead, nil
}

// Update 更新线索基础字段。阶段只能通过 TransitionStage 变更。
func (s *LeadService) Update(ctx context.Context, id string, req *UpdateLeadRequest) (*entity.Lead, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.OpportunityName != nil {
		lead.OpportunityName = *req.OpportunityName
	}
	if req.ClientName != nil {
		lead.ClientName = *req.ClientName
	}
	if req.Email != nil {
		lead.Email = *req.Email
	}
	if req.Phone != nil {
		lead.Phone = *req.Phone
	}
	if req.Company != nil {
		lead.Company = *req.Company
	}
	if req.Website != nil {
		lead.Website = *req.Website
	}
	if req.LeadSource != nil {
		lead.LeadSource = *req.LeadSource
	}
	if req.LeadScore != nil {
		lead.LeadScore = *req.LeadScore
	}
	if req.InternalNotes != nil {
		lead.InternalNotes = *req.InternalNotes
	}
	if req.ContactID != nil {
		if *req.ContactID != "" {
			if _, err := s.contactRepo.FindByID(ctx, *req.ContactID); err != nil {
				return nil, fmt.Errorf("联系人不存在: %w", err)
			}
		}
		lead.ContactID = req.ContactID
	}
	if req.AssignedTo != nil {
		employee, err := s.employeeRepo.FindByID(ctx, *req.AssignedTo)
		if err != nil {
			return nil, fmt.Errorf("负责人不存在: %w", err)
		}
		lead.AssignedTo = employee.ID
		lead.AssignedToName = employee.Name
		lead.AssignedToEmail = employee.Email
		lead.AssignedToDepartment = employee.Department
	}
	if req.ExpectedRevenue != nil {
		lead.ExpectedRevenue = *req.ExpectedRevenue
	}
	if req.NextFollowUp != nil {
		lead.NextFollowUp = req.NextFollowUp
	}

	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("更新线索失败: %w", err)
	}

	sse.PublishLeadUpdate(lead.ID, lead.Stage, "updated")
	return lead, nil
}

// TransitionLeadRequest 阶段变更请求，stage-specific 字段按目标阶段取用
type TransitionLeadRequest struct {
	TargetStage    string     `json:"target_stage" binding:"required"`
	Notes          string     `json:"notes"`
	ContactDetails string     `json:"contact_details"`
	ProposalValue  *float64   `json:"proposal_value"`
	FollowUpDate   *time.Time `json:"follow_up_date"`
	ClientFeedback string     `json:"client_feedback"`
	ClosingDate    *time.Time `json:"closing_date"`
	FinalDealValue *float64   `json:"final_deal_value"`
	LostReason     string     `json:"lost_reason"`
	CompetitorInfo string     `json:"competitor_info"`
}

// Validate 预检目标阶段，返回未满足条件列表（空即可提交）。
// 对话框打开和表单变化时调用，不产生副作用。
func (s *LeadService) Validate(ctx context.Context, id, targetStage string) ([]string, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ValidateTransition(lead, targetStage), nil
}

// TransitionStage 提交阶段变更：合并阶段字段、校验、落库并追加一条历史。
// 校验在字段合并之后执行，对话框里补齐的数据参与校验；
// 跳级规则始终以原阶段为基准。
func (s *LeadService) TransitionStage(ctx context.Context, id, userName string, req *TransitionLeadRequest) (*entity.Lead, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.LostReason != "" && !entity.IsValidLostReason(req.LostReason) {
		return nil, &StageValidationError{Errors: []string{fmt.Sprintf("Unknown lost reason %s", req.LostReason)}}
	}

	now := time.Now()
	var attempt *entity.LeadContactAttempt

	// 按目标阶段合并 stage-specific 字段（尚未落库）
	switch req.TargetStage {
	case entity.StageQualified:
		lead.LastContactDate = &now
		attempt = &entity.LeadContactAttempt{
			ID:      uuid.New().String()[:32],
			LeadID:  lead.ID,
			Date:    now,
			Details: req.ContactDetails,
			Type:    entity.AttemptTypeQualification,
		}
		lead.ContactAttempts = append(lead.ContactAttempts, *attempt)
	case entity.StageProposalSent:
		lead.ProposalSentDate = &now
		if req.ProposalValue != nil {
			lead.DealValue = req.ProposalValue
		} else {
			v := lead.ExpectedRevenue
			lead.DealValue = &v
		}
	case entity.StageNegotiation:
		lead.NegotiationStartDate = &now
		if req.FollowUpDate != nil {
			lead.NextFollowUp = req.FollowUpDate
		}
		if req.ClientFeedback != "" {
			lead.ClientFeedback = req.ClientFeedback
		}
	case entity.StageWon:
		if req.ClosingDate != nil {
			lead.WonLostDate = req.ClosingDate
		} else {
			lead.WonLostDate = &now
		}
		if req.FinalDealValue != nil {
			lead.DealValue = req.FinalDealValue
		} else {
			v := lead.ExpectedRevenue
			lead.DealValue = &v
		}
	case entity.StageLost:
		if req.ClosingDate != nil {
			lead.WonLostDate = req.ClosingDate
		} else {
			lead.WonLostDate = &now
		}
		lead.LostReason = req.LostReason
		lead.CompetitorInfo = req.CompetitorInfo
		if req.FinalDealValue != nil {
			lead.DealValue = req.FinalDealValue
		}
	}

	if errs := ValidateTransition(lead, req.TargetStage); len(errs) > 0 {
		return nil, &StageValidationError{Errors: errs}
	}

	notes := req.Notes
	if notes == "" {
		notes = fmt.Sprintf("Stage changed to %s", req.TargetStage)
	}
	changedBy := userName
	if changedBy == "" {
		changedBy = "System"
	}

	fromStage := lead.Stage
	lead.Stage = req.TargetStage
	history := &entity.LeadStageHistory{
		ID:        uuid.New().String()[:32],
		LeadID:    lead.ID,
		Stage:     req.TargetStage,
		Date:      now,
		Notes:     notes,
		ChangedBy: changedBy,
	}

	// 线索、历史和联系记录同一事务提交
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Contact", "ContactAttempts", "StageHistory", "StageNotes").Save(lead).Error; err != nil {
			return fmt.Errorf("更新线索失败: %w", err)
		}
		if err := tx.Create(history).Error; err != nil {
			return fmt.Errorf("写入阶段历史失败: %w", err)
		}
		if attempt != nil {
			if err := tx.Create(attempt).Error; err != nil {
				return fmt.Errorf("写入联系记录失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sse.PublishLeadUpdate(lead.ID, lead.Stage, "stage_changed")
	s.notifier.NotifyStageChange(lead, fromStage, changedBy)
	return lead, nil
}

// ListHistory 获取阶段历史（按写入顺序，最早在前）
func (s *LeadService) ListHistory(ctx context.Context, leadID string) ([]entity.LeadStageHistory, error) {
	if _, err := s.repo.FindByID(ctx, leadID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, leadID)
}

// AddAttemptRequest 记录联系请求
type AddAttemptRequest struct {
	Date    *time.Time `json:"date"`
	Details string     `json:"details" binding:"required"`
	Type    string     `json:"type" binding:"required"`
}

// AddAttempt 记录一次联系，同时刷新 last_contact_date
func (s *LeadService) AddAttempt(ctx context.Context, leadID string, req *AddAttemptRequest) (*entity.LeadContactAttempt, error) {
	lead, err := s.repo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	attempt := &entity.LeadContactAttempt{
		ID:      uuid.New().String()[:32],
		LeadID:  lead.ID,
		Date:    date,
		Details: req.Details,
		Type:    req.Type,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attempt).Error; err != nil {
			return fmt.Errorf("写入联系记录失败: %w", err)
		}
		return tx.Model(&entity.Lead{}).
			Where("id = ?", lead.ID).
			Update("last_contact_date", date).Error
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// AddNoteRequest 添加阶段备注请求
type AddNoteRequest struct {
	Content string `json:"content" binding:"required"`
}

// AddNote 在线索当前阶段追加一条备注
func (s *LeadService) AddNote(ctx context.Context, leadID, userName string, req *AddNoteRequest) (*entity.LeadStageNote, error) {
	lead, err := s.repo.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	createdBy := userName
	if createdBy == "" {
		createdBy = "User"
	}

	note := &entity.LeadStageNote{
		ID:        uuid.New().String()[:32],
		LeadID:    lead.ID,
		Stage:     lead.Stage,
		Content:   req.Content,
		CreatedBy: createdBy,
	}
	if err := s.repo.AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("写入阶段备注失败: %w", err)
	}
	return note, nil
}

// EditNote 编辑备注内容并盖上 edited_at，其余字段保留
func (s *LeadService) EditNote(ctx context.Context, leadID, noteID, content string) (*entity.LeadStageNote, error) {
	note, err := s.repo.FindNoteByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.LeadID != leadID {
		return nil, repository.ErrNotFound
	}

	now := time.Now()
	note.Content = content
	note.EditedAt = &now
	if err := s.repo.UpdateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("更新阶段备注失败: %w", err)
	}
	return note, nil
}

// ListNotes 获取线索全部阶段备注，按阶段分组
func (s *LeadService) ListNotes(ctx context.Context, leadID string) (map[string][]entity.LeadStageNote, error) {
	if _, err := s.repo.FindByID(ctx, leadID); err != nil {
		return nil, err
	}
	notes, err := s.repo.ListNotes(ctx, leadID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]entity.LeadStageNote)
	for _, n := range notes {
		grouped[n.Stage] = append(grouped[n.Stage], n)
	}
	return grouped, nil
}

var leadExportHeaders = []string{
	"编码", "商机名称", "客户", "公司", "阶段", "来源", "评分",
	"预期营收", "成交金额", "负责人", "下次跟进", "创建时间",
}

// ExportLeads 导出线索为xlsx
func (s *LeadService) ExportLeads(ctx context.Context, filters map[string]string) (*excelize.File, string, error) {
	leads, _, err := s.repo.FindAll(ctx, 1, 10000, filters)
	if err != nil {
		return nil, "", fmt.Errorf("查询线索失败: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Leads"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range leadExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, lead := range leads {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), lead.Code)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), lead.OpportunityName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), lead.ClientName)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), lead.Company)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), lead.Stage)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), lead.LeadSource)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), lead.LeadScore)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), lead.ExpectedRevenue)
		if lead.DealValue != nil {
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), *lead.DealValue)
		}
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), lead.AssignedToName)
		if lead.NextFollowUp != nil {
			f.SetCellValue(sheet, fmt.Sprintf("K%d", row), lead.NextFollowUp.Format("2006-01-02"))
		}
		f.SetCellValue(sheet, fmt.Sprintf("L%d", row), lead.CreatedAt.Format("2006-01-02 15:04"))
	}

	filename := fmt.Sprintf("leads_%s.xlsx", time.Now().Format("20060102_150405"))
	return f, filename, nil
}
