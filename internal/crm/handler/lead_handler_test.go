package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/bitfantasy/nimo-crm/internal/crm/testutil"
)

func setupLeadTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	leadSvc := service.NewLeadService(repos.Lead, repos.Contact, repos.Employee, db)
	contactSvc := service.NewContactService(repos.Contact, repos.Lead)

	leadHandler := NewLeadHandler(leadSvc)
	contactHandler := NewContactHandler(contactSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1/crm")
	api.GET("/leads", leadHandler.ListLeads)
	api.GET("/leads/board", leadHandler.GetBoard)
	api.POST("/leads", leadHandler.CreateLead)
	api.GET("/leads/:id", leadHandler.GetLead)
	api.PUT("/leads/:id", leadHandler.UpdateLead)
	api.GET("/leads/:id/validate", leadHandler.ValidateStage)
	api.POST("/leads/:id/transition", leadHandler.TransitionStage)
	api.GET("/leads/:id/history", leadHandler.ListHistory)
	api.POST("/leads/:id/attempts", leadHandler.AddAttempt)
	api.GET("/leads/:id/notes", leadHandler.ListNotes)
	api.POST("/leads/:id/notes", leadHandler.AddNote)
	api.PUT("/leads/:id/notes/:noteId", leadHandler.EditNote)
	api.POST("/contacts", contactHandler.CreateContact)
	api.DELETE("/contacts/:id", contactHandler.DeleteContact)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func createTestLead(t *testing.T, env *testutil.TestEnv, token, name string) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads",
		map[string]interface{}{"opportunity_name": name}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	return resp["data"].(map[string]interface{})
}

// TestLeadHappyPath create a lead, qualify it with a logged contact attempt
func TestLeadHappyPath(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	lead := createTestLead(t, env, token, "Acme Deal")
	if lead["stage"] != entity.StageNew {
		t.Fatalf("expected stage New on creation, got %v", lead["stage"])
	}
	if lead["code"] != "LEAD-0001" {
		t.Fatalf("expected code LEAD-0001, got %v", lead["code"])
	}
	leadID := lead["id"].(string)

	// Initial history entry written at creation
	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/crm/leads/"+leadID+"/history", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 history entry after creation, got %d", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["stage"] != entity.StageNew || first["notes"] != "Lead created" {
		t.Fatalf("unexpected initial history entry: %v", first)
	}

	// Qualify with contact details supplied in the dialog
	w2 := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/transition",
		map[string]interface{}{"target_stage": entity.StageQualified, "contact_details": "called"}, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	data := testutil.ParseResponse(w2)["data"].(map[string]interface{})
	if data["stage"] != entity.StageQualified {
		t.Fatalf("expected stage Qualified, got %v", data["stage"])
	}
	if data["last_contact_date"] == nil {
		t.Fatalf("expected last_contact_date set after qualification")
	}

	// One contact attempt persisted
	var attempts []entity.LeadContactAttempt
	env.DB.Where("lead_id = ?", leadID).Find(&attempts)
	if len(attempts) != 1 {
		t.Fatalf("expected 1 contact attempt, got %d", len(attempts))
	}
	if attempts[0].Details != "called" || attempts[0].Type != entity.AttemptTypeQualification {
		t.Fatalf("unexpected contact attempt: %+v", attempts[0])
	}

	// Exactly one new history entry per committed transition
	w3 := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/crm/leads/"+leadID+"/history", nil, token)
	items3 := testutil.ParseResponse(w3)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items3) != 2 {
		t.Fatalf("expected 2 history entries after one transition, got %d", len(items3))
	}
	last := items3[1].(map[string]interface{})
	if last["stage"] != entity.StageQualified {
		t.Fatalf("expected last history entry Qualified, got %v", last["stage"])
	}
	if last["changed_by"] != "Test Admin" {
		t.Fatalf("expected changed_by from token, got %v", last["changed_by"])
	}
}

// TestLeadBlockedSkip a direct New→Negotiation jump must be refused and leave no trace
func TestLeadBlockedSkip(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	lead := createTestLead(t, env, token, "Skip Attempt")
	leadID := lead["id"].(string)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/transition",
		map[string]interface{}{"target_stage": entity.StageNegotiation}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	errs := resp["data"].(map[string]interface{})["errors"].([]interface{})
	found := false
	for _, e := range errs {
		if e == "Cannot skip from New to Negotiation" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected skip error, got %v", errs)
	}

	// Stage unchanged, no history appended
	var stored entity.Lead
	env.DB.Where("id = ?", leadID).First(&stored)
	if stored.Stage != entity.StageNew {
		t.Fatalf("expected stage to remain New, got %s", stored.Stage)
	}
	var count int64
	env.DB.Model(&entity.LeadStageHistory{}).Where("lead_id = ?", leadID).Count(&count)
	if count != 1 {
		t.Fatalf("expected history untouched (1 entry), got %d", count)
	}
}

// TestLeadLostBypass Lost is reachable from New once a deal value is supplied
func TestLeadLostBypass(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	lead := createTestLead(t, env, token, "Walkaway Deal")
	leadID := lead["id"].(string)

	// Pre-check: only the deal value gate fires, never the skip rule
	w := testutil.DoRequest(env.Router, http.MethodGet,
		"/api/v1/crm/leads/"+leadID+"/validate?target_stage=Lost", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["valid"] != false {
		t.Fatalf("expected valid=false, got %v", data["valid"])
	}
	errs := data["errors"].([]interface{})
	if len(errs) != 1 || errs[0] != "Deal value must be specified" {
		t.Fatalf("expected only the deal value error, got %v", errs)
	}

	// Supplying the deal value in the dialog lets the commit through
	w2 := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/transition",
		map[string]interface{}{
			"target_stage":     entity.StageLost,
			"final_deal_value": 1000,
			"lost_reason":      entity.LostReasonPrice,
		}, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	result := testutil.ParseResponse(w2)["data"].(map[string]interface{})
	if result["stage"] != entity.StageLost {
		t.Fatalf("expected stage Lost, got %v", result["stage"])
	}
	if result["lost_reason"] != entity.LostReasonPrice {
		t.Fatalf("expected lost_reason price, got %v", result["lost_reason"])
	}
	if result["won_lost_date"] == nil {
		t.Fatalf("expected won_lost_date stamped")
	}
}

// TestWonMergeRoundTrip walk the full pipeline and close Won with dialog data
func TestWonMergeRoundTrip(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	lead := createTestLead(t, env, token, "Full Pipeline Deal")
	leadID := lead["id"].(string)

	// New → Qualified
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/transition",
		map[string]interface{}{"target_stage": entity.StageQualified, "contact_details": "intro call"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("qualify failed: %d %s", w.Code, w.Body.String())
	}

	// Attach proposal document, then Qualified → Proposal Sent
	env.DB.Model(&entity.Lead{}).Where("id = ?", leadID).
		Update("proposal_document", "acme-proposal.pdf")
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/transition",
		map[string]interface{}{"target_stage": entity.StageProposalSent, "proposal_value": 4200}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("proposal transition failed: %d %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["deal_value"].(float64) != 4200 {
		t.Fatalf("expected deal_value 4200 from proposal dialog, got %v", data["deal_value"])
	}
	if data["proposal_sent_date"] == nil {
		t.Fatalf("expected proposal_sent_date stamped")
	}

	// Proposal Sent → Negotiation
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/transition",
		map[string]interface{}{
			"target_stage":    entity.StageNegotiation,
			"follow_up_date":  "2024-01-15T10:00:00Z",
			"client_feedback": "price too high",
		}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("negotiation transition failed: %d %s", w.Code, w.Body.String())
	}

	// Negotiation → Won with final figures from the dialog
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/transition",
		map[string]interface{}{
			"target_stage":     entity.StageWon,
			"final_deal_value": 5000,
			"closing_date":     "2024-01-01T00:00:00Z",
		}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("won transition failed: %d %s", w.Code, w.Body.String())
	}
	won := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if won["stage"] != entity.StageWon {
		t.Fatalf("expected stage Won, got %v", won["stage"])
	}
	if won["deal_value"].(float64) != 5000 {
		t.Fatalf("expected deal_value 5000, got %v", won["deal_value"])
	}
	if won["won_lost_date"] != "2024-01-01T00:00:00Z" {
		t.Fatalf("expected won_lost_date 2024-01-01T00:00:00Z, got %v", won["won_lost_date"])
	}

	// History grew by exactly one entry per transition, ending at Won
	var history []entity.LeadStageHistory
	env.DB.Where("lead_id = ?", leadID).Order("created_at ASC").Find(&history)
	if len(history) != 5 {
		t.Fatalf("expected 5 history entries (create + 4 transitions), got %d", len(history))
	}
	if history[4].Stage != entity.StageWon {
		t.Fatalf("expected final history entry Won, got %s", history[4].Stage)
	}

	// Terminal: any further transition is refused
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/transition",
		map[string]interface{}{"target_stage": entity.StageNegotiation}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for transition out of Won, got %d: %s", w.Code, w.Body.String())
	}
	errs := testutil.ParseResponse(w)["data"].(map[string]interface{})["errors"].([]interface{})
	if len(errs) != 1 || errs[0] != "Cannot change stage of a closed lead" {
		t.Fatalf("expected terminal refusal, got %v", errs)
	}
}

// TestStageNotes add and edit per-stage notes
func TestStageNotes(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	lead := createTestLead(t, env, token, "Annotated Deal")
	leadID := lead["id"].(string)

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads/"+leadID+"/notes",
		map[string]interface{}{"content": "first touch planned"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	note := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if note["stage"] != entity.StageNew {
		t.Fatalf("expected note keyed to current stage New, got %v", note["stage"])
	}
	if note["created_by"] != "Test Admin" {
		t.Fatalf("expected created_by from token, got %v", note["created_by"])
	}
	noteID := note["id"].(string)

	// Edit stamps edited_at and keeps the rest
	w2 := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/crm/leads/"+leadID+"/notes/"+noteID,
		map[string]interface{}{"content": "first touch done"}, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	edited := testutil.ParseResponse(w2)["data"].(map[string]interface{})
	if edited["content"] != "first touch done" {
		t.Fatalf("expected updated content, got %v", edited["content"])
	}
	if edited["edited_at"] == nil {
		t.Fatalf("expected edited_at stamped on edit")
	}
	if edited["stage"] != entity.StageNew || edited["created_by"] != "Test Admin" {
		t.Fatalf("expected other note fields retained, got %v", edited)
	}

	// Listing groups notes by stage
	w3 := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/crm/leads/"+leadID+"/notes", nil, token)
	grouped := testutil.ParseResponse(w3)["data"].(map[string]interface{})
	newNotes := grouped[entity.StageNew].([]interface{})
	if len(newNotes) != 1 {
		t.Fatalf("expected 1 note under New, got %d", len(newNotes))
	}
}

// TestLeadBoardGrouping every stage key present, leads bucketed by stage
func TestLeadBoardGrouping(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	createTestLead(t, env, token, "Deal A")
	createTestLead(t, env, token, "Deal B")

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/crm/leads/board", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	board := testutil.ParseResponse(w)["data"].(map[string]interface{})
	for _, stage := range entity.StageOrder {
		if _, ok := board[stage]; !ok {
			t.Fatalf("expected board to contain stage key %q", stage)
		}
	}
	if len(board[entity.StageNew].([]interface{})) != 2 {
		t.Fatalf("expected 2 leads under New, got %d", len(board[entity.StageNew].([]interface{})))
	}
	if len(board[entity.StageWon].([]interface{})) != 0 {
		t.Fatalf("expected empty Won column")
	}
}

// TestLeadCodeSequence codes increment per creation
func TestLeadCodeSequence(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	first := createTestLead(t, env, token, "First")
	second := createTestLead(t, env, token, "Second")

	if first["code"] != "LEAD-0001" || second["code"] != "LEAD-0002" {
		t.Fatalf("expected sequential codes, got %v and %v", first["code"], second["code"])
	}
}
