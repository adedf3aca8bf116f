package service

import (
	"reflect"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
)

func newTestLead(stage string) *entity.Lead {
	return &entity.Lead{
		ID:              "lead-test-001",
		Code:            "LEAD-0001",
		OpportunityName: "Acme Deal",
		Stage:           stage,
	}
}

// TestValidateSkipRule verifies the no-skip rule and the Lost exemption
func TestValidateSkipRule(t *testing.T) {
	tests := []struct {
		name    string
		stage   string
		target  string
		wantErr string
	}{
		{"new to proposal blocked", entity.StageNew, entity.StageProposalSent, "Cannot skip from New to Proposal Sent"},
		{"new to negotiation blocked", entity.StageNew, entity.StageNegotiation, "Cannot skip from New to Negotiation"},
		{"new to won blocked", entity.StageNew, entity.StageWon, "Cannot skip from New to Won"},
		{"qualified to won blocked", entity.StageQualified, entity.StageWon, "Cannot skip from Qualified to Won"},
		{"lost exempt from new", entity.StageNew, entity.StageLost, ""},
		{"lost exempt from qualified", entity.StageQualified, entity.StageLost, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := newTestLead(tt.stage)
			errs := ValidateTransition(lead, tt.target)
			if tt.wantErr == "" {
				if containsSkipError(errs) {
					t.Fatalf("expected no skip error, got %v", errs)
				}
				return
			}
			if !containsError(errs, tt.wantErr) {
				t.Fatalf("expected %q in errors, got %v", tt.wantErr, errs)
			}
		})
	}
}

// TestValidateNextStageNeverSkips moving to the immediate successor never triggers the skip rule
func TestValidateNextStageNeverSkips(t *testing.T) {
	now := time.Now()
	dealValue := 5000.0
	doc := "proposal.pdf"

	lead := newTestLead(entity.StageNew)
	lead.LastContactDate = &now
	lead.NextFollowUp = &now
	lead.ProposalDocument = &doc
	lead.DealValue = &dealValue

	for i := 0; i < len(entity.StageOrder)-2; i++ {
		lead.Stage = entity.StageOrder[i]
		target := entity.StageOrder[i+1]
		if errs := ValidateTransition(lead, target); len(errs) != 0 {
			t.Fatalf("expected no errors for %s→%s, got %v", lead.Stage, target, errs)
		}
	}
}

// TestValidateQualifiedGate contact attempt or last contact date required
func TestValidateQualifiedGate(t *testing.T) {
	lead := newTestLead(entity.StageNew)
	errs := ValidateTransition(lead, entity.StageQualified)
	if !reflect.DeepEqual(errs, []string{"At least one contact attempt must be logged"}) {
		t.Fatalf("expected contact attempt error, got %v", errs)
	}

	now := time.Now()
	lead.LastContactDate = &now
	if errs := ValidateTransition(lead, entity.StageQualified); len(errs) != 0 {
		t.Fatalf("expected no errors with last contact date set, got %v", errs)
	}

	lead.LastContactDate = nil
	lead.ContactAttempts = []entity.LeadContactAttempt{
		{ID: "att-1", LeadID: lead.ID, Date: now, Details: "called", Type: entity.AttemptTypeCall},
	}
	if errs := ValidateTransition(lead, entity.StageQualified); len(errs) != 0 {
		t.Fatalf("expected no errors with contact attempt logged, got %v", errs)
	}
}

// TestValidateProposalGate proposal document required
func TestValidateProposalGate(t *testing.T) {
	lead := newTestLead(entity.StageQualified)
	errs := ValidateTransition(lead, entity.StageProposalSent)
	if !reflect.DeepEqual(errs, []string{"Proposal document must be attached"}) {
		t.Fatalf("expected proposal document error, got %v", errs)
	}

	empty := ""
	lead.ProposalDocument = &empty
	if errs := ValidateTransition(lead, entity.StageProposalSent); len(errs) != 1 {
		t.Fatalf("empty document name must not satisfy the gate, got %v", errs)
	}

	doc := "proposal.pdf"
	lead.ProposalDocument = &doc
	if errs := ValidateTransition(lead, entity.StageProposalSent); len(errs) != 0 {
		t.Fatalf("expected no errors with document attached, got %v", errs)
	}
}

// TestValidateNegotiationGate follow-up date required
func TestValidateNegotiationGate(t *testing.T) {
	lead := newTestLead(entity.StageProposalSent)
	errs := ValidateTransition(lead, entity.StageNegotiation)
	if !reflect.DeepEqual(errs, []string{"Follow-up date must be set"}) {
		t.Fatalf("expected follow-up error, got %v", errs)
	}

	now := time.Now()
	lead.NextFollowUp = &now
	if errs := ValidateTransition(lead, entity.StageNegotiation); len(errs) != 0 {
		t.Fatalf("expected no errors with follow-up set, got %v", errs)
	}
}

// TestValidateDealValueGate Won and Lost both require a non-zero deal value
func TestValidateDealValueGate(t *testing.T) {
	for _, target := range []string{entity.StageWon, entity.StageLost} {
		lead := newTestLead(entity.StageNegotiation)
		errs := ValidateTransition(lead, target)
		if !containsError(errs, "Deal value must be specified") {
			t.Fatalf("expected deal value error for %s, got %v", target, errs)
		}

		zero := 0.0
		lead.DealValue = &zero
		errs = ValidateTransition(lead, target)
		if !containsError(errs, "Deal value must be specified") {
			t.Fatalf("zero deal value must not satisfy the gate for %s, got %v", target, errs)
		}

		value := 5000.0
		lead.DealValue = &value
		if errs := ValidateTransition(lead, target); len(errs) != 0 {
			t.Fatalf("expected no errors with deal value set for %s, got %v", target, errs)
		}
	}
}

// TestValidateAllRulesReported multiple violated rules all show up, in rule order
func TestValidateAllRulesReported(t *testing.T) {
	lead := newTestLead(entity.StageNew)
	errs := ValidateTransition(lead, entity.StageWon)
	want := []string{
		"Cannot skip from New to Won",
		"Deal value must be specified",
	}
	if !reflect.DeepEqual(errs, want) {
		t.Fatalf("expected %v, got %v", want, errs)
	}
}

// TestValidateTerminalRefusal closed leads refuse every transition
func TestValidateTerminalRefusal(t *testing.T) {
	for _, stage := range []string{entity.StageWon, entity.StageLost} {
		lead := newTestLead(stage)
		value := 5000.0
		lead.DealValue = &value

		for _, target := range entity.StageOrder {
			if target == stage {
				continue
			}
			errs := ValidateTransition(lead, target)
			if !reflect.DeepEqual(errs, []string{"Cannot change stage of a closed lead"}) {
				t.Fatalf("expected terminal refusal for %s→%s, got %v", stage, target, errs)
			}
		}
	}
}

// TestValidateLostBypassFromNew the skip rule never fires for Lost, the deal value gate still does
func TestValidateLostBypassFromNew(t *testing.T) {
	lead := newTestLead(entity.StageNew)
	errs := ValidateTransition(lead, entity.StageLost)
	want := []string{"Deal value must be specified"}
	if !reflect.DeepEqual(errs, want) {
		t.Fatalf("expected only the deal value error, got %v", errs)
	}
}

func containsError(errs []string, want string) bool {
	for _, e := range errs {
		if e == want {
			return true
		}
	}
	return false
}

func containsSkipError(errs []string) bool {
	for _, e := range errs {
		if len(e) >= 11 && e[:11] == "Cannot skip" {
			return true
		}
	}
	return false
}
