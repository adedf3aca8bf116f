package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/testutil"
)

// TestContactCRUD create, update, fetch and delete an unreferenced contact
func TestContactCRUD(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/contacts",
		map[string]interface{}{
			"name":    "Jane Roe",
			"email":   "jane@acme.com",
			"company": "Acme Corp",
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	contact := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if contact["name"] != "Jane Roe" || contact["company"] != "Acme Corp" {
		t.Fatalf("unexpected contact: %v", contact)
	}
	contactID := contact["id"].(string)

	w2 := testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/crm/contacts/"+contactID, nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting unreferenced contact, got %d: %s", w2.Code, w2.Body.String())
	}

	var count int64
	env.DB.Model(&entity.Contact{}).Where("id = ?", contactID).Count(&count)
	if count != 0 {
		t.Fatalf("expected contact removed, still present")
	}
}

// TestContactDeleteGuard a contact referenced by a lead cannot be deleted
func TestContactDeleteGuard(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	contact := testutil.SeedTestContact(t, env.DB, "contact-guard-01", "John Doe", "john@acme.com")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads",
		map[string]interface{}{
			"opportunity_name": "Guarded Deal",
			"contact_id":       contact.ID,
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w2 := testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/crm/contacts/"+contact.ID, nil, token)
	if w2.Code != http.StatusConflict {
		t.Fatalf("expected 409 for referenced contact, got %d: %s", w2.Code, w2.Body.String())
	}

	// Contact survives the refused delete
	var count int64
	env.DB.Model(&entity.Contact{}).Where("id = ?", contact.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected contact to remain, got count %d", count)
	}
}

// TestCreateLeadWithNewContact creating a lead with inline contact data creates both atomically
func TestCreateLeadWithNewContact(t *testing.T) {
	env := setupLeadTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/crm/leads",
		map[string]interface{}{
			"opportunity_name": "Fresh Client Deal",
			"new_contact": map[string]interface{}{
				"name":    "New Person",
				"email":   "new@client.com",
				"company": "Client Co",
			},
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	lead := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if lead["contact_id"] == nil {
		t.Fatalf("expected lead linked to the new contact")
	}
	contactID := lead["contact_id"].(string)

	var contact entity.Contact
	if err := env.DB.Where("id = ?", contactID).First(&contact).Error; err != nil {
		t.Fatalf("expected contact created: %v", err)
	}
	if contact.Name != "New Person" || contact.Company != "Client Co" {
		t.Fatalf("unexpected contact: %+v", contact)
	}
	if contact.Notes != "Created from lead form" {
		t.Fatalf("expected origin note on contact, got %q", contact.Notes)
	}
}
