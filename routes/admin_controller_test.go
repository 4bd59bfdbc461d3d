package routes

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixeluwjal/sanghaforms-sub002/model"
)

func TestAdminRoutesRequireSession(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/forms", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/admin/forms", nil, &http.Cookie{Name: "token", Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateForm(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	adminID, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/forms", map[string]any{
		"title": "Yoga Camp Registration",
		"sections": []map[string]any{{
			"title": "About you",
			"fields": []map[string]any{
				{"type": "text", "label": "Full Name", "required": true},
			},
		}},
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	formID := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, formID)

	rec = doJSON(t, handler, http.MethodGet, "/api/admin/forms/"+formID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var form model.Form
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &form))
	assert.Equal(t, "Yoga Camp Registration", form.Title)
	assert.Equal(t, model.FormStatusDraft, form.Status)
	assert.Equal(t, model.SubmissionGeneral, form.SubmissionType)
	assert.Equal(t, "INR", form.Settings.PaymentCurrency)
	assert.Equal(t, adminID, form.CreatedBy)
	// ids are assigned server-side for sections and fields sent without one
	require.Len(t, form.Sections, 1)
	assert.NotEmpty(t, form.Sections[0].ID)
	require.Len(t, form.Sections[0].Fields, 1)
	assert.NotEmpty(t, form.Sections[0].Fields[0].ID)
}

func TestCreateForm_TitleRequired(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/forms", map[string]any{
		"description": "no title",
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateForm(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form := seedForm(t, a)

	rec := doJSON(t, handler, http.MethodPut, "/api/admin/forms/"+form.ID, map[string]any{
		"title":    "Renamed",
		"settings": map[string]any{"isActive": true, "customSlug": "renamed-form"},
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var title, slug string
	require.NoError(t, a.QueryRow(`SELECT title, custom_slug FROM forms WHERE id = ?`, form.ID).Scan(&title, &slug))
	assert.Equal(t, "Renamed", title)
	assert.Equal(t, "renamed-form", slug)

	rec = doJSON(t, handler, http.MethodPut, "/api/admin/forms/"+uuid.NewString(), map[string]any{
		"title": "Ghost",
	}, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateForm_SlugTaken(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)

	seedForm(t, a, func(f *model.Form) { f.Settings.CustomSlug = "camp-2026" })
	other := seedForm(t, a, func(f *model.Form) { f.Settings.CustomSlug = "other-slug" })

	// handing an active form a slug another active form already holds is
	// rejected outright, not only at publish time
	rec := doJSON(t, handler, http.MethodPut, "/api/admin/forms/"+other.ID, map[string]any{
		"title":    other.Title,
		"settings": map[string]any{"isActive": true, "customSlug": "camp-2026"},
	}, cookie)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slug is already taken", decodeBody(t, rec)["error"])

	var slug string
	require.NoError(t, a.QueryRow(`SELECT custom_slug FROM forms WHERE id = ?`, other.ID).Scan(&slug))
	assert.Equal(t, "other-slug", slug)

	var n int
	require.NoError(t, a.QueryRow(`
		SELECT COUNT(1) FROM forms WHERE custom_slug = 'camp-2026' AND is_active = 1`).Scan(&n))
	assert.Equal(t, 1, n)

	// keeping its own slug on update is fine
	rec = doJSON(t, handler, http.MethodPut, "/api/admin/forms/"+other.ID, map[string]any{
		"title":    "Renamed",
		"settings": map[string]any{"isActive": true, "customSlug": "other-slug"},
	}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteForm_RemovesResponsesAndPayments(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form, _, _ := submitPaidLead(t, a, handler)

	require.Equal(t, 1, countRows(t, a, "lead_responses"))
	require.Equal(t, 1, countRows(t, a, "payments"))

	rec := doJSON(t, handler, http.MethodDelete, "/api/admin/forms/"+form.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 0, countRows(t, a, "forms"))
	assert.Equal(t, 0, countRows(t, a, "lead_responses"))
	assert.Equal(t, 0, countRows(t, a, "payments"))

	rec = doJSON(t, handler, http.MethodDelete, "/api/admin/forms/"+form.ID, nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishForm(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form := seedForm(t, a, func(f *model.Form) {
		f.Status = model.FormStatusDraft
		f.Settings.CustomSlug = "summer-camp"
		f.Settings.IsActive = false
	})

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/forms/"+form.ID+"/publish", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "summer-camp", decodeBody(t, rec)["slug"])

	var status string
	var active bool
	require.NoError(t, a.QueryRow(`SELECT status, is_active FROM forms WHERE id = ?`, form.ID).Scan(&status, &active))
	assert.Equal(t, model.FormStatusPublished, status)
	assert.True(t, active)

	// the form is now publicly reachable under its slug
	rec = doJSON(t, handler, http.MethodGet, "/api/forms/summer-camp", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublishForm_SlugTaken(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)

	seedForm(t, a, func(f *model.Form) { f.Settings.CustomSlug = "summer-camp" })
	second := seedForm(t, a, func(f *model.Form) {
		f.Status = model.FormStatusDraft
		f.Settings.CustomSlug = "summer-camp"
	})

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/forms/"+second.ID+"/publish", nil, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slug is already taken", decodeBody(t, rec)["error"])
}

func TestCheckSlug(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	taken := seedForm(t, a, func(f *model.Form) { f.Settings.CustomSlug = "taken-slug" })
	plain := seedForm(t, a)

	check := func(query string) map[string]any {
		rec := doJSON(t, handler, http.MethodGet, "/api/admin/forms/slug-check?"+query, nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeBody(t, rec)
	}

	body := check("slug=ab")
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "slug must be at least 3 characters", body["message"])

	body = check("slug=MySlug")
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "slug may only contain lowercase letters, numbers and hyphens", body["message"])

	body = check("slug=fresh-slug")
	assert.Equal(t, true, body["available"])

	body = check("slug=taken-slug")
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "slug is already taken", body["message"])

	// raw form ids share the lookup namespace with custom slugs
	body = check("slug=" + plain.ID)
	assert.Equal(t, false, body["available"])

	// a form may keep its own slug
	body = check("slug=taken-slug&exclude=" + taken.ID)
	assert.Equal(t, true, body["available"])
}

func TestListFormResponses(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form := seedForm(t, a, func(f *model.Form) { f.SubmissionType = model.SubmissionLead })

	rec := doJSON(t, handler, http.MethodPost, "/api/submissions", submitBody(form, sampleFields()), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/admin/forms/"+form.ID+"/responses", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, model.SubmissionLead, body["type"])
	responses := body["responses"].([]any)
	require.Len(t, responses, 1)
	first := responses[0].(map[string]any)
	assert.Equal(t, "new", first["pipelineStatus"])
}

func TestGetResponse_AcrossTables(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)

	kinds := []string{model.SubmissionGeneral, model.SubmissionLead, model.SubmissionSwayamsevak}
	for _, kind := range kinds {
		form := seedForm(t, a, func(f *model.Form) { f.SubmissionType = kind })
		rec := doJSON(t, handler, http.MethodPost, "/api/submissions", submitBody(form, sampleFields()), nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		id := decodeBody(t, rec)["responseId"].(string)

		rec = doJSON(t, handler, http.MethodGet, "/api/admin/responses/"+id, nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, kind, body["type"])
		assert.Equal(t, id, body["response"].(map[string]any)["id"])
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/admin/responses/"+uuid.NewString(), nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteResponse(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form := seedForm(t, a, func(f *model.Form) { f.SubmissionType = model.SubmissionSwayamsevak })

	rec := doJSON(t, handler, http.MethodPost, "/api/submissions", submitBody(form, sampleFields()), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["responseId"].(string)

	rec = doJSON(t, handler, http.MethodDelete, "/api/admin/responses/"+id, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, countRows(t, a, "swayamsevak_responses"))
}

func TestExportFormResponses(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form := seedForm(t, a)

	rec := doJSON(t, handler, http.MethodPost, "/api/submissions", submitBody(form, sampleFields()), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/admin/forms/"+form.ID+"/responses/export", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"response_id", "submitted_at", "payment_status", "Full Name", "Email"}, records[0])
	assert.Equal(t, "Asha Rao", records[1][3])
	assert.Equal(t, "asha@example.com", records[1][4])
	assert.Equal(t, model.PaymentNotRequired, records[1][2])
}
