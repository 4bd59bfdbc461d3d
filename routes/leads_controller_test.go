package routes

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixeluwjal/sanghaforms-sub002/model"
)

func TestUpdateLead(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form := seedForm(t, a, func(f *model.Form) { f.SubmissionType = model.SubmissionLead })

	rec := doJSON(t, handler, http.MethodPost, "/api/submissions", submitBody(form, sampleFields()), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	leadID := decodeBody(t, rec)["responseId"].(string)

	rec = doJSON(t, handler, http.MethodPatch, "/api/admin/leads/"+leadID, map[string]any{
		"pipelineStatus": "qualified",
		"leadScore":      85,
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var status string
	var score int
	var tags string
	require.NoError(t, a.QueryRow(`
		SELECT pipeline_status, lead_score, source_tags FROM lead_responses WHERE id = ?`, leadID,
	).Scan(&status, &score, &tags))
	assert.Equal(t, "qualified", status)
	assert.Equal(t, 85, score)
	// untouched fields keep their value
	assert.Equal(t, "[]", tags)

	rec = doJSON(t, handler, http.MethodPatch, "/api/admin/leads/"+leadID, map[string]any{
		"sourceTags": []string{"karnataka", "bengaluru-south"},
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, a.QueryRow(`
		SELECT pipeline_status, source_tags FROM lead_responses WHERE id = ?`, leadID,
	).Scan(&status, &tags))
	assert.Equal(t, "qualified", status)
	assert.JSONEq(t, `["karnataka","bengaluru-south"]`, tags)
}

func TestUpdateLead_Validation(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)

	rec := doJSON(t, handler, http.MethodPatch, "/api/admin/leads/"+uuid.NewString(), map[string]any{
		"pipelineStatus": "archived",
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPatch, "/api/admin/leads/"+uuid.NewString(), map[string]any{
		"leadScore": 150,
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPatch, "/api/admin/leads/"+uuid.NewString(), map[string]any{}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPatch, "/api/admin/leads/"+uuid.NewString(), map[string]any{
		"pipelineStatus": "contacted",
	}, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func importCSV(t *testing.T, handler http.Handler, cookie *http.Cookie, formID, csvBody string) *httptest.ResponseRecorder {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", "leads.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/leads/import?formId="+formID, buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestBulkImportLeads(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form := seedForm(t, a, func(f *model.Form) { f.SubmissionType = model.SubmissionLead })

	rec := importCSV(t, handler, cookie, form.ID,
		"Name,Phone\nAsha Rao,9900112233\nRavi Kumar,9900445566\nbroken-row\n")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["imported"])
	assert.Equal(t, float64(1), body["failed"])

	assert.Equal(t, 2, countRows(t, a, "lead_responses"))

	var ua, pipeline string
	require.NoError(t, a.QueryRow(`
		SELECT user_agent, pipeline_status FROM lead_responses LIMIT 1`,
	).Scan(&ua, &pipeline))
	assert.Equal(t, "bulk-import", ua)
	assert.Equal(t, "new", pipeline)

	var fileName string
	var total, imported, failed int
	require.NoError(t, a.QueryRow(`
		SELECT file_name, total_rows, imported_rows, failed_rows FROM bulk_uploads WHERE id = ?`,
		body["uploadId"],
	).Scan(&fileName, &total, &imported, &failed))
	assert.Equal(t, "leads.csv", fileName)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, failed)
}

func TestBulkImportLeads_WrongFormType(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)
	form := seedForm(t, a)

	rec := importCSV(t, handler, cookie, form.ID, "Name\nAsha Rao\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, countRows(t, a, "lead_responses"))
}

func TestSources(t *testing.T) {
	a := newTestApp(t)
	handler := Wire(a)
	_, cookie := seedAdmin(t, a, "admin@example.com", model.RoleAdmin)

	rec := doJSON(t, handler, http.MethodPost, "/api/admin/sources", map[string]any{
		"name": "Karnataka",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	parentID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, handler, http.MethodPost, "/api/admin/sources", map[string]any{
		"name":     "Bengaluru South",
		"parentId": parentID,
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	childID := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, handler, http.MethodGet, "/api/admin/sources", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	sources := decodeBody(t, rec)["sources"].([]any)
	require.Len(t, sources, 2)
	first := sources[0].(map[string]any)
	assert.Equal(t, "Bengaluru South", first["name"])
	assert.Equal(t, parentID, first["parentId"])

	rec = doJSON(t, handler, http.MethodDelete, "/api/admin/sources/"+childID, nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodDelete, "/api/admin/sources/"+childID, nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
