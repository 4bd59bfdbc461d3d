package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pixeluwjal/sanghaforms-sub002/app"
	"github.com/pixeluwjal/sanghaforms-sub002/auth"
	"github.com/pixeluwjal/sanghaforms-sub002/config"
	"github.com/pixeluwjal/sanghaforms-sub002/database"
	"github.com/pixeluwjal/sanghaforms-sub002/model"
)

const testGatewaySecret = "test-gateway-secret"

func newTestApp(t *testing.T) app.App {
	t.Helper()

	cfg := config.Config{
		DBUrl:         filepath.Join(t.TempDir(), "test.sqlite"),
		TokenSecret:   "test-token-secret",
		PaymentKeyID:  "key_test",
		PaymentSecret: testGatewaySecret,
	}

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return app.App{
		DB:        db,
		TokenAuth: auth.New(cfg.TokenSecret),
		Config:    cfg,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// seedAdmin inserts an active admin and returns its id plus a valid
// session cookie.
func seedAdmin(t *testing.T, a app.App, email, role string) (string, *http.Cookie) {
	t.Helper()

	id := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	now := time.Now()
	_, err = a.Exec(`
		INSERT INTO admins (id, email, password_hash, role, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, email, string(hash), role, model.AdminActive, now, now,
	)
	require.NoError(t, err)

	token, err := a.Issue(auth.Identity{AdminID: id, Email: email, Role: role})
	require.NoError(t, err)

	return id, &http.Cookie{Name: "token", Value: token}
}

// seedForm inserts a published, active general form; opts mutate the
// default before insertion.
func seedForm(t *testing.T, a app.App, opts ...func(*model.Form)) model.Form {
	t.Helper()

	now := time.Now()
	f := model.Form{
		ID:          uuid.NewString(),
		Title:       "Community Outreach",
		Description: "Tell us about yourself",
		Sections: []model.Section{{
			ID:    "s1",
			Title: "Basics",
			Fields: []model.Field{
				{ID: "f1", Type: "text", Label: "Full Name", Required: true},
				{ID: "f2", Type: "email", Label: "Email"},
			},
		}},
		SubmissionType: model.SubmissionGeneral,
		Settings: model.Settings{
			IsActive:        true,
			PaymentCurrency: "INR",
		},
		Status:    model.FormStatusPublished,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(&f)
	}

	theme, err := json.Marshal(f.Theme)
	require.NoError(t, err)
	sections, err := json.Marshal(f.Sections)
	require.NoError(t, err)

	_, err = a.Exec(`
		INSERT INTO forms (id, title, description, theme, sections, submission_type,
			custom_slug, is_active, expires_at, max_responses,
			payment_required, payment_amount, payment_currency,
			status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Title, f.Description, string(theme), string(sections), f.SubmissionType,
		f.Settings.CustomSlug, f.Settings.IsActive, nullableTime(f.Settings.ExpiresAt), f.Settings.MaxResponses,
		f.Settings.PaymentRequired, f.Settings.PaymentAmount, f.Settings.PaymentCurrency,
		f.Status, f.CreatedBy, f.CreatedAt, f.UpdatedAt,
	)
	require.NoError(t, err)

	return f
}

func submitBody(f model.Form, fields []model.ResponseField) map[string]any {
	return map[string]any{
		"formId":    f.ID,
		"formSlug":  f.PublicSlug(),
		"responses": fields,
	}
}

func sampleFields() []model.ResponseField {
	return []model.ResponseField{
		{FieldID: "f1", FieldType: "text", FieldLabel: "Full Name", Value: "Asha Rao"},
		{FieldID: "f2", FieldType: "email", FieldLabel: "Email", Value: "asha@example.com"},
	}
}

func countRows(t *testing.T, a app.App, table string) int {
	t.Helper()

	var n int
	require.NoError(t, a.QueryRow(`SELECT COUNT(1) FROM `+table).Scan(&n))
	return n
}
