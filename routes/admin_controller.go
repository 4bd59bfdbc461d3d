package routes

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/pixeluwjal/sanghaforms-sub002/app"
	"github.com/pixeluwjal/sanghaforms-sub002/httpx"
	"github.com/pixeluwjal/sanghaforms-sub002/log"
	"github.com/pixeluwjal/sanghaforms-sub002/model"
	"github.com/pixeluwjal/sanghaforms-sub002/routes/middlewares"
	"github.com/pixeluwjal/sanghaforms-sub002/store"
)

type formRequest struct {
	Title          string          `json:"title" validate:"required"`
	Description    string          `json:"description"`
	Theme          model.Theme     `json:"theme"`
	Sections       []model.Section `json:"sections"`
	SubmissionType string          `json:"submissionType" validate:"omitempty,oneof=general lead swayamsevak"`
	Settings       model.Settings  `json:"settings"`
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, _ := middlewares.IdentityFrom(r.Context())

		req := formRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "form.create.validate", err)
			return
		}
		if req.SubmissionType == "" {
			req.SubmissionType = model.SubmissionGeneral
		}
		if req.Settings.PaymentCurrency == "" {
			req.Settings.PaymentCurrency = "INR"
		}

		theme, err := json.Marshal(req.Theme)
		if err != nil {
			httpx.LogInternalError(w, r, "form.create.marshal_theme", err)
			return
		}
		sections, err := json.Marshal(normalizeSections(req.Sections))
		if err != nil {
			httpx.LogInternalError(w, r, "form.create.marshal_sections", err)
			return
		}

		formID := uuid.NewString()
		now := time.Now()
		_, err = app.ExecContext(r.Context(), `
			INSERT INTO forms (id, title, description, theme, sections, submission_type,
				custom_slug, is_active, expires_at, max_responses,
				payment_required, payment_amount, payment_currency,
				status, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			formID, req.Title, req.Description, string(theme), string(sections), req.SubmissionType,
			req.Settings.CustomSlug, req.Settings.IsActive, nullableTime(req.Settings.ExpiresAt), req.Settings.MaxResponses,
			req.Settings.PaymentRequired, req.Settings.PaymentAmount, req.Settings.PaymentCurrency,
			model.FormStatusDraft, requester.AdminID, now, now,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"success": true,
			"id":      formID,
		})
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT `+store.FormColumns()+`
			FROM forms
			ORDER BY created_at DESC`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_forms", err)
			return
		}
		defer rows.Close()

		forms, err := store.ScanForms(rows)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_forms.scan", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"success": true,
			"forms":   forms,
		})
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := store.GetForm(r.Context(), app.DB, chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrFormNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "form.get", "form not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}
		render.JSON(w, r, form)
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		req := formRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "form.update.validate", err)
			return
		}
		if req.Settings.PaymentCurrency == "" {
			req.Settings.PaymentCurrency = "INR"
		}

		// a slug handed to an already-active form must stay unique, same
		// rule as at publish time
		if req.Settings.CustomSlug != "" {
			available, msg, err := store.CheckSlugAvailable(r.Context(), app.DB, req.Settings.CustomSlug, formID)
			if err != nil {
				httpx.LogInternalError(w, r, "db.check_slug", err)
				return
			}
			if !available {
				httpx.LogStatus(w, r, http.StatusConflict, log.DebugLevel, "form.update.slug", msg)
				return
			}
		}

		theme, err := json.Marshal(req.Theme)
		if err != nil {
			httpx.LogInternalError(w, r, "form.update.marshal_theme", err)
			return
		}
		sections, err := json.Marshal(normalizeSections(req.Sections))
		if err != nil {
			httpx.LogInternalError(w, r, "form.update.marshal_sections", err)
			return
		}

		res, err := app.ExecContext(r.Context(), `
			UPDATE forms
			SET title = ?, description = ?, theme = ?, sections = ?,
				custom_slug = ?, is_active = ?, expires_at = ?, max_responses = ?,
				payment_required = ?, payment_amount = ?, payment_currency = ?,
				updated_at = ?
			WHERE id = ?`,
			req.Title, req.Description, string(theme), string(sections),
			req.Settings.CustomSlug, req.Settings.IsActive, nullableTime(req.Settings.ExpiresAt), req.Settings.MaxResponses,
			req.Settings.PaymentRequired, req.Settings.PaymentAmount, req.Settings.PaymentCurrency,
			time.Now(), formID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "form.update", "form not found")
			return
		}

		render.JSON(w, r, map[string]any{"success": true})
	}
}

// DeleteForm removes a form together with its responses and payments.
func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(r.Context(), `DELETE FROM payments WHERE form_id = ?`, formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form.payments", err)
			return
		}

		// response rows cascade off the form row
		res, err := tx.ExecContext(r.Context(), `DELETE FROM forms WHERE id = ?`, formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "form.delete", "form not found")
			return
		}

		if err = tx.Commit(); err != nil {
			httpx.LogInternalError(w, r, "db.delete_form.commit", err)
			return
		}

		render.JSON(w, r, map[string]any{"success": true})
	}
}

// PublishForm moves a form to published. A custom slug is re-validated at
// this moment; the check and the write are still two separate statements,
// so two concurrent publishes racing for one slug can both pass.
func PublishForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		form, err := store.GetForm(r.Context(), app.DB, formID)
		if errors.Is(err, store.ErrFormNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "form.publish", "form not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		if form.Settings.CustomSlug != "" {
			available, msg, err := store.CheckSlugAvailable(r.Context(), app.DB, form.Settings.CustomSlug, form.ID)
			if err != nil {
				httpx.LogInternalError(w, r, "db.check_slug", err)
				return
			}
			if !available {
				httpx.LogStatus(w, r, http.StatusConflict, log.DebugLevel, "form.publish.slug", msg)
				return
			}
		}

		_, err = app.ExecContext(r.Context(), `
			UPDATE forms SET status = ?, is_active = 1, updated_at = ? WHERE id = ?`,
			model.FormStatusPublished, time.Now(), formID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.publish_form", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"success": true,
			"slug":    form.PublicSlug(),
		})
	}
}

func CheckSlug(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := r.URL.Query().Get("slug")
		exclude := r.URL.Query().Get("exclude")

		available, msg, err := store.CheckSlugAvailable(r.Context(), app.DB, slug, exclude)
		if err != nil {
			httpx.LogInternalError(w, r, "db.check_slug", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"available": available,
			"message":   msg,
		})
	}
}

func ListFormResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := store.GetForm(r.Context(), app.DB, chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrFormNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "responses.list", "form not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		records, err := store.ListResponses(r.Context(), app.DB, form)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_responses", err)
			return
		}

		payloads := make([]any, len(records))
		for i, rec := range records {
			payloads[i] = rec.Payload()
		}

		render.JSON(w, r, map[string]any{
			"success":   true,
			"type":      form.SubmissionType,
			"responses": payloads,
		})
	}
}

// GetResponse looks a submission up across all three response tables and
// returns the typed record.
func GetResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.LookupResponse(r.Context(), app.DB, chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrResponseNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "responses.get", "response not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_response", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"success":  true,
			"type":     rec.Kind,
			"response": rec.Payload(),
		})
	}
}

func DeleteResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := store.LookupResponse(r.Context(), app.DB, id)
		if errors.Is(err, store.ErrResponseNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "responses.delete", "response not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_response", err)
			return
		}

		table, err := store.ResponseTable(rec.Kind)
		if err != nil {
			httpx.LogInternalError(w, r, "responses.delete.table", err)
			return
		}
		_, err = app.ExecContext(r.Context(), `DELETE FROM `+table+` WHERE id = ?`, id)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_response", err)
			return
		}

		render.JSON(w, r, map[string]any{"success": true})
	}
}

// ExportFormResponses streams a form's responses as CSV, one column per
// form field in definition order.
func ExportFormResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := store.GetForm(r.Context(), app.DB, chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrFormNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "responses.export", "form not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		records, err := store.ListResponses(r.Context(), app.DB, form)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_responses", err)
			return
		}

		var fieldIDs []string
		header := []string{"response_id", "submitted_at", "payment_status"}
		for _, section := range form.Sections {
			for _, field := range section.Fields {
				fieldIDs = append(fieldIDs, field.ID)
				header = append(header, field.Label)
			}
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", form.Title+".csv"))

		cw := csv.NewWriter(w)
		cw.Write(header)
		for _, rec := range records {
			core := rec.Common()
			values := map[string]any{}
			for _, f := range core.Responses {
				values[f.FieldID] = f.Value
			}

			row := []string{core.ID, core.SubmittedAt.Format(time.RFC3339), core.PaymentStatus}
			for _, id := range fieldIDs {
				row = append(row, csvValue(values[id]))
			}
			cw.Write(row)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			log.Errorf("responses.export.write: %s", err)
		}
	}
}

func csvValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// normalizeSections assigns ids to sections and fields that came in
// without one.
func normalizeSections(sections []model.Section) []model.Section {
	for i := range sections {
		if sections[i].ID == "" {
			sections[i].ID = uuid.NewString()
		}
		for j := range sections[i].Fields {
			if sections[i].Fields[j].ID == "" {
				sections[i].Fields[j].ID = uuid.NewString()
			}
		}
	}
	return sections
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
