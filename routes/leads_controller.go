package routes

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
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

type leadUpdateRequest struct {
	PipelineStatus *string   `json:"pipelineStatus" validate:"omitempty,oneof=new contacted qualified converted dropped"`
	LeadScore      *int      `json:"leadScore" validate:"omitempty,min=0,max=100"`
	SourceTags     *[]string `json:"sourceTags"`
}

// UpdateLead patches the pipeline fields of a lead response. Only the
// fields present in the request are written.
func UpdateLead(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leadID := chi.URLParam(r, "id")

		req := leadUpdateRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "lead.update.validate", err)
			return
		}

		set := ""
		args := []any{}
		if req.PipelineStatus != nil {
			set += `pipeline_status = ?, `
			args = append(args, *req.PipelineStatus)
		}
		if req.LeadScore != nil {
			set += `lead_score = ?, `
			args = append(args, *req.LeadScore)
		}
		if req.SourceTags != nil {
			tags, err := json.Marshal(*req.SourceTags)
			if err != nil {
				httpx.LogInternalError(w, r, "lead.update.marshal_tags", err)
				return
			}
			set += `source_tags = ?, `
			args = append(args, string(tags))
		}
		if set == "" {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "lead.update.empty", "nothing to update")
			return
		}
		set = strings.TrimSuffix(set, ", ")
		args = append(args, leadID)

		res, err := app.ExecContext(r.Context(), `UPDATE lead_responses SET `+set+` WHERE id = ?`, args...)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_lead", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_lead.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "lead.update.missing", "lead not found")
			return
		}

		render.JSON(w, r, map[string]any{"success": true})
	}
}

// BulkImportLeads ingests a CSV upload into lead_responses. The first row
// is the header; every following row becomes one lead with the header
// names as field labels. Malformed rows are counted, not fatal.
func BulkImportLeads(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, _ := middlewares.IdentityFrom(r.Context())

		formID := r.URL.Query().Get("formId")
		if formID == "" {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "leads.import.form_id", "formId query parameter is required")
			return
		}

		form, err := store.GetForm(r.Context(), app.DB, formID)
		if errors.Is(err, store.ErrFormNotFound) {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "leads.import.form", "form not found")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}
		if form.SubmissionType != model.SubmissionLead {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "leads.import.form_type", "form does not collect leads")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "leads.import.file", "missing file upload")
			return
		}
		defer file.Close()

		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1

		head, err := reader.Read()
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "leads.import.header", "could not read CSV header")
			return
		}

		total, imported, failed := 0, 0, 0
		now := time.Now()
		for {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			total++
			if err != nil || len(row) != len(head) {
				failed++
				continue
			}

			fields := make([]model.ResponseField, len(head))
			for i, label := range head {
				fields[i] = model.ResponseField{
					FieldID:    label,
					FieldType:  "text",
					FieldLabel: label,
					Value:      row[i],
				}
			}
			fieldsJSON, err := json.Marshal(fields)
			if err != nil {
				failed++
				continue
			}

			_, err = app.ExecContext(r.Context(), `
				INSERT INTO lead_responses (id, form_id, form_title, form_slug, responses,
					submitted_at, ip, user_agent, payment_status, lead_score, pipeline_status, source_tags)
				VALUES (?, ?, ?, ?, ?, ?, 'unknown', 'bulk-import', ?, 0, 'new', '[]')`,
				uuid.NewString(), form.ID, form.Title, form.PublicSlug(), string(fieldsJSON),
				now, model.PaymentNotRequired,
			)
			if err != nil {
				log.Warnf("leads.import.insert: %s", err)
				failed++
				continue
			}
			imported++
		}

		uploadID := uuid.NewString()
		_, err = app.ExecContext(r.Context(), `
			INSERT INTO bulk_uploads (id, file_name, form_id, total_rows, imported_rows, failed_rows, uploaded_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uploadID, header.Filename, form.ID, total, imported, failed, requester.AdminID, now,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_bulk_upload", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"success":  true,
			"uploadId": uploadID,
			"total":    total,
			"imported": imported,
			"failed":   failed,
		})
	}
}

type sourceRequest struct {
	Name     string `json:"name" validate:"required"`
	ParentID string `json:"parentId"`
}

func ListSources(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT id, name, parent_id, created_at FROM sources ORDER BY name`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_sources", err)
			return
		}
		defer rows.Close()

		sources := []model.Source{}
		for rows.Next() {
			s := model.Source{}
			if err = rows.Scan(&s.ID, &s.Name, &s.ParentID, &s.CreatedAt); err != nil {
				httpx.LogInternalError(w, r, "db.get_sources.scan", err)
				return
			}
			sources = append(sources, s)
		}

		render.JSON(w, r, map[string]any{
			"success": true,
			"sources": sources,
		})
	}
}

func CreateSource(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := sourceRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "source.create.validate", err)
			return
		}

		id := uuid.NewString()
		_, err := app.ExecContext(r.Context(), `
			INSERT INTO sources (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)`,
			id, req.Name, req.ParentID, time.Now(),
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_source", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"success": true,
			"id":      id,
		})
	}
}

func DeleteSource(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := app.ExecContext(r.Context(), `DELETE FROM sources WHERE id = ?`, chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_source", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_source.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "source.delete.missing", "source not found")
			return
		}

		render.JSON(w, r, map[string]any{"success": true})
	}
}
