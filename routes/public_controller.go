package routes

import (
	"encoding/json"
	"errors"
	"net"
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
	"github.com/pixeluwjal/sanghaforms-sub002/store"
)

// PublicGetForm resolves a slug (or raw form id) to a servable form.
// Inactive and unpublished forms are indistinguishable from absent ones;
// expired forms get their own status so the client can say so.
func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		form, err := store.ResolveForPublicAccess(r.Context(), app.DB, slug)
		switch {
		case errors.Is(err, store.ErrFormNotFound):
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "public.get_form", "form unavailable")
			return
		case errors.Is(err, store.ErrFormExpired):
			httpx.LogStatus(w, r, http.StatusGone, log.DebugLevel, "public.get_form", "form has expired")
			return
		case err != nil:
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"id":             form.ID,
			"slug":           form.PublicSlug(),
			"title":          form.Title,
			"description":    form.Description,
			"theme":          form.Theme,
			"sections":       form.Sections,
			"submissionType": form.SubmissionType,
			"payment": map[string]any{
				"required": form.Settings.PaymentRequired,
				"amount":   form.Settings.PaymentAmount,
				"currency": form.Settings.PaymentCurrency,
			},
		})
	}
}

type submitRequest struct {
	FormID      string                `json:"formId" validate:"required"`
	FormSlug    string                `json:"formSlug" validate:"required"`
	Responses   []model.ResponseField `json:"responses" validate:"required"`
	SubmittedAt *time.Time            `json:"submittedAt"`
}

// SubmitForm persists a public submission into the response table declared
// by the form. The form is re-resolved by id and slug together and
// re-checked for availability; the response cap is count-then-insert, so
// concurrent submissions near the cap can exceed it by a small margin.
func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := submitRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "submit.validate", err)
			return
		}

		form, err := store.ResolveForSubmission(r.Context(), app.DB, req.FormID, req.FormSlug)
		switch {
		case errors.Is(err, store.ErrFormNotFound):
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "submit.resolve_form", "form unavailable")
			return
		case errors.Is(err, store.ErrFormExpired):
			httpx.LogStatus(w, r, http.StatusGone, log.DebugLevel, "submit.resolve_form", "form has expired")
			return
		case err != nil:
			httpx.LogInternalError(w, r, "db.resolve_form", err)
			return
		}

		table, err := store.ResponseTable(form.SubmissionType)
		if err != nil {
			httpx.LogInternalError(w, r, "submit.response_table", err)
			return
		}

		if form.Settings.MaxResponses > 0 {
			n, err := store.CountResponses(r.Context(), app.DB, table, form.ID)
			if err != nil {
				httpx.LogInternalError(w, r, "db.count_responses", err)
				return
			}
			if n >= form.Settings.MaxResponses {
				httpx.LogStatus(w, r, http.StatusTooManyRequests, log.InfoLevel, "submit.limit", "response limit reached")
				return
			}
		}

		fieldsBytes, err := json.Marshal(req.Responses)
		if err != nil {
			httpx.LogInternalError(w, r, "submit.marshal_responses", err)
			return
		}
		fieldsJSON := string(fieldsBytes)

		paymentStatus := model.PaymentNotRequired
		if form.Settings.PaymentRequired {
			paymentStatus = model.PaymentPending
		}

		submittedAt := time.Now()
		if req.SubmittedAt != nil {
			submittedAt = *req.SubmittedAt
		}

		responseID := uuid.NewString()
		ip, userAgent := requesterInfo(r)

		switch form.SubmissionType {
		case model.SubmissionLead:
			_, err = app.ExecContext(r.Context(), `
				INSERT INTO lead_responses (id, form_id, form_title, form_slug, responses,
					submitted_at, ip, user_agent, payment_status, lead_score, pipeline_status, source_tags)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 'new', '[]')`,
				responseID, form.ID, form.Title, form.PublicSlug(), fieldsJSON,
				submittedAt, ip, userAgent, paymentStatus,
			)
		case model.SubmissionSwayamsevak:
			details := swayamsevakDetails(req.Responses)
			_, err = app.ExecContext(r.Context(), `
				INSERT INTO swayamsevak_responses (id, form_id, form_title, form_slug, responses,
					submitted_at, ip, user_agent, payment_status,
					full_name, email, phone, gender, date_of_birth, address)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				responseID, form.ID, form.Title, form.PublicSlug(), fieldsJSON,
				submittedAt, ip, userAgent, paymentStatus,
				details.FullName, details.Email, details.Phone,
				details.Gender, details.DateOfBirth, details.Address,
			)
		default:
			_, err = app.ExecContext(r.Context(), `
				INSERT INTO form_responses (id, form_id, form_title, form_slug, responses,
					submitted_at, ip, user_agent, payment_status)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				responseID, form.ID, form.Title, form.PublicSlug(), fieldsJSON,
				submittedAt, ip, userAgent, paymentStatus,
			)
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_response", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"success":    true,
			"responseId": responseID,
		})
	}
}

// requesterInfo records IP and user agent verbatim, defaulting to the
// literal "unknown" when absent.
func requesterInfo(r *http.Request) (ip, userAgent string) {
	ip = r.Header.Get("X-Forwarded-For")
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	if ip == "" {
		ip = "unknown"
	}

	userAgent = r.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}
	return
}

// swayamsevakDetails lifts the identity fields a volunteer registration
// form carries out of the submitted values, matched by field label.
func swayamsevakDetails(fields []model.ResponseField) (d struct {
	FullName, Email, Phone, Gender, DateOfBirth, Address string
}) {
	for _, f := range fields {
		value, ok := f.Value.(string)
		if !ok {
			continue
		}
		label := strings.ToLower(f.FieldLabel)
		switch {
		case d.FullName == "" && strings.Contains(label, "name"):
			d.FullName = value
		case d.Email == "" && (f.FieldType == "email" || strings.Contains(label, "email")):
			d.Email = value
		case d.Phone == "" && (f.FieldType == "phone" || strings.Contains(label, "phone") || strings.Contains(label, "mobile")):
			d.Phone = value
		case d.Gender == "" && strings.Contains(label, "gender"):
			d.Gender = value
		case d.DateOfBirth == "" && (strings.Contains(label, "birth") || strings.Contains(label, "dob")):
			d.DateOfBirth = value
		case d.Address == "" && strings.Contains(label, "address"):
			d.Address = value
		}
	}
	return
}
