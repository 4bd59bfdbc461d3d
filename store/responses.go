package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pixeluwjal/sanghaforms-sub002/model"
)

var ErrResponseNotFound = errors.New("response not found")

const (
	TableGeneral     = "form_responses"
	TableLead        = "lead_responses"
	TableSwayamsevak = "swayamsevak_responses"
)

// ResponseTable maps a form's declared submission type to its target table.
// The choice is fixed per form and never re-derived from a payload.
func ResponseTable(submissionType string) (string, error) {
	switch submissionType {
	case model.SubmissionGeneral:
		return TableGeneral, nil
	case model.SubmissionLead:
		return TableLead, nil
	case model.SubmissionSwayamsevak:
		return TableSwayamsevak, nil
	default:
		return "", fmt.Errorf("unknown submission type %q", submissionType)
	}
}

func CountResponses(ctx context.Context, db *sql.DB, table, formID string) (n int, err error) {
	err = db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE form_id = ?`, formID).Scan(&n)
	return
}

// ResponseRecord is the tagged result of a polymorphic response lookup.
// Exactly one variant pointer is set, matching Kind.
type ResponseRecord struct {
	Kind        string `json:"type"`
	General     *model.Response
	Lead        *model.LeadResponse
	Swayamsevak *model.SwayamsevakResponse
}

// Common returns the shared core of whichever variant is set.
func (rec ResponseRecord) Common() *model.Response {
	switch rec.Kind {
	case model.SubmissionLead:
		return &rec.Lead.Response
	case model.SubmissionSwayamsevak:
		return &rec.Swayamsevak.Response
	default:
		return rec.General
	}
}

// Payload returns the variant value for serialization.
func (rec ResponseRecord) Payload() any {
	switch rec.Kind {
	case model.SubmissionLead:
		return rec.Lead
	case model.SubmissionSwayamsevak:
		return rec.Swayamsevak
	default:
		return rec.General
	}
}

// LookupResponse finds a submission id across the three response tables.
// A single query resolves the variant kind; precedence keeps the historical
// general, lead, swayamsevak fallback order for ids present in more than
// one table.
func LookupResponse(ctx context.Context, db *sql.DB, id string) (ResponseRecord, error) {
	var kind string
	err := db.QueryRowContext(ctx, `
		SELECT kind FROM (
			SELECT 'general' AS kind, 1 AS precedence FROM form_responses WHERE id = ?
			UNION ALL
			SELECT 'lead', 2 FROM lead_responses WHERE id = ?
			UNION ALL
			SELECT 'swayamsevak', 3 FROM swayamsevak_responses WHERE id = ?
		) ORDER BY precedence LIMIT 1`,
		id, id, id,
	).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return ResponseRecord{}, ErrResponseNotFound
	}
	if err != nil {
		return ResponseRecord{}, err
	}

	switch kind {
	case model.SubmissionLead:
		lead, err := getLeadResponse(ctx, db, id)
		return ResponseRecord{Kind: kind, Lead: lead}, err
	case model.SubmissionSwayamsevak:
		sv, err := getSwayamsevakResponse(ctx, db, id)
		return ResponseRecord{Kind: kind, Swayamsevak: sv}, err
	default:
		gen, err := getGeneralResponse(ctx, db, id)
		return ResponseRecord{Kind: kind, General: gen}, err
	}
}

// ListResponses returns every submission of a form, typed by the form's
// submission type.
func ListResponses(ctx context.Context, db *sql.DB, form model.Form) ([]ResponseRecord, error) {
	table, err := ResponseTable(form.SubmissionType)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+variantColumns(form.SubmissionType)+`
		FROM `+table+`
		WHERE form_id = ?
		ORDER BY submitted_at`,
		form.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []ResponseRecord{}
	for rows.Next() {
		rec, err := scanVariant(form.SubmissionType, rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const responseColumns = `id, form_id, form_title, form_slug, responses,
	submitted_at, ip, user_agent,
	payment_status, payment_id, order_id, payment_error, payment_completed_at`

func variantColumns(submissionType string) string {
	switch submissionType {
	case model.SubmissionLead:
		return responseColumns + `, lead_score, pipeline_status, source_tags`
	case model.SubmissionSwayamsevak:
		return responseColumns + `, full_name, email, phone, gender, date_of_birth, address`
	default:
		return responseColumns
	}
}

func scanVariant(submissionType string, row rowScanner) (ResponseRecord, error) {
	switch submissionType {
	case model.SubmissionLead:
		lead, err := scanLeadResponse(row)
		return ResponseRecord{Kind: submissionType, Lead: lead}, err
	case model.SubmissionSwayamsevak:
		sv, err := scanSwayamsevakResponse(row)
		return ResponseRecord{Kind: submissionType, Swayamsevak: sv}, err
	default:
		gen, err := scanGeneralResponse(row)
		return ResponseRecord{Kind: submissionType, General: gen}, err
	}
}

func coreScanDest(r *model.Response, fields *[]byte, completedAt *sql.NullTime) []any {
	return []any{
		&r.ID, &r.FormID, &r.FormTitle, &r.FormSlug, fields,
		&r.SubmittedAt, &r.IP, &r.UserAgent,
		&r.PaymentStatus, &r.PaymentID, &r.OrderID, &r.PaymentError, completedAt,
	}
}

func finishCore(r *model.Response, fields []byte, completedAt sql.NullTime) error {
	if completedAt.Valid {
		t := completedAt.Time
		r.PaymentCompletedAt = &t
	}
	return json.Unmarshal(fields, &r.Responses)
}

func scanGeneralResponse(row rowScanner) (*model.Response, error) {
	r := &model.Response{}
	var fields []byte
	var completedAt sql.NullTime
	if err := row.Scan(coreScanDest(r, &fields, &completedAt)...); err != nil {
		return nil, err
	}
	return r, finishCore(r, fields, completedAt)
}

func scanLeadResponse(row rowScanner) (*model.LeadResponse, error) {
	r := &model.LeadResponse{}
	var fields, tags []byte
	var completedAt sql.NullTime
	dest := coreScanDest(&r.Response, &fields, &completedAt)
	dest = append(dest, &r.LeadScore, &r.PipelineStatus, &tags)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := finishCore(&r.Response, fields, completedAt); err != nil {
		return nil, err
	}
	return r, json.Unmarshal(tags, &r.SourceTags)
}

func scanSwayamsevakResponse(row rowScanner) (*model.SwayamsevakResponse, error) {
	r := &model.SwayamsevakResponse{}
	var fields []byte
	var completedAt sql.NullTime
	dest := coreScanDest(&r.Response, &fields, &completedAt)
	dest = append(dest, &r.FullName, &r.Email, &r.Phone, &r.Gender, &r.DateOfBirth, &r.Address)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return r, finishCore(&r.Response, fields, completedAt)
}

func getGeneralResponse(ctx context.Context, db *sql.DB, id string) (*model.Response, error) {
	row := db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM form_responses WHERE id = ?`, id)
	return scanGeneralResponse(row)
}

func getLeadResponse(ctx context.Context, db *sql.DB, id string) (*model.LeadResponse, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+variantColumns(model.SubmissionLead)+`
		FROM lead_responses WHERE id = ?`, id)
	return scanLeadResponse(row)
}

func getSwayamsevakResponse(ctx context.Context, db *sql.DB, id string) (*model.SwayamsevakResponse, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+variantColumns(model.SubmissionSwayamsevak)+`
		FROM swayamsevak_responses WHERE id = ?`, id)
	return scanSwayamsevakResponse(row)
}

// PaymentUpdate is a payment sub-state push onto a submission row. Empty
// identifier fields leave the stored values untouched.
type PaymentUpdate struct {
	Status      string
	PaymentID   string
	OrderID     string
	Error       string
	CompletedAt *sql.NullTime
}

// PaymentState is the submission payment sub-state after an update.
type PaymentState struct {
	ID            string `json:"id"`
	PaymentStatus string `json:"paymentStatus"`
	PaymentID     string `json:"paymentId,omitempty"`
}

// UpdateResponsePayment pushes a payment status onto whichever submission
// table actually holds the given id. It probes lead_responses first, then
// swayamsevak_responses; the probe order is fixed so lookups stay
// deterministic when an id exists in both tables.
func UpdateResponsePayment(ctx context.Context, db *sql.DB, submissionID string, upd PaymentUpdate) (PaymentState, error) {
	set := `payment_status = ?`
	args := []any{upd.Status}
	if upd.PaymentID != "" {
		set += `, payment_id = ?`
		args = append(args, upd.PaymentID)
	}
	if upd.OrderID != "" {
		set += `, order_id = ?`
		args = append(args, upd.OrderID)
	}
	set += `, payment_error = ?`
	args = append(args, upd.Error)
	if upd.CompletedAt != nil {
		set += `, payment_completed_at = ?`
		args = append(args, *upd.CompletedAt)
	}
	args = append(args, submissionID)

	for _, table := range []string{TableLead, TableSwayamsevak} {
		res, err := db.ExecContext(ctx, `UPDATE `+table+` SET `+set+` WHERE id = ?`, args...)
		if err != nil {
			return PaymentState{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return PaymentState{}, err
		}
		if n > 0 {
			state := PaymentState{}
			err = db.QueryRowContext(ctx, `
				SELECT id, payment_status, payment_id FROM `+table+` WHERE id = ?`,
				submissionID,
			).Scan(&state.ID, &state.PaymentStatus, &state.PaymentID)
			return state, err
		}
	}
	return PaymentState{}, ErrResponseNotFound
}
