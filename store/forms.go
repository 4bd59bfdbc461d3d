package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"github.com/pixeluwjal/sanghaforms-sub002/model"
)

var (
	// ErrFormNotFound covers absent, unpublished and inactive forms alike.
	ErrFormNotFound = errors.New("form not found")
	// ErrFormExpired means the form exists but its expiry has passed; it
	// gets a distinct public message from plain not-found.
	ErrFormExpired = errors.New("form expired")
)

const formColumns = `id, title, description, theme, sections, submission_type,
	custom_slug, is_active, expires_at, max_responses,
	payment_required, payment_amount, payment_currency,
	status, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(row rowScanner) (f model.Form, err error) {
	var theme, sections []byte
	var expiresAt sql.NullTime

	err = row.Scan(
		&f.ID, &f.Title, &f.Description, &theme, &sections, &f.SubmissionType,
		&f.Settings.CustomSlug, &f.Settings.IsActive, &expiresAt, &f.Settings.MaxResponses,
		&f.Settings.PaymentRequired, &f.Settings.PaymentAmount, &f.Settings.PaymentCurrency,
		&f.Status, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		f.Settings.ExpiresAt = &t
	}
	if err = json.Unmarshal(theme, &f.Theme); err != nil {
		return
	}
	err = json.Unmarshal(sections, &f.Sections)
	return
}

// FormColumns returns the select list ScanForms expects.
func FormColumns() string {
	return formColumns
}

func ScanForms(rows *sql.Rows) ([]model.Form, error) {
	forms := []model.Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

func GetForm(ctx context.Context, db *sql.DB, id string) (model.Form, error) {
	row := db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE id = ?`, id)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrFormNotFound
	}
	return f, err
}

// ResolveForPublicAccess looks a form up by custom slug or raw id and
// returns it only while it is publicly servable.
func ResolveForPublicAccess(ctx context.Context, db *sql.DB, slug string) (model.Form, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+formColumns+`
		FROM forms
		WHERE custom_slug = ? OR id = ?`,
		slug, slug,
	)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrFormNotFound
	}
	if err != nil {
		return f, err
	}
	return f, checkServable(f)
}

// ResolveForSubmission re-resolves by id and slug together, a defense
// against stale or mismatched links: both must point at the same form.
func ResolveForSubmission(ctx context.Context, db *sql.DB, formID, slug string) (model.Form, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+formColumns+`
		FROM forms
		WHERE id = ? AND (custom_slug = ? OR id = ?)`,
		formID, slug, slug,
	)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrFormNotFound
	}
	if err != nil {
		return f, err
	}
	return f, checkServable(f)
}

func checkServable(f model.Form) error {
	if f.Status != model.FormStatusPublished || !f.Settings.IsActive {
		return ErrFormNotFound
	}
	if f.Settings.ExpiresAt != nil && f.Settings.ExpiresAt.Before(time.Now()) {
		return ErrFormExpired
	}
	return nil
}

var reSlug = regexp.MustCompile(`^[a-z0-9-]+$`)

// CheckSlugAvailable validates a candidate slug and checks it against every
// active form's custom slug AND raw id: both live in one lookup namespace,
// so a slug colliding with another form's id would shadow that form.
// The forms own row is excluded via excludingFormID.
func CheckSlugAvailable(ctx context.Context, db *sql.DB, slug, excludingFormID string) (bool, string, error) {
	if len(slug) < 3 {
		return false, "slug must be at least 3 characters", nil
	}
	if !reSlug.MatchString(slug) {
		return false, "slug may only contain lowercase letters, numbers and hyphens", nil
	}

	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM forms
		WHERE is_active = 1
			AND (custom_slug = ? OR id = ?)
			AND id <> ?`,
		slug, slug, excludingFormID,
	).Scan(&n)
	if err != nil {
		return false, "", err
	}
	if n > 0 {
		return false, "slug is already taken", nil
	}
	return true, "", nil
}
