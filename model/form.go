package model

import "time"

const (
	FormStatusDraft     = "draft"
	FormStatusPublished = "published"
)

const (
	SubmissionGeneral     = "general"
	SubmissionLead        = "lead"
	SubmissionSwayamsevak = "swayamsevak"
)

type Form struct {
	ID             string    `json:"id,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Theme          Theme     `json:"theme"`
	Sections       []Section `json:"sections"`
	SubmissionType string    `json:"submissionType"`
	Settings       Settings  `json:"settings"`
	Status         string    `json:"status"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

type Theme struct {
	PrimaryColor    string `json:"primaryColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	FontFamily      string `json:"fontFamily,omitempty"`
}

type Section struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}

type Field struct {
	ID         string          `json:"id,omitempty"`
	Type       string          `json:"type"`
	Label      string          `json:"label"`
	Required   bool            `json:"required,omitempty"`
	Options    []string        `json:"options,omitempty"`
	Visibility *VisibilityRule `json:"visibility,omitempty"`
}

// VisibilityRule shows a field only when another field holds a given value.
type VisibilityRule struct {
	FieldID string `json:"fieldId"`
	Equals  string `json:"equals"`
}

type Settings struct {
	CustomSlug      string     `json:"customSlug,omitempty"`
	IsActive        bool       `json:"isActive"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	MaxResponses    int        `json:"maxResponses,omitempty"`
	PaymentRequired bool       `json:"paymentRequired,omitempty"`
	PaymentAmount   int64      `json:"paymentAmount,omitempty"`
	PaymentCurrency string     `json:"paymentCurrency,omitempty"`
}

// PublicSlug is the key a form is reachable under: the custom slug when
// set, the raw id otherwise. Slugs and raw ids share one lookup namespace.
func (f Form) PublicSlug() string {
	if f.Settings.CustomSlug != "" {
		return f.Settings.CustomSlug
	}
	return f.ID
}
