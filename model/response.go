package model

import "time"

const (
	PaymentNotRequired = "not_required"
	PaymentPending     = "pending"
	PaymentSuccess     = "success"
	PaymentFailed      = "failed"
)

// Response is the common shape shared by all three submission variants.
type Response struct {
	ID                 string          `json:"id"`
	FormID             string          `json:"formId"`
	FormTitle          string          `json:"formTitle"`
	FormSlug           string          `json:"formSlug"`
	Responses          []ResponseField `json:"responses"`
	SubmittedAt        time.Time       `json:"submittedAt"`
	IP                 string          `json:"ip"`
	UserAgent          string          `json:"userAgent"`
	PaymentStatus      string          `json:"paymentStatus"`
	PaymentID          string          `json:"paymentId,omitempty"`
	OrderID            string          `json:"orderId,omitempty"`
	PaymentError       string          `json:"paymentError,omitempty"`
	PaymentCompletedAt *time.Time      `json:"paymentCompletedAt,omitempty"`
}

// ResponseField is one answered field, kept in the order the client
// submitted it.
type ResponseField struct {
	FieldID    string `json:"fieldId"`
	FieldType  string `json:"fieldType"`
	FieldLabel string `json:"fieldLabel"`
	Value      any    `json:"value"`
}

type LeadResponse struct {
	Response
	LeadScore      int      `json:"leadScore"`
	PipelineStatus string   `json:"pipelineStatus"`
	SourceTags     []string `json:"sourceTags"`
}

type SwayamsevakResponse struct {
	Response
	FullName    string `json:"fullName,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Source is an organizational-hierarchy tag attachable to lead responses.
type Source struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// BulkUpload records one CSV lead-import batch.
type BulkUpload struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName"`
	FormID       string    `json:"formId"`
	TotalRows    int       `json:"totalRows"`
	ImportedRows int       `json:"importedRows"`
	FailedRows   int       `json:"failedRows"`
	UploadedBy   string    `json:"uploadedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}
