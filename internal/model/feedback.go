package model

import (
	"time"
)

// Feedback statuses. Resolved is terminal: no further mutation is allowed.
const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusResolved  = "resolved"
)

// Intake methods.
const (
	MethodWeb      = "web"
	MethodWhatsApp = "whatsapp"
)

// Rating bounds. A rating of RatingWorst on either dimension triggers the
// immediate report path.
const (
	RatingWorst = 1
	RatingBest  = 3
)

// Feedback represents one customer submission, from either intake channel.
type Feedback struct {
	ID             int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Phone          string    `json:"phone" gorm:"column:phone;index;type:text"`
	IsTestimonial  bool      `json:"is_testimonial" gorm:"column:is_testimonial;default:false"`
	RatingAir      *int      `json:"rating_air,omitempty" gorm:"column:rating_air"`
	RatingWashroom *int      `json:"rating_washroom,omitempty" gorm:"column:rating_washroom"`
	Comment        string    `json:"comment,omitempty" gorm:"column:comment;type:text"`
	PhotoAir       []byte    `json:"-" gorm:"column:photo_air;type:bytea"`
	PhotoWashroom  []byte    `json:"-" gorm:"column:photo_washroom;type:bytea"`
	PhotoReceipt   []byte    `json:"-" gorm:"column:photo_receipt;type:bytea"`
	TermsAccepted  bool      `json:"terms_accepted" gorm:"column:terms_accepted;default:false"`
	RONumber       string    `json:"ro_number,omitempty" gorm:"column:ro_number;type:text"`
	Status         string    `json:"status" gorm:"column:status;default:pending"`
	Method         string    `json:"feedback_method" gorm:"column:feedback_method;default:web"`
	SessionID      string    `json:"session_id,omitempty" gorm:"column:session_id;type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Feedback model.
func (Feedback) TableName() string {
	return "feedback"
}

// IsNegative reports whether either rating carries the worst value.
func (f *Feedback) IsNegative() bool {
	return (f.RatingAir != nil && *f.RatingAir == RatingWorst) ||
		(f.RatingWashroom != nil && *f.RatingWashroom == RatingWorst)
}

// HasRating reports whether at least one rating dimension is set. A record
// must satisfy this before it may leave draft status.
func (f *Feedback) HasRating() bool {
	return f.RatingAir != nil || f.RatingWashroom != nil
}

// FeedbackRead is the API read model for a feedback record. Binary photo
// payloads are carried as base64 strings, or omitted entirely.
type FeedbackRead struct {
	ID             int64     `json:"id"`
	Phone          string    `json:"phone"`
	IsTestimonial  bool      `json:"is_testimonial"`
	RatingAir      *int      `json:"rating_air"`
	RatingWashroom *int      `json:"rating_washroom"`
	Comment        string    `json:"comment"`
	PhotoAir       string    `json:"photo_air,omitempty"`
	PhotoWashroom  string    `json:"photo_washroom,omitempty"`
	PhotoReceipt   string    `json:"photo_receipt,omitempty"`
	TermsAccepted  bool      `json:"terms_accepted"`
	RONumber       string    `json:"ro_number"`
	Status         string    `json:"status"`
	Method         string    `json:"feedback_method"`
	SessionID      string    `json:"session_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// IntPtr returns a pointer to v. Convenience for building rating fields.
func IntPtr(v int) *int {
	return &v
}
