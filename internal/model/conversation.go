package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ConversationStep identifies the current step of a sender's dialogue.
type ConversationStep string

// Dialogue steps. Greeting is the implicit initial step for an unseen
// sender; completion deletes the row so the next contact greets again.
const (
	StepGreeting       ConversationStep = "GREETING"
	StepRatingAir      ConversationStep = "RATING_AIR"
	StepPhotoAir       ConversationStep = "PHOTO_AIR"
	StepRatingWashroom ConversationStep = "RATING_WASHROOM"
	StepPhotoWashroom  ConversationStep = "PHOTO_WASHROOM"
	StepComment        ConversationStep = "COMMENT"
)

// Scratch is the structured payload carried alongside a conversation's
// current step. RatingAir holds the confirmed air rating until the feedback
// record is lazily created; FeedbackID then links the in-progress record.
type Scratch struct {
	RatingAir  int   `json:"rating_air,omitempty"`
	FeedbackID int64 `json:"feedback_id,omitempty"`
}

// Conversation is the durable dialogue state for one sender identity.
// At most one live row exists per phone.
type Conversation struct {
	Phone     string           `json:"phone" gorm:"column:phone;primaryKey;type:text"`
	Step      ConversationStep `json:"step" gorm:"column:step;type:text;default:GREETING"`
	Scratch   datatypes.JSON   `json:"scratch,omitempty" gorm:"type:jsonb;column:scratch"`
	UpdatedAt time.Time        `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the Conversation model.
func (Conversation) TableName() string {
	return "conversations"
}

// DecodeScratch deserializes the scratch payload. An empty column yields a
// zero Scratch, not an error.
func (c *Conversation) DecodeScratch() (Scratch, error) {
	var s Scratch
	if len(c.Scratch) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(c.Scratch, &s); err != nil {
		return Scratch{}, fmt.Errorf("malformed scratch payload: %w", err)
	}
	return s, nil
}

// EncodeScratch serializes the scratch payload back onto the row.
func (c *Conversation) EncodeScratch(s Scratch) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode scratch payload: %w", err)
	}
	c.Scratch = datatypes.JSON(data)
	return nil
}

// InboundEvent is one parsed webhook message: sender identity, the textual
// input (body text or button reply id) and an optional media handle.
type InboundEvent struct {
	Phone   string
	Input   string
	MediaID string
}
