package models

import "time"

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleModel MessageRole = "model"
)

// Conversation is a farmer's chat thread. FormData is the sole mutable
// cross-turn state: it accumulates slot-filled fields and is cleared when a
// form completes.
type Conversation struct {
	ID            string         `bson:"_id" json:"id"`
	UserID        string         `bson:"user_id" json:"user_id"`
	FormData      map[string]any `bson:"form_data" json:"form_data"`
	LastMessageAt *time.Time     `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
}

// ChatMessage is one append-only entry in a conversation's audit trail.
// Ordering by created_at is the canonical conversation order.
type ChatMessage struct {
	ID             string         `bson:"_id" json:"id"`
	ConversationID string         `bson:"conversation_id" json:"conversation_id"`
	Role           MessageRole    `bson:"role" json:"role"`
	Message        string         `bson:"message" json:"message"`
	Metadata       map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
}

// FAQEntry mirrors one chat exchange into the knowledge base, keyed by the
// category the model assigned to the exchange.
type FAQEntry struct {
	ID        string    `bson:"_id" json:"id"`
	Category  string    `bson:"category" json:"category"`
	Question  string    `bson:"question" json:"question"`
	Answer    string    `bson:"answer" json:"answer"`
	CompanyID string    `bson:"company_id,omitempty" json:"company_id,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// UserProfile is the minimal farmer identity record analytics reads validate
// against before degrading to default structures.
type UserProfile struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	CompanyID string    `bson:"company_id,omitempty" json:"company_id,omitempty"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
