package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is an anonymous message embedded in its recipient's user document.
type Message struct {
	ID        primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	Content   string             `json:"content"    bson:"content"`
	CreatedAt time.Time          `json:"created_at" bson:"createdAt"`
}

// User is a document in the MongoDB users collection. Messages live inside
// the document, not in a separate collection.
type User struct {
	ID                  primitive.ObjectID `json:"id"                    bson:"_id,omitempty"`
	Username            string             `json:"username"              bson:"username"`
	Email               string             `json:"email"                 bson:"email"`
	Password            string             `json:"-"                     bson:"password"` // bcrypt hash, never serialize
	IsVerified          bool               `json:"is_verified"           bson:"isVerified"`
	IsAcceptingMessages bool               `json:"is_accepting_messages" bson:"isAcceptingMessages"`
	Messages            []Message          `json:"messages"              bson:"messages"`
	CreatedAt           time.Time          `json:"created_at"            bson:"createdAt"`
}

// SignUpRequest is the JSON body for POST /api/sign-up.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest is the JSON body for POST /api/sign-in. Identifier matches
// either the email or the username.
type SignInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// VerifyCodeRequest is the JSON body for POST /api/verify-code.
type VerifyCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// SendMessageRequest is the JSON body for POST /api/send-message.
type SendMessageRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// AcceptMessagesRequest is the JSON body for POST /api/accept-messages.
type AcceptMessagesRequest struct {
	AcceptMessages bool `json:"acceptMessages"`
}
