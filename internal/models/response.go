package models

// APIResponse is the generic success/error body used by the JSON API.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessagesResponse is the body for GET /api/get-messages.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}
