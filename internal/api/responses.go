package api

// Shared response envelopes for the HTTP surface. Domain handlers return
// their own DTOs; these cover errors, acknowledgements and liveness.

type ErrorResponse struct {
	Error string `json:"error" example:"insufficient wallet balance"`
}

type MessageResponse struct {
	Message string `json:"message" example:"notes updated"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
