package api

// Shared response shapes referenced by handler swagger annotations.

type ErrorResponse struct {
	Error string `json:"error" example:"course is not available"`
}

type MessageResponse struct {
	Message string `json:"message" example:"refund requested"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
