package http

// Error messages returned in ErrorResponse.
const (
	msgInvalidRequest  = "invalid request format :("
	msgNotFound        = "Pokemon not found :("
	msgPredictFailed   = "prediction failed"
	msgTooManyRequests = "too many requests"
)

// indexMessage is served on GET /.
const indexMessage = "Who's that Pokemon? POST {\"pokemon 1\": ..., \"pokemon 2\": ...} here and find out who wins!"

// PredictRequest is the request body for POST /.
//
// Pointers distinguish a missing key from an empty name.
type PredictRequest struct {
	First  *string `json:"pokemon 1"`
	Second *string `json:"pokemon 2"`
}

// PredictResponse is the response body for POST /.
type PredictResponse struct {
	First      string  `json:"pokemon 1"`
	Second     string  `json:"pokemon 2"`
	Winner     string  `json:"winner"`
	Confidence float64 `json:"confidence"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IndexResponse is the response body for GET /.
type IndexResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Entities int    `json:"entities"`
	Model    string `json:"model"`
}
