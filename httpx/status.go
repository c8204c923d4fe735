package httpx

import "net/http"

const (
	StatusOK                  = http.StatusOK                  // Successful request
	StatusNoContent           = http.StatusNoContent           // Successful with no body
	StatusBadRequest          = http.StatusBadRequest          // Validation or malformed input
	StatusRequestURITooLong   = http.StatusRequestURITooLong   // Request target too long
	StatusUnauthorized        = http.StatusUnauthorized        // Missing or invalid authentication
	StatusNotFound            = http.StatusNotFound            // Resource not found
	StatusUnprocessableEntity = http.StatusUnprocessableEntity // Semantically invalid input
	StatusTooManyRequests     = http.StatusTooManyRequests     // Rate limited
	StatusInternalError       = http.StatusInternalServerError // Unexpected server error
	StatusBadGateway          = http.StatusBadGateway          // Upstream returned garbage
	StatusServiceUnavailable  = http.StatusServiceUnavailable  // Dependency failure or maintenance
	StatusGatewayTimeout      = http.StatusGatewayTimeout      // Upstream too slow
)
