// Package classifier decides whether a response means the target site has
// flagged us as automation.
package classifier

import (
	"bytes"
	"encoding/json"
	"net/http"

	"scrapemonitor/packages/domain"
)

var challengeMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("<!doctype"),
	[]byte("<html"),
}

// Classify maps an origin status and body to a block verdict. Status rules win
// over body inspection. The product API answers in JSON, so an HTML or captcha
// page behind a 200 is a disguised block.
func Classify(status int, body []byte) (bool, domain.BlockType) {
	switch status {
	case http.StatusForbidden:
		return true, domain.Forbidden
	case http.StatusTooManyRequests:
		return true, domain.RateLimit
	case http.StatusServiceUnavailable:
		return true, domain.ServiceUnavailable
	}

	if !isTextual(body) {
		return false, domain.NotBlocked
	}
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true, domain.Captcha
		}
	}
	return false, domain.NotBlocked
}

// isTextual reports whether body is free text rather than a structured JSON
// document. Structured payloads are never scanned for markers.
func isTextual(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	if (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return false
	}
	return true
}
