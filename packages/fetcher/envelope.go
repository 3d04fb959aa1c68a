package fetcher

import (
	"bytes"
	"encoding/json"
	"net"
	"strings"
)

var envelopeStatusKeys = []string{"status_code", "statusCode", "status"}

// unwrapEnvelope extracts the origin status and body from the proxy reply. An
// envelope is a JSON object with a "body" key. A string body is returned as
// text; any other JSON value is returned verbatim. Without an integer status
// key the proxy's own status stands. Replies that are not envelopes are the
// origin body itself.
func unwrapEnvelope(proxyStatus int, raw []byte) (int, []byte) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return proxyStatus, raw
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return proxyStatus, raw
	}
	rawBody, ok := fields["body"]
	if !ok {
		return proxyStatus, raw
	}

	status := proxyStatus
	for _, key := range envelopeStatusKeys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		var code int
		if err := json.Unmarshal(v, &code); err == nil && code > 0 {
			status = code
			break
		}
	}

	return status, decodeEnvelopeBody(rawBody)
}

func decodeEnvelopeBody(rawBody json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(rawBody)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err == nil {
			return []byte(text)
		}
	}
	return []byte(trimmed)
}

// parseEchoedIP accepts {"ip": "..."} or a bare address.
func parseEchoedIP(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	candidate := string(trimmed)
	if trimmed[0] == '{' {
		var echo struct {
			IP string `json:"ip"`
		}
		if err := json.Unmarshal(trimmed, &echo); err != nil {
			return ""
		}
		candidate = echo.IP
	}
	candidate = strings.TrimSpace(candidate)
	if net.ParseIP(candidate) == nil {
		return ""
	}
	return candidate
}
