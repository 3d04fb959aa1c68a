// Package domain
package domain

import (
	"strconv"
	"time"
	"unicode/utf8"
)

// Target is a catalog product id. Always positive.
type Target int64

func (t Target) String() string { return strconv.FormatInt(int64(t), 10) }

type BlockType string

const (
	NotBlocked         BlockType = ""
	Forbidden          BlockType = "forbidden"
	RateLimit          BlockType = "rate_limit"
	ServiceUnavailable BlockType = "service_unavailable"
	Captcha            BlockType = "captcha"
	ConnectionBlocked  BlockType = "connection_blocked"
)

// MarshalJSON renders NotBlocked as null.
func (b BlockType) MarshalJSON() ([]byte, error) {
	if b == NotBlocked {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(string(b))), nil
}

// FetchResult is the outcome of one proxied fetch. Blocked is true exactly when
// BlockType is set; a non-empty Error does not imply Blocked.
//
// HTTPStatus is the origin status, unwrapped from the proxy envelope when
// present. ProxyStatus is the status of the proxy's own reply, 0 when no reply
// arrived.
type FetchResult struct {
	Target       Target
	HTTPStatus   int
	ProxyStatus  int
	ResponseTime time.Duration
	Body         []byte
	Blocked      bool
	BlockType    BlockType
	Error        string
}

func (r FetchResult) ResponseTimeMs() int64 { return r.ResponseTime.Milliseconds() }

// BodyPreview returns at most n characters of the body, cut on a rune boundary.
func (r FetchResult) BodyPreview(n int) string {
	if len(r.Body) == 0 || n <= 0 {
		return ""
	}
	b := r.Body
	count := 0
	for i := 0; i < len(b); {
		if count == n {
			return string(b[:i])
		}
		_, size := utf8.DecodeRune(b[i:])
		i += size
		count++
	}
	return string(b)
}

// CycleStats is collected for a single cycle and thrown away after it is logged.
// TotalTargets is the catalog size at cycle start. AttemptedTargets counts the
// fetches actually made, which is fewer when the cycle stops early.
// AvgResponseTimeMs is averaged over AttemptedTargets.
type CycleStats struct {
	TotalTargets      int
	AttemptedTargets  int
	SuccessCount      int
	ErrorCount        int
	BlockedCount      int
	ConsecutiveBlocks int
	ErrorBreakdown    map[string]int
	TotalResponseTime time.Duration
	AvgResponseTimeMs int64
	CycleDurationMin  float64
}

func NewCycleStats(totalTargets int) *CycleStats {
	return &CycleStats{
		TotalTargets:   totalTargets,
		ErrorBreakdown: make(map[string]int),
	}
}

// Record folds one result into the stats and returns the updated run of
// consecutive blocks.
func (s *CycleStats) Record(res FetchResult) int {
	s.AttemptedTargets++
	s.TotalResponseTime += res.ResponseTime
	if res.Error != "" {
		s.ErrorCount++
		s.ErrorBreakdown[res.errorKey()]++
	} else {
		s.SuccessCount++
	}

	if res.Blocked {
		s.BlockedCount++
		s.ConsecutiveBlocks++
	} else {
		s.ConsecutiveBlocks = 0
	}
	return s.ConsecutiveBlocks
}

// errorKey buckets a failed fetch: the proxy status when the proxy itself
// failed, else the origin status, else "network".
func (r FetchResult) errorKey() string {
	switch {
	case r.ProxyStatus != 0 && (r.ProxyStatus < 200 || r.ProxyStatus >= 300):
		return strconv.Itoa(r.ProxyStatus)
	case r.HTTPStatus != 0:
		return strconv.Itoa(r.HTTPStatus)
	default:
		return "network"
	}
}

// Finish computes the derived fields.
func (s *CycleStats) Finish(elapsed time.Duration) {
	if s.AttemptedTargets > 0 {
		s.AvgResponseTimeMs = s.TotalResponseTime.Milliseconds() / int64(s.AttemptedTargets)
	} else {
		s.AvgResponseTimeMs = 0
	}
	s.CycleDurationMin = elapsed.Minutes()
}
