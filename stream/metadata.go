package stream

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Metadata describes a completed answer. Zero values mean the server did
// not report the field.
type Metadata struct {
	Model           string  `json:"model,omitempty"`
	ResponseTime    string  `json:"responseTime,omitempty"`
	InputTokens     int64   `json:"inputTokens,omitempty"`
	OutputTokens    int64   `json:"outputTokens,omitempty"`
	TotalTokens     int64   `json:"totalTokens,omitempty"`
	TokensPerSecond float64 `json:"tokensPerSecond,omitempty"`
}

// Field is a single labelled metadata value ready for display
type Field struct {
	Label string
	Value string
}

// IsZero reports whether no field was reported
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// UnmarshalJSON accepts the loose shapes servers emit, such as token counts
// encoded as floats or a numeric response time.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}
	*m = metadataFromMap(fields)
	return nil
}

// Fields returns the reported values in display order. The condensed form
// keeps only response time, total tokens and throughput.
func (m Metadata) Fields(condensed bool) []Field {
	var out []Field
	if m.Model != "" && !condensed {
		out = append(out, Field{Label: "model", Value: m.Model})
	}
	if m.ResponseTime != "" {
		out = append(out, Field{Label: "time", Value: m.ResponseTime})
	}
	if m.InputTokens != 0 && !condensed {
		out = append(out, Field{Label: "in", Value: strconv.FormatInt(m.InputTokens, 10)})
	}
	if m.OutputTokens != 0 && !condensed {
		out = append(out, Field{Label: "out", Value: strconv.FormatInt(m.OutputTokens, 10)})
	}
	if m.TotalTokens != 0 {
		out = append(out, Field{Label: "total", Value: strconv.FormatInt(m.TotalTokens, 10)})
	}
	if m.TokensPerSecond != 0 {
		out = append(out, Field{Label: "speed", Value: strconv.FormatFloat(m.TokensPerSecond, 'f', -1, 64) + " t/s"})
	}
	return out
}

// FormatResponseTime renders a duration as "1m30s" or "5s"
func FormatResponseTime(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	minutes := total / 60
	seconds := total % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// TokensPerSecond computes throughput rounded to two decimals. It returns 0
// when either input is zero.
func TokensPerSecond(totalTokens int64, elapsed time.Duration) float64 {
	ms := elapsed.Milliseconds()
	if totalTokens == 0 || ms == 0 {
		return 0
	}
	tps := float64(totalTokens) / (float64(ms) / 1000.0)
	return math.Round(tps*100) / 100
}

func metadataFromMap(fields map[string]any) Metadata {
	var md Metadata
	if fields == nil {
		return md
	}
	md.Model = asString(fields["model"])
	md.ResponseTime = asString(fields["responseTime"])
	md.InputTokens = asInt(fields["inputTokens"])
	md.OutputTokens = asInt(fields["outputTokens"])
	md.TotalTokens = asInt(fields["totalTokens"])
	md.TokensPerSecond = asFloat(fields["tokensPerSecond"])
	return md
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asInt(v any) int64 {
	switch t := v.(type) {
	case float64:
		return clampInt(t)
	case string:
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return clampInt(n)
	default:
		return 0
	}
}

// clampInt converts f to int64, saturating values outside its range. NaN is
// treated as unreported.
func clampInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
