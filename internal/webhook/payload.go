// Package webhook is the fulfillment surface called by the NLU engine once
// per conversational turn. The engine is an untrusted input source: entity
// values are heuristic extractions and every field is validated before use.
package webhook

import (
	"regexp"
	"strconv"
	"strings"
)

type Request struct {
	ResponseID  string      `json:"responseId"`
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

type QueryResult struct {
	QueryText      string          `json:"queryText"`
	Parameters     map[string]any  `json:"parameters"`
	Intent         IntentRef       `json:"intent"`
	OutputContexts []OutputContext `json:"outputContexts"`
}

type IntentRef struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type OutputContext struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

type Response struct {
	FulfillmentText string          `json:"fulfillmentText"`
	OutputContexts  []OutputContext `json:"outputContexts,omitempty"`
}

var sessionPattern = regexp.MustCompile(`/sessions/([^/]+)`)

// SessionID extracts the opaque session correlator from the session path or,
// failing that, from an output context name
// (projects/<p>/agent/sessions/<id>/contexts/<ctx>). Empty means the payload
// is malformed and the turn gets the fallback reply.
func (r *Request) SessionID() string {
	if m := sessionPattern.FindStringSubmatch(r.Session); m != nil {
		return m[1]
	}
	for _, c := range r.QueryResult.OutputContexts {
		if m := sessionPattern.FindStringSubmatch(c.Name); m != nil {
			return m[1]
		}
	}
	return ""
}

// sessionPath is the full session resource path, used to mint context names
// in responses.
func (r *Request) sessionPath() string {
	if strings.Contains(r.Session, "/sessions/") {
		return r.Session
	}
	for _, c := range r.QueryResult.OutputContexts {
		if prefix, _, ok := strings.Cut(c.Name, "/contexts/"); ok {
			return prefix
		}
	}
	return ""
}

// stringList reads an entity that may arrive as a single string or a list.
func stringList(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// numberList reads a numeric entity that may arrive as a float, a numeric
// string, or a list of either. Unparseable elements come back as 0 so the
// per-entry validation downstream rejects just that entry.
func numberList(params map[string]any, key string) []float64 {
	switch v := params[key].(type) {
	case float64:
		return []float64{v}
	case string:
		return []float64{parseNumber(v)}
	case []any:
		out := make([]float64, 0, len(v))
		for _, e := range v {
			switch n := e.(type) {
			case float64:
				out = append(out, n)
			case string:
				out = append(out, parseNumber(n))
			default:
				out = append(out, 0)
			}
		}
		return out
	default:
		return nil
	}
}

func parseNumber(s string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return n
}

// numberText reads a numeric entity as raw text, for values like order ids
// where leading digits matter more than float semantics.
func numberText(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		if len(v) > 0 {
			return numberText(map[string]any{key: v[0]}, key)
		}
	}
	return ""
}
