package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anvesh29/mitra/pkg/log"
)

// NLPClient is the primary intent service: free text in, raw model output
// out. The output is expected to contain a JSON object but may wrap it in
// prose.
type NLPClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const classifyInstruction = `You are an intent classifier for a voice assistant.
Classify the user command into exactly one intent from this set:
add_task, show_tasks, add_reminder, show_reminders, play_music, navigate, greeting, unknown.
Respond with ONLY a JSON object of the shape
{"intent": "<label>", "entities": {"title"?, "description"?, "time"?, "query"?, "page"?}, "confidence": <0..1>}.
Command: `

// Classifier produces an Intent for every input. The primary NLP call is
// bounded by a timeout; any failure of transport, timing, or response shape
// falls through to the deterministic rule table and is never surfaced.
type Classifier struct {
	nlp     NLPClient
	timeout time.Duration
}

func NewClassifier(nlp NLPClient, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Classifier{nlp: nlp, timeout: timeout}
}

// Classify never returns an error: the fallback matcher is total.
func (c *Classifier) Classify(ctx context.Context, text string) Outcome {
	if c.nlp != nil {
		in, err := c.classifyPrimary(ctx, text)
		if err == nil {
			return Outcome{Intent: in, Path: PathPrimary}
		}
		log.Debug(log.Fields{"error": err.Error()}, "primary classification failed, using fallback")
	}
	return Outcome{Intent: classifyFallback(text), Path: PathFallback}
}

func (c *Classifier) classifyPrimary(ctx context.Context, text string) (Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.nlp.Complete(ctx, classifyInstruction+strconv.Quote(text))
	if err != nil {
		return Intent{}, fmt.Errorf("nlp call: %w", err)
	}
	in, err := parsePrimaryResponse(raw)
	if err != nil {
		return Intent{}, err
	}
	in.SourceText = text
	return in, nil
}

var (
	errNoJSONObject  = errors.New("no balanced JSON object in response")
	errMissingIntent = errors.New("response missing intent label")
	errBadConfidence = errors.New("response confidence is not numeric")
)

type primaryResponse struct {
	Intent     string          `json:"intent"`
	Entities   map[string]any  `json:"entities"`
	Confidence json.RawMessage `json:"confidence"`
}

// parsePrimaryResponse validates the shape of the NLP service's reply.
// Shape failures are errors so the caller can fall back.
func parsePrimaryResponse(raw string) (Intent, error) {
	obj, err := extractBalancedObject(raw)
	if err != nil {
		return Intent{}, err
	}
	var resp primaryResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return Intent{}, fmt.Errorf("unparsable JSON: %w", err)
	}
	if strings.TrimSpace(resp.Intent) == "" {
		return Intent{}, errMissingIntent
	}
	confidence, err := numericConfidence(resp.Confidence)
	if err != nil {
		return Intent{}, err
	}

	in := Intent{
		Kind:       NormalizeKind(resp.Intent),
		Confidence: confidence,
	}
	for k, v := range resp.Entities {
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		if in.Entities == nil {
			in.Entities = map[string]string{}
		}
		in.Entities[strings.ToLower(k)] = strings.TrimSpace(s)
	}
	return in, nil
}

func numericConfidence(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errBadConfidence
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	// Some model replies quote the number.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, nil
		}
	}
	return 0, errBadConfidence
}

// extractBalancedObject returns the first balanced {...} in s, tolerating
// surrounding prose and code fences. String literals and escapes inside the
// object are respected.
func extractBalancedObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errNoJSONObject
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errNoJSONObject
}
