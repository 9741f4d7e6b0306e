package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

const (
	DefaultSummary    = "Summary could not be generated"
	DefaultConfidence = 0.5
)

const responseSchema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "category": {"type": "string", "minLength": 1},
    "confidence": {"type": "number"}
  }
}`

var classificationSchema = jsonschema.MustCompileString("classification.json", responseSchema)

var errNotObject = errors.New("classification response is not a json object")

// decodeClassification parses the model output strictly. A payload that is not
// a JSON object is an error; individual fields that fail the schema fall back
// to their defaults.
func decodeClassification(raw string) (domain.Classification, error) {
	cleaned := cleanJSON(raw)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}
	if dec.More() {
		return domain.Classification{}, fmt.Errorf("parse classification json: trailing data")
	}
	fields, ok := doc.(map[string]any)
	if !ok {
		return domain.Classification{}, errNotObject
	}

	invalid := map[string]bool{}
	if err := classificationSchema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return domain.Classification{}, fmt.Errorf("validate classification: %w", err)
		}
		for _, item := range verr.BasicOutput().Errors {
			if item.InstanceLocation == "" {
				continue
			}
			invalid[strings.TrimPrefix(item.InstanceLocation, "/")] = true
		}
	}

	out := domain.Classification{
		Summary:    DefaultSummary,
		Category:   domain.CategoryOperations,
		Confidence: DefaultConfidence,
	}
	if v, ok := fields["summary"].(string); ok && !invalid["summary"] && strings.TrimSpace(v) != "" {
		out.Summary = strings.TrimSpace(v)
	}
	if v, ok := fields["category"].(string); ok && !invalid["category"] {
		if category, known := domain.ParseCategory(v); known {
			out.Category = category
		}
	}
	if v, ok := fields["confidence"].(json.Number); ok && !invalid["confidence"] {
		if f, err := v.Float64(); err == nil {
			out.Confidence = clamp01(f)
		}
	}
	return out, nil
}

// cleanJSON strips a surrounding markdown code fence.
func cleanJSON(input string) string {
	clean := strings.TrimSpace(input)
	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
	return strings.TrimSpace(clean)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
