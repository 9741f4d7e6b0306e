package classifier

import (
	"testing"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

func TestDecodeClassificationDefaults(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want domain.Classification
	}{
		{
			name: "all fields missing",
			raw:  `{}`,
			want: domain.Classification{Summary: DefaultSummary, Category: domain.CategoryOperations, Confidence: DefaultConfidence},
		},
		{
			name: "empty summary",
			raw:  `{"summary":"","category":"Legal","confidence":0.7}`,
			want: domain.Classification{Summary: DefaultSummary, Category: domain.CategoryLegal, Confidence: 0.7},
		},
		{
			name: "wrong types",
			raw:  `{"summary":12,"category":true,"confidence":"high"}`,
			want: domain.Classification{Summary: DefaultSummary, Category: domain.CategoryOperations, Confidence: DefaultConfidence},
		},
		{
			name: "category case insensitive",
			raw:  `{"summary":"s","category":" engineering ","confidence":0.6}`,
			want: domain.Classification{Summary: "s", Category: domain.CategoryEngineering, Confidence: 0.6},
		},
		{
			name: "unknown category",
			raw:  `{"summary":"s","category":"Marketing","confidence":0.6}`,
			want: domain.Classification{Summary: "s", Category: domain.CategoryOperations, Confidence: 0.6},
		},
		{
			name: "confidence clamped",
			raw:  `{"summary":"s","category":"HR","confidence":1.7}`,
			want: domain.Classification{Summary: "s", Category: domain.CategoryHR, Confidence: 1},
		},
		{
			name: "zero confidence kept",
			raw:  `{"summary":"s","category":"HR","confidence":0}`,
			want: domain.Classification{Summary: "s", Category: domain.CategoryHR, Confidence: 0},
		},
		{
			name: "markdown fence",
			raw:  "```json\n{\"summary\":\"s\",\"category\":\"Maintenance\",\"confidence\":0.4}\n```",
			want: domain.Classification{Summary: "s", Category: domain.CategoryMaintenance, Confidence: 0.4},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeClassification(tc.raw)
			if err != nil {
				t.Fatalf("decodeClassification() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("decodeClassification() = %+v, want %+v", got, tc.want)
			}
			if !got.Category.Valid() || got.Confidence < 0 || got.Confidence > 1 {
				t.Fatalf("result outside closed set or range: %+v", got)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("truncateRunes() = %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Fatalf("truncateRunes() = %q", got)
	}
}

func TestCategoryFromFilenameOrder(t *testing.T) {
	// "hr" is checked before "contract", matching the rule order.
	if got := CategoryFromFilename("HR_contract.pdf"); got != domain.CategoryHR {
		t.Fatalf("CategoryFromFilename() = %s", got)
	}
	if got := CategoryFromFilename("Design_budget.pdf"); got != domain.CategoryFinance {
		t.Fatalf("CategoryFromFilename() = %s", got)
	}
}
