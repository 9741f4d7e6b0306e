package classifier

import (
	"strings"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

const (
	FallbackSummary    = "AI processing failed. Manual review required."
	FallbackConfidence = 0.3
)

type keywordRule struct {
	category domain.Category
	keywords []string
}

// Checked in order; the first rule with a matching substring wins.
var filenameRules = []keywordRule{
	{category: domain.CategoryHR, keywords: []string{"hr", "human", "employee"}},
	{category: domain.CategoryLegal, keywords: []string{"legal", "contract", "agreement"}},
	{category: domain.CategoryFinance, keywords: []string{"finance", "budget", "invoice"}},
	{category: domain.CategoryEngineering, keywords: []string{"engineer", "technical", "design"}},
	{category: domain.CategoryMaintenance, keywords: []string{"maintenance", "repair", "service"}},
}

func CategoryFromFilename(filename string) domain.Category {
	lower := strings.ToLower(filename)
	for _, rule := range filenameRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return domain.CategoryOperations
}

func fallbackClassification(filename string) domain.Classification {
	return domain.Classification{
		Summary:    FallbackSummary,
		Category:   CategoryFromFilename(filename),
		Confidence: FallbackConfidence,
		Fallback:   true,
	}
}
