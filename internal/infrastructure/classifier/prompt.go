package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

const systemPrompt = "You are a document analysis AI. Always respond with valid JSON only."

func buildClassificationPrompt(filename, snippet string) string {
	return fmt.Sprintf(`You are an intelligent document processor for IntelliDocs AI. Analyze the following document and provide:

1. A concise summary (2-3 sentences)
2. Category classification (choose from: %s)
3. Confidence score (0.0 to 1.0)

Document filename: %s
Document content: %s

Respond in JSON format:
{
  "summary": "Brief summary here",
  "category": "Category name",
  "confidence": 0.95
}`, strings.Join(domain.CategoryNames(), ", "), filename, snippet)
}

// truncateRunes keeps at most limit characters without splitting a rune.
func truncateRunes(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

func cacheKey(filename, snippet string) string {
	sum := sha256.Sum256([]byte(filename + "\x00" + snippet))
	return hex.EncodeToString(sum[:])
}
