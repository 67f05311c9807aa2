package class

import (
	"strings"

	"github.com/orsinium-labs/stopwords"
)

var enStopwords = stopwords.MustGet("en")

// ValidateName reports whether name collides with a common English
// stopword, a plausible authoring mistake worth a non-fatal warning
// rather than a parse failure (a scroll class or variable named "the"
// or "and" is almost certainly a typo, not intent).
func ValidateName(name string) bool {
	return enStopwords.Contains(strings.ToLower(name))
}
