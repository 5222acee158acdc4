package usecase

import (
	"regexp"
	"strings"
)

// AlwaysRelevant accepts every question. This is the default gate: blocking
// a student on a heuristic is worse than answering off-topic occasionally.
type AlwaysRelevant struct{}

func (AlwaysRelevant) IsInDomain(string) bool { return true }

// KeywordClassifier accepts questions that mention course vocabulary or
// engineering units.
type KeywordClassifier struct {
	terms []string
	units *regexp.Regexp
}

var courseTerms = []string{
	"stress", "strain", "moment", "force", "equilibrium", "deflection",
	"torsion", "bending", "shear", "axial", "centroid", "inertia",
	"beam", "truss", "frame", "column", "buckling", "fatigue",
	"statics", "mechanics", "load", "reaction", "support", "free body",
	"modulus", "elastic", "rigid",
}

var unitPattern = regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*(kn|n|mpa|gpa|kpa|pa|mm|cm|m)\b|n·m|n\.m|n/m|kn/m`)

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		terms: courseTerms,
		units: unitPattern,
	}
}

func (c *KeywordClassifier) IsInDomain(question string) bool {
	q := strings.ToLower(question)
	for _, term := range c.terms {
		if strings.Contains(q, term) {
			return true
		}
	}
	return c.units.MatchString(q)
}
