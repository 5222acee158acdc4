package retriever

import "aria/internal/domain"

// FallbackContent returns canned course material used when the index or the
// encoder is unavailable. Scores are fixed below typical live-retrieval
// scores so a recovered index naturally outranks them.
func FallbackContent() []domain.RetrievalResult {
	return []domain.RetrievalResult{
		{
			Text: "Static equilibrium requires the sum of forces and the sum of " +
				"moments on a body to both equal zero. Drawing a free body diagram " +
				"and applying these two conditions is the starting point for every " +
				"statics problem.",
			Metadata: domain.Metadata{
				SourceFile:  "statics_overview.md",
				ContentType: domain.ContentCourseSlide,
				Topic:       "Equilibrium conditions",
				Concepts:    []string{"equilibrium", "free body diagram", "force", "moment"},
			},
			Score:  0.70,
			Source: "statics_overview.md",
		},
		{
			Text: "Stress is internal force per unit area, sigma = F / A, and " +
				"strain is the dimensionless ratio of deformation to original " +
				"length. Within the elastic range Hooke's law relates them through " +
				"the elastic modulus, sigma = E * epsilon.",
			Metadata: domain.Metadata{
				SourceFile:  "stress_strain_notes.md",
				ContentType: domain.ContentCourseSlide,
				Topic:       "Stress and strain",
				Concepts:    []string{"stress", "strain", "elastic modulus"},
				Formulas:    []string{"sigma = F / A", "sigma = E * epsilon"},
			},
			Score:  0.65,
			Source: "stress_strain_notes.md",
		},
		{
			Text: "To find beam support reactions, isolate the beam, replace " +
				"supports with reaction forces, then take moments about one support " +
				"to solve for the other reaction before applying force balance.",
			Metadata: domain.Metadata{
				SourceFile:  "beam_solutions.md",
				ContentType: domain.ContentExerciseSolution,
				Topic:       "Reaction calculations",
				Concepts:    []string{"reactions", "moment", "beam"},
			},
			Score:  0.60,
			Source: "beam_solutions.md",
		},
	}
}
