// Package scoring maps (context, choice) pairs to weight vectors and
// accumulates them into session scores.
package scoring

import "github.com/nvandessel/darkforest/internal/models"

// weightTable is indexed by models.Context.Index() then models.Choice.Index().
// Each row keeps the chosen dimension strictly dominant.
var weightTable = [4][3]models.WeightVector{
	// business
	{
		{Cooperation: 1.5, Caution: 0.5, Aggression: 0.2},
		{Cooperation: 0.8, Caution: 1.5, Aggression: 0.4},
		{Cooperation: 0.1, Caution: 0.3, Aggression: 2.5},
	},
	// philosophy
	{
		{Cooperation: 2.0, Caution: 0.8, Aggression: 0.1},
		{Cooperation: 1.0, Caution: 1.5, Aggression: 0.2},
		{Cooperation: 0.2, Caution: 0.5, Aggression: 1.8},
	},
	// science
	{
		{Cooperation: 1.8, Caution: 1.0, Aggression: 0.3},
		{Cooperation: 1.2, Caution: 1.8, Aggression: 0.5},
		{Cooperation: 0.2, Caution: 0.4, Aggression: 1.5},
	},
	// policy
	{
		{Cooperation: 1.6, Caution: 1.0, Aggression: 0.4},
		{Cooperation: 1.0, Caution: 1.5, Aggression: 0.6},
		{Cooperation: 0.5, Caution: 0.5, Aggression: 2.2},
	},
}

// ApplyChoice returns the constant weight vector for choice under ctx.
// The choice is checked first, so a pair with both keys invalid reports
// the choice.
func ApplyChoice(ctx models.Context, choice models.Choice) (models.WeightVector, error) {
	ci := choice.Index()
	if ci < 0 {
		return models.WeightVector{}, &models.InvalidChoiceError{Value: string(choice)}
	}
	xi := ctx.Index()
	if xi < 0 {
		return models.WeightVector{}, &models.InvalidContextError{Value: string(ctx)}
	}
	return weightTable[xi][ci], nil
}

// Accumulate sums vectors onto a zero score.
func Accumulate(vectors ...models.WeightVector) models.Scores {
	var s models.Scores
	for _, v := range vectors {
		s = s.Add(v)
	}
	return s
}

// Normalize divides scores by max(1, decisionCount).
func Normalize(scores models.Scores, decisionCount int) models.Scores {
	return scores.Normalized(decisionCount)
}

// Dominant returns the dimension the choice is designed to push.
func Dominant(choice models.Choice) string {
	switch choice {
	case models.ChoiceCommunicate:
		return "cooperation"
	case models.ChoiceSilence:
		return "caution"
	case models.ChoiceEscalate:
		return "aggression"
	}
	return ""
}
