package scoring

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/darkforest/internal/models"
)

func TestApplyChoice_Table(t *testing.T) {
	tests := []struct {
		ctx    models.Context
		choice models.Choice
		want   models.WeightVector
	}{
		{models.ContextBusiness, models.ChoiceCommunicate, models.WeightVector{Cooperation: 1.5, Caution: 0.5, Aggression: 0.2}},
		{models.ContextBusiness, models.ChoiceSilence, models.WeightVector{Cooperation: 0.8, Caution: 1.5, Aggression: 0.4}},
		{models.ContextBusiness, models.ChoiceEscalate, models.WeightVector{Cooperation: 0.1, Caution: 0.3, Aggression: 2.5}},
		{models.ContextPhilosophy, models.ChoiceCommunicate, models.WeightVector{Cooperation: 2.0, Caution: 0.8, Aggression: 0.1}},
		{models.ContextPhilosophy, models.ChoiceSilence, models.WeightVector{Cooperation: 1.0, Caution: 1.5, Aggression: 0.2}},
		{models.ContextPhilosophy, models.ChoiceEscalate, models.WeightVector{Cooperation: 0.2, Caution: 0.5, Aggression: 1.8}},
		{models.ContextScience, models.ChoiceCommunicate, models.WeightVector{Cooperation: 1.8, Caution: 1.0, Aggression: 0.3}},
		{models.ContextScience, models.ChoiceSilence, models.WeightVector{Cooperation: 1.2, Caution: 1.8, Aggression: 0.5}},
		{models.ContextScience, models.ChoiceEscalate, models.WeightVector{Cooperation: 0.2, Caution: 0.4, Aggression: 1.5}},
		{models.ContextPolicy, models.ChoiceCommunicate, models.WeightVector{Cooperation: 1.6, Caution: 1.0, Aggression: 0.4}},
		{models.ContextPolicy, models.ChoiceSilence, models.WeightVector{Cooperation: 1.0, Caution: 1.5, Aggression: 0.6}},
		{models.ContextPolicy, models.ChoiceEscalate, models.WeightVector{Cooperation: 0.5, Caution: 0.5, Aggression: 2.2}},
	}

	for _, tt := range tests {
		t.Run(string(tt.ctx)+"/"+string(tt.choice), func(t *testing.T) {
			got, err := ApplyChoice(tt.ctx, tt.choice)
			if err != nil {
				t.Fatalf("ApplyChoice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ApplyChoice() = %+v, want %+v", got, tt.want)
			}
			again, _ := ApplyChoice(tt.ctx, tt.choice)
			if again != got {
				t.Errorf("ApplyChoice() not deterministic: %+v then %+v", got, again)
			}
		})
	}
}

func TestApplyChoice_Dominance(t *testing.T) {
	for _, ctx := range models.Contexts {
		for _, choice := range models.Choices {
			w, err := ApplyChoice(ctx, choice)
			if err != nil {
				t.Fatalf("ApplyChoice(%s, %s) error = %v", ctx, choice, err)
			}
			if w.Cooperation < 0 || w.Caution < 0 || w.Aggression < 0 {
				t.Errorf("%s/%s has a negative component: %+v", ctx, choice, w)
			}

			var ok bool
			switch Dominant(choice) {
			case "cooperation":
				ok = w.Cooperation > w.Caution && w.Cooperation > w.Aggression
			case "caution":
				ok = w.Caution > w.Cooperation && w.Caution > w.Aggression
			case "aggression":
				ok = w.Aggression > w.Cooperation && w.Aggression > w.Caution
			}
			if !ok {
				t.Errorf("%s/%s: %s is not strictly dominant in %+v", ctx, choice, Dominant(choice), w)
			}
		}
	}
}

func TestApplyChoice_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		ctx        models.Context
		choice     models.Choice
		wantChoice bool
	}{
		{"unknown choice", models.ContextBusiness, "negotiate", true},
		{"empty choice", models.ContextPolicy, "", true},
		{"unknown context", "economics", models.ChoiceSilence, false},
		{"both unknown reports choice", "economics", "negotiate", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyChoice(tt.ctx, tt.choice)
			if err == nil {
				t.Fatal("ApplyChoice() should fail")
			}
			var choiceErr *models.InvalidChoiceError
			var ctxErr *models.InvalidContextError
			if tt.wantChoice && !errors.As(err, &choiceErr) {
				t.Errorf("error = %v, want InvalidChoiceError", err)
			}
			if !tt.wantChoice && !errors.As(err, &ctxErr) {
				t.Errorf("error = %v, want InvalidContextError", err)
			}
		})
	}
}

func TestAccumulate_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for run := 0; run < 200; run++ {
		ctx := models.Contexts[rng.IntN(len(models.Contexts))]
		n := rng.IntN(12)

		var vectors []models.WeightVector
		var want models.Scores
		for i := 0; i < n; i++ {
			w, err := ApplyChoice(ctx, models.Choices[rng.IntN(len(models.Choices))])
			if err != nil {
				t.Fatal(err)
			}
			vectors = append(vectors, w)
			want.Cooperation += w.Cooperation
			want.Caution += w.Caution
			want.Aggression += w.Aggression
		}

		if got := Accumulate(vectors...); got != want {
			t.Fatalf("run %d: Accumulate() = %+v, want %+v", run, got, want)
		}
	}
}

func TestNormalize_BusinessRun(t *testing.T) {
	var vectors []models.WeightVector
	for _, c := range []models.Choice{models.ChoiceEscalate, models.ChoiceEscalate, models.ChoiceCommunicate, models.ChoiceSilence} {
		w, err := ApplyChoice(models.ContextBusiness, c)
		if err != nil {
			t.Fatal(err)
		}
		vectors = append(vectors, w)
	}

	raw := Accumulate(vectors...)
	const eps = 1e-9
	if abs(raw.Cooperation-2.5) > eps || abs(raw.Caution-2.6) > eps || abs(raw.Aggression-5.6) > eps {
		t.Errorf("raw = %+v, want (2.5, 2.6, 5.6)", raw)
	}

	norm := Normalize(raw, 4)
	if norm.Cooperation != raw.Cooperation/4 || norm.Caution != raw.Caution/4 || norm.Aggression != raw.Aggression/4 {
		t.Errorf("Normalize() = %+v, want raw/4 exactly", norm)
	}

	if zero := Normalize(models.Scores{}, 0); !zero.IsZero() {
		t.Errorf("Normalize(zero, 0) = %+v, want zeros", zero)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
