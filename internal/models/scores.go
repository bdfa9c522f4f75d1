package models

// WeightVector is the (cooperation, caution, aggression) contribution of a
// single choice under a single context. All components are non-negative.
type WeightVector struct {
	Cooperation float64 `json:"cooperation" yaml:"cooperation"`
	Caution     float64 `json:"caution" yaml:"caution"`
	Aggression  float64 `json:"aggression" yaml:"aggression"`
}

// Scores is a running or derived score triple.
type Scores struct {
	Cooperation float64 `json:"cooperation" yaml:"cooperation"`
	Caution     float64 `json:"caution" yaml:"caution"`
	Aggression  float64 `json:"aggression" yaml:"aggression"`
}

// Add returns s plus w, component-wise.
func (s Scores) Add(w WeightVector) Scores {
	return Scores{
		Cooperation: s.Cooperation + w.Cooperation,
		Caution:     s.Caution + w.Caution,
		Aggression:  s.Aggression + w.Aggression,
	}
}

// Normalized divides s by max(1, n).
func (s Scores) Normalized(n int) Scores {
	d := float64(max(1, n))
	return Scores{
		Cooperation: s.Cooperation / d,
		Caution:     s.Caution / d,
		Aggression:  s.Aggression / d,
	}
}

// IsZero reports whether every component is zero.
func (s Scores) IsZero() bool {
	return s == Scores{}
}
