package models

import "strings"

// Choice is one of the three strategic responses available in every scenario.
type Choice string

const (
	ChoiceCommunicate Choice = "communicate"
	ChoiceSilence     Choice = "silence"
	ChoiceEscalate    Choice = "escalate"
)

// Choices lists every choice in catalog order.
var Choices = []Choice{ChoiceCommunicate, ChoiceSilence, ChoiceEscalate}

// ParseChoice validates s against the closed set of choices.
func ParseChoice(s string) (Choice, error) {
	c := Choice(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &InvalidChoiceError{Value: s}
	}
	return c, nil
}

// Valid reports whether c is one of the known choices.
func (c Choice) Valid() bool {
	return c.Index() >= 0
}

// Index returns the ordinal of c in Choices, or -1 if c is unknown.
func (c Choice) Index() int {
	for i, known := range Choices {
		if c == known {
			return i
		}
	}
	return -1
}

func (c Choice) String() string {
	return string(c)
}
