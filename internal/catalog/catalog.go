// Package catalog holds the static scenario, choice and critique content.
// The content ships as an embedded YAML feed and is read-only at runtime.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/nvandessel/darkforest/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Scenario is one fixed decision point within a context.
type Scenario struct {
	Title     string   `json:"title" yaml:"title"`
	Cosmic    string   `json:"cosmic" yaml:"cosmic"`
	RealWorld string   `json:"real_world" yaml:"real_world"`
	Examples  []string `json:"examples" yaml:"examples"`
}

// Critique is the discipline-specific counter-argument for a context.
type Critique struct {
	Flaws    string   `json:"flaws" yaml:"flaws"`
	Examples []string `json:"examples" yaml:"examples"`
}

// ContextInfo is the catalog entry for one context.
type ContextInfo struct {
	ID          models.Context `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Scenarios   []Scenario     `json:"scenarios" yaml:"scenarios"`
	Critique    Critique       `json:"critique" yaml:"critique"`
}

// Consequence describes how a choice reads under Dark Forest logic and
// under the alternative reading.
type Consequence struct {
	DarkForest  string `json:"dark_forest" yaml:"dark_forest"`
	Alternative string `json:"alternative" yaml:"alternative"`
	Outcome     string `json:"outcome" yaml:"outcome"`
}

// ChoiceInfo is the catalog entry for one choice.
type ChoiceInfo struct {
	ID             models.Choice `json:"id" yaml:"id"`
	Label          string        `json:"label" yaml:"label"`
	Risk           string        `json:"risk" yaml:"risk"`
	Theory         string        `json:"theory" yaml:"theory"`
	DarkForestView string        `json:"dark_forest_view" yaml:"dark_forest_view"`
	Alternatives   []string      `json:"alternatives" yaml:"alternatives"`
	Consequence    Consequence   `json:"consequence" yaml:"consequence"`
}

// Criticisms groups the general objections to Dark Forest theory.
type Criticisms struct {
	Logical   []string `json:"logical" yaml:"logical"`
	Empirical []string `json:"empirical" yaml:"empirical"`
	Ethical   []string `json:"ethical" yaml:"ethical"`
}

// Catalog is the complete static content feed.
type Catalog struct {
	Version    int           `json:"version" yaml:"version"`
	Contexts   []ContextInfo `json:"contexts" yaml:"contexts"`
	Choices    []ChoiceInfo  `json:"choices" yaml:"choices"`
	Criticisms Criticisms    `json:"criticisms" yaml:"criticisms"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(embeddedCatalog)
	})
	return defaultCat, defaultErr
}

// MustDefault is Default for callers that treat a broken embedded feed as a
// programming error.
func MustDefault() *Catalog {
	cat, err := Default()
	if err != nil {
		panic(err)
	}
	return cat
}

// Parse decodes and validates a catalog feed.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks that every context and choice is present exactly once
// and that each context has at least one scenario.
func (c *Catalog) Validate() error {
	seenCtx := make(map[models.Context]bool, len(c.Contexts))
	for _, ctx := range c.Contexts {
		if !ctx.ID.Valid() {
			return fmt.Errorf("catalog: %w", &models.InvalidContextError{Value: string(ctx.ID)})
		}
		if seenCtx[ctx.ID] {
			return fmt.Errorf("catalog: duplicate context %s", ctx.ID)
		}
		if len(ctx.Scenarios) == 0 {
			return fmt.Errorf("catalog: context %s has no scenarios", ctx.ID)
		}
		seenCtx[ctx.ID] = true
	}
	for _, want := range models.Contexts {
		if !seenCtx[want] {
			return fmt.Errorf("catalog: missing context %s", want)
		}
	}

	seenChoice := make(map[models.Choice]bool, len(c.Choices))
	for _, ch := range c.Choices {
		if !ch.ID.Valid() {
			return fmt.Errorf("catalog: %w", &models.InvalidChoiceError{Value: string(ch.ID)})
		}
		if seenChoice[ch.ID] {
			return fmt.Errorf("catalog: duplicate choice %s", ch.ID)
		}
		seenChoice[ch.ID] = true
	}
	for _, want := range models.Choices {
		if !seenChoice[want] {
			return fmt.Errorf("catalog: missing choice %s", want)
		}
	}
	return nil
}

// Context returns the entry for ctx.
func (c *Catalog) Context(ctx models.Context) (*ContextInfo, error) {
	for i := range c.Contexts {
		if c.Contexts[i].ID == ctx {
			return &c.Contexts[i], nil
		}
	}
	return nil, &models.InvalidContextError{Value: string(ctx)}
}

// Choice returns the entry for ch.
func (c *Catalog) Choice(ch models.Choice) (*ChoiceInfo, error) {
	for i := range c.Choices {
		if c.Choices[i].ID == ch {
			return &c.Choices[i], nil
		}
	}
	return nil, &models.InvalidChoiceError{Value: string(ch)}
}

// ScenarioCount returns the number of scenarios for ctx.
func (c *Catalog) ScenarioCount(ctx models.Context) (int, error) {
	info, err := c.Context(ctx)
	if err != nil {
		return 0, err
	}
	return len(info.Scenarios), nil
}

// Scenario returns the scenario at index for ctx.
func (c *Catalog) Scenario(ctx models.Context, index int) (*Scenario, error) {
	info, err := c.Context(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(info.Scenarios) {
		return nil, fmt.Errorf("scenario index %d out of range for %s (0-%d)", index, ctx, len(info.Scenarios)-1)
	}
	return &info.Scenarios[index], nil
}
