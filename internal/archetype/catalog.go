// Package archetype holds the static archetype catalog: the fourteen
// archetypes, the symbol library and the transition significance table.
package archetype

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Confidence thresholds for picking confidence language.
const (
	HighConfidence   = 0.85
	MediumConfidence = 0.65
)

// ConfidenceLanguage phrases an archetype's presence at three certainty levels.
type ConfidenceLanguage struct {
	High   string `yaml:"high" json:"high"`
	Medium string `yaml:"medium" json:"medium"`
	Low    string `yaml:"low" json:"low"`
}

// Archetype is one immutable catalog entry.
type Archetype struct {
	Name                string
	Symbols             []string
	Emotions            []string
	LanguagePatterns    []*regexp.Regexp
	Tone                string
	SymbolicLanguage    []string
	CoreResonance       string
	TransformationKey   string
	ResponseTemplate    string
	ConfidenceLanguage  ConfidenceLanguage
	IntegrationPractice string
}

// LanguageFor returns the confidence phrase matching confidence.
func (a *Archetype) LanguageFor(confidence float64) string {
	switch {
	case confidence >= HighConfidence:
		return a.ConfidenceLanguage.High
	case confidence >= MediumConfidence:
		return a.ConfidenceLanguage.Medium
	default:
		return a.ConfidenceLanguage.Low
	}
}

// Symbol is a symbol library entry with its word-boundary matcher.
type Symbol struct {
	Word    string
	Pattern *regexp.Regexp
}

// SymbolCategory groups symbols, e.g. "threshold_symbols".
type SymbolCategory struct {
	Name    string
	Symbols []Symbol
}

// Catalog is loaded once and shared read-only.
type Catalog struct {
	archetypes    []*Archetype
	byName        map[string]*Archetype
	symbolLibrary []SymbolCategory
	relationships map[string]map[string]float64
}

type catalogFile struct {
	Archetypes []struct {
		Name                string             `yaml:"name"`
		Symbols             []string           `yaml:"symbols"`
		Emotions            []string           `yaml:"emotions"`
		LanguagePatterns    []string           `yaml:"language_patterns"`
		Tone                string             `yaml:"tone"`
		SymbolicLanguage    []string           `yaml:"symbolic_language"`
		CoreResonance       string             `yaml:"core_resonance"`
		TransformationKey   string             `yaml:"transformation_key"`
		ResponseTemplate    string             `yaml:"response_template"`
		ConfidenceLanguage  ConfidenceLanguage `yaml:"confidence_language"`
		IntegrationPractice string             `yaml:"integration_practice"`
	} `yaml:"archetypes"`
	SymbolLibrary []struct {
		Category string   `yaml:"category"`
		Symbols  []string `yaml:"symbols"`
	} `yaml:"symbol_library"`
	Relationships []struct {
		From         string  `yaml:"from"`
		To           string  `yaml:"to"`
		Significance float64 `yaml:"significance"`
	} `yaml:"relationships"`
}

// Default returns the embedded catalog. It panics if the embedded data is
// malformed, which is a build defect.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("archetype: embedded catalog: %v", err))
	}
	return c
}

// LoadFile reads a catalog with the embedded schema from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML catalog data and compiles every pattern.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(f.Archetypes) == 0 {
		return nil, fmt.Errorf("catalog has no archetypes")
	}

	c := &Catalog{
		byName:        make(map[string]*Archetype, len(f.Archetypes)),
		relationships: make(map[string]map[string]float64),
	}

	for _, raw := range f.Archetypes {
		if raw.Name == "" {
			return nil, fmt.Errorf("archetype with empty name")
		}
		if _, dup := c.byName[raw.Name]; dup {
			return nil, fmt.Errorf("duplicate archetype %q", raw.Name)
		}

		patterns := make([]*regexp.Regexp, 0, len(raw.LanguagePatterns))
		for _, p := range raw.LanguagePatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("archetype %q pattern %q: %w", raw.Name, p, err)
			}
			patterns = append(patterns, re)
		}

		a := &Archetype{
			Name:                raw.Name,
			Symbols:             raw.Symbols,
			Emotions:            raw.Emotions,
			LanguagePatterns:    patterns,
			Tone:                raw.Tone,
			SymbolicLanguage:    raw.SymbolicLanguage,
			CoreResonance:       raw.CoreResonance,
			TransformationKey:   raw.TransformationKey,
			ResponseTemplate:    raw.ResponseTemplate,
			ConfidenceLanguage:  raw.ConfidenceLanguage,
			IntegrationPractice: raw.IntegrationPractice,
		}
		c.archetypes = append(c.archetypes, a)
		c.byName[a.Name] = a
	}

	for _, cat := range f.SymbolLibrary {
		sc := SymbolCategory{Name: cat.Category}
		for _, word := range cat.Symbols {
			sc.Symbols = append(sc.Symbols, Symbol{
				Word:    word,
				Pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`),
			})
		}
		c.symbolLibrary = append(c.symbolLibrary, sc)
	}

	for _, r := range f.Relationships {
		if r.Significance < 0 || r.Significance > 1 {
			return nil, fmt.Errorf("relationship %s -> %s: significance %v out of [0,1]", r.From, r.To, r.Significance)
		}
		if c.relationships[r.From] == nil {
			c.relationships[r.From] = make(map[string]float64)
		}
		c.relationships[r.From][r.To] = r.Significance
	}

	return c, nil
}

// Archetypes returns the archetypes in declaration order.
func (c *Catalog) Archetypes() []*Archetype {
	return c.archetypes
}

// Get looks up an archetype by name.
func (c *Catalog) Get(name string) (*Archetype, bool) {
	a, ok := c.byName[name]
	return a, ok
}

// SymbolLibrary returns the symbol categories in declaration order.
func (c *Catalog) SymbolLibrary() []SymbolCategory {
	return c.symbolLibrary
}

// Significance returns the transition significance for from -> to, falling
// back to to -> from. ok is false for unmapped pairs.
func (c *Catalog) Significance(from, to string) (float64, bool) {
	if v, ok := c.relationships[from][to]; ok {
		return v, true
	}
	if v, ok := c.relationships[to][from]; ok {
		return v, true
	}
	return 0, false
}

// IntegrationPractice returns the archetype's suggested practice, or "" when
// the archetype is not in the catalog.
func (c *Catalog) IntegrationPractice(name string) string {
	if a, ok := c.byName[name]; ok {
		return a.IntegrationPractice
	}
	return ""
}
