/**
 * Pattern table for physical-parameter extraction
 *
 * Each parameter type owns one expression over lowercased span text with a
 * closed unit vocabulary. Tables are compiled once, versioned, and never
 * mutated; matching is concurrency-safe.
 */

package extract

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultVersion identifies the built-in pattern table
const DefaultVersion = "v1"

// Layout describes how a pattern's capture groups map to a parameter
type Layout string

const (
	// LayoutValueOnly patterns capture the numeric value; the unit group is
	// non-capturing and the parameter's unit stays empty
	LayoutValueOnly Layout = "value_only"

	// LayoutValueAndUnit patterns capture the numeric value and the unit
	LayoutValueAndUnit Layout = "value_and_unit"
)

// PatternSpec is the declarative form of one pattern table row
type PatternSpec struct {
	Type   string `yaml:"type"`
	Expr   string `yaml:"expr"`
	Layout Layout `yaml:"layout"`
}

type pattern struct {
	paramType string
	re        *regexp.Regexp
	layout    Layout
}

// Table is a compiled pattern table
type Table struct {
	Version  string
	patterns map[string]pattern
}

// NewTable compiles pattern specs into a table. Expressions must be written
// lowercase; matching input is lowercased, so patterns must not depend on
// case.
func NewTable(version string, specs []PatternSpec) (*Table, error) {
	t := &Table{
		Version:  version,
		patterns: make(map[string]pattern, len(specs)),
	}

	for _, spec := range specs {
		if spec.Type == "" {
			return nil, fmt.Errorf("pattern with empty type")
		}
		if _, dup := t.patterns[spec.Type]; dup {
			return nil, fmt.Errorf("duplicate pattern type: %s", spec.Type)
		}

		re, err := regexp.Compile(spec.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern for %s: %w", spec.Type, err)
		}

		switch spec.Layout {
		case LayoutValueOnly:
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("pattern for %s needs a value group", spec.Type)
			}
		case LayoutValueAndUnit:
			if re.NumSubexp() < 2 {
				return nil, fmt.Errorf("pattern for %s needs value and unit groups", spec.Type)
			}
		default:
			return nil, fmt.Errorf("pattern for %s has unknown layout %q", spec.Type, spec.Layout)
		}

		t.patterns[spec.Type] = pattern{paramType: spec.Type, re: re, layout: spec.Layout}
	}

	return t, nil
}

// DefaultTable compiles the built-in table
func DefaultTable() *Table {
	t, err := NewTable(DefaultVersion, defaultSpecs())
	if err != nil {
		panic(fmt.Sprintf("built-in pattern table is invalid: %v", err))
	}
	return t
}

// Types lists the table's parameter types, sorted
func (t *Table) Types() []string {
	types := make([]string, 0, len(t.patterns))
	for pt := range t.patterns {
		types = append(types, pt)
	}
	sort.Strings(types)
	return types
}

// Has reports whether the table carries a pattern for the type
func (t *Table) Has(paramType string) bool {
	_, ok := t.patterns[paramType]
	return ok
}

func defaultSpecs() []PatternSpec {
	return []PatternSpec{
		{Type: "voltage", Expr: `(\d+(?:\.\d+)?)\s*(?:v|volt|kv|mv)(?:s)?\b`, Layout: LayoutValueOnly},
		{Type: "weight", Expr: `(\d+(?:\.\d+)?)\s*(g|kg|lbs?|oz|mg)\b`, Layout: LayoutValueAndUnit},
		{Type: "height", Expr: `(\d+(?:\.\d+)?)\s*(cm|m|inch|ft|mm)\b`, Layout: LayoutValueAndUnit},
		{Type: "volume", Expr: `(\d+(?:\.\d+)?)\s*(ml|l|fl\s?oz|gal)\b`, Layout: LayoutValueAndUnit},
		{Type: "wattage", Expr: `(\d+(?:\.\d+)?)\s*(w|watt|mw)(?:s)?\b`, Layout: LayoutValueAndUnit},
		{Type: "depth", Expr: `(?:depth|d):\s*(\d+(?:\.\d+)?)\s*(cm|m|inch|ft|mm)\b`, Layout: LayoutValueAndUnit},
		{Type: "width", Expr: `(?:width|w):\s*(\d+(?:\.\d+)?)\s*(cm|m|inch|ft|mm)\b`, Layout: LayoutValueAndUnit},
		{Type: "max_weight", Expr: `(?:max(?:imum)?\s*weight|weight\s*capacity):\s*(\d+(?:\.\d+)?)\s*(kg|lbs?)\b`, Layout: LayoutValueAndUnit},
	}
}

// Definitions is the on-disk form of the pattern table and entity mapping
type Definitions struct {
	Version  string            `yaml:"version"`
	Patterns []PatternSpec     `yaml:"patterns"`
	Entities map[string]string `yaml:"entities"`
}

// LoadDefinitions reads a YAML definitions file and compiles it. Sections
// missing from the file fall back to the built-in defaults.
func LoadDefinitions(path string) (*Table, EntityMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read definitions: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, nil, fmt.Errorf("parse definitions: %w", err)
	}

	table := DefaultTable()
	if len(defs.Patterns) > 0 {
		version := defs.Version
		if version == "" {
			version = DefaultVersion
		}
		table, err = NewTable(version, defs.Patterns)
		if err != nil {
			return nil, nil, err
		}
	}

	mapping := DefaultEntityMapping()
	if len(defs.Entities) > 0 {
		mapping = EntityMapping(defs.Entities)
	}

	return table, mapping, nil
}
