// Package labels normalizes raw label lists into the fixed set of
// label columns the store carries. Labels match patterns of the form
// "prefix:value" or "prefix-value"; labels that match no configured
// pattern but still look categorized spill into the custom slots.
package labels

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/uschtwill/hiersnap/internal/types"
)

// Pattern binds a label prefix to a normalized field.
type Pattern struct {
	Prefix string `yaml:"prefix"`
	Field  string `yaml:"field"`
}

// Field names accepted in patterns.
const (
	FieldPriority  = "priority"
	FieldType      = "type"
	FieldStatus    = "status"
	FieldTeam      = "team"
	FieldComponent = "component"
)

// DefaultPatterns maps the conventional prefixes onto their fields.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Prefix: "priority", Field: FieldPriority},
		{Prefix: "type", Field: FieldType},
		{Prefix: "status", Field: FieldStatus},
		{Prefix: "team", Field: FieldTeam},
		{Prefix: "component", Field: FieldComponent},
	}
}

// categoryRe matches any "category:value" / "category-value" shape.
var categoryRe = regexp.MustCompile(`^([a-zA-Z0-9_]+)[:-](.+)$`)

// Parser normalizes labels against a pattern set. It remembers the
// custom categories it has seen across calls.
type Parser struct {
	patterns   []compiled
	discovered map[string]bool
}

type compiled struct {
	field string
	re    *regexp.Regexp
}

// NewParser builds a parser. An empty pattern list selects the defaults.
func NewParser(patterns []Pattern) (*Parser, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	p := &Parser{discovered: make(map[string]bool)}
	for _, pat := range patterns {
		if !validField(pat.Field) {
			return nil, fmt.Errorf("label pattern %q: unknown field %q", pat.Prefix, pat.Field)
		}
		re, err := regexp.Compile(`(?i)^` + regexp.QuoteMeta(pat.Prefix) + `[:-](.+)$`)
		if err != nil {
			return nil, fmt.Errorf("label pattern %q: %w", pat.Prefix, err)
		}
		p.patterns = append(p.patterns, compiled{field: pat.Field, re: re})
	}
	return p, nil
}

func validField(f string) bool {
	switch f {
	case FieldPriority, FieldType, FieldStatus, FieldTeam, FieldComponent:
		return true
	}
	return false
}

// Parse normalizes one label list. For each field the first matching
// label wins; later matches for an already filled field are dropped.
func (p *Parser) Parse(labels []string) types.LabelFields {
	var out types.LabelFields
	for _, label := range labels {
		if p.matchPattern(label, &out) {
			continue
		}
		p.matchCustom(label, &out)
	}
	return out
}

func (p *Parser) matchPattern(label string, out *types.LabelFields) bool {
	for _, pat := range p.patterns {
		m := pat.re.FindStringSubmatch(label)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		slot := fieldSlot(out, pat.field)
		if *slot == "" {
			*slot = value
		}
		return true
	}
	return false
}

func (p *Parser) matchCustom(label string, out *types.LabelFields) {
	m := categoryRe.FindStringSubmatch(label)
	if m == nil {
		return
	}
	category := strings.ToLower(m[1])
	value := strings.TrimSpace(m[2])
	p.discovered[category] = true

	entry := category + ":" + value
	for _, slot := range []*string{&out.Custom1, &out.Custom2, &out.Custom3} {
		if *slot == "" {
			*slot = entry
			return
		}
	}
}

func fieldSlot(out *types.LabelFields, field string) *string {
	switch field {
	case FieldPriority:
		return &out.Priority
	case FieldType:
		return &out.TypeLabel
	case FieldStatus:
		return &out.Status
	case FieldTeam:
		return &out.Team
	case FieldComponent:
		return &out.Component
	}
	panic("unreachable: patterns are validated at construction")
}

// DiscoveredCategories returns the custom categories seen so far, sorted.
func (p *Parser) DiscoveredCategories() []string {
	cats := make([]string, 0, len(p.discovered))
	for c := range p.discovered {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// LoadPatterns reads a pattern list from a YAML file of the form:
//
//	patterns:
//	  - prefix: priority
//	    field: priority
func LoadPatterns(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label patterns: %w", err)
	}
	var doc struct {
		Patterns []Pattern `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse label patterns %s: %w", path, err)
	}
	return doc.Patterns, nil
}
