package extract

import (
	"strings"

	"github.com/catalogforge/paramextract/internal/ocr"
)

// Parameter is one extracted physical parameter. Value is the raw matched
// numeral; no unit conversion ever happens.
type Parameter struct {
	Type  string
	Value string
	Unit  string
}

// String renders the user-facing prediction text
func (p Parameter) String() string {
	if p.Unit == "" {
		return p.Value
	}
	return p.Value + " " + p.Unit
}

// Extract walks spans in fused order and resolves each requested type at
// most once: the earliest matching span wins and later candidates are never
// consulted. Requested types without a table pattern stay absent. The spans
// and the table are never mutated.
func (t *Table) Extract(spans []ocr.Span, requested []string) map[string]Parameter {
	unresolved := make([]string, 0, len(requested))
	for _, paramType := range requested {
		if t.Has(paramType) {
			unresolved = append(unresolved, paramType)
		}
	}

	results := make(map[string]Parameter, len(unresolved))
	for _, span := range spans {
		if len(unresolved) == 0 {
			break
		}

		text := strings.ToLower(span.Text)
		remaining := unresolved[:0]
		for _, paramType := range unresolved {
			p := t.patterns[paramType]
			m := p.re.FindStringSubmatch(text)
			if m == nil {
				remaining = append(remaining, paramType)
				continue
			}
			results[paramType] = buildParameter(p, m)
		}
		unresolved = remaining
	}

	return results
}

func buildParameter(p pattern, m []string) Parameter {
	param := Parameter{
		Type:  p.paramType,
		Value: strings.TrimSpace(m[1]),
	}
	if p.layout == LayoutValueAndUnit {
		param.Unit = strings.TrimSpace(m[2])
	}
	return param
}
