/**
 * Extraction semantics validation
 *
 * Covers the pattern table against synthetic recognized spans: per-type
 * matching, first-match-wins ordering, case handling, and the closed unit
 * vocabularies.
 */

package extract

import (
	"testing"

	"github.com/catalogforge/paramextract/internal/ocr"
)

func spansOf(texts ...string) []ocr.Span {
	out := make([]ocr.Span, len(texts))
	for i, text := range texts {
		out[i] = ocr.Span{Text: text, Order: i}
	}
	return out
}

func TestDefaultTableResolvesEachType(t *testing.T) {
	table := DefaultTable()

	testCases := []struct {
		name      string
		paramType string
		spanText  string
		wantValue string
		wantUnit  string
	}{
		{"voltage drops its unit", "voltage", "Input: 120V AC", "120", ""},
		{"voltage word unit", "voltage", "rated 230 volts", "230", ""},
		{"weight with space", "weight", "Net Weight: 2.5 kg", "2.5", "kg"},
		{"weight without space", "weight", "450g pack", "450", "g"},
		{"weight pounds singular", "weight", "about 10 lb total", "10", "lb"},
		{"weight pounds plural", "weight", "about 10 lbs total", "10", "lbs"},
		{"height", "height", "Height 30 cm", "30", "cm"},
		{"volume milliliters", "volume", "Capacity 500ml", "500", "ml"},
		{"volume fluid ounces", "volume", "12 fl oz bottle", "12", "fl oz"},
		{"volume decimal liters", "volume", "0.75 L", "0.75", "l"},
		{"wattage keeps its unit", "wattage", "Power: 60W", "60", "w"},
		{"depth with label", "depth", "Depth: 12.5 cm", "12.5", "cm"},
		{"depth with short label", "depth", "D: 40 mm", "40", "mm"},
		{"width with label", "width", "Width: 45 inch", "45", "inch"},
		{"max weight spelled out", "max_weight", "Maximum Weight: 100 kg", "100", "kg"},
		{"max weight as capacity", "max_weight", "Weight Capacity: 250 lbs", "250", "lbs"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results := table.Extract(spansOf(tc.spanText), []string{tc.paramType})

			got, ok := results[tc.paramType]
			if !ok {
				t.Fatalf("type %s did not resolve from %q", tc.paramType, tc.spanText)
			}
			if got.Value != tc.wantValue || got.Unit != tc.wantUnit {
				t.Errorf("got {%q %q}, want {%q %q}", got.Value, got.Unit, tc.wantValue, tc.wantUnit)
			}
		})
	}
}

func TestExtractFirstMatchWins(t *testing.T) {
	table := DefaultTable()

	results := table.Extract(spansOf("weight: 3 kg", "weight: 5 kg"), []string{"weight"})

	got, ok := results["weight"]
	if !ok {
		t.Fatal("weight did not resolve")
	}
	if got.Value != "3" {
		t.Errorf("later span beat the earlier one: got %q, want 3", got.Value)
	}
}

func TestExtractOneSpanResolvesMultipleTypes(t *testing.T) {
	table := DefaultTable()

	results := table.Extract(spansOf("120v 60w power supply"), []string{"voltage", "wattage"})

	if got := results["voltage"]; got.Value != "120" {
		t.Errorf("voltage = %+v, want value 120", got)
	}
	if got := results["wattage"]; got.Value != "60" || got.Unit != "w" {
		t.Errorf("wattage = %+v, want 60 w", got)
	}
}

func TestExtractUnknownTypeStaysAbsent(t *testing.T) {
	table := DefaultTable()

	results := table.Extract(spansOf("temperature: 40 c"), []string{"temperature"})

	if len(results) != 0 {
		t.Errorf("unknown type produced a result: %+v", results)
	}
}

func TestExtractEmptySpanSequence(t *testing.T) {
	table := DefaultTable()

	if results := table.Extract(nil, []string{"weight", "voltage"}); len(results) != 0 {
		t.Errorf("empty sequence resolved something: %+v", results)
	}
}

func TestExtractCaseInsensitive(t *testing.T) {
	table := DefaultTable()

	upper := table.Extract(spansOf("120V"), []string{"voltage"})
	lower := table.Extract(spansOf("120v"), []string{"voltage"})

	if upper["voltage"] != lower["voltage"] {
		t.Errorf("case changed the result: %+v vs %+v", upper["voltage"], lower["voltage"])
	}
	if upper["voltage"].Value != "120" {
		t.Errorf("voltage = %+v, want value 120", upper["voltage"])
	}
}

func TestExtractWeightFromMixedSpans(t *testing.T) {
	table := DefaultTable()

	results := table.Extract(
		spansOf("package weight 2.5kg net", "other text"),
		[]string{"weight"},
	)

	got, ok := results["weight"]
	if !ok {
		t.Fatal("weight did not resolve")
	}
	if got.String() != "2.5 kg" {
		t.Errorf("prediction = %q, want %q", got.String(), "2.5 kg")
	}
}

func TestExtractClosedUnitVocabulary(t *testing.T) {
	table := DefaultTable()

	if results := table.Extract(spansOf("weighs 5 stones"), []string{"weight"}); len(results) != 0 {
		t.Errorf("out-of-vocabulary unit matched: %+v", results)
	}
}

func TestExtractStopsConsultingResolvedTypes(t *testing.T) {
	table := DefaultTable()

	// the second span also matches; the first must stick
	results := table.Extract(
		spansOf("Voltage: 110v", "Voltage: 220v", "Voltage: 240v"),
		[]string{"voltage"},
	)

	if got := results["voltage"]; got.Value != "110" {
		t.Errorf("voltage = %+v, want value 110", got)
	}
}

func TestParameterString(t *testing.T) {
	testCases := []struct {
		name  string
		param Parameter
		want  string
	}{
		{"value and unit", Parameter{Type: "weight", Value: "2.5", Unit: "kg"}, "2.5 kg"},
		{"value only", Parameter{Type: "voltage", Value: "120"}, "120"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.param.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}
