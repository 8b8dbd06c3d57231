package service

import (
	"testing"

	"fieldservice_backend/internal/kits/transport"

	"github.com/google/uuid"
)

func floatPtr(v float64) *float64 { return &v }

func TestMatchVariantFirstDeclaredWins(t *testing.T) {
	winter := Variant{
		ID:          uuid.New(),
		VariantCode: "WINTER",
		Conditions: []transport.VariantCondition{
			{Type: transport.ConditionSeason, Season: "winter"},
		},
	}
	cold := Variant{
		ID:          uuid.New(),
		VariantCode: "COLD",
		Conditions: []transport.VariantCondition{
			{Type: transport.ConditionTemperature, Op: transport.OpLessThan, ValueF: 40},
		},
	}
	variants := []Variant{winter, cold}

	// Both variants match; the first declared wins.
	matched := MatchVariant(variants, transport.EnvironmentalConditions{
		Season:       "Winter",
		TemperatureF: floatPtr(30),
	})
	if matched == nil || matched.VariantCode != "WINTER" {
		t.Fatalf("expected WINTER to win, got %+v", matched)
	}

	// Only the temperature variant matches.
	matched = MatchVariant(variants, transport.EnvironmentalConditions{
		Season:       "summer",
		TemperatureF: floatPtr(35),
	})
	if matched == nil || matched.VariantCode != "COLD" {
		t.Fatalf("expected COLD, got %+v", matched)
	}

	// Nothing matches: base kit.
	matched = MatchVariant(variants, transport.EnvironmentalConditions{
		Season:       "summer",
		TemperatureF: floatPtr(75),
	})
	if matched != nil {
		t.Fatalf("expected base kit, got %+v", matched)
	}
}

func TestMatchVariantRequiresEveryCondition(t *testing.T) {
	variant := Variant{
		VariantCode: "WINTER_FREEZE",
		Conditions: []transport.VariantCondition{
			{Type: transport.ConditionSeason, Season: "winter"},
			{Type: transport.ConditionTemperature, Op: transport.OpLessThanOrEqual, ValueF: 32},
		},
	}
	variants := []Variant{variant}

	// Season matches, temperature does not.
	if m := MatchVariant(variants, transport.EnvironmentalConditions{Season: "winter", TemperatureF: floatPtr(40)}); m != nil {
		t.Fatalf("expected no match with failing temperature clause, got %+v", m)
	}

	// Temperature condition cannot match when none is supplied.
	if m := MatchVariant(variants, transport.EnvironmentalConditions{Season: "winter"}); m != nil {
		t.Fatalf("expected no match without temperature, got %+v", m)
	}

	// Boundary: lte 32 matches exactly 32.
	if m := MatchVariant(variants, transport.EnvironmentalConditions{Season: "winter", TemperatureF: floatPtr(32)}); m == nil {
		t.Fatal("expected match at boundary temperature")
	}
}

func TestCompareTemperatureOperators(t *testing.T) {
	cases := []struct {
		op        string
		actual    float64
		threshold float64
		want      bool
	}{
		{transport.OpLessThan, 31, 32, true},
		{transport.OpLessThan, 32, 32, false},
		{transport.OpLessThanOrEqual, 32, 32, true},
		{transport.OpGreaterThan, 90, 85, true},
		{transport.OpGreaterThan, 85, 85, false},
		{transport.OpGreaterThanOrEqual, 85, 85, true},
		{"bogus", 1, 2, false},
	}

	for _, tc := range cases {
		if got := compareTemperature(tc.op, tc.actual, tc.threshold); got != tc.want {
			t.Errorf("compareTemperature(%s, %v, %v) = %v, want %v", tc.op, tc.actual, tc.threshold, got, tc.want)
		}
	}
}

func TestApplyModifications(t *testing.T) {
	gloves := uuid.New()
	heater := uuid.New()
	base := []ChecklistLine{
		{ItemRefID: gloves, Name: "Work gloves", Quantity: 2, IsRequired: true},
		{ItemRefID: uuid.New(), Name: "Drop cloth", Quantity: 1},
	}

	result := ApplyModifications(base, transport.ItemModifications{
		Additions: []transport.KitItemInput{
			{ItemType: "tool", ItemRefID: heater, Name: "Pipe heater", Quantity: 1, Unit: "each", IsRequired: true},
		},
		Removals: []uuid.UUID{gloves},
	})

	if len(result) != 2 {
		t.Fatalf("expected 2 items after modifications, got %d", len(result))
	}
	for _, line := range result {
		if line.ItemRefID == gloves {
			t.Fatal("removed item still present")
		}
	}
	if result[1].ItemRefID != heater || !result[1].IsRequired {
		t.Fatalf("expected heater appended as required, got %+v", result[1])
	}
}
