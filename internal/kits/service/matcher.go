package service

import (
	"strings"

	"fieldservice_backend/internal/kits/transport"

	"github.com/google/uuid"
)

// Variant is a kit variant with its conditions decoded from storage.
type Variant struct {
	ID            uuid.UUID
	VariantCode   string
	Conditions    []transport.VariantCondition
	Modifications transport.ItemModifications
}

// MatchVariant returns the first variant whose entire condition set matches
// the supplied environmental conditions. Variants are checked in declaration
// order, so selection is deterministic. Nil means the base kit applies.
func MatchVariant(variants []Variant, env transport.EnvironmentalConditions) *Variant {
	for i := range variants {
		if conditionsMatch(variants[i].Conditions, env) {
			return &variants[i]
		}
	}
	return nil
}

func conditionsMatch(conditions []transport.VariantCondition, env transport.EnvironmentalConditions) bool {
	if len(conditions) == 0 {
		return false
	}
	for _, condition := range conditions {
		if !conditionMatches(condition, env) {
			return false
		}
	}
	return true
}

func conditionMatches(condition transport.VariantCondition, env transport.EnvironmentalConditions) bool {
	switch condition.Type {
	case transport.ConditionSeason:
		return env.Season != "" && strings.EqualFold(condition.Season, env.Season)
	case transport.ConditionTemperature:
		if env.TemperatureF == nil {
			return false
		}
		return compareTemperature(condition.Op, *env.TemperatureF, condition.ValueF)
	default:
		return false
	}
}

func compareTemperature(op string, actual, threshold float64) bool {
	switch op {
	case transport.OpLessThan:
		return actual < threshold
	case transport.OpLessThanOrEqual:
		return actual <= threshold
	case transport.OpGreaterThan:
		return actual > threshold
	case transport.OpGreaterThanOrEqual:
		return actual >= threshold
	default:
		return false
	}
}

// ChecklistLine is one resolved item after variant modifications.
type ChecklistLine struct {
	ItemType   string
	ItemRefID  uuid.UUID
	Name       string
	Quantity   int
	Unit       string
	IsRequired bool
}

// ApplyModifications resolves the effective item list: base items minus the
// variant's removals (by itemRefId), plus its additions.
func ApplyModifications(base []ChecklistLine, mods transport.ItemModifications) []ChecklistLine {
	removed := make(map[uuid.UUID]bool, len(mods.Removals))
	for _, refID := range mods.Removals {
		removed[refID] = true
	}

	result := make([]ChecklistLine, 0, len(base)+len(mods.Additions))
	for _, line := range base {
		if removed[line.ItemRefID] {
			continue
		}
		result = append(result, line)
	}

	for _, addition := range mods.Additions {
		result = append(result, ChecklistLine{
			ItemType:   addition.ItemType,
			ItemRefID:  addition.ItemRefID,
			Name:       addition.Name,
			Quantity:   addition.Quantity,
			Unit:       addition.Unit,
			IsRequired: addition.IsRequired,
		})
	}

	return result
}
