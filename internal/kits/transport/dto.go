// Package transport defines request and response DTOs for the kits API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Condition types for kit variants.
const (
	ConditionSeason      = "season"
	ConditionTemperature = "temperature"
)

// Temperature comparison operators.
const (
	OpLessThan           = "lt"
	OpLessThanOrEqual    = "lte"
	OpGreaterThan        = "gt"
	OpGreaterThanOrEqual = "gte"
)

// Checklist item statuses.
const (
	CheckStatusPending = "pending"
	CheckStatusPresent = "present"
	CheckStatusMissing = "missing"
)

// Kit verification statuses.
const (
	VerificationPending    = "pending"
	VerificationComplete   = "complete"
	VerificationIncomplete = "incomplete"
)

// VariantCondition is one clause of a variant's condition set.
// Type selects which fields apply: season equality or a temperature
// threshold against valueF.
type VariantCondition struct {
	Type   string  `json:"type" validate:"required,oneof=season temperature"`
	Season string  `json:"season,omitempty" validate:"required_if=Type season"`
	Op     string  `json:"op,omitempty" validate:"required_if=Type temperature,omitempty,oneof=lt lte gt gte"`
	ValueF float64 `json:"valueF,omitempty"`
}

// EnvironmentalConditions describes the environment a kit is assigned under.
type EnvironmentalConditions struct {
	Season       string   `json:"season,omitempty"`
	TemperatureF *float64 `json:"temperatureF,omitempty"`
}

// KitItemInput declares an item belonging to a kit or variant addition.
type KitItemInput struct {
	ItemType   string    `json:"itemType" validate:"required"`
	ItemRefID  uuid.UUID `json:"itemRefId" validate:"required"`
	Name       string    `json:"name" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
	Unit       string    `json:"unit" validate:"required"`
	IsRequired bool      `json:"isRequired"`
}

// ItemModifications adjusts the base item list for a variant.
// Removals reference base items by itemRefId.
type ItemModifications struct {
	Additions []KitItemInput `json:"additions" validate:"omitempty,dive"`
	Removals  []uuid.UUID    `json:"removals"`
}

// KitVariantInput declares a conditional variant of a kit.
type KitVariantInput struct {
	VariantCode       string             `json:"variantCode" validate:"required"`
	Conditions        []VariantCondition `json:"conditions" validate:"required,min=1,dive"`
	ItemModifications ItemModifications  `json:"itemModifications"`
}

// CreateKitRequest creates a kit with its items and variants.
type CreateKitRequest struct {
	KitCode  string            `json:"kitCode" validate:"required"`
	Name     string            `json:"name" validate:"required"`
	Category string            `json:"category" validate:"required"`
	Items    []KitItemInput    `json:"items" validate:"required,min=1,dive"`
	Variants []KitVariantInput `json:"variants" validate:"omitempty,dive"`
}

// AssignKitRequest assigns a kit to a job under given conditions.
type AssignKitRequest struct {
	JobID       uuid.UUID               `json:"jobId" validate:"required"`
	Conditions  EnvironmentalConditions `json:"conditions"`
	ContainerID *uuid.UUID              `json:"containerId,omitempty"`
}

// VerifiedItem reports the verified quantity for one checklist item.
type VerifiedItem struct {
	ChecklistItemID  uuid.UUID   `json:"checklistItemId" validate:"required"`
	QuantityVerified int         `json:"quantityVerified" validate:"min=0"`
	PhotoIDs         []uuid.UUID `json:"photoIds,omitempty"`
	Notes            string      `json:"notes,omitempty"`
}

// VerifyKitRequest records the outcome of a physical kit check.
type VerifyKitRequest struct {
	JobID uuid.UUID      `json:"jobId" validate:"required"`
	Items []VerifiedItem `json:"items" validate:"required,min=1,dive"`
	Notes string         `json:"notes,omitempty"`
}

// KitItemResponse is the API shape of a kit item.
type KitItemResponse struct {
	ID         uuid.UUID `json:"id"`
	ItemType   string    `json:"itemType"`
	ItemRefID  uuid.UUID `json:"itemRefId"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	Unit       string    `json:"unit"`
	IsRequired bool      `json:"isRequired"`
}

// KitVariantResponse is the API shape of a kit variant.
type KitVariantResponse struct {
	ID                uuid.UUID          `json:"id"`
	VariantCode       string             `json:"variantCode"`
	Conditions        []VariantCondition `json:"conditions"`
	ItemModifications ItemModifications  `json:"itemModifications"`
}

// KitResponse is the API shape of a kit.
type KitResponse struct {
	ID        uuid.UUID            `json:"id"`
	KitCode   string               `json:"kitCode"`
	Name      string               `json:"name"`
	Category  string               `json:"category"`
	Items     []KitItemResponse    `json:"items"`
	Variants  []KitVariantResponse `json:"variants"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// AssignKitResponse reports the result of a kit assignment.
type AssignKitResponse struct {
	JobKitID        uuid.UUID           `json:"jobKitId"`
	KitID           uuid.UUID           `json:"kitId"`
	JobID           uuid.UUID           `json:"jobId"`
	SelectedVariant *string             `json:"selectedVariant,omitempty"`
	Checklist       []ChecklistItemView `json:"checklist"`
}

// ChecklistItemView is one row of a job's kit checklist.
type ChecklistItemView struct {
	ID               uuid.UUID   `json:"id"`
	ItemType         string      `json:"itemType"`
	ItemRefID        uuid.UUID   `json:"itemRefId"`
	Name             string      `json:"name"`
	QuantityRequired int         `json:"quantityRequired"`
	QuantityVerified int         `json:"quantityVerified"`
	Unit             string      `json:"unit"`
	IsRequired       bool        `json:"isRequired"`
	CheckStatus      string      `json:"checkStatus"`
	PhotoIDs         []uuid.UUID `json:"photoIds,omitempty"`
	Notes            string      `json:"notes,omitempty"`
}

// ChecklistResponse is the checklist for a job/kit pair.
type ChecklistResponse struct {
	JobID             uuid.UUID           `json:"jobId"`
	KitID             uuid.UUID           `json:"kitId"`
	ContainerLocation string              `json:"containerLocation,omitempty"`
	Items             []ChecklistItemView `json:"items"`
}

// VerifyKitResponse reports the verification outcome.
type VerifyKitResponse struct {
	JobID              uuid.UUID           `json:"jobId"`
	KitID              uuid.UUID           `json:"kitId"`
	VerificationStatus string              `json:"verificationStatus"`
	AllRequiredPresent bool                `json:"allRequiredPresent"`
	VerifiedBy         uuid.UUID           `json:"verifiedBy"`
	VerifiedAt         time.Time           `json:"verifiedAt"`
	Items              []ChecklistItemView `json:"items"`
}

// ItemMissFrequency counts how often an item went missing.
type ItemMissFrequency struct {
	ItemRefID uuid.UUID `json:"itemRefId"`
	Name      string    `json:"name"`
	Count     int       `json:"count"`
}

// KitAnalyticsResponse aggregates kit usage over a date range.
type KitAnalyticsResponse struct {
	KitID                          uuid.UUID           `json:"kitId"`
	From                           string              `json:"from"`
	To                             string              `json:"to"`
	UsageCount                     int                 `json:"usageCount"`
	VerificationRate               float64             `json:"verificationRate"`
	AverageVerificationTimeMinutes float64             `json:"averageVerificationTimeMinutes"`
	MissingItemFrequency           []ItemMissFrequency `json:"missingItemFrequency"`
}

// KitAnalyticsRequest filters analytics by date range.
type KitAnalyticsRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
}
