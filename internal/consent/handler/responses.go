package handler

import (
	"time"

	"covenant/internal/auditlog"
	"covenant/internal/consent/models"
	"covenant/internal/signer"
)

// ConsentResponse is a consent record plus its derived lifecycle status.
type ConsentResponse struct {
	ID          string                `json:"id"`
	PurposeID   string                `json:"purposeId"`
	PurposeName string                `json:"purposeName,omitempty"`
	Required    bool                  `json:"required"`
	Status      string                `json:"status"`
	Lifecycle   string                `json:"lifecycle"`
	ValidUntil  time.Time             `json:"validUntil"`
	LastUpdated time.Time             `json:"lastUpdated"`
	History     []models.HistoryEntry `json:"history"`
	Version     int64                 `json:"version"`
}

// FromRecord builds a response with lifecycle derived at the given instant.
func FromRecord(record *models.ConsentRecord, catalog models.Catalog, now time.Time) ConsentResponse {
	resp := ConsentResponse{
		ID:          record.ID.String(),
		PurposeID:   record.PurposeID.String(),
		Status:      string(record.Status),
		Lifecycle:   string(record.Lifecycle(now)),
		ValidUntil:  record.ValidUntil,
		LastUpdated: record.LastUpdated,
		History:     record.History,
		Version:     record.Version,
	}
	if purpose, ok := catalog.Lookup(record.PurposeID); ok {
		resp.PurposeName = purpose.Name
		resp.Required = purpose.Required
	}
	return resp
}

// FromRecords maps a record list, preserving order.
func FromRecords(records []*models.ConsentRecord, catalog models.Catalog, now time.Time) []ConsentResponse {
	out := make([]ConsentResponse, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record, catalog, now))
	}
	return out
}

// ArtifactResponse wraps a signed artifact for the artifact endpoint.
type ArtifactResponse struct {
	Artifact *signer.Artifact `json:"artifact"`
}

// VerifyResponse reports the verification outcome.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// LogsResponse wraps the consent trail.
type LogsResponse struct {
	Entries []auditlog.Entry `json:"entries"`
}
