package handler

import (
	"strings"

	"covenant/internal/consent/models"
	"covenant/internal/signer"
	dErrors "covenant/pkg/domain-errors"
)

// UpdateRequest is the body for POST /consents/{purposeID}.
type UpdateRequest struct {
	Status string `json:"status"`
}

func (r *UpdateRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}

func (r *UpdateRequest) Validate() error {
	if r.Status == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "status is required")
	}
	if _, err := models.ParseStatus(r.Status); err != nil {
		return err
	}
	return nil
}

// ParsedStatus returns the validated status. Call only after Validate.
func (r *UpdateRequest) ParsedStatus() models.Status {
	status, _ := models.ParseStatus(r.Status)
	return status
}

// VerifyRequest is the body for POST /consents/verify.
type VerifyRequest struct {
	Artifact  signer.Artifact `json:"artifact"`
	Signature string          `json:"signature"`
}

func (r *VerifyRequest) Validate() error {
	if r.Signature == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "signature is required")
	}
	return nil
}
