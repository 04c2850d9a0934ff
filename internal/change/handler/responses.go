package handler

import (
	change "civreg/internal/change/models"
)

// ChangeResponse is the wire form of a create or update decision. The engine's
// result types already carry json tags; the response wraps them unchanged so
// clients see the same vocabulary the audit trail records.
type ChangeResponse struct {
	*change.ChangeResult
}

// MergeResponse is the wire form of a merge decision.
type MergeResponse struct {
	*change.MergeResult
}

// DuplicatesResponse lists the suspects a duplicate check found.
type DuplicatesResponse struct {
	Suspects []change.Suspect `json:"suspects"`
}
