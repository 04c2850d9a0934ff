// Package models defines the structured results the engine hands back to its
// callers. Expected business conditions are status codes here, never Go
// errors; only defects cross the engine boundary as errors.
package models

import (
	"time"

	id "civreg/pkg/domain"
)

// OverallStatus summarizes one change request.
type OverallStatus string

const (
	// StatusOK: every requested attribute was accepted.
	StatusOK OverallStatus = "OK"
	// StatusIncompleteSuccess: some attributes were rejected, the rest were
	// applied. Rejecting one attribute never aborts its siblings.
	StatusIncompleteSuccess OverallStatus = "INCOMPLETE_SUCCESS"
	// StatusFailure: the request as a whole was refused before any write.
	StatusFailure OverallStatus = "FAILURE"
)

// StatusCode is the per-attribute (or request-level) outcome vocabulary.
type StatusCode string

const (
	CodeOK                        StatusCode = "OK"
	CodeNoActiveContract          StatusCode = "NO_ACTIVE_CONTRACT"
	CodeOperationNotAuthorized    StatusCode = "OPERATION_NOT_AUTHORIZED"
	CodeAttributeNotWritable      StatusCode = "ATTRIBUTE_NOT_WRITABLE"
	CodeAttributeNotCertifiable   StatusCode = "ATTRIBUTE_NOT_CERTIFIABLE"
	CodeProcessusNotAllowed       StatusCode = "PROCESSUS_NOT_ALLOWED"
	CodeLowerCertificationLevel   StatusCode = "LOWER_CERTIFICATION_LEVEL"
	CodeMissingPivotAttribute     StatusCode = "MISSING_PIVOT_ATTRIBUTE"
	CodeNotCertified              StatusCode = "NOT_CERTIFIED"
	CodeMissingMandatoryAttribute StatusCode = "MISSING_MANDATORY_ATTRIBUTE"
	CodeInvalidValue              StatusCode = "INVALID_VALUE"
	CodeIdentityNotFound          StatusCode = "IDENTITY_NOT_FOUND"
	CodeIdentityDeleted           StatusCode = "IDENTITY_DELETED"
	CodeIncomparableCertification StatusCode = "INCOMPARABLE_CERTIFICATION"
)

// AttributeStatus is the decision recorded for one requested attribute.
type AttributeStatus struct {
	Key    id.AttrKey `json:"key"`
	Code   StatusCode `json:"code"`
	Reason string     `json:"reason,omitempty"`
}

// Accepted reports whether the attribute change was applied.
func (s AttributeStatus) Accepted() bool {
	return s.Code == CodeOK
}

// ChangeResult is returned by create and update validation. It always carries
// one status per requested attribute plus the overall status.
type ChangeResult struct {
	CUID       id.CUID           `json:"cuid,omitempty"`
	Status     OverallStatus     `json:"status"`
	Code       StatusCode        `json:"code,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Attributes []AttributeStatus `json:"attributes"`
	DecidedAt  time.Time         `json:"decided_at"`
}

// Failure builds a request-level refusal with no per-attribute outcomes.
func Failure(code StatusCode, reason string, decidedAt time.Time) *ChangeResult {
	return &ChangeResult{
		Status:     StatusFailure,
		Code:       code,
		Reason:     reason,
		Attributes: []AttributeStatus{},
		DecidedAt:  decidedAt,
	}
}

// StatusFor returns the status recorded for one key, if any.
func (r *ChangeResult) StatusFor(key id.AttrKey) (AttributeStatus, bool) {
	for _, s := range r.Attributes {
		if s.Key == key {
			return s, true
		}
	}
	return AttributeStatus{}, false
}

// AttributeConflict reports a merge arbitration the comparator could not
// decide. The primary's value is kept provisionally; an operator settles it.
type AttributeConflict struct {
	Key            id.AttrKey `json:"key"`
	PrimaryValue   string     `json:"primary_value"`
	SecondaryValue string     `json:"secondary_value"`
	Code           StatusCode `json:"code"`
}

// MergeResult is returned by merge validation.
type MergeResult struct {
	PrimaryCUID   id.CUID             `json:"primary_cuid"`
	SecondaryCUID id.CUID             `json:"secondary_cuid"`
	Status        OverallStatus       `json:"status"`
	Code          StatusCode          `json:"code,omitempty"`
	Conflicts     []AttributeConflict `json:"conflicts"`
	MergedAt      time.Time           `json:"merged_at"`
}

// Suspect is one duplicate-detection hit: an existing identity a candidate
// attribute set matched, with the highest-priority rule that fired.
type Suspect struct {
	CUID         id.CUID `json:"cuid"`
	RuleID       string  `json:"rule_id"`
	RulePriority int     `json:"rule_priority"`
	Score        int     `json:"score"`
}
