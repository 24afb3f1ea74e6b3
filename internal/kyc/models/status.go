package models

import (
	dErrors "verity/pkg/domain-errors"
)

// Status is the application lifecycle state. It is a closed enumeration with
// a total mapping to its persisted representation.
//
// PENDING and PROCESSING are non-terminal. APPROVED and REJECTED are
// terminal. FLAGGED awaits a reviewer decision and may move again.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusApproved   Status = "APPROVED"
	StatusFlagged    Status = "FLAGGED"
	StatusRejected   Status = "REJECTED"
)

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusApproved:   true,
	StatusFlagged:    true,
	StatusRejected:   true,
}

// ParseStatus constructs a Status from a persisted or external value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown application status")
	}
	return st, nil
}

// IsValid checks the value against the closed set.
func (s Status) IsValid() bool { return validStatuses[s] }

// IsTerminal reports whether no further automatic transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) String() string { return string(s) }

// RiskLevel is the categorical classification accompanying a risk score.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

var validRiskLevels = map[RiskLevel]bool{
	RiskLevelLow:    true,
	RiskLevelMedium: true,
	RiskLevelHigh:   true,
}

// ParseRiskLevel constructs a RiskLevel from a downstream response value.
func ParseRiskLevel(s string) (RiskLevel, error) {
	l := RiskLevel(s)
	if !validRiskLevels[l] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown risk level")
	}
	return l, nil
}

func (l RiskLevel) IsValid() bool { return validRiskLevels[l] }

func (l RiskLevel) String() string { return string(l) }

// DocumentKind classifies an uploaded artifact.
type DocumentKind string

const (
	DocumentKindIDCard       DocumentKind = "id_card"
	DocumentKindAddressProof DocumentKind = "address_proof"
	DocumentKindSelfie       DocumentKind = "selfie"
)

var validDocumentKinds = map[DocumentKind]bool{
	DocumentKindIDCard:       true,
	DocumentKindAddressProof: true,
	DocumentKindSelfie:       true,
}

// ParseDocumentKind constructs a DocumentKind from external input.
func ParseDocumentKind(s string) (DocumentKind, error) {
	k := DocumentKind(s)
	if !validDocumentKinds[k] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown document kind")
	}
	return k, nil
}

func (k DocumentKind) IsValid() bool { return validDocumentKinds[k] }

func (k DocumentKind) String() string { return string(k) }

// LivenessVerdict is the face-match sub-result for replay detection.
type LivenessVerdict string

const (
	LivenessPass    LivenessVerdict = "PASS"
	LivenessFail    LivenessVerdict = "FAIL"
	LivenessUnknown LivenessVerdict = "UNKNOWN"
)
