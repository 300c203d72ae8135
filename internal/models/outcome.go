package models

// OutcomeKind classifies the catalog's answer to one submission.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeAlreadyExists
	OutcomeWrongResourceClass
	OutcomeStaleRecord
	OutcomeNameCollision
	OutcomeAuthenticationFailure
	OutcomeTransientFailure
	OutcomeUnknownFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyExists:
		return "already_exists"
	case OutcomeWrongResourceClass:
		return "wrong_resource_class"
	case OutcomeStaleRecord:
		return "stale_record"
	case OutcomeNameCollision:
		return "name_collision"
	case OutcomeAuthenticationFailure:
		return "authentication_failure"
	case OutcomeTransientFailure:
		return "transient_failure"
	default:
		return "unknown_failure"
	}
}

// Outcome is the per-record result of a catalog submission.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	// Candidates lists existing names that resemble a colliding name.
	Candidates []string `json:"candidates,omitempty"`
	// Detail carries the diagnostic text of failures.
	Detail string `json:"detail,omitempty"`
}

// Succeeded reports whether the record can be considered submitted.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeAlreadyExists
}

func (o Outcome) String() string {
	if o.Detail != "" {
		return o.Kind.String() + ": " + o.Detail
	}
	return o.Kind.String()
}

// Success returns a successful outcome.
func Success() Outcome { return Outcome{Kind: OutcomeSuccess} }

// Failure returns an outcome of kind with a diagnostic detail.
func Failure(kind OutcomeKind, detail string) Outcome {
	return Outcome{Kind: kind, Detail: detail}
}

// Collision returns a name collision outcome listing the resembling names.
func Collision(candidates ...string) Outcome {
	return Outcome{Kind: OutcomeNameCollision, Candidates: candidates}
}
