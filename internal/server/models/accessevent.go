package models

import "time"

// AccessEventKind classifies an access attempt against a grant.
type AccessEventKind string

const (
	AccessView       AccessEventKind = "view"
	AccessDownload   AccessEventKind = "download"
	AccessAccept     AccessEventKind = "accept"
	AccessReject     AccessEventKind = "reject"
	AccessBulkRevoke AccessEventKind = "bulk_revoke"
)

// AccessEventResult is the outcome recorded for an access attempt.
type AccessEventResult string

const (
	ResultSuccess AccessEventResult = "success"
	ResultDenied  AccessEventResult = "denied"
	ResultError   AccessEventResult = "error"
)

// AccessEvent is an immutable, append-only audit record. It is never used
// for authorization decisions.
type AccessEvent struct {
	ID        string
	GrantID   string
	ActorID   string
	Kind      AccessEventKind
	Result    AccessEventResult
	Metadata  string
	CreatedAt time.Time
}
