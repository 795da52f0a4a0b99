package models

import (
	"encoding/json"
	"time"
)

// Audited actions. Resource-level CRUD uses the generic verbs.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionRegister       = "REGISTER"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionRoleGrant      = "ROLE_GRANT"
	AuditActionRoleRevoke     = "ROLE_REVOKE"
	AuditActionPaymentCreate  = "PAYMENT_CREATE"
	AuditActionPaymentDelete  = "PAYMENT_DELETE"
	AuditActionCreate         = "CREATE"
	AuditActionUpdate         = "UPDATE"
	AuditActionDelete         = "DELETE"
)

// AuditLog is one row of the append-only audit trail.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	RequestID  string          `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// NewAuditLog starts an entry for action on resource as seen from the request meta.
func NewAuditLog(action, resource string, meta RequestMeta) *AuditLog {
	return &AuditLog{Action: action, Resource: resource, IPAddress: meta.IP, UserAgent: meta.UserAgent}
}

// By attributes the entry to actorID. Empty ids are ignored.
func (a *AuditLog) By(actorID string) *AuditLog {
	if actorID != "" {
		a.UserID = &actorID
	}
	return a
}

// On records the affected row id. Empty ids are ignored.
func (a *AuditLog) On(resourceID string) *AuditLog {
	if resourceID != "" {
		a.ResourceID = &resourceID
	}
	return a
}

// With stores values as the entry's new_values. Values that fail to encode are dropped.
func (a *AuditLog) With(values interface{}) *AuditLog {
	if body, err := json.Marshal(values); err == nil {
		a.NewValues = body
	}
	return a
}
