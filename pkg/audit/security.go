// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags free-text input.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventLoginSucceeded is logged when a user obtains a session token.
	EventLoginSucceeded SecurityEventType = "login_succeeded"
	// EventLoginFailed is logged for rejected credentials or inactive users.
	EventLoginFailed SecurityEventType = "login_failed"
	// EventRecordChange is logged for every write to a case, promise or activity.
	EventRecordChange SecurityEventType = "record_change"
)

// Record change actions.
const (
	ActionCaseCreated     = "case_created"
	ActionCaseUpdated     = "case_updated"
	ActionCaseDeleted     = "case_deleted"
	ActionStatusChanged   = "case_status_changed"
	ActionPromiseCreated  = "promise_created"
	ActionActivityCreated = "activity_created"
	ActionActivityDeleted = "activity_deleted"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    int64             `json:"user_id,omitempty"`
	Role      string            `json:"role,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Endpoint    string `json:"endpoint"`
}

// RecordChangeDetails identifies the written record. DNI is masked before logging.
type RecordChangeDetails struct {
	Action   string `json:"action"`
	CaseID   int64  `json:"case_id"`
	RecordID int64  `json:"record_id,omitempty"`
	DNI      string `json:"dni,omitempty"`
}

// maxParamValueLen caps the flagged input kept in an audit event.
const maxParamValueLen = 200

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor logging under the "audit" namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("audit")}
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, severity, clientIP string, details any) SecurityEvent {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  severity,
	}
	if claims, ok := auth.GetClaims(ctx); ok && claims != nil {
		event.UserID = auth.GetUserIDFromContext(ctx)
		event.Role = claims.Role
	}
	return event
}

func encode(event SecurityEvent) string {
	// Marshaling known types does not fail.
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}

// LogInjectionAttempt records free-text input that libinjection flagged.
// This is logged at ERROR level with "critical" severity for immediate alerting.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details SQLInjectionDetails, clientIP string) {
	details.ParamValue = logging.TruncateString(details.ParamValue, maxParamValueLen)
	event := a.event(ctx, EventSQLInjectionAttempt, "critical", clientIP, details)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", encode(event)),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("endpoint", details.Endpoint),
		zap.String("client_ip", clientIP),
		zap.Int64("user_id", event.UserID),
		zap.String("severity", "critical"),
	)
}

// LogLogin records a login attempt. Failures are logged at WARN level.
func (a *SecurityAuditor) LogLogin(ctx context.Context, username string, userID int64, succeeded bool, reason, clientIP string) {
	details := map[string]string{"username": username}
	if reason != "" {
		details["reason"] = reason
	}

	if succeeded {
		event := a.event(ctx, EventLoginSucceeded, "info", clientIP, details)
		event.UserID = userID
		a.logger.Info("Login succeeded",
			zap.String("event_json", encode(event)),
			zap.String("username", username),
			zap.Int64("user_id", userID),
			zap.String("client_ip", clientIP),
			zap.String("severity", "info"),
		)
		return
	}

	event := a.event(ctx, EventLoginFailed, "warning", clientIP, details)
	a.logger.Warn("Login failed",
		zap.String("event_json", encode(event)),
		zap.String("username", username),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}

// LogRecordChange records a successful write to the case book at INFO level.
func (a *SecurityAuditor) LogRecordChange(ctx context.Context, details RecordChangeDetails) {
	details.DNI = logging.MaskDNI(details.DNI)
	event := a.event(ctx, EventRecordChange, "info", "", details)

	a.logger.Info("Record changed",
		zap.String("event_json", encode(event)),
		zap.String("action", details.Action),
		zap.Int64("case_id", details.CaseID),
		zap.Int64("record_id", details.RecordID),
		zap.String("dni", details.DNI),
		zap.Int64("user_id", event.UserID),
		zap.String("severity", "info"),
	)
}
