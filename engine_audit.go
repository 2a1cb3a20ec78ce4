package devAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/devAuth/session"
)

const (
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventRegisterSuccess   = "account_creation_success"
	auditEventRegisterFailure   = "account_creation_failure"
	auditEventCacheInconsistent = "session_cache_inconsistent"
	auditEventDeviceTrusted     = "device_trusted"
	auditEventDeviceRevoked     = "device_revoked"
	auditEventLogoutDevice      = "logout_device"
	auditEventLogoutAll         = "logout_all"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrDeviceNotFound     AuditErrorCode = "device_not_found"
	auditErrSuperseded         AuditErrorCode = "login_superseded"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	deviceID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		DeviceID:  deviceID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCodes is checked in order; the first matching target wins.
var auditErrorCodes = []struct {
	target error
	code   AuditErrorCode
}{
	{ErrInvalidCredentials, auditErrInvalidCredentials},
	{ErrUserNotFound, auditErrUserNotFound},
	{ErrDeviceNotFound, auditErrDeviceNotFound},
	{ErrAccountLocked, auditErrAccountLocked},
	{ErrAlreadyExists, auditErrDuplicate},
	{ErrInvalidToken, auditErrInvalidToken},
	{ErrLoginSuperseded, auditErrSuperseded},
	{ErrInvalidRequest, auditErrInvalidRequest},
	{ErrCacheUnavailable, auditErrUnavailable},
	{ErrStoreUnavailable, auditErrUnavailable},
	{session.ErrUnavailable, auditErrUnavailable},
	{context.DeadlineExceeded, auditErrUnavailable},
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range auditErrorCodes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return auditErrInternal
}
