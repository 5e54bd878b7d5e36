package errors

import "fmt"

// Client error codes.
const (
	CodeClientNotFound       = "CLIENT_NOT_FOUND"
	CodeClientSelfTransfer   = "CLIENT_SELF_TRANSFER"
	CodeInvalidSlot          = "INVALID_SLOT"
	CodeTransferHazard       = "TRANSFER_CONSISTENCY_HAZARD"
	CodePersistenceFailed    = "PERSISTENCE_FAILED"
	CodeDraftOnly            = "CLIENT_NOT_DRAFT"
	CodeFileNotFound         = "FILE_NOT_FOUND"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeNoteEmpty            = "NOTE_EMPTY"
	CodeSubnetMissing        = "SUBNET_MISSING"
	CodeKKTRegistrationEmpty = "KKT_REGISTRATION_EMPTY"
)

// Reference data error codes.
const (
	CodeProviderNotFound    = "PROVIDER_NOT_FOUND"
	CodeCustomFieldNotFound = "CUSTOM_FIELD_NOT_FOUND"
	CodeOFDCompanyNotFound  = "OFD_COMPANY_NOT_FOUND"
	CodeOFDTokenMissing     = "OFD_TOKEN_MISSING"
)

// Auth and user error codes.
const (
	CodeAuthFailed         = "AUTH_FAILED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeRoleNotFound       = "ROLE_NOT_FOUND"
	CodeEmailTaken         = "EMAIL_ALREADY_EXISTS"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	CodeInvalidOldPassword = "INVALID_CURRENT_PASSWORD"
	CodeForbidden          = "FORBIDDEN"
)

// Settings and integration error codes.
const (
	CodeSMTPNotConfigured = "SMTP_NOT_CONFIGURED"
	CodeSMTPSendFailed    = "SMTP_SEND_FAILED"
	CodeSSHNotConfigured  = "SSH_NOT_CONFIGURED"
	CodeSSHFailed         = "SSH_COMMAND_FAILED"
	CodeExportFailed      = "EXPORT_FAILED"
)

// Validation error codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrClientNotFoundf creates a client not found error.
func ErrClientNotFoundf(clientID int64) *AppError {
	return NotFound(CodeClientNotFound, fmt.Sprintf("client %d not found", clientID)).
		WithParams(map[string]interface{}{"client_id": clientID})
}

// ErrInvalidRequestf creates a 400 error for a malformed request field.
func ErrInvalidRequestf(format string, args ...interface{}) *AppError {
	return BadRequest(CodeInvalidRequest, fmt.Sprintf(format, args...))
}
