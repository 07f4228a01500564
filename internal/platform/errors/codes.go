// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Registry errors
	CodeNotFound                  Code = "NOT_FOUND"
	CodeDuplicateEntity           Code = "DUPLICATE_ENTITY"
	CodeUnauthorized              Code = "UNAUTHORIZED"
	CodePermissionDenied          Code = "PERMISSION_DENIED"
	CodeOfferMismatch             Code = "OFFER_MISMATCH"
	CodeInsufficientAuthorization Code = "INSUFFICIENT_AUTHORIZATION"
	CodeTransferFailed            Code = "TRANSFER_FAILED"

	// Validation errors
	CodeServiceURLEmpty  Code = "SERVICE_URL_EMPTY"
	CodeAccountEmpty     Code = "ACCOUNT_EMPTY"
	CodeEntityIDEmpty    Code = "ENTITY_ID_EMPTY"
	CodeSubKeyEmpty      Code = "SUB_KEY_EMPTY"
	CodeAmountInvalid    Code = "AMOUNT_INVALID"
	CodeSignatureInvalid Code = "SIGNATURE_INVALID"
	CodeFilterInvalid    Code = "FILTER_INVALID"
	CodePageTokenInvalid Code = "PAGE_TOKEN_INVALID"
	CodeTradeSelfTarget  Code = "TRADE_SELF_TARGET"

	// Auth errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeServiceURLEmpty,
		CodeAccountEmpty,
		CodeEntityIDEmpty,
		CodeSubKeyEmpty,
		CodeAmountInvalid,
		CodeSignatureInvalid,
		CodeFilterInvalid,
		CodePageTokenInvalid,
		CodeTradeSelfTarget:
		return codes.InvalidArgument

	// FailedPrecondition - state or capability flags disallow the operation
	case CodePermissionDenied,
		CodeOfferMismatch,
		CodeInsufficientAuthorization:
		return codes.FailedPrecondition

	// Aborted - the external settlement call did not succeed
	case CodeTransferFailed:
		return codes.Aborted

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - id collision on creation
	case CodeDuplicateEntity:
		return codes.AlreadyExists

	// PermissionDenied - caller lacks owner/shared-owner rights
	case CodeUnauthorized:
		return codes.PermissionDenied

	// Unauthenticated - missing or invalid access token
	case CodeUnauthenticated:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}
