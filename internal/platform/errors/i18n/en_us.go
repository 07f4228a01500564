package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeNotFound                  = "NOT_FOUND"
	CodeDuplicateEntity           = "DUPLICATE_ENTITY"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodePermissionDenied          = "PERMISSION_DENIED"
	CodeOfferMismatch             = "OFFER_MISMATCH"
	CodeInsufficientAuthorization = "INSUFFICIENT_AUTHORIZATION"
	CodeTransferFailed            = "TRANSFER_FAILED"
	CodeServiceURLEmpty           = "SERVICE_URL_EMPTY"
	CodeAccountEmpty              = "ACCOUNT_EMPTY"
	CodeEntityIDEmpty             = "ENTITY_ID_EMPTY"
	CodeSubKeyEmpty               = "SUB_KEY_EMPTY"
	CodeAmountInvalid             = "AMOUNT_INVALID"
	CodeSignatureInvalid          = "SIGNATURE_INVALID"
	CodeFilterInvalid             = "FILTER_INVALID"
	CodePageTokenInvalid          = "PAGE_TOKEN_INVALID"
	CodeTradeSelfTarget           = "TRADE_SELF_TARGET"
	CodeUnauthenticated           = "UNAUTHENTICATED"
)

// enUSMessages holds the en-US message templates.
var enUSMessages = map[Code]string{
	CodeNotFound:                  "{{.Entity}} {{.ID}} was not found",
	CodeDuplicateEntity:           "{{.Entity}} {{.ID}} already exists",
	CodeUnauthorized:              "account {{.Account}} does not own {{.ID}}",
	CodePermissionDenied:          "key {{.ID}} does not allow {{.Capability}}",
	CodeOfferMismatch:             "the offer on key {{.ID}} does not match the request",
	CodeInsufficientAuthorization: "the authorized balance is below the offer price",
	CodeTransferFailed:            "the settlement transfer did not succeed",
	CodeServiceURLEmpty:           "a service URL is required",
	CodeAccountEmpty:              "an account is required",
	CodeEntityIDEmpty:             "an entity id is required",
	CodeSubKeyEmpty:               "an annotation sub-key is required",
	CodeAmountInvalid:             "amount {{.Amount}} is not a valid base-unit value",
	CodeSignatureInvalid:          "the signature could not be recovered",
	CodeFilterInvalid:             "the filter expression could not be parsed",
	CodePageTokenInvalid:          "the page token is invalid or expired",
	CodeTradeSelfTarget:           "a key cannot be traded against itself",
	CodeUnauthenticated:           "a valid access token is required",
}
