package instrumentation

import "strings"

// ExtractUserDomain reduces an email address to its domain for metric labels.
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.ToLower(parts[1])
	}

	return "unknown"
}

// Operation label values for Google API and booking metrics.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationCreate   = "create"
	OperationPatch    = "patch"
	OperationDelete   = "delete"
	OperationFreeBusy = "freebusy"
	OperationSignJWT  = "signjwt"

	OperationBookingCreate = "create"
	OperationBookingList   = "list"
	OperationBookingAmend  = "amend"
	OperationBookingCancel = "cancel"
)
