package common

import (
	"fmt"
	"strings"

	"github.com/teemow/meetingbroker/internal/booking"
)

// StringArg returns the trimmed string argument, or "" when it is absent.
func StringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return strings.TrimSpace(v)
}

// RequiredStringArg is like StringArg but fails validation when the argument
// is absent or blank.
func RequiredStringArg(args map[string]interface{}, name string) (string, error) {
	v := StringArg(args, name)
	if v == "" {
		return "", booking.NewValidationError(name, "is required")
	}
	return v, nil
}

// OptionalStringArg distinguishes an absent argument (nil) from an explicit
// empty string.
func OptionalStringArg(args map[string]interface{}, name string) (*string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}
	v, ok := raw.(string)
	if !ok {
		return nil, booking.NewValidationError(name, "must be a string")
	}
	v = strings.TrimSpace(v)
	return &v, nil
}

// IntArg reads a whole number argument. JSON numbers arrive as float64.
func IntArg(args map[string]interface{}, name string) (int, error) {
	switch v := args[name].(type) {
	case nil:
		return 0, nil
	case float64:
		if v != float64(int(v)) {
			return 0, booking.NewValidationError(name, fmt.Sprintf("must be a whole number, got %v", v))
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, booking.NewValidationError(name, "must be a number")
	}
}
