package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// hives is the set of registry root keys a detection may target.
var hives = map[string]bool{
	"HKLM": true,
	"HKCU": true,
	"HKCR": true,
	"HKU":  true,
	"HKCC": true,
}

// validate is the shared validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("hive", validateHive)
	validate.RegisterValidation("keypath", validateKeyPath)
}

// validateHive checks that a hive is one of the supported root keys.
func validateHive(fl validator.FieldLevel) bool {
	return hives[strings.ToUpper(fl.Field().String())]
}

// validateKeyPath checks that a key path looks like a registry subkey path:
// non-empty, backslash-separated, no leading or trailing separator.
func validateKeyPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return false
	}
	if strings.HasPrefix(path, `\`) || strings.HasSuffix(path, `\`) {
		return false
	}
	return !strings.Contains(path, `\\`)
}

// validateTweak applies the field rules plus the cross-field invariant that
// at least one of enable/disable must exist.
func validateTweak(t *Tweak) error {
	if t.Enable == nil && t.Disable == nil {
		return errors.New("must define at least one of enable or disable")
	}
	return validateStruct(t)
}

// validateStruct validates a definition and formats violations into a
// human-readable error.
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}
	return nil
}

// formatValidationErrors formats validation errors into a single message.
func formatValidationErrors(errs validator.ValidationErrors) error {
	var messages []string
	for _, e := range errs {
		messages = append(messages, formatFieldError(e))
	}
	return fmt.Errorf("invalid definition: %s", strings.Join(messages, "; "))
}

// formatFieldError formats a single field error.
func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "hive":
		return fmt.Sprintf("%s must be one of: HKLM, HKCU, HKCR, HKU, HKCC", field)
	case "keypath":
		return fmt.Sprintf("%s is not a valid registry key path", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
