package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"custody-vault/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_id", validateSafeID)
		_ = v.RegisterValidation("vault_name", validateVaultName)
		_ = v.RegisterValidation("pubkey", validatePublicKey)
	}
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateVaultName accepts safe ids that fit in one derivation seed.
func validateVaultName(fl validator.FieldLevel) bool {
	return ValidVaultName(fl.Field().String())
}

// validatePublicKey accepts a base58 32-byte key.
func validatePublicKey(fl validator.FieldLevel) bool {
	_, err := domain.ParsePublicKey(fl.Field().String())
	return err == nil
}

// ValidVaultName reports whether a path parameter names a vault.
func ValidVaultName(name string) bool {
	return domain.ValidateVaultName(name) == nil && safeStringRe.MatchString(name)
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
