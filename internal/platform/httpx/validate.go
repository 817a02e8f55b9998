package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/labdesk/labdesk/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and reports failures as one validation error
// naming every offending field.
func Validate(target any) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.Validation("validate", "%v", err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		parts = append(parts, fieldErr.Namespace()+" failed "+fieldErr.Tag())
	}
	return shared.Validation("validate", "%s", strings.Join(parts, "; "))
}

// DecodeAndValidate decodes the request body into target and validates it.
func DecodeAndValidate(r *http.Request, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return err
	}
	return Validate(target)
}

// DecodeOptional decodes and validates a body the endpoint does not require.
// It reports whether a body was present; an empty body, chunked or not, is
// not an error.
func DecodeOptional(r *http.Request, target any) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, shared.Validation("decode", "malformed request body: %v", err)
	}
	return true, Validate(target)
}
