package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "stockpulse/internal/errors"
	"stockpulse/pkg/contracts/domain"
)

// DefaultMaxBodySize bounds decoded JSON bodies
const DefaultMaxBodySize int64 = 1 << 20

// Validator decodes and validates request payloads using struct tags
type Validator struct {
	validate    *validator.Validate
	logger      *slog.Logger
	maxBodySize int64
}

// NewValidator creates a validator with the "interval" and "ticker" tags
// registered and JSON field names in error messages.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		return domain.Interval(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return domain.ValidTicker(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate:    v,
		logger:      logger.With(slog.String("component", "validation")),
		maxBodySize: DefaultMaxBodySize,
	}
}

// DecodeJSON reads a bounded JSON body into dst. Unknown fields are rejected.
func (v *Validator) DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return apierrors.NewValidationError("body", "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, v.maxBodySize+1))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		v.logger.DebugContext(r.Context(), "request body rejected",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())))

		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apierrors.NewValidationError("body", "request body is required")
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return apierrors.NewValidationError("body", "malformed JSON")
		case errors.As(err, &typeErr):
			return apierrors.NewValidationError(typeErr.Field, "must be of type %s", typeErr.Type)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return apierrors.NewValidationError(strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`), "unknown field")
		default:
			return apierrors.NewValidationError("body", "%s", err.Error())
		}
	}
	if dec.More() {
		return apierrors.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}

// ValidateStruct validates s and converts failures into a 400 APIError
// listing every offending field.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fieldPath(fe),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// fieldPath drops the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func formatValidationError(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", param)
		}
		return fmt.Sprintf("must be at least %s", param)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", param)
		}
		return fmt.Sprintf("must be at most %s", param)
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	case "interval":
		return fmt.Sprintf("must be one of: %s", intervalList())
	case "ticker":
		return "must be a valid ticker symbol"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func intervalList() string {
	names := make([]string, len(domain.Intervals))
	for i, iv := range domain.Intervals {
		names[i] = string(iv)
	}
	return strings.Join(names, ", ")
}

// ContentTypeValidator rejects bodies whose Content-Type is not listed
func ContentTypeValidator(errorHandler *apierrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					"MISSING_CONTENT_TYPE",
					"Content-Type header is required",
				))
				return
			}

			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]interface{}{
					"content_type": contentType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}
