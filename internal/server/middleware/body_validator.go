package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/circa10a/countdown/api"
)

// contextKey is a private type to avoid collisions in context
type contextKey string

// BodyContextKey is the context key for accessing the validated request body in handlers.
const BodyContextKey contextKey = "validatedBody"

// maxBodyBytes caps request bodies; timer payloads are tiny.
const maxBodyBytes = 64 << 10

// FromContext grabs the validated payload from the context so handlers never
// read the body twice.
func FromContext[T any](ctx context.Context) (T, bool) {
	payload, ok := ctx.Value(BodyContextKey).(T)
	return payload, ok
}

// BodyValidator decodes the JSON body into T and runs struct validation on it.
func BodyValidator[T any](v *validator.Validate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload T

			// we don't need to restore the body since we pass the validated payload
			// through the context
			bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, "Read error")
				return
			}

			err = json.Unmarshal(bodyBytes, &payload)
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, "Invalid JSON")
				return
			}

			err = v.Struct(payload)
			if err != nil {
				errMsgs := []string{}

				if ve, ok := err.(validator.ValidationErrors); ok {
					for _, fe := range ve {
						errMsgs = append(errMsgs, fmt.Sprintf("field '%s' failed on validation: %s", fe.Field(), fe.Tag()))
					}
				}

				sendJSONError(w, http.StatusBadRequest, "Validation failed: "+strings.Join(errMsgs, ", "))
				return
			}

			ctx := context.WithValue(r.Context(), BodyContextKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sendJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(api.Error{
		Code:    code,
		Message: msg,
	})
}
