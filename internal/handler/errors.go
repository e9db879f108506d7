package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/samber/oops"

	"wildsats-api/internal/identity"
	"wildsats-api/internal/model"
	"wildsats-api/internal/service"
	"wildsats-api/pkg/apierror"
	"wildsats-api/pkg/errutil"
	"wildsats-api/pkg/response"
)

// errorWriter maps domain errors onto API errors.
type errorWriter struct {
	logger     *slog.Logger
	production bool
}

// write sends err as an API error response. Server-side failures are logged in full and,
// in production, reported with a generic message.
func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	response.Error(w, e.toAPIError(r, err))
}

func (e errorWriter) toAPIError(r *http.Request, err error) *apierror.Error {
	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, model.ErrInvalidInput):
		return apierror.ValidationError("validation failed", fieldDetails(service.FieldErrors(err))...)
	case errors.Is(err, model.ErrMalformedIdentity):
		return apierror.MalformedIdentity(err.Error())
	case errors.Is(err, model.ErrUnknownCharacter):
		apiErr = apierror.UnknownCharacter(err.Error())
		if available, ok := contextValue(err, "available"); ok {
			apiErr.WithExtra(map[string]any{"available": available})
		}
		return apiErr
	case errors.Is(err, model.ErrUserNotFound):
		return apierror.NotFound("user not found")
	case errors.Is(err, identity.ErrInvalidAuth):
		return apierror.Unauthorized(err.Error())
	}

	errutil.LogError(r.Context(), e.logger, "request failed", err)

	if e.production {
		return apierror.InternalError("")
	}
	return apierror.InternalError(err.Error())
}

func fieldDetails(fields map[string]string) []apierror.FieldError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	details := make([]apierror.FieldError, 0, len(names))
	for _, name := range names {
		details = append(details, apierror.FieldError{Field: name, Message: fields[name]})
	}
	return details
}

func contextValue(err error, key string) (any, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil, false
	}
	v, ok := oopsErr.Context()[key]
	return v, ok
}
