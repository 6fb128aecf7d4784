package errors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the HTTP status code the API layer responds
// with. Authorization denials map to 403; the response body stays identical
// in shape to a not-found so callers cannot tell the two apart.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var se *ServiceError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}

	switch se.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuth:
		if se.Code == ErrCodeAccessDenied {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case CategoryStore:
		if se.Code == ErrCodeProductNotFound {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
