package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/RealZimboGuy/shipflow/internal/util"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// writeError maps an engine error kind to its HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		if !errors.Is(err, domain.ErrConfiguration) {
			util.WriteJSONError(w, status, "internal server error")
			return
		}
	}
	util.WriteJSONError(w, status, err.Error())
}
