package handlers

import (
	"errors"
	"net/http"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/imagegen"
	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/apierr"
	"github.com/yungbote/creatives-backend/internal/services"
)

// classify maps service errors onto HTTP statuses.
func classify(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var verr *campaign.ValidationError
	switch {
	case errors.As(err, &verr):
		return apierr.New(http.StatusUnprocessableEntity, "invalid_brief", err).WithDetails(verr.Problems)
	case errors.Is(err, campaign.ErrInvalidBrief):
		return apierr.New(http.StatusBadRequest, "invalid_brief", err)
	case errors.Is(err, services.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrConflict), errors.Is(err, orchestrator.ErrRunInProgress):
		return apierr.New(http.StatusConflict, "generation_in_progress", err)
	case errors.Is(err, imagegen.ErrConfig):
		return apierr.New(http.StatusInternalServerError, "provider_config", err)
	case errors.Is(err, orchestrator.ErrGenerationFailed):
		return apierr.New(http.StatusBadGateway, "generation_failed", err)
	default:
		return apierr.New(http.StatusInternalServerError, "internal_error", err)
	}
}
