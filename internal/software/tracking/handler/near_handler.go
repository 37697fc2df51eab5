package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bus-track/internal/domain/geo"
	"bus-track/internal/general/contracts"
	"bus-track/internal/ports"
)

// --- Handler: GET /buses/near?lng=X&lat=Y&r=R ---

func (handler *TrackingHTTPHandler) handleNear(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	query := r.URL.Query()
	rawRadius := query.Get("r")
	if rawRadius == "" {
		rawRadius = query.Get("radius")
	}
	lng, errLng := strconv.ParseFloat(query.Get("lng"), 64)
	lat, errLat := strconv.ParseFloat(query.Get("lat"), 64)
	radius, errRad := strconv.ParseFloat(rawRadius, 64)
	if errLng != nil || errLat != nil || errRad != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, contracts.CodeBadRange, errors.New("lng, lat and r must be numbers"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	buses, err := handler.svc.Near(ctxWithTimeout, ports.NearInput{Lng: lng, Lat: lat, RadiusM: radius})
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrBadRange):
			handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, contracts.CodeBadRange, err)
		case errors.Is(err, geo.ErrInvalidLatitude), errors.Is(err, geo.ErrInvalidLongitude):
			handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, contracts.CodeInvalidCoord, err)
		default:
			handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to query nearby buses", err)
		}
		return
	}
	if buses == nil {
		buses = []ports.NearBus{}
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"buses": buses,
		"count": len(buses),
	})
}
