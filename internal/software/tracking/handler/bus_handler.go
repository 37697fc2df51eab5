package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bus-track/internal/ports"
)

// --- Handler: GET /buses/{bus_id} ---

func (handler *TrackingHTTPHandler) handleGetBus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	busID := r.PathValue("bus_id")
	if busID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "bus_id required", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	snap, err := handler.svc.GetBus(ctxWithTimeout, busID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "bus not found", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to fetch bus", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, snap)
}

// --- Handler: GET /buses?online=true&routeId=X&limit=N ---

// listLimitCap bounds a single listing response.
const listLimitCap = 200

func (handler *TrackingHTTPHandler) handleListBuses(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	query := r.URL.Query()
	in := ports.ListBusesInput{
		RouteID: query.Get("routeId"),
		Limit:   listLimitCap,
	}

	if raw := query.Get("online"); raw != "" {
		online, err := strconv.ParseBool(raw)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "online must be true or false", err)
			return
		}
		in.Online = &online
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			handler.httpError(ctx, w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		if limit < listLimitCap {
			in.Limit = limit
		}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	buses, err := handler.svc.ListBuses(ctxWithTimeout, in)
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to list buses", err)
		return
	}
	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"buses": buses,
		"count": len(buses),
	})
}
