package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/watzon/saleorhook/internal/server/requestlog"
)

// DeliveryHandlers serves the in-memory delivery log.
type DeliveryHandlers struct {
	store *requestlog.Store
}

func NewDeliveryHandlers(store *requestlog.Store) *DeliveryHandlers {
	return &DeliveryHandlers{store: store}
}

// List handles GET /api/deliveries.
func (h *DeliveryHandlers) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := requestlog.FilterOptions{
		Path:   query.Get("path"),
		Domain: query.Get("domain"),
		Event:  query.Get("event"),
	}

	var err error
	if opts.Limit, err = intParam(query, "limit"); err != nil {
		BadRequest(w, "limit must be an integer")
		return
	}
	if opts.Offset, err = intParam(query, "offset"); err != nil {
		BadRequest(w, "offset must be an integer")
		return
	}
	if opts.Status, err = intParam(query, "status"); err != nil {
		BadRequest(w, "status must be an integer")
		return
	}
	if opts.MinStatus, err = intParam(query, "min_status"); err != nil {
		BadRequest(w, "min_status must be an integer")
		return
	}
	if v := query.Get("since"); v != "" {
		if opts.Since, err = time.Parse(time.RFC3339, v); err != nil {
			BadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
	}

	JSON(w, http.StatusOK, h.store.List(opts))
}

func intParam(query url.Values, name string) (int, error) {
	v := query.Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
