// Package api exposes the HTTP surface of the activity service.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"example.com/reactivities/internal/auth"
	"example.com/reactivities/internal/domain"
	"example.com/reactivities/internal/errorx"
)

// Option configures a Handler.
type Option func(*Handler)

// WithChat mounts the websocket endpoint at /v1/chat.
func WithChat(chat http.Handler) Option {
	return func(h *Handler) {
		h.chat = chat
	}
}

// WithLogger overrides the logger used for unexpected failures.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	chat    http.Handler
	logger  *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{service: service, logger: log.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("POST /v1/activities", h.createActivity)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("PUT /v1/activities/{id}", h.editActivity)
	mux.HandleFunc("DELETE /v1/activities/{id}", h.deleteActivity)
	mux.HandleFunc("POST /v1/activities/{id}/attend", h.attend)
	mux.HandleFunc("DELETE /v1/activities/{id}/attend", h.unattend)
	mux.HandleFunc("GET /v1/profiles/{username}", h.getProfile)
	mux.HandleFunc("PUT /v1/profiles", h.updateProfile)
	mux.HandleFunc("GET /v1/values", h.listValues)
	mux.HandleFunc("GET /v1/values/{id}", h.getValue)
	if h.chat != nil {
		mux.Handle("GET /v1/chat", h.chat)
	}
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}

	username := auth.Username(r.Context())
	envelope, err := h.service.ListActivities(r.Context(), username, query)
	if err != nil {
		h.writeError(w, err)
		return
	}

	pageSize := query.Limit
	if pageSize <= 0 {
		pageSize = h.service.PageSize()
	}
	resp := ListActivitiesResponse{
		Activities:    make([]ActivityView, 0, len(envelope.Activities)),
		ActivityCount: envelope.ActivityCount,
		TotalPages:    domain.TotalPages(envelope.ActivityCount, pageSize),
	}
	for _, a := range envelope.Activities {
		resp.Activities = append(resp.Activities, toActivityView(a, username))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var cmd domain.CreateActivityCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	if err := h.service.CreateActivity(r.Context(), auth.Username(r.Context()), cmd); err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/activities/"+cmd.ID)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.service.GetActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity, auth.Username(r.Context())))
}

func (h *Handler) editActivity(w http.ResponseWriter, r *http.Request) {
	var cmd domain.EditActivityCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.ID = r.PathValue("id")
	if err := h.service.EditActivity(r.Context(), cmd); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteActivity(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) attend(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Attend(r.Context(), auth.Username(r.Context()), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unattend(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unattend(r.Context(), auth.Username(r.Context()), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context(), r.PathValue("username"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var cmd domain.UpdateProfileCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	if err := h.service.UpdateProfile(r.Context(), auth.Username(r.Context()), cmd); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listValues(w http.ResponseWriter, r *http.Request) {
	values, err := h.service.ListValues(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]ValueView, 0, len(values))
	for _, v := range values {
		resp = append(resp, ValueView{ID: v.ID, Name: v.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getValue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, errorx.Validation(map[string]string{"id": "id must be an integer"}))
		return
	}
	value, err := h.service.GetValue(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValueView{ID: value.ID, Name: value.Name})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, errorx.BadRequest("unable to parse body"))
		return false
	}
	return true
}
