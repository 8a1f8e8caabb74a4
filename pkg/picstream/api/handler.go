// Package api exposes the picstream service over HTTP: multipart
// upload, metadata and raw-content fetch, deletion, listing, and a
// server-sent-events stream of change notifications.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/picstream/picstream/pkg/picstream"
	"github.com/picstream/picstream/pkg/picstream/eventbus"
)

// ImagesHandler handles image upload and management endpoints
type ImagesHandler struct {
	service picstream.Service
	bus     *eventbus.Bus
}

func NewImagesHandler(service picstream.Service, bus *eventbus.Bus) *ImagesHandler {
	return &ImagesHandler{
		service: service,
		bus:     bus,
	}
}

// Routes returns the router for image endpoints. The event stream is
// mounted outside the request timeout group: it is long-lived by
// design.
func (h *ImagesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Post("/images", h.UploadImage)
		r.Get("/images", h.ListImages)
		r.Get("/images/{imageID}", h.GetImage)
		r.Get("/images/{imageID}/file", h.DownloadImage)
		r.Delete("/images/{imageID}", h.DeleteImage)
	})
	r.Get("/events", h.StreamEvents)
	return r
}

// ErrorResponse is the JSON body returned for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// UploadImage accepts a multipart upload ("file" part, optional "name"
// field) and returns the created record.
func (h *ImagesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(picstream.MaxUploadBytes + 1); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Missing file part", "error", err)
		writeError(w, r, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("Failed to read upload", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to read upload")
		return
	}

	image, err := h.service.Upload(r.Context(), picstream.UploadRequest{
		Data:     data,
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Name:     r.FormValue("name"),
	})
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, image)
}

// ListImages returns all records in upload order
func (h *ImagesHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.service.List(r.Context())
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	if images == nil {
		images = []*picstream.Image{}
	}
	render.JSON(w, r, images)
}

// GetImage returns the metadata record for one image
func (h *ImagesHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	image, err := h.service.GetImage(r.Context(), id)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, image)
}

// DownloadImage streams the raw image bytes
func (h *ImagesHandler) DownloadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	reader, image, err := h.service.Download(r.Context(), id)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", image.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", image.DisplayName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", image.SizeBytes))

	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream image", "id", id, "error", err)
	}
}

// DeleteImage removes an image and its metadata
func (h *ImagesHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamEvents serves the live event feed as server-sent events, one
// message per event, until the client disconnects.
func (h *ImagesHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := h.bus.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-sub.Events():
			payload, err := json.Marshal(event)
			if err != nil {
				slog.Error("Failed to marshal event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *ImagesHandler) imageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "imageID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid image ID")
		return uuid.Nil, false
	}
	return id, true
}

// renderServiceError maps service errors onto HTTP status codes:
// validation failures to 400, unknown ids to 404, everything else to a
// generic 500 that hides the underlying cause.
func (h *ImagesHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *picstream.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, r, http.StatusBadRequest, ve.Reason)
	case errors.Is(err, picstream.ErrImageNotFound):
		writeError(w, r, http.StatusNotFound, "image not found")
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
