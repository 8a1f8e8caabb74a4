package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/picstream/picstream/pkg/picstream"
	"github.com/picstream/picstream/pkg/picstream/api"
	"github.com/picstream/picstream/pkg/picstream/eventbus"
	"github.com/picstream/picstream/pkg/picstream/repo/memory"
	memorystorage "github.com/picstream/picstream/pkg/picstream/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandler(t *testing.T, heartbeat time.Duration) (http.Handler, picstream.Service, *eventbus.Bus) {
	t.Helper()

	bus := eventbus.New(eventbus.WithHeartbeatInterval(heartbeat))
	svc, err := picstream.New(
		picstream.WithMetadataStore(memory.New()),
		picstream.WithBlobStore(memorystorage.New()),
		picstream.WithEventPublisher(bus),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/api/v1", api.NewImagesHandler(svc, bus).Routes())
	return r, svc, bus
}

func multipartBody(t *testing.T, fileName, mimeType, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	if name != "" {
		require.NoError(t, writer.WriteField("name", name))
	}
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func uploadImage(t *testing.T, handler http.Handler, fileName, mimeType string, data []byte) picstream.Image {
	t.Helper()

	body, contentType := multipartBody(t, fileName, mimeType, "", data)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var image picstream.Image
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &image))
	return image
}

func TestUploadEndpoint(t *testing.T) {
	handler, _, _ := setupHandler(t, time.Hour)

	t.Run("Created", func(t *testing.T) {
		image := uploadImage(t, handler, "a.jpg", "image/jpeg", bytes.Repeat([]byte{1}, 2048))
		assert.Equal(t, "a.jpg", image.DisplayName)
		assert.Equal(t, "image/jpeg", image.MimeType)
		assert.Equal(t, int64(2048), image.SizeBytes)
	})

	t.Run("CustomName", func(t *testing.T) {
		body, contentType := multipartBody(t, "raw.png", "image/png", "Holiday", []byte{1, 2, 3})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var image picstream.Image
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &image))
		assert.Equal(t, "Holiday", image.DisplayName)
	})

	t.Run("RejectedMimeType", func(t *testing.T) {
		body, contentType := multipartBody(t, "note.txt", "text/plain", "", []byte("hello"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "text/plain")
	})

	t.Run("MissingFilePart", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.WriteField("name", "no file"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetAndListEndpoints(t *testing.T) {
	handler, _, _ := setupHandler(t, time.Hour)

	first := uploadImage(t, handler, "one.jpg", "image/jpeg", []byte{1})
	second := uploadImage(t, handler, "two.png", "image/png", []byte{2, 2})

	t.Run("GetImage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/images/"+first.ID.String(), nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var image picstream.Image
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &image))
		assert.Equal(t, first.ID, image.ID)
		assert.Equal(t, "one.jpg", image.DisplayName)
	})

	t.Run("GetUnknownImage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/images/00000000-0000-0000-0000-000000000001", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("GetInvalidID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/images/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ListInUploadOrder", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/images", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var images []picstream.Image
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &images))
		require.Len(t, images, 2)
		assert.Equal(t, first.ID, images[0].ID)
		assert.Equal(t, second.ID, images[1].ID)
	})
}

func TestDownloadEndpoint(t *testing.T) {
	handler, _, _ := setupHandler(t, time.Hour)

	data := bytes.Repeat([]byte{7}, 512)
	image := uploadImage(t, handler, "photo.jpg", "image/jpeg", data)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/images/"+image.ID.String()+"/file", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "photo.jpg")

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, data, body)
}

func TestDeleteEndpoint(t *testing.T) {
	handler, _, _ := setupHandler(t, time.Hour)

	image := uploadImage(t, handler, "gone.jpg", "image/jpeg", []byte{1, 2, 3})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/images/"+image.ID.String(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/images/"+image.ID.String(), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/images/"+image.ID.String(), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventStream(t *testing.T) {
	handler, svc, _ := setupHandler(t, 50*time.Millisecond)

	server := httptest.NewServer(handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	image, err := svc.Upload(context.Background(), picstream.UploadRequest{
		Data:     []byte{9, 9, 9},
		FileName: "streamed.jpg",
		MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	var sawUpload, sawHeartbeat bool
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && (!sawUpload || !sawHeartbeat) {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event picstream.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))

		switch event.Type {
		case picstream.EventUploaded:
			assert.Equal(t, image.ID.String(), event.ImageID)
			assert.Equal(t, "streamed.jpg", event.ImageName)
			sawUpload = true
		case picstream.EventHeartbeat:
			assert.Equal(t, picstream.HeartbeatImageID, event.ImageID)
			sawHeartbeat = true
		}
	}

	assert.True(t, sawUpload, "upload event not observed on stream")
	assert.True(t, sawHeartbeat, "heartbeat event not observed on stream")
}
