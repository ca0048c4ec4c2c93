package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/Brownie44l1/medscan-api/internal/apperror"
	"github.com/Brownie44l1/medscan-api/internal/metrics"
	"github.com/Brownie44l1/medscan-api/internal/model"
	"github.com/Brownie44l1/medscan-api/internal/predictor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ImageField is the multipart form field carrying the upload.
const ImageField = "image"

type Handler struct {
	models         *model.Handle
	predictor      *predictor.Predictor
	metrics        *metrics.Metrics
	maxUploadBytes int64
}

func NewHandler(models *model.Handle, p *predictor.Predictor, m *metrics.Metrics, maxUploadBytes int64) *Handler {
	return &Handler{
		models:         models,
		predictor:      p,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the service mux wrapped in logging and CORS middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/analyze", h.Analyze)
	mux.Handle("/metrics", h.metrics.Handler())
	return enableCORS(logRequests(h.metrics, mux))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"model_loaded": h.models.Loaded(),
	})
}

// Analyze classifies the image uploaded under the "image" form field.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	data, err := h.readImage(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	m, err := h.models.EnsureLoaded()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.predictor.Analyze(m, bytes.NewReader(data))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.ObservePrediction(result.Category, result.Label)
	logrus.WithFields(logrus.Fields{
		"request_id": requestID(r),
		"prediction": result.Label,
		"category":   result.Category,
		"index":      result.Index,
	}).Info("Prediction")

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if tooLarge(err) {
			return nil, apperror.New(apperror.MissingInput, "Image exceeds upload limit")
		}
		return nil, apperror.Wrap(err, apperror.MissingInput, "No image provided")
	}

	file, header, err := r.FormFile(ImageField)
	if err != nil {
		return nil, apperror.New(apperror.MissingInput, "No image provided")
	}
	defer file.Close()

	logrus.WithFields(logrus.Fields{
		"request_id": requestID(r),
		"filename":   header.Filename,
		"size":       header.Size,
	}).Debug("Received file")

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.MissingInput, "Failed to read image")
	}
	return data, nil
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	h.metrics.ObserveFailure(kind.String())

	entry := logrus.WithFields(logrus.Fields{
		"request_id": requestID(r),
		"kind":       kind.String(),
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Analyze failed")
	} else {
		entry.Info("Analyze rejected")
	}

	writeJSON(w, status, errorResponse{Error: message(err)})
}

// message hides the parser detail of a missing upload from clients.
func message(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Kind == apperror.MissingInput {
		return appErr.Detail
	}
	return err.Error()
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Writing response failed")
	}
}
