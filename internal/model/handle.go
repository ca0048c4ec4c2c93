package model

import (
	"sync"
	"time"

	"github.com/Brownie44l1/medscan-api/internal/apperror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LoadObserver is notified after every load attempt.
type LoadObserver func(elapsed time.Duration, err error)

// Handle owns the model used by the service. The model is loaded lazily and
// a failed load is retried on the next call instead of being remembered.
type Handle struct {
	path     string
	loader   Loader
	observer LoadObserver

	mu    sync.Mutex
	model Model
}

func NewHandle(path string, loader Loader) *Handle {
	return &Handle{path: path, loader: loader}
}

// Observe registers fn to be called after each load attempt.
func (h *Handle) Observe(fn LoadObserver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observer = fn
}

// Path is the model file the handle loads from.
func (h *Handle) Path() string {
	return h.path
}

// Loaded reports whether a model is resident.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.model != nil
}

// Load (re)loads the model from disk, replacing any resident one. On
// failure the previously resident model, if any, stays in place.
func (h *Handle) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.loadLocked(true)
	return err
}

// EnsureLoaded returns the resident model, loading it first if needed.
func (h *Handle) EnsureLoaded() (Model, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadLocked(false)
}

func (h *Handle) loadLocked(force bool) (Model, error) {
	if h.model != nil && !force {
		return h.model, nil
	}

	start := time.Now()
	m, err := h.loader(h.path)
	if err == nil && m == nil {
		err = errors.New("loader returned no model")
	}
	elapsed := time.Since(start)
	if h.observer != nil {
		h.observer(elapsed, err)
	}

	log := logrus.WithField("path", h.path)
	if err != nil {
		log.WithError(err).Error("Error loading model")
		return nil, apperror.Wrap(err, apperror.ModelLoadFailure, "Failed to load model")
	}
	log.WithField("elapsed", elapsed).Info("Model loaded")

	if h.model != nil {
		if cerr := h.model.Close(); cerr != nil {
			log.WithError(cerr).Warn("Closing previous model failed")
		}
	}
	h.model = m
	return m, nil
}

// Close releases the resident model.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model == nil {
		return nil
	}
	err := h.model.Close()
	h.model = nil
	return err
}
