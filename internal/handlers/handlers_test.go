package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Brownie44l1/medscan-api/internal/metrics"
	"github.com/Brownie44l1/medscan-api/internal/model"
	"github.com/Brownie44l1/medscan-api/internal/predictor"
	"github.com/Brownie44l1/medscan-api/internal/preprocess"
	"github.com/Brownie44l1/medscan-api/internal/taxonomy"
	"github.com/Brownie44l1/medscan-api/internal/testutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, loader *testutil.MockLoader, maxUpload int64) *httptest.Server {
	handle := model.NewHandle("model.onnx", loader.Load)
	h := NewHandler(handle, predictor.New(taxonomy.Default()), metrics.New(), maxUpload)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "scan.jpg")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postImage(t *testing.T, srv *httptest.Server, field string, data []byte) (*http.Response, map[string]interface{}) {
	body, contentType := multipartBody(t, field, data)
	resp, err := http.Post(srv.URL+"/analyze", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestAnalyzeSuccess(t *testing.T) {
	loader := &testutil.MockLoader{Model: &testutil.MockModel{Class: 8}}
	srv := newTestServer(t, loader, 10<<20)

	resp, body := postImage(t, srv, "image", testutil.JPEG(640, 311))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, map[string]interface{}{
		"prediction":     "Moderate DR",
		"category":       "Diabetic Retinopathy",
		"prediction_idx": float64(8),
	}, body)
}

func TestAnalyzeIdempotent(t *testing.T) {
	loader := &testutil.MockLoader{Model: &testutil.MockModel{Class: 1}}
	srv := newTestServer(t, loader, 10<<20)
	img := testutil.PNG(90, 45)

	_, first := postImage(t, srv, "image", img)
	_, second := postImage(t, srv, "image", img)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loader.Calls)
}

func TestAnalyzeMissingImage(t *testing.T) {
	loader := &testutil.MockLoader{Model: &testutil.MockModel{}}
	srv := newTestServer(t, loader, 10<<20)

	resp, body := postImage(t, srv, "file", testutil.PNG(4, 4))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No image provided", body["error"])
	assert.Equal(t, 0, loader.Calls, "model must not load before input validation")
}

func TestAnalyzeNotMultipart(t *testing.T) {
	loader := &testutil.MockLoader{Model: &testutil.MockModel{}}
	srv := newTestServer(t, loader, 10<<20)

	resp, err := http.Post(srv.URL+"/analyze", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeUploadLimit(t *testing.T) {
	loader := &testutil.MockLoader{Model: &testutil.MockModel{}}
	srv := newTestServer(t, loader, 1024)

	resp, body := postImage(t, srv, "image", bytes.Repeat([]byte{0xff}, 8<<10))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestAnalyzeModelLoadFailureRetries(t *testing.T) {
	loader := &testutil.MockLoader{
		Model:    &testutil.MockModel{Class: 5},
		Failures: 1,
		Err:      errors.New("no such file or directory"),
	}
	srv := newTestServer(t, loader, 10<<20)

	resp, body := postImage(t, srv, "image", testutil.PNG(10, 10))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "Failed to load model")
	assert.Contains(t, body["error"], "no such file or directory")

	resp, body = postImage(t, srv, "image", testutil.PNG(10, 10))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "yes", body["prediction"])
	assert.Equal(t, "Brain Tumor", body["category"])
	assert.Equal(t, 2, loader.Calls)
}

func TestAnalyzeCorruptImage(t *testing.T) {
	loader := &testutil.MockLoader{Model: &testutil.MockModel{}}
	srv := newTestServer(t, loader, 10<<20)

	resp, body := postImage(t, srv, "image", []byte("GIF89a but not really"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "Error processing image")
}

func TestAnalyzeOversizedImage(t *testing.T) {
	m := &testutil.MockModel{}
	srv := newTestServer(t, &testutil.MockLoader{Model: m}, 10<<20)

	resp, body := postImage(t, srv, "image", testutil.HugePNG(40000, 40000))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "Error processing image")
	assert.Contains(t, body["error"], "image too large")
	assert.Equal(t, 0, m.Calls())
}

func TestAnalyzeInferenceFailure(t *testing.T) {
	m := &testutil.MockModel{ForwardFunc: func(*preprocess.Tensor) ([]float32, error) {
		return nil, errors.New("bad shape")
	}}
	srv := newTestServer(t, &testutil.MockLoader{Model: m}, 10<<20)

	resp, body := postImage(t, srv, "image", testutil.PNG(10, 10))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Error processing image: bad shape", body["error"])
}

func TestAnalyzeUnknownIndex(t *testing.T) {
	m := &testutil.MockModel{Class: 11, NumClasses: 12}
	srv := newTestServer(t, &testutil.MockLoader{Model: m}, 10<<20)

	resp, body := postImage(t, srv, "image", testutil.PNG(10, 10))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "Unknown prediction category")
}

func TestAnalyzeMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &testutil.MockLoader{Model: &testutil.MockModel{}}, 10<<20)

	resp, err := http.Get(srv.URL + "/analyze")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	loader := &testutil.MockLoader{Model: &testutil.MockModel{}}
	srv := newTestServer(t, loader, 10<<20)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/analyze", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.org")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, 0, loader.Calls)
}

func TestHealth(t *testing.T) {
	loader := &testutil.MockLoader{Model: &testutil.MockModel{}}
	srv := newTestServer(t, loader, 10<<20)

	get := func() map[string]interface{} {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	assert.Equal(t, map[string]interface{}{"status": "healthy", "model_loaded": false}, get())
	postImage(t, srv, "image", testutil.PNG(3, 3))
	assert.Equal(t, true, get()["model_loaded"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &testutil.MockLoader{Model: &testutil.MockModel{Class: 0}}, 10<<20)
	postImage(t, srv, "image", testutil.PNG(3, 3))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `predictions_total{category="Alzheimer's Disease",label="NonDemented"} 1`)
}
