package model

import (
	"os"
	"sync"

	"github.com/Brownie44l1/medscan-api/internal/preprocess"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

// ONNXOptions configures sessions created by ONNXLoader.
type ONNXOptions struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default lookup.
	LibraryPath string
	InputName   string
	OutputName  string
	NumClasses  int
}

var envMu sync.Mutex

// initEnvironment initializes the process wide ONNX Runtime environment.
// A failed attempt is retried on the next call.
func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "failed to initialize ONNX environment")
	}
	return nil
}

// DestroyEnvironment releases the ONNX Runtime environment if it was
// initialized.
func DestroyEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXLoader returns a Loader that opens ONNX models with pre-bound input
// and output tensors.
func ONNXLoader(opts ONNXOptions) Loader {
	if opts.InputName == "" {
		opts.InputName = DefaultInputName
	}
	if opts.OutputName == "" {
		opts.OutputName = DefaultOutputName
	}
	return func(path string) (Model, error) {
		m, err := openONNX(path, opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

type onnxModel struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func openONNX(path string, opts ONNXOptions) (*onnxModel, error) {
	if opts.NumClasses <= 0 {
		return nil, errors.Errorf("invalid class count %d", opts.NumClasses)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "model file")
	}
	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(1, preprocess.Channels, preprocess.Size, preprocess.Size)
	outputShape := ort.NewShape(1, int64(opts.NumClasses))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "failed to create output tensor")
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "failed to create ONNX session")
	}

	logrus.WithFields(logrus.Fields{
		"path":    path,
		"input":   opts.InputName,
		"output":  opts.OutputName,
		"classes": opts.NumClasses,
	}).Debug("ONNX session created")

	return &onnxModel{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (m *onnxModel) Forward(input *preprocess.Tensor) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, errors.New("model is closed")
	}
	dst := m.inputTensor.GetData()
	if len(input.Data) != len(dst) {
		return nil, errors.Errorf("expected %d input values, got %d", len(dst), len(input.Data))
	}
	copy(dst, input.Data)

	if err := m.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	out := m.outputTensor.GetData()
	logits := make([]float32, len(out))
	copy(logits, out)
	return logits, nil
}

func (m *onnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.session != nil {
		keep(m.session.Destroy())
		m.session = nil
	}
	if m.inputTensor != nil {
		keep(m.inputTensor.Destroy())
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		keep(m.outputTensor.Destroy())
		m.outputTensor = nil
	}
	return firstErr
}
