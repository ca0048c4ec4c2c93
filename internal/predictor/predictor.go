// Package predictor runs the decode, preprocess, forward, argmax and label
// lookup chain shared by the HTTP service and the offline CLI.
package predictor

import (
	"io"
	"strconv"

	"github.com/Brownie44l1/medscan-api/internal/apperror"
	"github.com/Brownie44l1/medscan-api/internal/model"
	"github.com/Brownie44l1/medscan-api/internal/preprocess"
	"github.com/Brownie44l1/medscan-api/internal/taxonomy"
	"github.com/pkg/errors"
)

const (
	msgProcessing = "Error processing image"
	msgUnknown    = "Unknown prediction category"
)

// Prediction is the result for one image.
type Prediction struct {
	Label    string `json:"prediction"`
	Category string `json:"category"`
	Index    int    `json:"prediction_idx"`

	Confidences []Confidence `json:"-"`
}

// Confidence is the softmax probability of one known class.
type Confidence struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

type Predictor struct {
	taxonomy *taxonomy.Taxonomy
}

func New(tax *taxonomy.Taxonomy) *Predictor {
	return &Predictor{taxonomy: tax}
}

// Analyze preprocesses the image read from r and classifies it with m.
func (p *Predictor) Analyze(m model.Model, r io.Reader) (*Prediction, error) {
	tensor, err := preprocess.FromReader(r)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.PreprocessingFailure, msgProcessing)
	}
	return p.Predict(m, tensor)
}

// Predict runs a forward pass and resolves the arg-max class.
func (p *Predictor) Predict(m model.Model, tensor *preprocess.Tensor) (*Prediction, error) {
	logits, err := m.Forward(tensor)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.InferenceFailure, msgProcessing)
	}
	return p.Classify(logits)
}

// Classify maps raw logits to a labelled prediction.
func (p *Predictor) Classify(logits []float32) (*Prediction, error) {
	if len(logits) == 0 {
		return nil, apperror.Wrap(errors.New("model produced no logits"), apperror.InferenceFailure, msgProcessing)
	}
	idx := model.Argmax(logits)
	entry, ok := p.taxonomy.Lookup(idx)
	if !ok {
		return nil, apperror.Wrap(errors.New(strconv.Itoa(idx)), apperror.UnknownClassIndex, msgUnknown)
	}

	probs := model.Softmax(logits)
	var confidences []Confidence
	for _, e := range p.taxonomy.Entries() {
		if e.Index < len(probs) {
			confidences = append(confidences, Confidence{Index: e.Index, Label: e.Label, Probability: probs[e.Index]})
		}
	}

	return &Prediction{
		Label:       entry.Label,
		Category:    entry.Category,
		Index:       entry.Index,
		Confidences: confidences,
	}, nil
}
