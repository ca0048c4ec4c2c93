package model

import (
	"github.com/Brownie44l1/medscan-api/internal/preprocess"
)

// Model maps a preprocessed image tensor to one logit per class.
// Implementations must be safe for concurrent use.
type Model interface {
	Forward(input *preprocess.Tensor) ([]float32, error)
	Close() error
}

// Loader deserializes the model stored at path.
type Loader func(path string) (Model, error)
