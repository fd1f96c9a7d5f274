//go:build !cgo
// +build !cgo

package inference

import (
	"context"

	"github.com/hyperjump/yomu/internal/embedding"
)

// ONNXModel is unavailable without CGO (see onnx.go).
type ONNXModel struct{}

// NewONNXModel returns embedding.ErrONNXUnavailable.
func NewONNXModel(_, _ string, _ int) (*ONNXModel, error) {
	return nil, embedding.ErrONNXUnavailable
}

func (m *ONNXModel) Version() string { return "" }

func (m *ONNXModel) InputDim() int { return 0 }

func (m *ONNXModel) Predict(context.Context, [][]float32) ([]Prediction, error) {
	return nil, embedding.ErrONNXUnavailable
}

func (m *ONNXModel) Close() error { return nil }
