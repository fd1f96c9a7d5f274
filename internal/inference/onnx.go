//go:build cgo
// +build cgo

package inference

import (
	"context"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/yomu/internal/embedding"
)

// ONNXModel runs an exported two-output network (click logit, dwell
// seconds) with input "features" of shape [1, inputDim]. Rows are scored
// one at a time over tensors bound to the session.
type ONNXModel struct {
	version  string
	inputDim int
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	click    *ort.Tensor[float32]
	dwell    *ort.Tensor[float32]
	mu       sync.Mutex
}

// NewONNXModel loads the network at path.
func NewONNXModel(path, version string, inputDim int) (*ONNXModel, error) {
	if err := embedding.InitRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	m := &ONNXModel{version: version, inputDim: inputDim}
	var err error
	if m.input, err = ort.NewTensor(ort.NewShape(1, int64(inputDim)), make([]float32, inputDim)); err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	if m.click, err = ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1)); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to create click tensor: %w", err)
	}
	if m.dwell, err = ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1)); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to create dwell tensor: %w", err)
	}
	m.session, err = ort.NewAdvancedSession(
		path,
		[]string{"features"},
		[]string{"click", "dwell"},
		[]ort.ArbitraryTensor{m.input},
		[]ort.ArbitraryTensor{m.click, m.dwell},
		nil,
	)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return m, nil
}

func (m *ONNXModel) Version() string { return m.version }

func (m *ONNXModel) InputDim() int { return m.inputDim }

// Predict scores each row; the click output is a logit.
func (m *ONNXModel) Predict(ctx context.Context, batch [][]float32) ([]Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Prediction, len(batch))
	for i, x := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		copy(m.input.GetData(), x)
		if err := m.session.Run(); err != nil {
			return nil, fmt.Errorf("onnx inference failed: %w", err)
		}
		out[i] = Prediction{
			ClickProbability: sigmoid(float64(m.click.GetData()[0])),
			DwellSeconds:     math.Max(0, float64(m.dwell.GetData()[0])),
		}
	}
	return out, nil
}

// Close destroys the session and tensors.
func (m *ONNXModel) Close() error {
	var err error
	if m.session != nil {
		err = m.session.Destroy()
		m.session = nil
	}
	for _, t := range []*ort.Tensor[float32]{m.input, m.click, m.dwell} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	m.input, m.click, m.dwell = nil, nil, nil
	return err
}
