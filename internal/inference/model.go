package inference

import (
	"context"
)

// Prediction is the model output for one feature vector.
type Prediction struct {
	ClickProbability float64 `json:"click_probability"`
	DwellSeconds     float64 `json:"dwell_seconds"`
}

// Model scores batches of vectors of length InputDim.
type Model interface {
	Version() string
	InputDim() int
	Predict(ctx context.Context, batch [][]float32) ([]Prediction, error)
	Close() error
}

// NativeModel evaluates an Artifact in pure Go.
type NativeModel struct {
	art *Artifact
}

// NewNativeModel validates a and returns a model over it.
func NewNativeModel(a *Artifact) (*NativeModel, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &NativeModel{art: a}, nil
}

func (m *NativeModel) Version() string { return m.art.Version }

func (m *NativeModel) InputDim() int { return m.art.InputDim }

// Predict runs both heads: sigmoid for click, softplus for dwell.
func (m *NativeModel) Predict(ctx context.Context, batch [][]float32) ([]Prediction, error) {
	out := make([]Prediction, len(batch))
	for i, x := range batch {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = Prediction{
			ClickProbability: sigmoid(m.art.Click.forward(x)),
			DwellSeconds:     softplus(m.art.Dwell.forward(x)),
		}
	}
	return out, nil
}

func (m *NativeModel) Close() error { return nil }
