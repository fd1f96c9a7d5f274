package inference

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Head is a single-output MLP: optional ReLU hidden layer followed by a
// linear output. An empty Hidden makes the head linear over the input.
type Head struct {
	Hidden     [][]float64 `json:"hidden_weights,omitempty"`
	HiddenBias []float64   `json:"hidden_bias,omitempty"`
	Output     []float64   `json:"output_weights"`
	OutputBias float64     `json:"output_bias"`
}

// Artifact is a trained two-head scoring model. It is read once and never
// mutated.
type Artifact struct {
	Version  string `json:"version"`
	InputDim int    `json:"input_dim"`
	Click    Head   `json:"click"`
	Dwell    Head   `json:"dwell"`
}

// LoadArtifact reads and validates a JSON artifact.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks that both heads match InputDim.
func (a *Artifact) Validate() error {
	if a.Version == "" {
		return fmt.Errorf("model artifact: missing version")
	}
	if a.InputDim <= 0 {
		return fmt.Errorf("model artifact: input_dim must be positive")
	}
	if err := a.Click.validate(a.InputDim); err != nil {
		return fmt.Errorf("model artifact: click head: %w", err)
	}
	if err := a.Dwell.validate(a.InputDim); err != nil {
		return fmt.Errorf("model artifact: dwell head: %w", err)
	}
	return nil
}

func (h *Head) validate(inputDim int) error {
	width := inputDim
	if len(h.Hidden) > 0 {
		if len(h.HiddenBias) != len(h.Hidden) {
			return fmt.Errorf("hidden bias has %d entries, want %d", len(h.HiddenBias), len(h.Hidden))
		}
		for i, row := range h.Hidden {
			if len(row) != inputDim {
				return fmt.Errorf("hidden row %d has %d weights, want %d", i, len(row), inputDim)
			}
		}
		width = len(h.Hidden)
	}
	if len(h.Output) != width {
		return fmt.Errorf("output has %d weights, want %d", len(h.Output), width)
	}
	return nil
}

func (h *Head) forward(x []float32) float64 {
	if len(h.Hidden) == 0 {
		return dot(h.Output, x) + h.OutputBias
	}
	out := h.OutputBias
	for i, row := range h.Hidden {
		z := dot(row, x) + h.HiddenBias[i]
		if z > 0 {
			out += h.Output[i] * z
		}
	}
	return out
}

func dot(w []float64, x []float32) float64 {
	var s float64
	for i, v := range x {
		s += w[i] * float64(v)
	}
	return s
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// softplus is log(1+e^z), computed without overflow for large z.
func softplus(z float64) float64 {
	if z > 30 {
		return z
	}
	return math.Log1p(math.Exp(z))
}

// BaselineVersion identifies BaselineArtifact.
const BaselineVersion = "baseline-linear-v1"

// BaselineArtifact is a deterministic linear model over the four scalar
// features that follow the embedding (recency, category match, source
// engagement, declared preference). Embedding weights are zero.
func BaselineArtifact(inputDim int) *Artifact {
	click := Head{Output: make([]float64, inputDim), OutputBias: -2.5}
	dwell := Head{Output: make([]float64, inputDim), OutputBias: 2}
	scalars := []struct{ click, dwell float64 }{
		{1.5, 40},
		{2.0, 90},
		{1.0, 45},
		{1.0, 30},
	}
	base := inputDim - len(scalars)
	for i, w := range scalars {
		if j := base + i; j >= 0 {
			click.Output[j] = w.click
			dwell.Output[j] = w.dwell
		}
	}
	return &Artifact{Version: BaselineVersion, InputDim: inputDim, Click: click, Dwell: dwell}
}
