// Package scaler rescales feature columns before training.
//
// Scalers are fitted on the training features with Adapt and then applied to
// any tensor with the same number of columns. A rank-1 tensor is treated as a
// single column.
package scaler

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// ErrNotAdapted is returned when Transform runs before Adapt.
var ErrNotAdapted = errors.New("scaler has not been adapted")

// Scaler is a column-wise affine transform x' = (x - offset) / scale.
type Scaler[B tensor.Backend] interface {
	Name() string
	Adapt(x *tensor.Tensor[B]) error
	Transform(x *tensor.Tensor[B]) (*tensor.Tensor[B], error)
	InverseTransform(x *tensor.Tensor[B]) (*tensor.Tensor[B], error)

	// Params returns the fitted per-column offset and scale.
	Params() (offset, scale []float64)
}

// New returns a scaler by name: "minmax" or "standard".
func New[B tensor.Backend](name string) (Scaler[B], error) {
	switch name {
	case "minmax":
		return NewMinMax[B](), nil
	case "standard":
		return NewStandard[B](), nil
	default:
		return nil, errors.Errorf("unknown scaler %q (want minmax or standard)", name)
	}
}

// Restore rebuilds a fitted scaler from the output of Params.
func Restore[B tensor.Backend](name string, offset, scale []float64) (Scaler[B], error) {
	if len(offset) != len(scale) {
		return nil, errors.Errorf("scaler %s: %d offsets but %d scales", name, len(offset), len(scale))
	}
	fitted := affine{offset: offset, scale: scale}
	switch name {
	case "minmax":
		return &MinMax[B]{affine: fitted}, nil
	case "standard":
		return &Standard[B]{affine: fitted}, nil
	default:
		return nil, errors.Errorf("unknown scaler %q (want minmax or standard)", name)
	}
}

// affine holds the fitted per-column offset and scale.
type affine struct {
	offset []float64
	scale  []float64
}

// MinMax maps every column to [0, 1] using the minimum and maximum seen by Adapt.
// Constant columns are shifted to 0 and left unscaled.
type MinMax[B tensor.Backend] struct {
	affine
}

// NewMinMax creates a min-max scaler.
func NewMinMax[B tensor.Backend]() *MinMax[B] {
	return &MinMax[B]{}
}

// Name implements Scaler.
func (s *MinMax[B]) Name() string { return "minmax" }

// Adapt implements Scaler.
func (s *MinMax[B]) Adapt(x *tensor.Tensor[B]) error {
	m, err := matrix(x)
	if err != nil {
		return err
	}
	rows, cols := m.Dims()
	s.offset = make([]float64, cols)
	s.scale = make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		lo, hi := floats.Min(col), floats.Max(col)
		s.offset[j] = lo
		s.scale[j] = nonZero(hi - lo)
	}
	return nil
}

// Transform implements Scaler.
func (s *MinMax[B]) Transform(x *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return transform(&s.affine, x, false)
}

// InverseTransform implements Scaler.
func (s *MinMax[B]) InverseTransform(x *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return transform(&s.affine, x, true)
}

// Standard rescales every column to zero mean and unit (population) variance.
// Constant columns are centred and left unscaled.
type Standard[B tensor.Backend] struct {
	affine
}

// NewStandard creates a standard scaler.
func NewStandard[B tensor.Backend]() *Standard[B] {
	return &Standard[B]{}
}

// Name implements Scaler.
func (s *Standard[B]) Name() string { return "standard" }

// Adapt implements Scaler.
func (s *Standard[B]) Adapt(x *tensor.Tensor[B]) error {
	m, err := matrix(x)
	if err != nil {
		return err
	}
	rows, cols := m.Dims()
	s.offset = make([]float64, cols)
	s.scale = make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.offset[j] = mean
		s.scale[j] = nonZero(std)
	}
	return nil
}

// Transform implements Scaler.
func (s *Standard[B]) Transform(x *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return transform(&s.affine, x, false)
}

// InverseTransform implements Scaler.
func (s *Standard[B]) InverseTransform(x *tensor.Tensor[B]) (*tensor.Tensor[B], error) {
	return transform(&s.affine, x, true)
}

// Params returns the fitted per-column mean and standard deviation.
func (s *Standard[B]) Params() (offset, scale []float64) {
	return s.offset, s.scale
}

// Params returns the fitted per-column minimum and range.
func (s *MinMax[B]) Params() (offset, scale []float64) {
	return s.offset, s.scale
}

func transform[B tensor.Backend](a *affine, x *tensor.Tensor[B], inverse bool) (*tensor.Tensor[B], error) {
	if a.offset == nil {
		return nil, ErrNotAdapted
	}
	m, err := matrix(x)
	if err != nil {
		return nil, err
	}
	rows, cols := m.Dims()
	if cols != len(a.offset) {
		return nil, errors.Errorf("scaler adapted on %d columns, got %d", len(a.offset), cols)
	}

	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		if inverse {
			return v*a.scale[j] + a.offset[j]
		}
		return (v - a.offset[j]) / a.scale[j]
	}, m)
	return tensor.FromSlice(out.RawMatrix().Data, x.Shape().Clone(), x.Backend())
}

// matrix views a rank-1 or rank-2 tensor as a rows×cols matrix without copying.
func matrix[B tensor.Backend](x *tensor.Tensor[B]) (*mat.Dense, error) {
	shape := x.Shape()
	switch shape.Rank() {
	case 1:
		return mat.NewDense(shape[0], 1, x.Data()), nil
	case 2:
		return mat.NewDense(shape[0], shape[1], x.Data()), nil
	default:
		return nil, errors.Errorf("scaler expects [samples] or [samples, columns], got %v", shape)
	}
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
