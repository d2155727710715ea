package dataset

import (
	"io"
	"os"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// LoadCSV reads a CSV file with a header row. The target column becomes Y
// ([N, 1]); every other column is a feature. All columns must be numeric.
func LoadCSV[B tensor.Backend](path, target string, backend B, opts ...Option) (*Dataset[B], error) {
	//nolint:gosec // G304: dataset path is user supplied by design
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: failed to open CSV")
	}
	defer func() { _ = f.Close() }()
	ds, err := ReadCSV(f, target, backend, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: %s", path)
	}
	klog.V(1).Infof("loaded %s: %d samples, %d features, target %q", path, ds.Len(), ds.NumFeatures(), target)
	return ds, nil
}

// ReadCSV is LoadCSV on an io.Reader.
func ReadCSV[B tensor.Backend](r io.Reader, target string, backend B, opts ...Option) (*Dataset[B], error) {
	df := dataframe.ReadCSV(r, dataframe.HasHeader(true))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to parse CSV")
	}
	return FromDataFrame(df, target, backend, opts...)
}

// FromDataFrame converts a dataframe into a Dataset.
func FromDataFrame[B tensor.Backend](df dataframe.DataFrame, target string, backend B, opts ...Option) (*Dataset[B], error) {
	names := df.Names()
	if !slices.Contains(names, target) {
		return nil, errors.Errorf("target column %q not found in %v", target, names)
	}
	features := slices.DeleteFunc(slices.Clone(names), func(n string) bool { return n == target })
	if len(features) == 0 {
		return nil, errors.New("no feature columns")
	}

	rows := df.Nrow()
	if rows == 0 {
		return nil, errors.New("no rows")
	}
	xData := make([]float64, rows*len(features))
	for j, name := range features {
		values, err := numericColumn(df.Col(name))
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			xData[i*len(features)+j] = v
		}
	}
	yData, err := numericColumn(df.Col(target))
	if err != nil {
		return nil, err
	}

	x, err := tensor.FromSlice(xData, tensor.Shape{rows, len(features)}, backend)
	if err != nil {
		return nil, err
	}
	y, err := tensor.FromSlice(yData, tensor.Shape{rows, 1}, backend)
	if err != nil {
		return nil, err
	}
	ds, err := New(x, y, opts...)
	if err != nil {
		return nil, err
	}
	ds.names = features
	ds.target = target
	return ds, nil
}

func numericColumn(s series.Series) ([]float64, error) {
	switch s.Type() {
	case series.Float, series.Int, series.Bool:
	default:
		return nil, errors.Errorf("column %q is %s, expected a numeric column", s.Name, s.Type())
	}
	if s.HasNaN() {
		return nil, errors.Errorf("column %q has missing values", s.Name)
	}
	return s.Float(), nil
}
