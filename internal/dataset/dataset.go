// Package dataset holds in-memory (features, targets) pairs and yields
// mini-batches for training.
package dataset

import (
	"iter"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// DefaultBatchSize is used when no batch size is configured.
const DefaultBatchSize = 32

// Dataset is a set of samples: features X [N, F] and targets Y [N, T].
// Row i of X belongs with row i of Y.
type Dataset[B tensor.Backend] struct {
	x, y      *tensor.Tensor[B]
	names     []string
	target    string
	batchSize int
	rng       *rand.Rand
}

// Option configures a Dataset.
type Option func(*options)

type options struct {
	batchSize int
	shuffle   bool
	seed      int64
}

// WithBatchSize sets the mini-batch size (default DefaultBatchSize).
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithShuffle reshuffles the rows for every pass over Batches, and before
// Split, using a rand source seeded with seed.
func WithShuffle(seed int64) Option {
	return func(o *options) {
		o.shuffle = true
		o.seed = seed
	}
}

// New creates a dataset. Targets of shape [N] are reshaped to [N, 1].
func New[B tensor.Backend](x, y *tensor.Tensor[B], opts ...Option) (*Dataset[B], error) {
	o := options{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.batchSize <= 0 {
		return nil, errors.Errorf("dataset: batch size must be positive, got %d", o.batchSize)
	}
	if x.Shape().Rank() != 2 {
		return nil, errors.Errorf("dataset: expected features [samples, features], got %v", x.Shape())
	}
	if y.Shape().Rank() == 1 {
		y = y.Reshape(-1, 1)
	}
	if y.Shape().Rank() != 2 || y.Shape()[0] != x.Shape()[0] {
		return nil, errors.Errorf("dataset: %d samples but targets have shape %v", x.Shape()[0], y.Shape())
	}
	d := &Dataset[B]{x: x, y: y, batchSize: o.batchSize}
	if o.shuffle {
		d.rng = rand.New(rand.NewSource(o.seed))
	}
	return d, nil
}

// Len returns the number of samples.
func (d *Dataset[B]) Len() int {
	return d.x.Shape()[0]
}

// NumFeatures returns the number of feature columns.
func (d *Dataset[B]) NumFeatures() int {
	return d.x.Shape()[1]
}

// BatchSize returns the mini-batch size.
func (d *Dataset[B]) BatchSize() int {
	return d.batchSize
}

// NumBatches returns the number of batches per pass; the last may be short.
func (d *Dataset[B]) NumBatches() int {
	return (d.Len() + d.batchSize - 1) / d.batchSize
}

// X returns the feature tensor.
func (d *Dataset[B]) X() *tensor.Tensor[B] {
	return d.x
}

// Y returns the target tensor.
func (d *Dataset[B]) Y() *tensor.Tensor[B] {
	return d.y
}

// FeatureNames returns the feature column names, when loaded from a table.
func (d *Dataset[B]) FeatureNames() []string {
	return d.names
}

// Target returns the target column name, when loaded from a table.
func (d *Dataset[B]) Target() string {
	return d.target
}

// Batches yields (features, targets) mini-batches covering every sample once.
func (d *Dataset[B]) Batches() iter.Seq2[*tensor.Tensor[B], *tensor.Tensor[B]] {
	return func(yield func(*tensor.Tensor[B], *tensor.Tensor[B]) bool) {
		order := d.order()
		for start := 0; start < len(order); start += d.batchSize {
			end := min(start+d.batchSize, len(order))
			idx := order[start:end]
			if !yield(gather(d.x, idx), gather(d.y, idx)) {
				return
			}
		}
	}
}

// Split returns (train, validation) with the last validationRatio of the rows
// (after one shuffle, if enabled) held out. Both halves share the batch size;
// the training half keeps the shuffling source.
func (d *Dataset[B]) Split(validationRatio float64) (train, validation *Dataset[B], err error) {
	if validationRatio <= 0 || validationRatio >= 1 {
		return nil, nil, errors.Errorf("dataset: validation ratio must be in (0, 1), got %g", validationRatio)
	}
	n := d.Len()
	cut := int(float64(n) * (1 - validationRatio))
	if cut == 0 || cut == n {
		return nil, nil, errors.Errorf("dataset: %d samples cannot be split with ratio %g", n, validationRatio)
	}
	order := d.order()
	train = d.subset(order[:cut])
	train.rng = d.rng
	validation = d.subset(order[cut:])
	return train, validation, nil
}

// WithFeatures returns a dataset with the same targets, column names, batch
// size and shuffling source, but features x. x must have one row per sample.
func (d *Dataset[B]) WithFeatures(x *tensor.Tensor[B]) (*Dataset[B], error) {
	if x.Shape().Rank() != 2 || x.Shape()[0] != d.Len() {
		return nil, errors.Errorf("dataset: features %v do not match %d samples", x.Shape(), d.Len())
	}
	out := *d
	out.x = x
	return &out, nil
}

func (d *Dataset[B]) subset(idx []int) *Dataset[B] {
	return &Dataset[B]{
		x:         gather(d.x, idx),
		y:         gather(d.y, idx),
		names:     d.names,
		target:    d.target,
		batchSize: d.batchSize,
	}
}

// order returns the row order of the next pass.
func (d *Dataset[B]) order() []int {
	if d.rng != nil {
		return d.rng.Perm(d.Len())
	}
	order := make([]int, d.Len())
	for i := range order {
		order[i] = i
	}
	return order
}

// gather copies the rows idx of a [N, C] tensor into a new [len(idx), C] tensor.
func gather[B tensor.Backend](t *tensor.Tensor[B], idx []int) *tensor.Tensor[B] {
	cols := t.Shape()[1]
	src := t.Data()
	out := tensor.Zeros(tensor.Shape{len(idx), cols}, t.Backend())
	dst := out.Data()
	for i, row := range idx {
		copy(dst[i*cols:(i+1)*cols], src[row*cols:(row+1)*cols])
	}
	return out
}
