package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

func raw(t *testing.T, data []float64, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRawFrom(data, tensor.Shape(shape))
	require.NoError(t, err)
	return r
}

func sampleStateDict(t *testing.T) map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"0.weight":              raw(t, []float64{0.1, -0.2, 0.3, 1e-300, -4.5, 6}, 3, 2),
		"0.bias":                raw(t, []float64{0, 1, -1}, 3),
		"optimizer.0.bias.m":    raw(t, []float64{0.5, 0.25, 0.125}, 3),
		"optimizer.0.bias.step": raw(t, []float64{7}, 1),
	}
}

func writeFile(t *testing.T, stateDict map[string]*tensor.RawTensor, header Header) (string, Header) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model"+Extension)
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteStateDict(stateDict, header))
	require.NoError(t, w.Close())
	return path, w.Header()
}

func TestRoundTrip(t *testing.T) {
	sd := sampleStateDict(t)
	path, written := writeFile(t, sd, Header{
		ModelName: "mlp",
		Metadata:  map[string]string{"layers": "linear,relu,linear"},
		CheckpointMeta: &CheckpointMeta{
			Epoch:           3,
			Step:            120,
			Loss:            0.25,
			OptimizerType:   "adam",
			OptimizerConfig: map[string]any{"lr": 0.002},
		},
	})

	_, err := uuid.Parse(written.RunID)
	require.NoError(t, err, "a run id is generated")
	assert.False(t, written.CreatedAt.IsZero())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	h := r.Header()
	assert.Equal(t, FormatVersion, h.FormatVersion)
	assert.Equal(t, "mlp", h.ModelName)
	assert.Equal(t, written.RunID, h.RunID)
	assert.Equal(t, "linear,relu,linear", r.Metadata()["layers"])
	require.NotNil(t, h.CheckpointMeta)
	assert.Equal(t, 3, h.CheckpointMeta.Epoch)
	assert.Equal(t, int64(120), h.CheckpointMeta.Step)
	assert.InDelta(t, 0.002, h.CheckpointMeta.OptimizerConfig["lr"], 0)
	assert.Equal(t, FlagHasMetadata|FlagHasOptimizer, r.Flags())

	// Name order.
	assert.Equal(t, []string{"0.bias", "0.weight", "optimizer.0.bias.m", "optimizer.0.bias.step"}, r.TensorNames())

	loaded, err := r.ReadStateDict()
	require.NoError(t, err)
	require.Len(t, loaded, len(sd))
	for name, want := range sd {
		got := loaded[name]
		assert.Equal(t, want.Shape(), got.Shape(), name)
		assert.Equal(t, want.Data(), got.Data(), name)
	}

	_, err = r.LoadTensor("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestRunIDIsKept(t *testing.T) {
	_, written := writeFile(t, sampleStateDict(t), Header{RunID: "resume-1"})
	assert.Equal(t, "resume-1", written.RunID)
}

func TestDeterministicData(t *testing.T) {
	var a, b bytes.Buffer
	h := Header{RunID: "x"}
	_, err := WriteTo(&a, sampleStateDict(t), h)
	require.NoError(t, err)
	_, err = WriteTo(&b, sampleStateDict(t), h)
	require.NoError(t, err)
	assert.Equal(t, a.Bytes()[ChecksumOffset:ChecksumOffset+ChecksumSize], b.Bytes()[ChecksumOffset:ChecksumOffset+ChecksumSize])
}

func TestDataIsAligned(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteTo(&buf, sampleStateDict(t), Header{})
	require.NoError(t, err)

	fixed, err := decodeFixedHeader(buf.Bytes())
	require.NoError(t, err)
	offset := dataOffset(fixed.headerSize)
	assert.Zero(t, offset%HeaderAlignment)
	assert.Equal(t, int64(buf.Len()), offset+int64(fixed.dataSize))
}

func TestStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sd := sampleStateDict(t)
	_, err := WriteTo(&buf, sd, Header{ModelName: "stream"})
	require.NoError(t, err)

	loaded, header, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, "stream", header.ModelName)
	assert.Equal(t, sd["0.weight"].Data(), loaded["0.weight"].Data())
}

func TestCorruptionDetected(t *testing.T) {
	path, _ := writeFile(t, sampleStateDict(t), Header{})
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip a bit in the last data byte.
	content[len(content)-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, content, 0o600))

	_, err = NewReader(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	// Skipping the checksum loads the (corrupted) values.
	r, err := NewReaderWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	_ = r.Close()

	_, _, err = ReadFrom(bytes.NewReader(content))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	badMagic := filepath.Join(dir, "magic.ffnt")
	require.NoError(t, os.WriteFile(badMagic, make([]byte, FixedHeaderSize), 0o600))
	_, err := NewReader(badMagic)
	assert.ErrorIs(t, err, ErrInvalidMagic)

	var buf bytes.Buffer
	_, err = WriteTo(&buf, sampleStateDict(t), Header{})
	require.NoError(t, err)
	content := buf.Bytes()
	content[4] = 9 // version
	_, _, err = ReadFrom(bytes.NewReader(content))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	truncated := filepath.Join(dir, "short.ffnt")
	require.NoError(t, os.WriteFile(truncated, []byte("FFNT"), 0o600))
	_, err = NewReader(truncated)
	assert.Error(t, err)

	_, err = NewReader(filepath.Join(dir, "missing.ffnt"))
	assert.Error(t, err)
}

func TestClosed(t *testing.T) {
	path, _ := writeFile(t, sampleStateDict(t), Header{})
	r, err := NewReader(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.LoadTensor("0.bias")
	assert.ErrorIs(t, err, ErrClosed)

	w, err := NewWriter(filepath.Join(t.TempDir(), "w.ffnt"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteStateDict(sampleStateDict(t), Header{}), ErrClosed)
}

func TestWriterRejectsBadNames(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteTo(&buf, map[string]*tensor.RawTensor{"../escape": raw(t, []float64{1}, 1)}, Header{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "invalid_name", verr.Type)
}

func TestChecksum(t *testing.T) {
	// SHA-256("abc")
	want, err := hex.DecodeString("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	require.NoError(t, err)
	sum := ComputeChecksum([]byte("abc"))
	assert.Equal(t, want, sum[:])

	fromReader, err := ComputeChecksumReader(bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, sum, fromReader)
	assert.Equal(t, sha256.Sum256([]byte("abc")), sum)

	assert.NoError(t, ValidateChecksum(sum, sum))
	assert.ErrorIs(t, ValidateChecksum(sum, ComputeChecksum([]byte("abd"))), ErrChecksumMismatch)
}
