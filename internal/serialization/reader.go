package serialization

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Reader reads tensors from a .ffnt file.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool
	ValidationLevel        ValidationLevel
}

// NewReader opens path with strict validation and checksum verification.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions opens path with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: the checkpoint path is user supplied by design
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	r := &Reader{file: file, opts: opts}
	if err := r.parse(); err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return r, nil
}

func (r *Reader) parse() error {
	buf := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, buf); err != nil {
		return errors.Wrap(err, "failed to read fixed header")
	}
	fixed, err := decodeFixedHeader(buf)
	if err != nil {
		return err
	}
	r.flags = fixed.flags

	headerJSON := make([]byte, fixed.headerSize)
	if _, err := io.ReadFull(r.file, headerJSON); err != nil {
		return errors.Wrap(err, "failed to read header")
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return errors.Wrap(err, "failed to parse header JSON")
	}

	r.dataOffset = dataOffset(fixed.headerSize)
	info, err := r.file.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat file")
	}
	r.dataSize = info.Size() - r.dataOffset
	//nolint:gosec // G115: dataSize is non-negative once checked
	if r.dataSize < 0 || uint64(r.dataSize) != fixed.dataSize {
		return &ValidationError{
			Type:    "truncated",
			Details: "data section size does not match the fixed header",
		}
	}

	if !r.opts.SkipChecksumValidation {
		section := io.NewSectionReader(r.file, r.dataOffset, r.dataSize)
		computed, err := ComputeChecksumReader(section)
		if err != nil {
			return errors.Wrap(err, "failed to read tensor data for checksum")
		}
		if err := ValidateChecksum(computed, fixed.checksum); err != nil {
			return err
		}
	}
	return ValidateHeader(&r.header, r.dataSize, r.opts.ValidationLevel)
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// Flags returns the flags of the fixed header.
func (r *Reader) Flags() uint32 {
	return r.flags
}

// TensorNames returns the names of all tensors, in file order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the header entry of a tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for _, meta := range r.header.Tensors {
		if meta.Name == name {
			return &meta, nil
		}
	}
	return nil, errors.Wrap(ErrTensorNotFound, name)
}

// LoadTensor reads a single tensor.
func (r *Reader) LoadTensor(name string) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, errors.Wrap(ErrClosed, "reader")
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(buf, r.dataOffset+meta.Offset); err != nil {
		return nil, errors.Wrapf(err, "failed to read tensor %s", name)
	}
	return decodeTensor(*meta, buf)
}

// ReadStateDict reads every tensor into a state dictionary.
func (r *Reader) ReadStateDict() (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, err
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}

// Close closes the reader and the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadFrom decodes a whole .ffnt stream, verifying its checksum.
func ReadFrom(src io.Reader) (map[string]*tensor.RawTensor, Header, error) {
	buf := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read fixed header")
	}
	fixed, err := decodeFixedHeader(buf)
	if err != nil {
		return nil, Header{}, err
	}

	headerJSON := make([]byte, fixed.headerSize)
	if _, err := io.ReadFull(src, headerJSON); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read header")
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to parse header JSON")
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	pad := padding(int64(FixedHeaderSize) + int64(fixed.headerSize))
	if _, err := io.CopyN(io.Discard, src, pad); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read padding")
	}
	data := make([]byte, fixed.dataSize)
	if _, err := io.ReadFull(src, data); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read tensor data")
	}
	if err := ValidateChecksum(ComputeChecksum(data), fixed.checksum); err != nil {
		return nil, Header{}, err
	}
	if err := ValidateHeader(&header, int64(len(data)), ValidationStrict); err != nil {
		return nil, Header{}, err
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw, err := decodeTensor(meta, data[meta.Offset:meta.Offset+meta.Size])
		if err != nil {
			return nil, Header{}, err
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, header, nil
}

func decodeTensor(meta TensorMeta, buf []byte) (*tensor.RawTensor, error) {
	if err := ValidateTensorMeta(meta); err != nil {
		return nil, err
	}
	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape))
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %s", meta.Name)
	}
	decodeFloats(raw.Data(), buf)
	return raw, nil
}
