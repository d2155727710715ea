package serialization

import (
	"bytes"
	"encoding/json"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ffnet-ml/ffnet/internal/tensor"
)

// Writer writes a state dictionary to a .ffnt file.
type Writer struct {
	file   *os.File
	header Header
	closed bool
}

// NewWriter creates (or truncates) the file at path.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: the checkpoint path is user supplied by design
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file")
	}
	return &Writer{file: file}, nil
}

// WriteStateDict writes stateDict with the given header.
//
// Tensors and FormatVersion are filled in by the writer. An empty RunID is replaced
// by a fresh UUID and a zero CreatedAt by the current time; the completed
// header is available from Header afterwards.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return errors.Wrap(ErrClosed, "writer")
	}
	written, err := WriteTo(w.file, stateDict, header)
	if err != nil {
		return err
	}
	w.header = written
	return nil
}

// Header returns the header of the last successful WriteStateDict.
func (w *Writer) Header() Header {
	return w.header
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// WriteTo encodes stateDict and header to dst and returns the completed header.
func WriteTo(dst io.Writer, stateDict map[string]*tensor.RawTensor, header Header) (Header, error) {
	header.FormatVersion = FormatVersion
	if header.RunID == "" {
		header.RunID = uuid.NewString()
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	names := slices.Sorted(maps.Keys(stateDict))
	header.Tensors = make([]TensorMeta, 0, len(names))
	var offset int64
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return Header{}, err
		}
		raw := stateDict[name]
		size := int64(raw.NumElements() * bytesPerElement)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int(raw.Shape().Clone()),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	data := make([]byte, offset)
	for i, name := range names {
		meta := header.Tensors[i]
		encodeFloats(data[meta.Offset:meta.Offset+meta.Size], stateDict[name].Data())
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return Header{}, errors.Wrap(err, "failed to marshal header")
	}
	if len(headerJSON) > MaxHeaderSize {
		return Header{}, ErrHeaderTooLarge
	}

	fixed := fixedHeader{
		version:    FormatVersion,
		flags:      headerFlags(&header),
		headerSize: uint64(len(headerJSON)),
		dataSize:   uint64(len(data)),
		checksum:   ComputeChecksum(data),
	}

	var buf bytes.Buffer
	buf.Write(fixed.encode())
	buf.Write(headerJSON)
	buf.Write(make([]byte, padding(int64(buf.Len()))))
	buf.Write(data)
	if _, err := buf.WriteTo(dst); err != nil {
		return Header{}, errors.Wrap(err, "failed to write checkpoint")
	}
	return header, nil
}

func headerFlags(h *Header) uint32 {
	var flags uint32
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if h.CheckpointMeta != nil && h.CheckpointMeta.OptimizerType != "" {
		flags |= FlagHasOptimizer
	}
	return flags
}
