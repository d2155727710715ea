package serialization

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Format constants.
const (
	MagicBytes      = "FFNT"
	FormatVersion   = 1
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // Size of the binary header preceding the JSON
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	DTypeFloat64    = "float64"
	Extension       = ".ffnt"
	bytesPerElement = 8
)

// Flags stored in the fixed header.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata included
)

// Header is the JSON header of a .ffnt file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	ModelName      string            `json:"model_name"`
	RunID          string            `json:"run_id"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch           int            `json:"epoch"`
	Step            int64          `json:"step"`
	Loss            float64        `json:"loss"`
	OptimizerType   string         `json:"optimizer_type"`
	OptimizerConfig map[string]any `json:"optimizer_config"`
	TrainingMeta    map[string]any `json:"training_meta"`
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`  // e.g. "0.weight"
	DType  string `json:"dtype"` // always "float64"
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// fixedHeader is the decoded form of the first 64 bytes of a file.
type fixedHeader struct {
	version    uint32
	flags      uint32
	headerSize uint64
	dataSize   uint64
	checksum   [ChecksumSize]byte
}

func (f *fixedHeader) encode() []byte {
	buf := make([]byte, FixedHeaderSize)
	copy(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(buf[4:8], f.version)
	binary.LittleEndian.PutUint32(buf[8:12], f.flags)
	// 0x0C-0x0F reserved
	binary.LittleEndian.PutUint64(buf[16:24], f.headerSize)
	binary.LittleEndian.PutUint64(buf[24:32], f.dataSize)
	copy(buf[ChecksumOffset:ChecksumOffset+ChecksumSize], f.checksum[:])
	return buf
}

func decodeFixedHeader(buf []byte) (*fixedHeader, error) {
	if len(buf) < FixedHeaderSize {
		return nil, errors.Errorf("fixed header too short: %d bytes", len(buf))
	}
	if string(buf[0:4]) != MagicBytes {
		return nil, errors.Wrapf(ErrInvalidMagic, "got %q, expected %q", string(buf[0:4]), MagicBytes)
	}
	f := &fixedHeader{
		version:    binary.LittleEndian.Uint32(buf[4:8]),
		flags:      binary.LittleEndian.Uint32(buf[8:12]),
		headerSize: binary.LittleEndian.Uint64(buf[16:24]),
		dataSize:   binary.LittleEndian.Uint64(buf[24:32]),
	}
	if f.version != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", f.version, FormatVersion)
	}
	if f.headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	copy(f.checksum[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])
	return f, nil
}

// dataOffset returns where tensor data starts for a JSON header of the given size.
func dataOffset(headerSize uint64) int64 {
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	pos := int64(FixedHeaderSize) + int64(headerSize)
	return pos + padding(pos)
}

func padding(pos int64) int64 {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}

func encodeFloats(dst []byte, values []float64) {
	for i, v := range values {
		binary.LittleEndian.PutUint64(dst[i*bytesPerElement:], math.Float64bits(v))
	}
}

func decodeFloats(dst []float64, src []byte) {
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*bytesPerElement:]))
	}
}
