// Package serialization reads and writes named tensors in the SafeTensors
// format, used for ray batches, evaluation inputs and trained proposal
// weights.
//
// Format:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw little-endian bytes]
//
// The writer stores the SHA-256 of the data section under the "sha256"
// metadata key; Open verifies it when present.
//
// Example:
//
//	err := serialization.WriteFile("batch.safetensors", tensors, map[string]string{"kind": "ray_batch"})
//
//	r, err := serialization.Open("batch.safetensors")
//	defer r.Close()
//	weights, err := r.Load("weights")
package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/nerfloss/internal/tensor"
)

const metadataKey = "__metadata__"

// TensorInfo describes a tensor in the SafeTensors header.
type TensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) within the data section
}

// dtypeNames maps supported data types to their SafeTensors names.
var dtypeNames = map[tensor.DataType]string{
	tensor.Float32: "F32",
	tensor.Float64: "F64",
	tensor.Int32:   "I32",
	tensor.Bool:    "BOOL",
}

func dtypeFromName(name string) (tensor.DataType, error) {
	for dt, n := range dtypeNames {
		if n == name {
			return dt, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedDType, name)
}

// WriteFile writes tensors to path. Tensors are stored in alphabetical
// order by name.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	//nolint:gosec // G304: output path is chosen by the caller.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(f, tensors, metadata); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write encodes tensors in SafeTensors format to w.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var data bytes.Buffer
	header := make(map[string]any, len(names)+1)
	for _, name := range names {
		raw := tensors[name]
		dtype, ok := dtypeNames[raw.DType()]
		if !ok {
			return fmt.Errorf("tensor %s: %w: %s", name, ErrUnsupportedDType, raw.DType())
		}
		start := int64(data.Len())
		data.Write(raw.Data())
		header[name] = TensorInfo{
			DType:       dtype,
			Shape:       append([]int{}, raw.Shape()...),
			DataOffsets: [2]int64{start, int64(data.Len())},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	sum := ComputeChecksum(data.Bytes())
	meta[ChecksumKey] = hex.EncodeToString(sum[:])
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// Reader gives random access to the tensors of a SafeTensors file.
type Reader struct {
	file       *os.File
	metadata   map[string]string
	tensors    map[string]TensorInfo
	dataOffset int64
}

// Open parses the header of the file at path and validates tensor names,
// offsets and the data checksum.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: input path is chosen by the caller.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &Reader{file: file}
	if err := r.parse(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) parse() error {
	stat, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(r.file, binary.LittleEndian, &headerSize); err != nil {
		return fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize || int64(headerSize) > stat.Size()-8 { //nolint:gosec // G115: bounded by MaxHeaderSize.
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &entries); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r.tensors = make(map[string]TensorInfo, len(entries))
	for key, value := range entries {
		if key == metadataKey {
			if err := json.Unmarshal(value, &r.metadata); err != nil {
				return fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		if err := ValidateTensorName(key); err != nil {
			return err
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to parse tensor %s: %w", key, err)
		}
		r.tensors[key] = info
	}

	r.dataOffset = 8 + int64(headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize.
	dataSize := stat.Size() - r.dataOffset

	metas := make([]TensorMeta, 0, len(r.tensors))
	for name, info := range r.tensors {
		metas = append(metas, TensorMeta{
			Name:   name,
			Offset: info.DataOffsets[0],
			Size:   info.DataOffsets[1] - info.DataOffsets[0],
		})
	}
	if err := ValidateTensorOffsets(metas, dataSize); err != nil {
		return err
	}

	if stored, ok := r.metadata[ChecksumKey]; ok {
		sum, err := ComputeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, dataSize))
		if err != nil {
			return fmt.Errorf("failed to checksum data: %w", err)
		}
		if err := ValidateChecksum(sum, stored); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Metadata returns the header metadata, including the checksum entry.
func (r *Reader) Metadata() map[string]string {
	return r.metadata
}

// Names returns the tensor names in alphabetical order.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.tensors))
	for name := range r.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the header entry for name.
func (r *Reader) Info(name string) (TensorInfo, error) {
	info, ok := r.tensors[name]
	if !ok {
		return TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return info, nil
}

// Load reads the tensor called name into a new CPU RawTensor.
func (r *Reader) Load(name string) (*tensor.RawTensor, error) {
	info, err := r.Info(name)
	if err != nil {
		return nil, err
	}
	dtype, err := dtypeFromName(info.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	raw, err := tensor.NewRaw(tensor.Shape(info.Shape), dtype, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	size := info.DataOffsets[1] - info.DataOffsets[0]
	if size != int64(raw.ByteSize()) {
		return nil, &ValidationError{
			Kind:    ErrOutOfBounds,
			Tensor:  name,
			Details: fmt.Sprintf("shape %v needs %d bytes, header gives %d", info.Shape, raw.ByteSize(), size),
		}
	}

	if _, err := r.file.ReadAt(raw.Data(), r.dataOffset+info.DataOffsets[0]); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}
	return raw, nil
}

// LoadAll reads every tensor in the file.
func (r *Reader) LoadAll() (map[string]*tensor.RawTensor, error) {
	out := make(map[string]*tensor.RawTensor, len(r.tensors))
	for _, name := range r.Names() {
		raw, err := r.Load(name)
		if err != nil {
			return nil, err
		}
		out[name] = raw
	}
	return out, nil
}
