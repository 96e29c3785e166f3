package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/tensor"
)

func newRaw[T tensor.DType](t *testing.T, data []T, shape ...int) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.DataTypeOf[T](), tensor.CPU)
	require.NoError(t, err)
	copy(tensor.Slice[T](raw), data)
	return raw
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.safetensors")
	tensors := map[string]*tensor.RawTensor{
		"weights":    newRaw(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, 2, 3),
		"proposal.0": newRaw(t, []float32{1, 2}, 2),
		"indices":    newRaw(t, []int32{-1, 7, 3}, 3),
		"mask":       newRaw(t, []bool{true, false}, 2, 1),
		"step":       newRaw(t, []int32{42}),
	}

	require.NoError(t, WriteFile(path, tensors, map[string]string{"kind": "ray_batch"}))

	r, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, []string{"indices", "mask", "proposal.0", "step", "weights"}, r.Names())
	assert.Equal(t, "ray_batch", r.Metadata()["kind"])
	assert.Len(t, r.Metadata()[ChecksumKey], 64)

	info, err := r.Info("weights")
	require.NoError(t, err)
	assert.Equal(t, "F64", info.DType)
	assert.Equal(t, []int{2, 3}, info.Shape)

	all, err := r.LoadAll()
	require.NoError(t, err)
	for name, want := range tensors {
		got := all[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.DType(), got.DType(), name)
		assert.True(t, want.Shape().Equal(got.Shape()), name)
		assert.Equal(t, want.Data(), got.Data(), name)
	}

	_, err = r.Load("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestWrite_DeterministicOrder(t *testing.T) {
	tensors := map[string]*tensor.RawTensor{
		"b": newRaw(t, []float32{1}, 1),
		"a": newRaw(t, []float32{2}, 1),
	}

	var first, second bytes.Buffer
	require.NoError(t, Write(&first, tensors, nil))
	require.NoError(t, Write(&second, tensors, nil))
	assert.Equal(t, first.Bytes(), second.Bytes())

	// "a" is stored first.
	data := first.Bytes()
	assert.Equal(t, []byte{0, 0, 0, 0x40, 0, 0, 0x80, 0x3f}, data[len(data)-8:])
}

func TestWrite_RejectsInvalidNames(t *testing.T) {
	for _, name := range []string{"", "../x", "a/b", "__metadata__"} {
		err := Write(&bytes.Buffer{}, map[string]*tensor.RawTensor{name: newRaw(t, []float32{1}, 1)}, nil)
		assert.ErrorIs(t, err, ErrInvalidTensorName, "name %q", name)
	}
}

func TestOpen_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.safetensors")
	require.NoError(t, WriteFile(path, map[string]*tensor.RawTensor{
		"x": newRaw(t, []float64{1, 2, 3}, 3),
	}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestOpen_RejectsBadHeaders(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, header string, payload []byte) string {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(header))))
		buf.WriteString(header)
		buf.Write(payload)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
		return path
	}

	tests := []struct {
		name    string
		header  string
		payload []byte
		want    error
	}{
		{
			name:    "out of bounds",
			header:  `{"x":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`,
			payload: make([]byte, 8),
			want:    ErrOutOfBounds,
		},
		{
			name:    "overlap",
			header:  `{"x":{"dtype":"F32","shape":[2],"data_offsets":[0,8]},"y":{"dtype":"F32","shape":[2],"data_offsets":[4,12]}}`,
			payload: make([]byte, 12),
			want:    ErrOffsetOverlap,
		},
		{
			name:    "traversal",
			header:  `{"../x":{"dtype":"F32","shape":[1],"data_offsets":[0,4]}}`,
			payload: make([]byte, 4),
			want:    ErrInvalidTensorName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(strings.ReplaceAll(tt.name, " ", "_"), tt.header, tt.payload)
			_, err := Open(path)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("header size", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(1<<40)))
		path := filepath.Join(dir, "huge")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
		_, err := Open(path)
		assert.ErrorIs(t, err, ErrHeaderTooLarge)
	})
}

func TestLoad_UnsupportedAndMismatchedEntries(t *testing.T) {
	dir := t.TempDir()
	header := `{"h":{"dtype":"F16","shape":[2],"data_offsets":[0,4]},"s":{"dtype":"F32","shape":[3],"data_offsets":[4,8]}}`
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(header))))
	buf.WriteString(header)
	buf.Write(make([]byte, 8))
	path := filepath.Join(dir, "entries")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.Load("h")
	assert.ErrorIs(t, err, ErrUnsupportedDType)

	_, err = r.Load("s")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "s", verr.Tensor)
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		want     error
	}{
		{
			name:     "adjacent",
			tensors:  []TensorMeta{{"a", 0, 100}, {"b", 100, 100}},
			dataSize: 200,
		},
		{
			name:     "overlap by one byte",
			tensors:  []TensorMeta{{"a", 0, 100}, {"b", 99, 100}},
			dataSize: 200,
			want:     ErrOffsetOverlap,
		},
		{
			name:     "negative",
			tensors:  []TensorMeta{{"a", -1, 10}},
			dataSize: 200,
			want:     ErrNegativeOffset,
		},
		{
			name:     "past end",
			tensors:  []TensorMeta{{"a", 150, 100}},
			dataSize: 200,
			want:     ErrOutOfBounds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Kind: ErrOffsetOverlap, Tensor: "a", Tensor2: "b", Details: "x"}
	assert.Equal(t, `tensor offsets overlap: tensors "a" and "b": x`, err.Error())

	err = &ValidationError{Kind: ErrTooManyTensors, Details: "y"}
	assert.Equal(t, "too many tensors in file: y", err.Error())
}
