package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/23skdu/longbow-qfix/internal/tensor"
)

// Write serialises tensors as F32 GGUF v3 with string metadata. Dimensions are written
// innermost first as GGUF expects.
func Write(w io.Writer, meta map[string]string, tensors []*tensor.WeightTensor) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	var werr error
	put := func(v interface{}) {
		if werr == nil {
			werr = binary.Write(bw, le, v)
		}
	}
	putString := func(s string) {
		put(uint64(len(s)))
		if werr == nil {
			_, werr = bw.WriteString(s)
		}
	}

	put(uint32(GGUFMagic))
	put(uint32(GGUFVersion))
	put(uint64(len(tensors)))
	put(uint64(len(meta) + 1))

	putString("general.alignment")
	put(uint32(GGUFMetadataValueTypeUint32))
	put(uint32(DefaultAlignment))

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		putString(k)
		put(uint32(GGUFMetadataValueTypeString))
		putString(meta[k])
	}

	headerLen := uint64(24) + 8 + uint64(len("general.alignment")) + 4 + 4
	for _, k := range keys {
		headerLen += 8 + uint64(len(k)) + 4 + 8 + uint64(len(meta[k]))
	}

	offset := uint64(0)
	offsets := make([]uint64, len(tensors))
	for i, t := range tensors {
		offsets[i] = offset
		putString(t.Name)
		put(uint32(len(t.Dims)))
		for j := len(t.Dims) - 1; j >= 0; j-- {
			put(uint64(t.Dims[j]))
		}
		put(uint32(GGMLTypeF32))
		put(offset)

		headerLen += 8 + uint64(len(t.Name)) + 4 + 8*uint64(len(t.Dims)) + 4 + 8
		offset += align(uint64(t.NumElements()) * 4)
	}

	if pad := align(headerLen) - headerLen; pad > 0 && werr == nil {
		_, werr = bw.Write(make([]byte, pad))
	}

	for i, t := range tensors {
		written := uint64(0)
		for _, v := range t.Data {
			put(math.Float32bits(float32(v)))
			written += 4
		}
		if i < len(tensors)-1 && werr == nil {
			if pad := offsets[i+1] - offsets[i] - written; pad > 0 {
				_, werr = bw.Write(make([]byte, pad))
			}
		}
	}

	if werr != nil {
		return fmt.Errorf("write gguf: %w", werr)
	}
	return bw.Flush()
}

// WriteFile writes a GGUF file at path.
func WriteFile(path string, meta map[string]string, tensors []*tensor.WeightTensor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, meta, tensors); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func align(n uint64) uint64 {
	if rem := n % DefaultAlignment; rem != 0 {
		return n + DefaultAlignment - rem
	}
	return n
}
