// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/postoffice/lib/codec"
)

// Compression identifies how an archive body is compressed. The value
// is stored in the archive header.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

// CompressionFor picks the compression from an archive file name:
// .lz4 selects LZ4, anything else zstd.
func CompressionFor(path string) Compression {
	if filepath.Ext(path) == ".lz4" {
		return CompressionLZ4
	}
	return CompressionZstd
}

// archiveMagic starts every run archive. It is followed by one
// Compression byte and the uncompressed body length as a
// little-endian uint32.
var archiveMagic = []byte("PORUN1")

const headerSize = 6 + 1 + 4

var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("report: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("report: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodeArchive encodes run as CBOR and compresses it. Bodies that do
// not shrink are stored uncompressed.
func EncodeArchive(run Run, compression Compression) ([]byte, error) {
	body, err := codec.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("encoding run: %w", err)
	}

	compressed, err := compress(body, compression)
	if errors.Is(err, errIncompressible) {
		compression, compressed, err = CompressionNone, body, nil
	}
	if err != nil {
		return nil, err
	}

	archive := make([]byte, headerSize, headerSize+len(compressed))
	copy(archive, archiveMagic)
	archive[len(archiveMagic)] = byte(compression)
	binary.LittleEndian.PutUint32(archive[len(archiveMagic)+1:], uint32(len(body)))
	return append(archive, compressed...), nil
}

// DecodeArchive reverses EncodeArchive.
func DecodeArchive(archive []byte) (Run, error) {
	var run Run
	if len(archive) < headerSize || !bytes.Equal(archive[:len(archiveMagic)], archiveMagic) {
		return run, errors.New("not a run archive")
	}
	compression := Compression(archive[len(archiveMagic)])
	size := int(binary.LittleEndian.Uint32(archive[len(archiveMagic)+1:]))

	body, err := decompress(archive[headerSize:], compression, size)
	if err != nil {
		return run, err
	}
	if err := codec.Unmarshal(body, &run); err != nil {
		return run, fmt.Errorf("decoding run: %w", err)
	}
	return run, nil
}

// WriteArchive writes the run archive to path, compressed as the file
// extension asks.
func WriteArchive(path string, run Run) error {
	archive, err := EncodeArchive(run, CompressionFor(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, archive, 0o644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

// ReadArchive reads a run archive written by WriteArchive.
func ReadArchive(path string) (Run, error) {
	archive, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("reading archive: %w", err)
	}
	return DecodeArchive(archive)
}

func compress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}

func decompress(compressed []byte, compression Compression, size int) ([]byte, error) {
	switch compression {
	case CompressionNone:
		if len(compressed) != size {
			return nil, fmt.Errorf("uncompressed archive: size %d does not match expected %d", len(compressed), size)
		}
		return compressed, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}
