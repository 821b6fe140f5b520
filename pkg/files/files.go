// Package files reads local files and encodes them for inclusion in chat
// requests.
package files

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// DefaultMaxSize is the largest file ReadAndEncode accepts by default.
const DefaultMaxSize = 20 << 20

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

var (
	// ErrNotRegular is returned for directories and other non-regular files.
	ErrNotRegular = errors.New("not a regular file")

	// ErrTooLarge is returned when a file exceeds the size limit.
	ErrTooLarge = errors.New("file too large")
)

// Encoded is a base64-encoded file.
type Encoded struct {
	Name      string `json:"name"`
	Data      string `json:"data"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// DataURL returns the file as a data: URL, the form chat endpoints accept for
// inline images.
func (e Encoded) DataURL() string {
	return "data:" + e.MediaType + ";base64," + e.Data
}

// ReadAndEncode reads the file at path and returns it base64-encoded with its
// sniffed media type. Files larger than DefaultMaxSize are rejected.
func ReadAndEncode(path string) (Encoded, error) {
	return ReadAndEncodeLimit(path, DefaultMaxSize)
}

// ReadAndEncodeLimit is ReadAndEncode with an explicit size limit in bytes.
func ReadAndEncodeLimit(path string, maxSize int64) (Encoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Encoded{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Encoded{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return Encoded{}, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return Encoded{}, fmt.Errorf("%s is %d bytes, limit %d: %w", path, info.Size(), maxSize, ErrTooLarge)
	}

	enc, err := Encode(filepath.Base(path), f, maxSize)
	if err != nil {
		return Encoded{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return enc, nil
}

// Encode reads r to the end and encodes it as the file name. At most maxSize
// bytes are accepted when maxSize is positive.
func Encode(name string, r io.Reader, maxSize int64) (Encoded, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Encoded{}, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return Encoded{}, fmt.Errorf("%s exceeds %d bytes: %w", name, maxSize, ErrTooLarge)
	}

	return Encoded{
		Name:      name,
		Data:      base64.StdEncoding.EncodeToString(data),
		MediaType: mediaType(name, data),
		Size:      int64(len(data)),
	}, nil
}

// mediaType sniffs the content first and falls back to the extension when
// sniffing only finds generic bytes or text.
func mediaType(path string, data []byte) string {
	sniffed := http.DetectContentType(data[:min(len(data), sniffLen)])
	if sniffed != "application/octet-stream" && sniffed != "text/plain; charset=utf-8" {
		return sniffed
	}

	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return sniffed
}
