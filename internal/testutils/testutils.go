// Package testutils provides shared test infrastructure.
package testutils

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// TestFile defines a test file with name and data.
type TestFile struct {
	Name string
	Data []byte
}

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t testing.TB, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 251)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// ServerOptions alters how a test server answers.
type ServerOptions struct {
	// Stall sends only the first half of every range and then holds the
	// response open until the client goes away or Release is called.
	Stall bool

	// NoContentLength omits Content-Length from HEAD responses.
	NoContentLength bool

	// NoAcceptRanges omits the Accept-Ranges header from HEAD responses.
	NoAcceptRanges bool

	// FailRanges answers GET requests whose range starts at one of the keys
	// with the mapped status code.
	FailRanges map[int64]int
}

// Server is an HTTP server serving test files with range request support.
// It records the Range header of every GET request.
type Server struct {
	*httptest.Server

	files map[string][]byte
	opts  ServerOptions

	mu      sync.Mutex
	ranges  []string
	stalled chan struct{}
	release chan struct{}
	once    sync.Once
}

// StartTestHTTPServer starts an HTTP server that serves files with range
// request support. The server is closed when the test ends.
func StartTestHTTPServer(t testing.TB, opts ServerOptions, files ...TestFile) *Server {
	t.Helper()

	s := &Server{
		files:   make(map[string][]byte),
		opts:    opts,
		stalled: make(chan struct{}, 1024),
		release: make(chan struct{}),
	}
	for _, f := range files {
		s.files["/"+f.Name] = f.Data
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(func() {
		s.Release()
		s.Close()
	})
	return s
}

// URLFor returns the URL of the named file.
func (s *Server) URLFor(name string) string {
	return s.URL + "/" + name
}

// Ranges returns the Range headers received so far, in arrival order.
func (s *Server) Ranges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

// Stalled receives a value each time a range response starts stalling.
func (s *Server) Stalled() <-chan struct{} {
	return s.stalled
}

// Release lets stalled responses finish.
func (s *Server) Release() {
	s.once.Do(func() { close(s.release) })
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	data, ok := s.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	size := int64(len(data))
	etag := fmt.Sprintf(`"%s-%d"`, r.URL.Path, size)

	if r.Method == http.MethodHead {
		if !s.opts.NoContentLength {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		}
		if !s.opts.NoAcceptRanges {
			w.Header().Set("Accept-Ranges", "bytes")
		}
		w.Header().Set("ETag", etag)
		return
	}

	rangeHeader := r.Header.Get("Range")
	s.mu.Lock()
	s.ranges = append(s.ranges, rangeHeader)
	s.mu.Unlock()

	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Header().Set("ETag", etag)
		w.Write(data)
		return
	}

	// Parse range header: bytes=start-end
	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(rangeHeader, "-")
	start, _ := strconv.ParseInt(parts[0], 10, 64)
	end, _ := strconv.ParseInt(parts[1], 10, 64)

	if code, ok := s.opts.FailRanges[start]; ok {
		http.Error(w, http.StatusText(code), code)
		return
	}

	if start >= size || end < start {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if end >= size {
		end = size - 1
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusPartialContent)

	if !s.opts.Stall {
		w.Write(data[start : end+1])
		return
	}

	half := start + (end-start+1)/2
	w.Write(data[start:half])
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	select {
	case s.stalled <- struct{}{}:
	default:
	}

	select {
	case <-r.Context().Done():
		return
	case <-s.release:
	}
	w.Write(data[half : end+1])
}

// AssertFileContent fails the test unless the file at path holds exactly
// expected.
func AssertFileContent(t testing.TB, path string, expected []byte) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	CompareReaderToData(t, f, expected)
}

// CompareReaderToData compares reader output with expected data in chunks.
// This is memory-efficient for large files.
func CompareReaderToData(t testing.TB, reader io.Reader, expected []byte) {
	t.Helper()

	chunkSize := 1024 * 1024 // 1MB
	buf := make([]byte, chunkSize)
	offset := 0

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("read more data than expected: offset=%d, n=%d, expected len=%d",
					offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete read: got %d bytes, want %d", offset, len(expected))
	}
}
