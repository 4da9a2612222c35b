// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Stream is an API call log shared by concurrent callers. Each call to Write
// reaches the underlying writer in one piece.
type Stream struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewStream wraps w. The stream does not close w.
func NewStream(w io.Writer) *Stream {
	return &Stream{w: w}
}

// OpenStream opens the file named by the environment variable envName. The
// stream falls back to stderr when the variable is unset or the file cannot
// be created.
func OpenStream(envName string) *Stream {
	path, ok := os.LookupEnv(envName)
	if !ok || path == "" {
		return NewStream(os.Stderr)
	}
	return OpenFileStream(path)
}

// OpenFileStream opens path for writing, falling back to stderr on failure.
func OpenFileStream(path string) *Stream {
	f, err := os.Create(path)
	if err != nil {
		Logger().Warn("failed to open log stream, fallback to stderr",
			zap.String("path", path), zap.Error(err))
		return NewStream(os.Stderr)
	}
	return &Stream{w: f, closer: f}
}

func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *Stream) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Trace(s.closer.Close())
}

// LogArguments starts a new line and writes name followed by every argument,
// each preceded by sep. Complex arguments are written as their real and
// imaginary parts, each preceded by sep.
func LogArguments(w io.Writer, sep, name string, args ...any) error {
	var buf bytes.Buffer
	buf.WriteByte('\n')
	buf.WriteString(name)
	for _, arg := range args {
		switch v := arg.(type) {
		case complex64:
			writeArgument(&buf, sep, formatFloat(float64(real(v)), 32))
			writeArgument(&buf, sep, formatFloat(float64(imag(v)), 32))
		case complex128:
			writeArgument(&buf, sep, formatFloat(real(v), 64))
			writeArgument(&buf, sep, formatFloat(imag(v), 64))
		case float32:
			writeArgument(&buf, sep, formatFloat(float64(v), 32))
		case float64:
			writeArgument(&buf, sep, formatFloat(v, 64))
		case string:
			writeArgument(&buf, sep, v)
		default:
			writeArgument(&buf, sep, fmt.Sprint(v))
		}
	}
	_, err := w.Write(buf.Bytes())
	return errors.Trace(err)
}

func writeArgument(buf *bytes.Buffer, sep, s string) {
	buf.WriteString(sep)
	buf.WriteString(s)
}

func formatFloat(v float64, bitSize int) string {
	return strconv.FormatFloat(v, 'g', -1, bitSize)
}
