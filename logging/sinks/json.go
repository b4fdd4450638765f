package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"scenerelay/logging"
)

// JSON emits newline-delimited structured events to a file, rotating the
// file through gzip compression once it grows past cfg.RotateBytes.
type JSON struct {
	mu          sync.Mutex
	path        string
	rotateBytes int64
	written     int64
	file        *os.File
	writer      *bufio.Writer
	encoder     *json.Encoder
	autoFlush   bool
}

func NewJSON(path string, cfg logging.JSONConfig) (*JSON, error) {
	sink := &JSON{
		path:        path,
		rotateBytes: cfg.RotateBytes,
		autoFlush:   cfg.FlushInterval <= 0,
	}
	if err := sink.openLocked(); err != nil {
		return nil, err
	}
	if cfg.FlushInterval > 0 {
		go sink.periodicFlush(cfg.FlushInterval)
	}
	return sink, nil
}

func (s *JSON) openLocked() error {
	if s.path == "" {
		s.file = nil
		s.writer = bufio.NewWriter(io.Discard)
		s.encoder = json.NewEncoder(s.writer)
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open json sink: %w", err)
	}
	info, err := file.Stat()
	if err == nil {
		s.written = info.Size()
	}
	s.file = file
	s.writer = bufio.NewWriter(file)
	s.encoder = json.NewEncoder(s.writer)
	return nil
}

func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := map[string]any{
		"type":     event.Type,
		"time":     event.Time.Format(time.RFC3339Nano),
		"severity": event.Severity,
		"category": event.Category,
		"actor":    event.Actor,
		"targets":  event.Targets,
		"payload":  event.Payload,
		"extra":    event.Extra,
		"traceId":  event.TraceID,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}
	s.written += int64(len(data)) + 1

	if s.autoFlush {
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	if s.rotateBytes > 0 && s.written >= s.rotateBytes && s.file != nil {
		return s.rotateLocked()
	}
	return nil
}

func (s *JSON) rotateLocked() error {
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}
	archived := fmt.Sprintf("%s.%d.gz", s.path, time.Now().UnixNano())
	if err := gzipFile(s.path, archived); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil {
		return err
	}
	s.written = 0
	return s.openLocked()
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func (s *JSON) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		s.writer.Flush()
		s.mu.Unlock()
	}
}
