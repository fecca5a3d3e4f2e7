// Package stream decodes the line-delimited scene stream into typed frames.
//
// The transport delivers arbitrary chunks of text. A frame is only emitted
// once a full newline-terminated line carrying the "data: " marker has been
// assembled. Lines without the marker are ignored. A malformed payload becomes
// an error frame and decoding continues with the next line.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

// Marker prefixes every line that carries a frame.
const Marker = "data: "

const readSize = 4096

type Kind string

const (
	KindChunk    Kind = "chunk"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

var (
	// ErrMalformed is wrapped by error frames built from undecodable payloads.
	ErrMalformed = errors.New("malformed stream frame")
	// ErrRemote is wrapped by error frames the server sent itself.
	ErrRemote = errors.New("stream error reported by server")
)

// Frame is one decoded logical unit of the stream.
type Frame struct {
	Kind  Kind
	Text  string             // KindChunk: incremental scene text
	Scene *api.SceneResponse // KindComplete: the full scene
	Err   error              // KindError
}

// Decoder reassembles lines across chunk boundaries. It is not safe for
// concurrent use; create one per streamed call.
type Decoder struct {
	buf    []byte
	logger *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Decoder{logger: logger}
}

// Feed appends a raw chunk and returns every frame completed by it.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	rest := d.buf
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		line := rest[:i]
		rest = rest[i+1:]
		if f, ok := d.decodeLine(line); ok {
			frames = append(frames, f)
		}
	}

	if len(rest) == 0 {
		d.buf = d.buf[:0]
	} else if len(rest) != len(d.buf) {
		d.buf = append(d.buf[:0], rest...)
	}
	return frames
}

// Close ends the stream. An unterminated trailing fragment is dropped without
// producing a frame; the number of dropped bytes is returned.
func (d *Decoder) Close() int {
	n := len(d.buf)
	if n > 0 {
		d.logger.Debug("Discarding unterminated stream fragment", "bytes", n)
	}
	d.buf = nil
	return n
}

// Pending reports how many bytes are buffered waiting for a newline.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

func (d *Decoder) decodeLine(line []byte) (Frame, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, []byte(Marker)) {
		return Frame{}, false
	}
	payload := line[len(Marker):]

	var ev api.StreamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		d.logger.Warn("Malformed stream payload", "error", err)
		return Frame{Kind: KindError, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}, true
	}

	switch ev.Type {
	case api.StreamChunk:
		return Frame{Kind: KindChunk, Text: ev.Text}, true
	case api.StreamComplete:
		if ev.SceneResponse == nil {
			return Frame{Kind: KindError, Err: fmt.Errorf("%w: complete frame without scene", ErrMalformed)}, true
		}
		return Frame{Kind: KindComplete, Scene: ev.SceneResponse}, true
	case api.StreamError:
		return Frame{Kind: KindError, Err: fmt.Errorf("%w: %s", ErrRemote, ev.Error)}, true
	default:
		return Frame{Kind: KindError, Err: fmt.Errorf("%w: unknown frame type %q", ErrMalformed, ev.Type)}, true
	}
}

// Frames lazily decodes r. The error value is non-nil only for a failed read
// (or a cancelled ctx), after which iteration stops. io.EOF ends the sequence
// normally.
func Frames(ctx context.Context, r io.Reader, logger *slog.Logger) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		d := NewDecoder(logger)
		buf := make([]byte, readSize)
		for {
			if err := ctx.Err(); err != nil {
				yield(Frame{}, err)
				return
			}
			n, err := r.Read(buf)
			if n > 0 {
				for _, f := range d.Feed(buf[:n]) {
					if !yield(f, nil) {
						return
					}
				}
			}
			if errors.Is(err, io.EOF) {
				d.Close()
				return
			}
			if err != nil {
				yield(Frame{}, fmt.Errorf("read stream: %w", err))
				return
			}
		}
	}
}
