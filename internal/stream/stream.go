// Package stream is the Stream Multiplexer: it decodes the Docker
// multiplexed byte stream (the same 8-byte stdcopy frame header stdcopy.StdCopy
// reads in one shot) incrementally, emitting one typed output event per
// frame instead of buffering the whole stream.
package stream

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"unicode/utf8"
)

// Fd identifies which stream a frame of output came from.
type Fd int

const (
	Stdout Fd = 1
	Stderr Fd = 2
)

func (fd Fd) String() string {
	switch fd {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// stdcopy frame headers are 8 bytes: [stream type, 0, 0, 0, size(4 bytes BE)].
const headerLength = 8

// OutputEvent is one decoded chunk of output, corresponding to an
// `output(bytes, fd)` event delivered to a caller.
type OutputEvent struct {
	Fd       Fd
	Data     []byte
	Encoding string // "" for UTF-8 text, "hex" when Data is invalid UTF-8
}

// ErrUnknownStreamType is returned when a frame header names a stream type
// other than stdout/stderr (stdin-type frames never appear on this side).
var ErrUnknownStreamType = errors.New("stream: unknown frame stream type")

// Demuxer incrementally decodes a Docker-multiplexed stream into
// OutputEvents, preserving frame boundaries and never splitting a UTF-8
// code point across events when it can be avoided by holding back an
// incomplete trailing sequence until the next frame on the same fd.
type Demuxer struct {
	r       *bufio.Reader
	pending map[Fd][]byte
}

// NewDemuxer wraps r (e.g. a ContainerAttach/ContainerLogs reader) for
// incremental decoding.
func NewDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{
		r:       bufio.NewReaderSize(r, 32*1024),
		pending: make(map[Fd][]byte),
	}
}

// Next reads and decodes one frame, returning io.EOF when the stream ends
// cleanly. A zero-length frame is skipped (it carries no output).
func (d *Demuxer) Next() (OutputEvent, error) {
	for {
		var header [headerLength]byte
		if _, err := io.ReadFull(d.r, header[:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return OutputEvent{}, io.EOF
			}
			return OutputEvent{}, err
		}

		var fd Fd
		switch header[0] {
		case 1:
			fd = Stdout
		case 2:
			fd = Stderr
		default:
			return OutputEvent{}, ErrUnknownStreamType
		}

		size := binary.BigEndian.Uint32(header[4:8])
		if size == 0 {
			continue
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(d.r, payload); err != nil {
			return OutputEvent{}, err
		}

		return d.emit(fd, payload), nil
	}
}

// emit combines any held-back partial rune from the previous frame on this
// fd with the new payload, holds back a new incomplete trailing sequence if
// present, and tags the result as hex if what remains is not valid UTF-8.
func (d *Demuxer) emit(fd Fd, payload []byte) OutputEvent {
	full := payload
	if held := d.pending[fd]; len(held) > 0 {
		full = append(append([]byte{}, held...), payload...)
		delete(d.pending, fd)
	}

	emitBytes, carry := splitTrailingIncompleteRune(full)
	if len(carry) > 0 {
		d.pending[fd] = carry
	}

	if len(emitBytes) == 0 {
		return OutputEvent{Fd: fd, Data: nil}
	}

	if utf8.Valid(emitBytes) {
		return OutputEvent{Fd: fd, Data: emitBytes}
	}
	return OutputEvent{Fd: fd, Data: []byte(hex.EncodeToString(emitBytes)), Encoding: "hex"}
}

// splitTrailingIncompleteRune returns the prefix of buf safe to emit now and
// any trailing bytes that look like the start of a multi-byte UTF-8
// sequence cut off by the frame boundary.
func splitTrailingIncompleteRune(buf []byte) (emit, carry []byte) {
	if len(buf) == 0 {
		return buf, nil
	}
	r, size := utf8.DecodeLastRune(buf)
	if r != utf8.RuneError || size != 1 {
		return buf, nil
	}
	// The last byte(s) may be the start of a truncated multi-byte rune.
	// Back up over continuation bytes to find where the partial sequence
	// begins, but never more than the max UTF-8 sequence length.
	for back := 1; back <= utf8.UTFMax && back <= len(buf); back++ {
		tail := buf[len(buf)-back:]
		if utf8.RuneStart(tail[0]) {
			if !utf8.FullRune(tail) {
				return buf[:len(buf)-back], tail
			}
			break
		}
	}
	return buf, nil
}

// Flush returns any bytes still held back for fd (e.g. at stream end,
// where a genuinely truncated/invalid tail should still be delivered,
// tagged hex, rather than silently dropped).
func (d *Demuxer) Flush(fd Fd) OutputEvent {
	held := d.pending[fd]
	delete(d.pending, fd)
	if len(held) == 0 {
		return OutputEvent{Fd: fd}
	}
	return OutputEvent{Fd: fd, Data: []byte(hex.EncodeToString(held)), Encoding: "hex"}
}
