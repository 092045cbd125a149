package track

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// Serialized track layout: a version byte, the descriptor fields, then an
// optional request context discriminated by a leading type tag. The whole
// buffer is base64 armored so it can live in redis and survive external
// tooling untouched.
const (
	codecVersion = 1

	tagPlainContext = 1
	tagRadioContext = 3
)

var ErrBadEncoding = errors.New("track: malformed encoding")

// Codec encodes and decodes tracks. Radio provenance is delegated to the
// injected RadioDecoder since the variants live elsewhere.
type Codec struct {
	Radio RadioDecoder
}

// Encode serializes a track and its context into a base64 string that
// round-trips losslessly through Decode.
func (c *Codec) Encode(t *Track) (string, error) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	w.WriteUint8(codecVersion)
	w.WriteString(t.ID)
	w.WriteString(t.URI)
	w.WriteString(t.Title)
	w.WriteString(t.Author)
	w.WriteInt64(int64(t.Duration / time.Millisecond))
	w.WriteBool(t.Stream)
	w.WriteInt64(int64(t.Position / time.Millisecond))

	if t.Ctx == nil {
		w.WriteBool(false)
	} else {
		w.WriteBool(true)
		if t.Ctx.Radio != nil {
			w.WriteInt32(tagRadioContext)
		} else {
			w.WriteInt32(tagPlainContext)
		}
		w.WriteString(t.Ctx.Requester)
		w.WriteString(t.Ctx.Channel)
		if t.Ctx.Radio != nil {
			if err := t.Ctx.Radio.Serialize(w); err != nil {
				return "", err
			}
		}
	}

	if w.err != nil {
		return "", w.err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode. A track with an unknown context tag is an error;
// a track with no context decodes with Ctx == nil.
func (c *Codec) Decode(encoded string) (*Track, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("track: %w", ErrBadEncoding)
	}

	r := NewReader(bytes.NewReader(raw))
	if v := r.ReadUint8(); v != codecVersion {
		return nil, fmt.Errorf("track: unsupported version %d: %w", v, ErrBadEncoding)
	}

	t := &Track{
		ID:     r.ReadString(),
		URI:    r.ReadString(),
		Title:  r.ReadString(),
		Author: r.ReadString(),
	}
	t.Duration = time.Duration(r.ReadInt64()) * time.Millisecond
	t.Stream = r.ReadBool()
	t.Position = time.Duration(r.ReadInt64()) * time.Millisecond

	if !r.ReadBool() {
		if r.err != nil {
			return nil, fmt.Errorf("track: %w", ErrBadEncoding)
		}
		return t, nil
	}

	tag := r.ReadInt32()
	ctx := &Context{
		Requester: r.ReadString(),
		Channel:   r.ReadString(),
	}

	switch tag {
	case tagPlainContext:
	case tagRadioContext:
		if c.Radio == nil {
			return nil, errors.New("track: radio context present but no radio decoder wired")
		}
		ref, err := c.Radio.DecodeRadio(r)
		if err != nil {
			return nil, err
		}
		ctx.Radio = ref
	default:
		return nil, fmt.Errorf("track: unknown context tag %d: %w", tag, ErrBadEncoding)
	}

	if r.err != nil {
		return nil, fmt.Errorf("track: %w", ErrBadEncoding)
	}

	t.Ctx = ctx
	return t, nil
}

// Writer serializes primitive values big-endian with length-prefixed
// strings. The first write error sticks; callers check it once at the end.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.BigEndian, v)
}

func (w *Writer) WriteUint8(b byte)  { w.write(b) }
func (w *Writer) WriteInt32(v int32) { w.write(v) }
func (w *Writer) WriteInt64(v int64) { w.write(v) }
func (w *Writer) WriteBool(b bool)   { w.write(b) }

func (w *Writer) WriteString(s string) {
	if w.err == nil && len(s) > math.MaxUint16 {
		w.err = fmt.Errorf("track: string of %d bytes overflows the length prefix", len(s))
		return
	}
	w.write(uint16(len(s)))
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *Writer) Err() error { return w.err }

// Reader mirrors Writer. Reads after an error return zero values.
type Reader struct {
	r   io.Reader
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) read(v any) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, binary.BigEndian, v)
}

func (r *Reader) ReadUint8() byte {
	var b byte
	r.read(&b)
	return b
}

func (r *Reader) ReadInt32() int32 {
	var v int32
	r.read(&v)
	return v
}

func (r *Reader) ReadInt64() int64 {
	var v int64
	r.read(&v)
	return v
}

func (r *Reader) ReadBool() bool {
	var b bool
	r.read(&b)
	return b
}

func (r *Reader) ReadString() string {
	var n uint16
	r.read(&n)
	if r.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = err
		return ""
	}
	return string(buf)
}

func (r *Reader) Err() error { return r.err }
