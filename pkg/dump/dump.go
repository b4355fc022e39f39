// Package dump moves store contents in and out of a portable stream.
//
// A stream is a sequence of frames, each a varint length followed by a
// protobuf-encoded message. The first frame is a header, every following frame
// is one key/value record:
//
//	header: 1 magic (bytes) 2 version (varint) 3 engine (bytes) 4 store (bytes)
//	record: 1 key (bytes) 2 value (bytes)
package dump

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/DeBankDeFi/tahani/pkg/db"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	magic   = "tahani-dump"
	version = 1

	// maxFrame bounds a single frame so a corrupt length cannot allocate
	// without limit.
	maxFrame = 1 << 30
)

var (
	ErrMalformed = errors.New("dump: malformed stream")
	ErrVersion   = errors.New("dump: unsupported version")
)

// Header describes where a stream came from.
type Header struct {
	Engine string
	Store  string
}

type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter writes the header frame and returns a Writer for the records.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	dw := &Writer{w: bufio.NewWriter(w)}
	var msg []byte
	msg = appendBytesField(msg, 1, []byte(magic))
	msg = protowire.AppendTag(msg, 2, protowire.VarintType)
	msg = protowire.AppendVarint(msg, version)
	msg = appendBytesField(msg, 3, []byte(h.Engine))
	msg = appendBytesField(msg, 4, []byte(h.Store))
	if err := dw.frame(msg); err != nil {
		return nil, err
	}
	return dw, nil
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func (dw *Writer) frame(msg []byte) error {
	dw.buf = protowire.AppendVarint(dw.buf[:0], uint64(len(msg)))
	dw.buf = append(dw.buf, msg...)
	_, err := dw.w.Write(dw.buf)
	return errors.WithStack(err)
}

func (dw *Writer) Write(key, value []byte) error {
	var msg []byte
	msg = appendBytesField(msg, 1, key)
	msg = appendBytesField(msg, 2, value)
	return dw.frame(msg)
}

// Flush writes any buffered frames to the underlying writer.
func (dw *Writer) Flush() error {
	return errors.WithStack(dw.w.Flush())
}

type Reader struct {
	r      *bufio.Reader
	header Header
}

// NewReader reads and checks the header frame.
func NewReader(r io.Reader) (*Reader, error) {
	dr := &Reader{r: bufio.NewReader(r)}
	msg, err := dr.frame()
	if err == io.EOF {
		return nil, errors.Wrap(ErrMalformed, "missing header")
	}
	if err != nil {
		return nil, err
	}

	var gotMagic bool
	var ver uint64
	err = consumeFields(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			ver = v
			return n, nil
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			switch num {
			case 1:
				gotMagic = string(v) == magic
			case 3:
				dr.header.Engine = string(v)
			case 4:
				dr.header.Store = string(v)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	if !gotMagic {
		return nil, errors.Wrap(ErrMalformed, "bad magic")
	}
	if ver != version {
		return nil, errors.Wrapf(ErrVersion, "version %d", ver)
	}
	return dr, nil
}

func (dr *Reader) Header() Header {
	return dr.header
}

// Next returns the next record, or io.EOF after the last one.
func (dr *Reader) Next() (key, value []byte, err error) {
	msg, err := dr.frame()
	if err != nil {
		return nil, nil, err
	}
	key, value = []byte{}, []byte{}
	err = consumeFields(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		switch num {
		case 1:
			key = append(key, v...)
		case 2:
			value = append(value, v...)
		}
		return n, nil
	})
	return key, value, err
}

func (dr *Reader) frame() ([]byte, error) {
	size, err := binary.ReadUvarint(dr.r)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if size > maxFrame {
		return nil, errors.Wrapf(ErrMalformed, "frame of %d bytes", size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(dr.r, msg); err != nil {
		return nil, errors.Wrap(ErrMalformed, "truncated frame")
	}
	return msg, nil
}

func consumeFields(msg []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return errors.Wrap(ErrMalformed, protowire.ParseError(n).Error())
		}
		msg = msg[n:]
		m, err := field(num, typ, msg)
		if err != nil {
			return err
		}
		if m < 0 {
			return errors.Wrap(ErrMalformed, protowire.ParseError(m).Error())
		}
		msg = msg[m:]
	}
	return nil
}

// Export writes every entry of it, from its first key on, and returns the
// number of records written.
func Export(w io.Writer, h Header, it *db.Iterator) (int, error) {
	dw, err := NewWriter(w, h)
	if err != nil {
		return 0, err
	}
	n := 0
	for ok := it.SeekToFirst(); ok; ok = it.Next() {
		key, err := it.Key()
		if err != nil {
			return n, err
		}
		value, err := it.Value()
		if err != nil {
			return n, err
		}
		if err := dw.Write(key, value); err != nil {
			return n, err
		}
		n++
	}
	if err := it.Error(); err != nil {
		return n, err
	}
	return n, dw.Flush()
}

// Import loads a stream into d, writing one batch per batchSize records. A
// batchSize <= 0 loads the whole stream in one batch. Records of batches
// already written stay in d if a later one fails.
func Import(r io.Reader, d *db.DB, batchSize int) (Header, int, error) {
	dr, err := NewReader(r)
	if err != nil {
		return Header{}, 0, err
	}
	b := db.NewBatch()
	defer b.Destroy()

	n := 0
	for {
		key, value, err := dr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return dr.Header(), n, err
		}
		if err := b.Put(key, value); err != nil {
			return dr.Header(), n, err
		}
		if batchSize > 0 && b.Len() >= batchSize {
			if err := b.Write(d); err != nil {
				return dr.Header(), n, err
			}
			n += b.Len()
			if err := b.Clear(); err != nil {
				return dr.Header(), n, err
			}
		}
	}
	if b.Len() > 0 {
		if err := b.Write(d); err != nil {
			return dr.Header(), n, err
		}
		n += b.Len()
	}
	return dr.Header(), n, nil
}
