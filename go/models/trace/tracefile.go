package trace

import (
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var TRACE_MAGIC = "VBTR"

const TRACE_VERSION = 1

type TraceHeader struct {
	// MAGIC ("VBTR")
	Magic string `struc:"[4]byte"`
	// file format version
	Version uint32 `struc:"uint32,little"`
}

// Record is one intercepted firmware call.
type Record struct {
	Vcpu    uint32 `struc:"uint32,little"`
	Vector  uint16 `struc:"uint16,little"`
	Claimed bool   `struc:"bool"`
	// register state after the handlers ran
	EAX uint32 `struc:"uint32,little"`
	EFL uint32 `struc:"uint32,little"`
	// modified register groups reported by the handler
	Mtd uint32 `struc:"uint32,little"`
}

// TraceWriter may be shared by the devices of several vcpus.
type TraceWriter struct {
	sync.Mutex
	w  io.WriteCloser
	zw *snappy.Writer
}

func NewWriter(w io.WriteCloser) (*TraceWriter, error) {
	header := &TraceHeader{Magic: TRACE_MAGIC, Version: TRACE_VERSION}
	if err := struc.Pack(w, header); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	return &TraceWriter{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

// write a record at a time
func (t *TraceWriter) Pack(rec *Record) error {
	t.Lock()
	defer t.Unlock()
	return errors.Wrap(struc.Pack(t.zw, rec), "failed to pack record")
}

func (t *TraceWriter) Flush() error {
	t.Lock()
	defer t.Unlock()
	return t.zw.Flush()
}

func (t *TraceWriter) Close() error {
	t.Lock()
	defer t.Unlock()
	if err := t.zw.Close(); err != nil {
		t.w.Close()
		return err
	}
	return t.w.Close()
}

type TraceReader struct {
	r      io.ReadCloser
	zr     *snappy.Reader
	Header TraceHeader
}

func NewReader(r io.ReadCloser) (*TraceReader, error) {
	t := &TraceReader{r: r}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != TRACE_MAGIC {
		return nil, errors.New("invalid trace file magic")
	}
	if t.Header.Version != TRACE_VERSION {
		return nil, errors.Errorf("unsupported trace version %d", t.Header.Version)
	}
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns io.EOF after the last record.
func (t *TraceReader) Next() (*Record, error) {
	rec := &Record{}
	if err := struc.Unpack(t.zr, rec); err != nil {
		if errors.Cause(err) == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "failed to unpack record")
	}
	return rec, nil
}

func (t *TraceReader) Close() error {
	t.zr.Reset(nil)
	return t.r.Close()
}
