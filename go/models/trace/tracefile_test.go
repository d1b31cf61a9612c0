package trace

import (
	"bytes"
	"io/ioutil"
	"testing"
)

type closeBuf struct {
	bytes.Buffer
	closed bool
}

func (c *closeBuf) Close() error {
	c.closed = true
	return nil
}

func TestTraceRoundTrip(t *testing.T) {
	buf := &closeBuf{}
	tw, err := NewWriter(buf)
	if err != nil {
		t.Fatal(err)
	}
	recs := []Record{
		{Vcpu: 0, Vector: 0x100, Claimed: true, EAX: 0, EFL: 0x2, Mtd: 0},
		{Vcpu: 0, Vector: 0x10, Claimed: true, EAX: 0x0e41, EFL: 0x203, Mtd: 0x11},
		{Vcpu: 1, Vector: 0x13, Claimed: false, EAX: 0x0201, EFL: 0x202},
	}
	for i := range recs {
		if err := tw.Pack(&recs[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if !buf.closed {
		t.Fatal("writer did not close the underlying stream")
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte(TRACE_MAGIC)) {
		t.Fatal("missing trace magic")
	}

	tr, err := NewReader(ioutil.NopCloser(bytes.NewReader(buf.Bytes())))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if tr.Header.Version != TRACE_VERSION {
		t.Fatalf("bad version: %d", tr.Header.Version)
	}
	var got []Record
	for {
		rec, err := tr.Next()
		if err != nil {
			break
		}
		got = append(got, *rec)
	}
	if len(got) != len(recs) {
		t.Fatalf("read %d records, wrote %d", len(got), len(recs))
	}
	for i := range recs {
		if got[i] != recs[i] {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], recs[i])
		}
	}
}

func TestTraceBadMagic(t *testing.T) {
	data := []byte("NOPE\x01\x00\x00\x00")
	if _, err := NewReader(ioutil.NopCloser(bytes.NewReader(data))); err == nil {
		t.Fatal("accepted bad magic")
	}
}
