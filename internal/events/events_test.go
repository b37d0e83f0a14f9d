package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	flushed bool
	closed  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func (f *fakeConn) FlushWithContext(context.Context) error {
	f.flushed = true
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestPublishProcessedEncodesJSON(t *testing.T) {
	c := &fakeConn{}
	p := newPublisher(c, "taxdocs.document.processed", nil)

	err := p.PublishProcessed(context.Background(), Processed{DocumentID: "d1", Status: "processed", DocType: "W-2"})
	if err != nil {
		t.Fatalf("PublishProcessed() error = %v", err)
	}
	if c.subject != "taxdocs.document.processed" || !c.flushed {
		t.Fatalf("subject = %q flushed = %v", c.subject, c.flushed)
	}
	var ev Processed
	if err := json.Unmarshal(c.data, &ev); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ev.DocumentID != "d1" || ev.DocType != "W-2" || ev.At.IsZero() {
		t.Fatalf("event = %+v", ev)
	}

	p.Close()
	if !c.closed {
		t.Fatalf("Close should close the connection")
	}
}

func TestPublishProcessedSurfacesErrors(t *testing.T) {
	c := &fakeConn{err: errors.New("nats: connection closed")}
	p := newPublisher(c, "s", nil)
	if err := p.PublishProcessed(context.Background(), Processed{DocumentID: "d1"}); err == nil {
		t.Fatalf("expected publish error")
	}
}
