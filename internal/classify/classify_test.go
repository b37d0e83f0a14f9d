package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
)

type fakeRenderer struct {
	pages     int
	text      []string
	textErr   error
	renderErr error
	rendered  []int
}

func (f *fakeRenderer) PageCount(context.Context, string) (int, error) { return f.pages, nil }

func (f *fakeRenderer) ExtractText(_ context.Context, _ string, page int) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	if page >= len(f.text) {
		return "", nil
	}
	return f.text[page], nil
}

func (f *fakeRenderer) RenderPageToPNG(_ context.Context, _ string, page int, _ float64) ([]byte, error) {
	f.rendered = append(f.rendered, page)
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	return []byte("png"), nil
}

type fakeGateway struct {
	out     any
	err     error
	prompts []string
}

func (g *fakeGateway) InferJSON(_ context.Context, prompt string, _ []byte) (any, error) {
	g.prompts = append(g.prompts, prompt)
	return g.out, g.err
}

func TestMatchSignals(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Result
		ok   bool
	}{
		{"w2 title", "Form W-2 ... wage and tax statement 2025", Result{constants.FormW2, 0.9, constants.MethodText}, true},
		{"nec and int", "Form 1099-NEC\n...\nForm 1099-INT", Result{constants.FormConsolidated1099, 0.85, constants.MethodText}, true},
		{"omb only", "OMB No. 1545-2298", Result{constants.Form1099DA, 0.9, constants.MethodText}, true},
		{"k1 and 1040 not consolidated", "Schedule K-1 (Form 1065) attach to Form 1040", Result{constants.Form1040, 0.9, constants.MethodText}, true},
		{"same type twice", "1099-DIV OMB No. 1545-0110", Result{constants.Form1099DIV, 0.9, constants.MethodText}, true},
		{"nothing", "grocery receipt", Result{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchSignals(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("MatchSignals() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestClassifyUsesFirstTwoPagesOnly(t *testing.T) {
	r := &fakeRenderer{pages: 3, text: []string{"cover page", "nothing here", "Form 1099-NEC"}}
	gw := &fakeGateway{out: map[string]any{"doc_type": "1099-R", "confidence": 0.7, "method": "vision"}}

	res, err := New(r, gw, 2, nil).Classify(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Method != constants.MethodVision || res.DocType != constants.Form1099R || res.Confidence != 0.7 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(r.rendered) != 1 || r.rendered[0] != 0 {
		t.Fatalf("expected a single render of page 1, got %v", r.rendered)
	}
	if !strings.Contains(gw.prompts[0], `"consolidated-1099"`) || !strings.Contains(gw.prompts[0], `"unknown"`) {
		t.Fatalf("prompt must enumerate form types")
	}
}

func TestClassifyVisionDefaults(t *testing.T) {
	tests := []struct {
		name string
		out  any
		want Result
	}{
		{"empty object", map[string]any{}, Result{constants.FormUnknown, 0.5, constants.MethodVision}},
		{"not an object", []any{"W-2"}, Result{constants.FormUnknown, 0.5, constants.MethodVision}},
		{"unrecognized type", map[string]any{"doc_type": "W-9", "confidence": 0.8}, Result{constants.FormUnknown, 0.8, constants.MethodVision}},
		{"out of range confidence", map[string]any{"doc_type": "k-1", "confidence": 3.0}, Result{constants.FormK1, 1, constants.MethodVision}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRenderer{pages: 1, text: []string{""}}
			res, err := New(r, &fakeGateway{out: tt.out}, 2, nil).Classify(context.Background(), "scan.png")
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if res != tt.want {
				t.Fatalf("got %+v, want %+v", res, tt.want)
			}
		})
	}
}

func TestClassifyReadFailuresAreClassificationErrors(t *testing.T) {
	gw := &fakeGateway{out: map[string]any{"doc_type": "W-2"}}

	_, err := New(&fakeRenderer{pages: 1, textErr: errors.New("bad xref")}, gw, 2, nil).Classify(context.Background(), "a.pdf")
	if !errors.Is(err, common.ErrClassification) {
		t.Fatalf("text failure: expected classification error, got %v", err)
	}

	_, err = New(&fakeRenderer{pages: 1, renderErr: errors.New("pdftoppm missing")}, gw, 2, nil).Classify(context.Background(), "a.pdf")
	if !errors.Is(err, common.ErrClassification) {
		t.Fatalf("render failure: expected classification error, got %v", err)
	}
	if len(gw.prompts) != 0 {
		t.Fatalf("model must not be called when the page cannot be read")
	}
}

func TestClassifyPropagatesModelError(t *testing.T) {
	modelErr := errors.New("connection refused")
	_, err := New(&fakeRenderer{pages: 1}, &fakeGateway{err: modelErr}, 2, nil).Classify(context.Background(), "a.png")
	if !errors.Is(err, modelErr) {
		t.Fatalf("expected model error to propagate, got %v", err)
	}
	if errors.Is(err, common.ErrClassification) {
		t.Fatalf("model failures are not classification errors")
	}
}
