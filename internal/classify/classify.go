// Package classify determines a document's form type from its text layer,
// falling back to a vision model on page 1 when no signal matches.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/llm"
	"github.com/joseph-ayodele/taxdocs/internal/render"
)

// Result is the classifier's verdict.
type Result struct {
	DocType    constants.FormType
	Confidence float64
	Method     constants.ClassificationMethod
}

const (
	textPages         = 2
	visionDefaultConf = 0.5
)

type Classifier struct {
	renderer render.Renderer
	gateway  llm.Gateway
	scale    float64
	logger   *slog.Logger
}

// New builds a Classifier. scale is the raster scale for the vision fallback.
func New(renderer render.Renderer, gateway llm.Gateway, scale float64, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if scale <= 0 {
		scale = 2
	}
	return &Classifier{renderer: renderer, gateway: gateway, scale: scale, logger: logger}
}

// Classify reads the first pages' text and matches known form identifiers.
// Without a match it asks the model to classify a render of page 1.
// Read and render failures are ClassificationErrors; model failures propagate.
func (c *Classifier) Classify(ctx context.Context, path string) (Result, error) {
	log := common.LoggerFrom(ctx, c.logger).With("path", path)
	start := time.Now()

	pages, err := c.renderer.PageCount(ctx, path)
	if err != nil {
		return Result{}, common.NewClassificationError("count pages", err)
	}

	var b strings.Builder
	for i := 0; i < min(textPages, pages); i++ {
		text, err := c.renderer.ExtractText(ctx, path, i)
		if err != nil {
			return Result{}, common.NewClassificationError(fmt.Sprintf("read text of page %d", i+1), err)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}

	if res, ok := MatchSignals(b.String()); ok {
		log.Info("classify.text.ok",
			"doc_type", res.DocType, "confidence", res.Confidence,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res, nil
	}

	img, err := c.renderer.RenderPageToPNG(ctx, path, 0, c.scale)
	if err != nil {
		return Result{}, common.NewClassificationError("render page 1", err)
	}
	out, err := c.gateway.InferJSON(ctx, classifyPrompt(), img)
	if err != nil {
		log.Error("classify.vision.failed", "error", err)
		return Result{}, fmt.Errorf("classify by vision: %w", err)
	}

	res := c.fromVision(log, out)
	log.Info("classify.vision.ok",
		"doc_type", res.DocType, "confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// fromVision fills missing or malformed fields with unknown / 0.5.
func (c *Classifier) fromVision(log *slog.Logger, out any) Result {
	res := Result{DocType: constants.FormUnknown, Confidence: visionDefaultConf, Method: constants.MethodVision}

	if err := classificationSchema.Validate(out); err != nil {
		log.Warn("classify.vision.schema_mismatch", "error", err)
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return res
	}
	if s, ok := obj["doc_type"].(string); ok {
		if ft, known := constants.ParseFormType(s); known {
			res.DocType = ft
		} else {
			log.Warn("classify.vision.unknown_doc_type", "doc_type", s)
		}
	}
	if conf, ok := obj["confidence"].(float64); ok {
		res.Confidence = min(max(conf, 0), 1)
	}
	return res
}
