// Package server exposes the document pipeline and store over gRPC.
package server

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taxdocs/internal/async"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/export"
	"github.com/joseph-ayodele/taxdocs/internal/ingest"
	"github.com/joseph-ayodele/taxdocs/internal/pipeline"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*repository.Document, error)
	List(ctx context.Context, f repository.ListFilter) ([]*repository.Document, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, u repository.MetadataUpdate) (*repository.Document, error)
	MarkNeedsReview(ctx context.Context, id uuid.UUID, notes string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (repository.Stats, error)
}

type Processor interface {
	Process(ctx context.Context, req pipeline.UploadRequest) (pipeline.Result, error)
	Reprocess(ctx context.Context, id uuid.UUID) (pipeline.Result, error)
}

type Deps struct {
	Store     Store
	Processor Processor
	Exporter  *export.Service
	// Queue is optional; without it async uploads are rejected.
	Queue  async.Queue
	Logger *slog.Logger
}

// Service implements TaxDocsServer in process.
type Service struct {
	store    Store
	proc     Processor
	exporter *export.Service
	queue    async.Queue
	logger   *slog.Logger
}

var _ TaxDocsServer = (*Service)(nil)

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		store:    d.Store,
		proc:     d.Processor,
		exporter: d.Exporter,
		queue:    d.Queue,
		logger:   d.Logger,
	}
}

func (s *Service) GetDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := paramsOf(in).id()
	if err != nil {
		return nil, err
	}
	raw, err := s.exporter.DocumentJSON(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListDocuments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f, err := paramsOf(in).listFilter()
	if err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*repository.Document{}
	}
	return toStruct(map[string]any{"documents": docs})
}

func (s *Service) UpdateMetadata(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p := paramsOf(in)
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	var u repository.MetadataUpdate
	if u.Filer, err = p.str("filer"); err != nil {
		return nil, err
	}
	if u.TaxYear, err = p.int("tax_year"); err != nil {
		return nil, err
	}
	if u.DocType, err = p.str("doc_type"); err != nil {
		return nil, err
	}
	if u.Notes, err = p.str("notes"); err != nil {
		return nil, err
	}
	doc, err := s.store.UpdateMetadata(ctx, id, u)
	if err != nil {
		return nil, err
	}
	common.LoggerFrom(ctx, s.logger).Info("server.metadata.updated", "document_id", id)
	return toStruct(map[string]any{"document": doc})
}

func (s *Service) MarkNeedsReview(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p := paramsOf(in)
	id, err := p.id()
	if err != nil {
		return nil, err
	}
	notes, err := p.str("notes")
	if err != nil {
		return nil, err
	}
	if notes == nil {
		empty := ""
		notes = &empty
	}
	if err := s.store.MarkNeedsReview(ctx, id, *notes); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"document": doc})
}

func (s *Service) DeleteDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := paramsOf(in).id()
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	common.LoggerFrom(ctx, s.logger).Info("server.document.deleted", "document_id", id)
	return &structpb.Struct{}, nil
}

func (s *Service) Stats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return toStruct(st)
}

func dirStats(st ingest.DirStats) map[string]any {
	return map[string]any{
		"scanned":      st.Scanned,
		"matched":      st.Matched,
		"succeeded":    st.Succeeded,
		"deduplicated": st.Deduplicated,
		"failed":       st.Failed,
	}
}
