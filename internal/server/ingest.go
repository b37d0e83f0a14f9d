package server

import (
	"context"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taxdocs/internal/async"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/ingest"
	"github.com/joseph-ayodele/taxdocs/internal/pipeline"
)

func resultStruct(res pipeline.Result) (*structpb.Struct, error) {
	out := map[string]any{
		"document":     res.Document,
		"deduplicated": res.Deduplicated,
	}
	if res.Failure != nil {
		out["failure"] = res.Failure.Error()
	}
	return toStruct(out)
}

func (s *Service) uploadRequest(p params) (pipeline.UploadRequest, error) {
	var req pipeline.UploadRequest
	var err error
	if req.SourcePath, err = p.required("path"); err != nil {
		return req, err
	}
	if req.Filer, err = p.str("filer"); err != nil {
		return req, err
	}
	if req.TaxYear, err = p.int("tax_year"); err != nil {
		return req, err
	}
	return req, nil
}

// Upload processes one file on the daemon's filesystem. With "async": true
// the file is queued and the call returns before processing.
func (s *Service) Upload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p := paramsOf(in)
	req, err := s.uploadRequest(p)
	if err != nil {
		return nil, err
	}
	log := common.LoggerFrom(ctx, s.logger)

	queued, err := p.bool("async")
	if err != nil {
		return nil, err
	}
	if queued != nil && *queued {
		if s.queue == nil {
			return nil, invalidArg("async uploads are not enabled")
		}
		job := async.Job{SourcePath: req.SourcePath, Filer: req.Filer, TaxYear: req.TaxYear}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return nil, err
		}
		log.Info("server.upload.queued", "path", req.SourcePath)
		return toStruct(map[string]any{"queued": true})
	}

	log.Info("server.upload.start", "path", req.SourcePath)
	res, err := s.proc.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	return resultStruct(res)
}

// IngestDirectory walks root and processes every supported file in order.
// Per-file failures are reported in results and do not fail the call.
func (s *Service) IngestDirectory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p := paramsOf(in)
	root, err := p.required("root")
	if err != nil {
		return nil, err
	}
	skipHidden := true
	if b, err := p.bool("skip_hidden"); err != nil {
		return nil, err
	} else if b != nil {
		skipHidden = *b
	}
	tmpl := pipeline.UploadRequest{}
	if tmpl.Filer, err = p.str("filer"); err != nil {
		return nil, err
	}
	if tmpl.TaxYear, err = p.int("tax_year"); err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		ids = map[string]string{}
	)
	visit := func(ctx context.Context, path string) (bool, error) {
		req := tmpl
		req.SourcePath = path
		res, err := s.proc.Process(ctx, req)
		if err != nil {
			return false, err
		}
		mu.Lock()
		ids[path] = res.Document.ID.String()
		mu.Unlock()
		return res.Deduplicated, nil
	}

	log := common.LoggerFrom(ctx, s.logger)
	log.Info("server.ingest_dir.start", "root", root, "skip_hidden", skipHidden)
	results, stats, err := ingest.WalkDirectory(ctx, root, skipHidden, visit)
	if err != nil {
		return nil, invalidArg("ingest directory: %v", err)
	}
	log.Info("server.ingest_dir.done",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)

	items := make([]any, 0, len(results))
	for _, r := range results {
		item := map[string]any{"path": r.Path, "deduplicated": r.Deduplicated}
		if id, ok := ids[r.Path]; ok {
			item["document_id"] = id
		}
		if r.Err != "" {
			item["error"] = r.Err
		}
		items = append(items, item)
	}
	out := dirStats(stats)
	out["results"] = items
	return toStruct(out)
}

func (s *Service) Reprocess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := paramsOf(in).id()
	if err != nil {
		return nil, err
	}
	res, err := s.proc.Reprocess(ctx, id)
	if err != nil {
		return nil, err
	}
	return resultStruct(res)
}
