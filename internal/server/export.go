package server

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taxdocs/internal/common"
)

// Export formats.
const (
	FormatJSON    = "json"
	FormatCSVLong = "csv_long"
	FormatCSVWide = "csv_wide"
	FormatXLSX    = "xlsx"
)

// Export renders one document (when "id" is set) or every document. Text
// formats are returned as-is; xlsx is base64 encoded.
func (s *Service) Export(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p := paramsOf(in)
	format, err := p.required("format")
	if err != nil {
		return nil, err
	}
	format = strings.ToLower(format)

	var id *uuid.UUID
	if p.present("id") {
		parsed, err := p.id()
		if err != nil {
			return nil, err
		}
		id = &parsed
	}

	var (
		body []byte
		name string
	)
	switch format {
	case FormatJSON:
		if id != nil {
			body, err = s.exporter.DocumentJSON(ctx, *id)
		} else {
			body, err = s.exporter.AllJSON(ctx)
		}
		name = exportName(id, "json")
	case FormatCSVLong:
		if id != nil {
			body, err = s.exporter.DocumentCSVLong(ctx, *id)
		} else {
			body, err = s.exporter.AllCSVLong(ctx)
		}
		name = exportName(id, "csv")
	case FormatCSVWide:
		if id != nil {
			body, err = s.exporter.DocumentCSVWide(ctx, *id)
		} else {
			body, err = s.exporter.AllCSVWide(ctx)
		}
		name = exportName(id, "csv")
	case FormatXLSX:
		f, ferr := p.listFilter()
		if ferr != nil {
			return nil, ferr
		}
		body, err = s.exporter.WorkbookXLSX(ctx, f)
		name = "taxdocs.xlsx"
	default:
		return nil, invalidArg("unsupported export format %q", format)
	}
	if err != nil {
		common.LoggerFrom(ctx, s.logger).Error("server.export.failed", "format", format, "error", err)
		return nil, err
	}

	out := map[string]any{"format": format, "filename": name}
	if format == FormatXLSX {
		out["encoding"] = "base64"
		out["content"] = base64.StdEncoding.EncodeToString(body)
	} else {
		out["encoding"] = "utf-8"
		out["content"] = string(body)
	}
	return structpb.NewStruct(out)
}

func exportName(id *uuid.UUID, ext string) string {
	if id == nil {
		return "taxdocs." + ext
	}
	return id.String() + "." + ext
}
