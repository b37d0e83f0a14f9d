package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taxdocs/internal/server"
)

type command struct {
	needsPipeline bool
	run           func(ctx context.Context, api server.TaxDocsServer, args []string, out io.Writer) error
}

var commands = map[string]command{
	"upload":     {needsPipeline: true, run: runUpload},
	"ingest-dir": {needsPipeline: true, run: runIngestDir},
	"reprocess":  {needsPipeline: true, run: byID(server.TaxDocsServer.Reprocess)},
	"list":       {run: runList},
	"show":       {run: byID(server.TaxDocsServer.GetDocument)},
	"update":     {run: runUpdate},
	"review":     {run: runReview},
	"delete":     {run: byID(server.TaxDocsServer.DeleteDocument)},
	"export":     {run: runExport},
	"stats":      {run: runStats},
}

var errUsage = errors.New("see taxdocs -h")

// optional records flags the user actually set so unset ones stay absent.
type optional struct {
	fs    *flag.FlagSet
	strs  map[string]*string
	nums  map[string]*int
	bools map[string]*bool
}

func newOptional(name string) *optional {
	return &optional{
		fs:    flag.NewFlagSet(name, flag.ContinueOnError),
		strs:  map[string]*string{},
		nums:  map[string]*int{},
		bools: map[string]*bool{},
	}
}

func (o *optional) String(name, usage string) { o.strs[name] = o.fs.String(name, "", usage) }
func (o *optional) Int(name, usage string)    { o.nums[name] = o.fs.Int(name, 0, usage) }
func (o *optional) Bool(name, usage string)   { o.bools[name] = o.fs.Bool(name, false, usage) }

// fields returns the set flags keyed by their request field name.
func (o *optional) fields(rename map[string]string) map[string]any {
	set := map[string]bool{}
	o.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	out := map[string]any{}
	key := func(name string) string {
		if k, ok := rename[name]; ok {
			return k
		}
		return name
	}
	for name, v := range o.strs {
		if set[name] {
			out[key(name)] = *v
		}
	}
	for name, v := range o.nums {
		if set[name] {
			out[key(name)] = *v
		}
	}
	for name, v := range o.bools {
		if set[name] {
			out[key(name)] = *v
		}
	}
	return out
}

var flagNames = map[string]string{"year": "tax_year", "type": "doc_type", "review": "needs_review"}

func request(fields map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(fields)
}

func printStruct(out io.Writer, s *structpb.Struct) error {
	raw, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(raw))
	return err
}

type rpc func(api server.TaxDocsServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func byID(call rpc) func(context.Context, server.TaxDocsServer, []string, io.Writer) error {
	return func(ctx context.Context, api server.TaxDocsServer, args []string, out io.Writer) error {
		if len(args) != 1 {
			return fmt.Errorf("expected one document id: %w", errUsage)
		}
		in, err := request(map[string]any{"id": args[0]})
		if err != nil {
			return err
		}
		resp, err := call(api, ctx, in)
		if err != nil {
			return err
		}
		return printStruct(out, resp)
	}
}

func runUpload(ctx context.Context, api server.TaxDocsServer, args []string, out io.Writer) error {
	o := newOptional("upload")
	o.String("filer", "who the document belongs to")
	o.Int("year", "tax year")
	o.Bool("async", "queue on the daemon and return immediately")
	if err := o.fs.Parse(args); err != nil {
		return err
	}
	if o.fs.NArg() == 0 {
		return fmt.Errorf("expected at least one file: %w", errUsage)
	}
	var failed int
	for _, p := range o.fs.Args() {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		fields := o.fields(flagNames)
		fields["path"] = abs
		in, err := request(fields)
		if err != nil {
			return err
		}
		resp, err := api.Upload(ctx, in)
		if err != nil {
			printError("%s: %v\n", p, err)
			failed++
			continue
		}
		if err := printStruct(out, resp); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, o.fs.NArg())
	}
	return nil
}

func runIngestDir(ctx context.Context, api server.TaxDocsServer, args []string, out io.Writer) error {
	o := newOptional("ingest-dir")
	o.String("filer", "who the documents belong to")
	o.Int("year", "tax year")
	o.Bool("skip-hidden", "skip dot files and directories (default true)")
	if err := o.fs.Parse(args); err != nil {
		return err
	}
	if o.fs.NArg() != 1 {
		return fmt.Errorf("expected one directory: %w", errUsage)
	}
	root, err := filepath.Abs(o.fs.Arg(0))
	if err != nil {
		return err
	}
	fields := o.fields(map[string]string{"year": "tax_year", "skip-hidden": "skip_hidden"})
	fields["root"] = root
	in, err := request(fields)
	if err != nil {
		return err
	}
	resp, err := api.IngestDirectory(ctx, in)
	if err != nil {
		return err
	}
	return printStruct(out, resp)
}

func runList(ctx context.Context, api server.TaxDocsServer, args []string, out io.Writer) error {
	o := newOptional("list")
	o.String("filer", "only this filer")
	o.Int("year", "only this tax year")
	o.String("type", "only this form type, e.g. W-2")
	o.Bool("review", "only documents that need review (-review=false for the rest)")
	o.Int("limit", "at most this many documents")
	if err := o.fs.Parse(args); err != nil {
		return err
	}
	in, err := request(o.fields(flagNames))
	if err != nil {
		return err
	}
	resp, err := api.ListDocuments(ctx, in)
	if err != nil {
		return err
	}
	return printStruct(out, resp)
}

func runUpdate(ctx context.Context, api server.TaxDocsServer, args []string, out io.Writer) error {
	o := newOptional("update")
	o.String("filer", "filer name")
	o.Int("year", "tax year")
	o.String("type", "form type")
	o.String("notes", "free-form notes")
	if len(args) == 0 {
		return fmt.Errorf("expected a document id: %w", errUsage)
	}
	if err := o.fs.Parse(args[1:]); err != nil {
		return err
	}
	fields := o.fields(flagNames)
	if len(fields) == 0 {
		return fmt.Errorf("nothing to update: %w", errUsage)
	}
	fields["id"] = args[0]
	in, err := request(fields)
	if err != nil {
		return err
	}
	resp, err := api.UpdateMetadata(ctx, in)
	if err != nil {
		return err
	}
	return printStruct(out, resp)
}

func runReview(ctx context.Context, api server.TaxDocsServer, args []string, out io.Writer) error {
	o := newOptional("review")
	o.String("notes", "why the document needs review")
	if len(args) == 0 {
		return fmt.Errorf("expected a document id: %w", errUsage)
	}
	if err := o.fs.Parse(args[1:]); err != nil {
		return err
	}
	fields := o.fields(nil)
	fields["id"] = args[0]
	in, err := request(fields)
	if err != nil {
		return err
	}
	resp, err := api.MarkNeedsReview(ctx, in)
	if err != nil {
		return err
	}
	return printStruct(out, resp)
}

func runExport(ctx context.Context, api server.TaxDocsServer, args []string, out io.Writer) error {
	o := newOptional("export")
	o.String("format", "json, csv_long, csv_wide or xlsx")
	o.String("id", "one document instead of all")
	o.String("filer", "xlsx only: only this filer")
	o.Int("year", "xlsx only: only this tax year")
	outPath := o.fs.String("out", "", "write to this file instead of stdout")
	if err := o.fs.Parse(args); err != nil {
		return err
	}
	fields := o.fields(flagNames)
	if _, ok := fields["format"]; !ok {
		fields["format"] = server.FormatJSON
	}
	in, err := request(fields)
	if err != nil {
		return err
	}
	resp, err := api.Export(ctx, in)
	if err != nil {
		return err
	}

	content := resp.Fields["content"].GetStringValue()
	body := []byte(content)
	if resp.Fields["encoding"].GetStringValue() == "base64" {
		if body, err = base64.StdEncoding.DecodeString(content); err != nil {
			return fmt.Errorf("decode export: %w", err)
		}
		if *outPath == "" {
			*outPath = resp.Fields["filename"].GetStringValue()
		}
	}
	if *outPath == "" {
		_, err = out.Write(body)
		return err
	}
	if err := os.WriteFile(*outPath, body, 0o644); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "wrote %s (%d bytes)\n", *outPath, len(body))
	return err
}

func runStats(ctx context.Context, api server.TaxDocsServer, _ []string, out io.Writer) error {
	resp, err := api.Stats(ctx, &structpb.Struct{})
	if err != nil {
		return err
	}
	return printStruct(out, resp)
}
