package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/dvloznov/cfdi-reporter/internal/cfdi"
	"github.com/dvloznov/cfdi-reporter/internal/logger"
	"github.com/dvloznov/cfdi-reporter/internal/render"
	"github.com/dvloznov/cfdi-reporter/internal/report"
	"github.com/dvloznov/cfdi-reporter/internal/storage"
)

type reportOptions struct {
	Paths        []string
	GCSURI       string
	IssuerFilter string
	PDFPath      string
	XLSXPath     string
	UploadURI    string
	Progress     bool
}

// progressReporter advances a progress bar once per document.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func (p progressReporter) DocumentRead(name string) {
	_ = p.bar.Add(1)
}

func (p progressReporter) DocumentFailed(name string, err error) {
	_ = p.bar.Add(1)
}

// runReportCmd loads, extracts and aggregates the documents, prints the
// tables to out and writes the requested exports. svc may be nil when no GCS
// input or upload is requested.
func runReportCmd(ctx context.Context, opts reportOptions, svc storage.Service, out, progressOut io.Writer) error {
	log := logger.FromContext(ctx)

	docs, err := loadDocuments(ctx, opts, svc)
	if err != nil {
		return fmt.Errorf("runReportCmd: %w", err)
	}
	log.Info().Int("documents", len(docs)).Msg("Documents loaded")

	var reporters []cfdi.Reporter
	var bar *progressbar.ProgressBar
	if opts.Progress && len(docs) > 0 {
		bar = progressbar.NewOptions(len(docs),
			progressbar.OptionSetDescription("Leyendo facturas"),
			progressbar.OptionSetWriter(progressOut),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		reporters = append(reporters, progressReporter{bar: bar})
	}

	result, err := cfdi.ExtractAll(ctx, docs, reporters...)
	if err != nil {
		return fmt.Errorf("runReportCmd: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := render.WriteBatchStatus(out, result); err != nil {
		return fmt.Errorf("runReportCmd: %w", err)
	}

	summary := report.Aggregate(result.Records, report.Options{IssuerFilter: opts.IssuerFilter})
	fmt.Fprintln(out)
	if summary.Empty() {
		fmt.Fprintln(out, report.EmptyMessage)
	} else {
		if err := render.WriteText(out, append([]report.Table{summary.RecordsTable()}, summary.Tables()...)); err != nil {
			return fmt.Errorf("runReportCmd: %w", err)
		}
	}
	if err := render.WriteDateErrors(out, summary.DateErrors); err != nil {
		return fmt.Errorf("runReportCmd: %w", err)
	}

	if err := writeExports(ctx, opts, svc, summary, out); err != nil {
		return fmt.Errorf("runReportCmd: %w", err)
	}

	return nil
}

func loadDocuments(ctx context.Context, opts reportOptions, svc storage.Service) ([]cfdi.Document, error) {
	var docs []cfdi.Document

	if len(opts.Paths) > 0 {
		local, err := cfdi.LoadPaths(opts.Paths)
		if err != nil {
			return nil, fmt.Errorf("loadDocuments: %w", err)
		}
		docs = append(docs, local...)
	}

	if opts.GCSURI != "" {
		if svc == nil {
			return nil, fmt.Errorf("loadDocuments: no storage service for %s", opts.GCSURI)
		}
		remote, err := storage.FetchDocuments(ctx, svc, opts.GCSURI)
		if err != nil {
			return nil, fmt.Errorf("loadDocuments: %w", err)
		}
		docs = append(docs, remote...)
	}

	return docs, nil
}

func writeExports(ctx context.Context, opts reportOptions, svc storage.Service, summary *report.Summary, out io.Writer) error {
	var pdf []byte
	if opts.PDFPath != "" || opts.UploadURI != "" {
		var buf bytes.Buffer
		if err := render.WritePDF(&buf, summary.Tables()); err != nil {
			return fmt.Errorf("writeExports: %w", err)
		}
		pdf = buf.Bytes()
	}

	if opts.PDFPath != "" {
		if err := os.WriteFile(opts.PDFPath, pdf, 0o644); err != nil {
			return fmt.Errorf("writeExports: write %s: %w", opts.PDFPath, err)
		}
		fmt.Fprintf(out, "PDF written to %s\n", opts.PDFPath)
	}

	if opts.XLSXPath != "" {
		var buf bytes.Buffer
		if err := render.WriteXLSX(&buf, summary); err != nil {
			return fmt.Errorf("writeExports: %w", err)
		}
		if err := os.WriteFile(opts.XLSXPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writeExports: write %s: %w", opts.XLSXPath, err)
		}
		fmt.Fprintf(out, "XLSX written to %s\n", opts.XLSXPath)
	}

	if opts.UploadURI != "" {
		if svc == nil {
			return fmt.Errorf("writeExports: no storage service for %s", opts.UploadURI)
		}
		dest, err := storage.UploadReport(ctx, svc, opts.UploadURI, render.PDFFilename, render.PDFContentType, pdf)
		if err != nil {
			return fmt.Errorf("writeExports: %w", err)
		}
		fmt.Fprintf(out, "PDF uploaded to %s\n", dest)
	}

	return nil
}
