package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cfdi-reporter/internal/cfdi"
	"github.com/dvloznov/cfdi-reporter/internal/config"
	"github.com/dvloznov/cfdi-reporter/internal/logger"
	"github.com/dvloznov/cfdi-reporter/internal/report"
	"github.com/dvloznov/cfdi-reporter/internal/storage"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	configured, err := logger.NewWithLevel(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logger")
	}
	log = configured

	switch os.Args[1] {
	case "report":
		runReport(log, cfg)
	case "inspect":
		runInspect(log)
	case "upload":
		runUpload(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("CFDI Reporter CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  report    Summarize CFDI XML invoices and export PDF/XLSX reports")
	fmt.Println("  inspect   Print the fields extracted from one CFDI XML file")
	fmt.Println("  upload    Upload a local file to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runReport(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dir := fs.String("dir", "", "Directory to scan recursively for .xml files")
	gcsURI := fs.String("gcs", "", "gs://bucket/prefix to read .xml files from")
	rfc := fs.String("rfc", "", "Only keep invoices whose issuer RFC contains this text (case-insensitive)")
	pdfPath := fs.String("pdf", "", "Write the PDF report to this path")
	xlsxPath := fs.String("xlsx", "", "Write the XLSX report to this path")
	uploadURI := fs.String("upload", "", "Upload the PDF report to this gs:// URI; a trailing / appends reporte_facturas.pdf")
	quiet := fs.Bool("quiet", false, "Do not show the progress bar")
	fs.Parse(os.Args[2:])

	opts := reportOptions{
		Paths:        fs.Args(),
		GCSURI:       *gcsURI,
		IssuerFilter: *rfc,
		PDFPath:      *pdfPath,
		XLSXPath:     *xlsxPath,
		UploadURI:    *uploadURI,
		Progress:     !*quiet,
	}
	if *dir != "" {
		opts.Paths = append([]string{*dir}, opts.Paths...)
	}
	if opts.GCSURI == "" && len(opts.Paths) == 0 && cfg.GCSBucket != "" {
		opts.GCSURI = "gs://" + cfg.GCSBucket + "/"
	}
	if opts.GCSURI == "" && len(opts.Paths) == 0 {
		log.Fatal().Msg("Usage: cli report [-dir DIR | FILE...] [-gcs gs://bucket/prefix] [-rfc TEXT] [-pdf PATH] [-xlsx PATH] [-upload gs://URI]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var svc storage.Service
	if opts.GCSURI != "" || opts.UploadURI != "" {
		gcs, err := storage.NewGCSService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcs.Close()
		svc = gcs
	}

	if err := runReportCmd(ctx, opts, svc, os.Stdout, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("Report failed")
	}
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		log.Fatal().Msg("Usage: cli inspect FILE")
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to read file")
	}

	record, err := cfdi.Extract(filepath.Base(path), data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to extract invoice")
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode record")
	}
	fmt.Println(string(out))

	if d, err := report.ParseIssueDate(record.IssueDate); err != nil {
		fmt.Printf("\nIssue date: not usable (%v)\n", err)
	} else {
		fmt.Printf("\nIssue date: %s (period %s)\n", d, report.Period(d.Year, int(d.Month)))
	}
	fmt.Printf("Net tax:    %s\n", report.FormatAmount(record.NetTax()))
}

func runUpload(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (or set CFDI_GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	svc, err := storage.NewGCSService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer svc.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := svc.Upload(ctx, *bucketName, *objectName, contentTypeFor(*filePath), data); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
