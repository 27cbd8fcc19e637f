package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"example.com/autellog/internal/autelfr"
	"example.com/autellog/internal/common"
	"example.com/autellog/internal/config"
	"example.com/autellog/internal/export"
	"example.com/autellog/internal/flight"
	"example.com/autellog/internal/manifest"
	"example.com/autellog/internal/report"
	"example.com/autellog/internal/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "parse":
		parseCmd(os.Args[2:])
	case "tracks":
		tracksCmd(os.Args[2:])
	case "summary":
		summaryCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "export":
		exportCmd(os.Args[2:])
	case "flight":
		flightCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	case "config":
		configCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`autelctl %s (built %s) <command> [options]

Commands:
  parse     --in <log> [--out <result.json[.zst]>] [--ndjson] [--indent] [--metrics]
  tracks    --in <log>
  summary   --in <log> [--out <summary.json>]
  report    --in <log> --pdf <report.pdf> [--lang en|de] [--summary <summary.json>]
  export    --in <log> --db <flights.sqlite> [--flight <flight.json>]
  flight    --in <log> [--out <flight.json>] [--config <config.yaml>]
  manifest  --inputs <comma-separated> --out <manifest.json>
  batch     --in <dir> --out-dir <dir> [--concurrency N] [--compress] [--pdf] [--db <file>] [--progress]
  config    <show|init> --config <config.yaml>
`, version, buildDate)
}

func requireIn(in string) {
	if in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
}

func parseCmd(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	in := fs.String("in", "", "input flight log")
	out := fs.String("out", "", "output file (stdout when empty; .zst compresses)")
	ndjson := fs.Bool("ndjson", false, "write one line per record")
	indent := fs.Bool("indent", false, "indent JSON output")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	fs.Parse(args)
	requireIn(*in)

	var metrics *common.Metrics
	if *metricsFlag {
		metrics = common.NewMetrics()
		metrics.Start()
	}
	res, err := autelfr.ParseFileWithMetrics(*in, metrics)
	if metrics != nil {
		metrics.Stop()
	}
	if err != nil {
		printParseError(err)
		os.Exit(1)
	}
	opts := export.Options{Indent: *indent, NDJSON: *ndjson}
	if *out == "" {
		if err := export.Write(os.Stdout, res, opts); err != nil {
			fmt.Println("write:", err)
			os.Exit(1)
		}
	} else {
		if err := export.WriteFile(*out, res, opts); err != nil {
			fmt.Println("write:", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s (%d records)\n", *out, res.TotalRecords)
	}
	if metrics != nil {
		snap := metrics.Snapshot()
		fmt.Fprintf(os.Stderr, "Metrics: duration=%s records=%d processed=%s throughput=%s/s kinds=[%s]\n",
			snap.Duration.Round(10*time.Microsecond),
			snap.Records,
			common.FormatBytes(snap.Bytes),
			humanize.IBytes(uint64(snap.ThroughputBytesPerSecond())),
			snap.KindSummary(),
		)
	}
}

// printParseError adds the byte window around an unknown tag, which is
// usually enough to spot a mis-sized record.
func printParseError(err error) {
	fmt.Println("parse:", err)
	var tagErr *autelfr.UnknownTagError
	if errors.As(err, &tagErr) {
		fmt.Printf("context @%d: % x\n", tagErr.ContextStart, tagErr.Context)
	}
}

func tracksCmd(args []string) {
	fs := flag.NewFlagSet("tracks", flag.ExitOnError)
	in := fs.String("in", "", "input flight log")
	fs.Parse(args)
	requireIn(*in)

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Println("read:", err)
		os.Exit(1)
	}
	if err := autelfr.CheckPreamble(data); err != nil {
		printParseError(err)
		os.Exit(1)
	}
	tracks, err := autelfr.Scan(data)
	if err != nil {
		printParseError(err)
		os.Exit(1)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCOUNT\tSIZE\tFIRST\tLAST")
	for _, kind := range autelfr.Kinds {
		t := tracks[kind]
		first, last := "-", "-"
		if n := t.Count(); n > 0 {
			first = fmt.Sprint(t.Offsets[0])
			last = fmt.Sprint(t.Offsets[n-1])
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", kind, t.Count(), t.Size, first, last)
	}
	tw.Flush()
}

func summaryCmd(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	in := fs.String("in", "", "input flight log")
	out := fs.String("out", "", "write summary JSON here")
	fs.Parse(args)
	requireIn(*in)

	sum, err := summarizeFile(*in)
	if err != nil {
		printParseError(err)
		os.Exit(1)
	}
	if *out != "" {
		if err := report.SaveSummaryJSON(sum, *out); err != nil {
			fmt.Println("write summary:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *out)
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "File\t%s\n", sum.Filename)
	fmt.Fprintf(tw, "SHA-256\t%s\n", sum.SHA256)
	fmt.Fprintf(tw, "Aircraft\t%s\n", sum.AircraftSN)
	fmt.Fprintf(tw, "Battery\t%s\n", sum.BatterySN)
	fmt.Fprintf(tw, "Location\t%s\n", sum.Location)
	fmt.Fprintf(tw, "Firmware\t%s\n", sum.Firmware)
	if !sum.FlightAt.IsZero() {
		fmt.Fprintf(tw, "Flight at\t%s\n", sum.FlightAt.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "Duration\t%s\n", sum.Duration())
	fmt.Fprintf(tw, "Distance\t%.1f m\n", sum.Distance)
	fmt.Fprintf(tw, "Max altitude\t%.1f m\n", sum.MaxAltitude)
	fmt.Fprintf(tw, "Media\t%d images, %d videos\n", sum.ImageCount, sum.VideoCount)
	for _, kind := range sum.Kinds() {
		fmt.Fprintf(tw, "  %s\t%s\n", kind, humanize.Comma(int64(sum.RecordCounts[kind])))
	}
	fmt.Fprintf(tw, "Records\t%s\n", humanize.Comma(int64(sum.TotalRecords)))
	tw.Flush()
}

func summarizeFile(path string) (report.Summary, error) {
	digest, _, err := common.Sha256OfFile(path)
	if err != nil {
		return report.Summary{}, err
	}
	res, err := autelfr.ParseFile(path)
	if err != nil {
		return report.Summary{}, err
	}
	return report.Summarize(res, digest), nil
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "input flight log")
	summaryPath := fs.String("summary", "", "build from a saved summary JSON instead of a log")
	pdfPath := fs.String("pdf", "", "output report PDF")
	lang := fs.String("lang", string(report.LangEnglish), "report language (en, de)")
	fs.Parse(args)

	if *pdfPath == "" {
		fmt.Println("required: --pdf")
		os.Exit(1)
	}
	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fmt.Println("lang:", err)
		os.Exit(1)
	}
	var sum report.Summary
	switch {
	case *summaryPath != "":
		sum, err = report.LoadSummaryJSON(*summaryPath)
		if err != nil {
			fmt.Println("load summary:", err)
			os.Exit(1)
		}
	case *in != "":
		sum, err = summarizeFile(*in)
		if err != nil {
			printParseError(err)
			os.Exit(1)
		}
	default:
		fmt.Println("required: --in or --summary")
		os.Exit(1)
	}
	if err := report.SaveSummaryPDF(sum, *pdfPath, language); err != nil {
		fmt.Println("write pdf:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote PDF:", *pdfPath)
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	in := fs.String("in", "", "input flight log")
	dbPath := fs.String("db", "flights.sqlite", "SQLite database")
	flightOut := fs.String("flight", "", "also write the flight track JSON here")
	fs.Parse(args)
	requireIn(*in)

	digest, _, err := common.Sha256OfFile(*in)
	if err != nil {
		fmt.Println("hash:", err)
		os.Exit(1)
	}
	res, err := autelfr.ParseFile(*in)
	if err != nil {
		printParseError(err)
		os.Exit(1)
	}
	st := store.New(*dbPath)
	defer st.Close()
	id, err := st.SaveFlight(context.Background(), res, digest)
	if err != nil {
		fmt.Println("store:", err)
		st.Close()
		os.Exit(1)
	}
	fmt.Printf("Stored flight %s (%d records) in %s\n", id, res.TotalRecords, *dbPath)
	if *flightOut != "" {
		if err := writeFlightJSON(*flightOut, flight.FromResult(res)); err != nil {
			fmt.Println("write flight:", err)
			st.Close()
			os.Exit(1)
		}
		fmt.Println("Wrote", *flightOut)
	}
}

func flightCmd(args []string) {
	fs := flag.NewFlagSet("flight", flag.ExitOnError)
	in := fs.String("in", "", "input flight log")
	out := fs.String("out", "", "write flight JSON here (stdout when empty)")
	cfgPath := fs.String("config", "", "configuration with media search paths")
	fs.Parse(args)
	requireIn(*in)

	res, err := autelfr.ParseFile(*in)
	if err != nil {
		printParseError(err)
		os.Exit(1)
	}
	fl := flight.FromResult(res)
	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Println("load config:", err)
			os.Exit(1)
		}
		found, err := fl.LocateMedia(searchPaths(cfg.VideoSearchPaths), searchPaths(cfg.ImageSearchPaths))
		if err != nil {
			fmt.Println("locate media:", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Located %d of %d media files\n", found, len(fl.Media))
	}
	if *out == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fl); err != nil {
			fmt.Println("write:", err)
			os.Exit(1)
		}
		return
	}
	if err := writeFlightJSON(*out, fl); err != nil {
		fmt.Println("write flight:", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d track points, %.1f m path)\n", *out, len(fl.Track), fl.PathLength())
}

func writeFlightJSON(path string, fl flight.Flight) error {
	b, err := json.MarshalIndent(fl, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func searchPaths(in []config.MediaSearchPath) []flight.SearchPath {
	out := make([]flight.SearchPath, 0, len(in))
	for _, sp := range in {
		out = append(out, flight.SearchPath{Path: sp.Path, Glob: sp.Glob, Recursive: sp.Recursive})
	}
	return out
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated paths")
	out := fs.String("out", "manifest.json", "output json")
	fs.Parse(args)

	if *inputs == "" {
		fmt.Println("required: --inputs")
		os.Exit(1)
	}
	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		fmt.Println("no input paths specified")
		os.Exit(1)
	}
	m, err := manifest.Build(paths)
	if err != nil {
		fmt.Println("manifest build:", err)
		os.Exit(1)
	}
	if err := manifest.Save(m, *out); err != nil {
		fmt.Println("manifest save:", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d items, %d flight logs)\n", *out, len(m.Items), m.Count(manifest.TypeFlightLog))
}

func configCmd(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: autelctl config <show|init> --config <file>")
		os.Exit(1)
	}
	sub := args[0]
	fs := flag.NewFlagSet("config "+sub, flag.ExitOnError)
	path := fs.String("config", filepath.Join("config", "config.yaml"), "configuration file")
	force := fs.Bool("force", false, "overwrite an existing file (init)")
	fs.Parse(args[1:])

	switch sub {
	case "show":
		cfg, err := config.Load(*path)
		if err != nil {
			fmt.Println("load config:", err)
			os.Exit(1)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "port\t%d\n", cfg.Port)
		fmt.Fprintf(tw, "storageDir\t%s\n", cfg.StorageDir)
		fmt.Fprintf(tw, "concurrency\t%d\n", cfg.Concurrency)
		fmt.Fprintf(tw, "rawLogDir\t%s\n", cfg.RawLogDir)
		fmt.Fprintf(tw, "dataDir\t%s\n", cfg.DataDir)
		fmt.Fprintf(tw, "reportDir\t%s\n", cfg.ReportDir)
		fmt.Fprintf(tw, "database\t%s\n", cfg.Database)
		fmt.Fprintf(tw, "maxUpload\t%s\n", humanize.IBytes(uint64(cfg.MaxUploadBytes())))
		fmt.Fprintf(tw, "lang\t%s\n", cfg.Lang)
		fmt.Fprintf(tw, "logs\t%s\n", cfg.Logs.Directory)
		tw.Flush()
	case "init":
		if _, err := os.Stat(*path); err == nil && !*force {
			fmt.Printf("%s exists (use --force to overwrite)\n", *path)
			os.Exit(1)
		}
		if err := config.Save(*path, config.Default()); err != nil {
			fmt.Println("write config:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *path)
	default:
		fmt.Printf("unknown config command %q\n", sub)
		os.Exit(1)
	}
}
