// Command umbra filters the urban context of every target building in a
// canopy script or GeoJSON footprint collection and writes the selection as
// JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chazu/umbra/pkg/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML run configuration")
		output     = flag.String("o", "", "output file (default stdout)")
		format     = flag.String("format", "", "input format: script or geojson (default by extension)")
		meshes     = flag.Bool("mesh", false, "include occlusion meshes in the output")
		workers    = flag.Int("workers", -1, "override the configured worker count")
		verbose    = flag.Bool("v", false, "log progress to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <canopy.umbra|canopy.geojson>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}

	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "umbra: ", log.LstdFlags)
	}
	app, err := NewApp(cfg, logger, *meshes)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	input := flag.Arg(0)
	f, err := os.Open(input)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer f.Close()

	var result RunResult
	switch inputFormat(input, *format) {
	case "geojson":
		result = app.EvaluateGeoJSON(ctx, f)
	case "script":
		src, err := io.ReadAll(f)
		if err != nil {
			log.Fatalf("read input: %v", err)
		}
		result = app.Evaluate(ctx, string(src))
	default:
		log.Fatalf("unknown format %q", *format)
	}

	if err := writeResult(*output, result); err != nil {
		log.Fatalf("write output: %v", err)
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

// inputFormat resolves the -format flag, falling back to the file extension.
func inputFormat(path, flagValue string) string {
	if flagValue != "" {
		return strings.ToLower(flagValue)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return "geojson"
	default:
		return "script"
	}
}

func writeResult(path string, result RunResult) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
