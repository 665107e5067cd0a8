// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/ingestion"
	"github.com/poiesic/assetfind/search"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func searchCommand(c *cli.Context) error {
	mediaType, err := core.ParseMediaType(c.String("type"))
	if err != nil {
		return err
	}
	filters := core.Filters{Type: mediaType, Color: c.String("color")}
	query := strings.Join(c.Args().Slice(), " ")

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	lib, err := openLibrary(c, cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	searcher, err := lib.NewSearcher()
	if err != nil {
		return err
	}

	var monitor search.SearchMonitor
	if c.Bool("explain") {
		monitor = search.NewLogMonitor(slog.Default())
	}
	results, err := searcher.SearchWithMonitor(c.Context, query, filters, monitor)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printAssets(c.App.Writer, results)
	return nil
}

func relatedCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one asset id")
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid asset id %q: %w", c.Args().First(), err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	lib, err := openLibrary(c, cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	searcher, err := lib.NewSearcher()
	if err != nil {
		return err
	}
	results, err := searcher.Related(c.Context, id)
	if err != nil {
		return fmt.Errorf("related lookup failed: %w", err)
	}
	printAssets(c.App.Writer, results)
	return nil
}

func importCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file")
	}
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	assets, err := readAssets(f)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	lib, err := openLibrary(c, cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	var opts []ingestion.Option
	if n := c.Int("pool-size"); n > 0 {
		opts = append(opts, ingestion.WithPoolSize(n))
	}
	pipeline, err := lib.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	imported := 0
	for start := 0; start < len(assets); start += batchSize {
		end := min(start+batchSize, len(assets))
		if _, err := pipeline.Ingest(c.Context, assets[start:end]...); err != nil {
			pipeline.Wait()
			return fmt.Errorf("import failed after %d assets: %w", imported, err)
		}
		imported = end
	}
	pipeline.Wait()

	fmt.Fprintf(c.App.Writer, "Imported %d assets\n", imported)
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if n := c.Int("batch-size"); n > 0 {
		cfg.Reembed.BatchSize = n
	}
	if n := c.Int("max-retries"); n > 0 {
		cfg.Reembed.MaxRetries = n
	}

	lib, err := openLibrary(c, cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	reembedder, err := lib.NewReembedder(c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Storage: %s\n", cfg.Storage.Driver)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	ctx, cancel := signalContext(c.Context)
	defer cancel()
	if _, err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	if c.Bool("trace-stdout") {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		defer func() {
			if err := tp.Shutdown(c.Context); err != nil {
				slog.Error("error flushing traces", "err", err)
			}
		}()
	}

	lib, err := openLibrary(c, cfg)
	if err != nil {
		return err
	}
	defer lib.Close()

	server, err := lib.NewServer()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()
	return server.Run(ctx, cfg.Server.Addr)
}

// importRecord is one line of an import file.
type importRecord struct {
	ID           string          `json:"id"`
	OriginalName string          `json:"originalName"`
	MimeType     string          `json:"mimeType"`
	AIData       json.RawMessage `json:"aiData"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// readAssets parses JSON lines. Blank lines are skipped; aiData is decoded
// leniently so a corrupt blob imports as empty metadata.
func readAssets(r io.Reader) ([]*core.Asset, error) {
	var assets []*core.Asset
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec importRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		asset := &core.Asset{
			OriginalName: rec.OriginalName,
			MimeType:     rec.MimeType,
			AIData:       core.ParseAIData(rec.AIData),
			CreatedAt:    rec.CreatedAt,
		}
		if rec.ID != "" {
			id, err := uuid.Parse(rec.ID)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid id: %w", line, err)
			}
			asset.ID = id
		}
		if err := core.ValidateAsset(asset); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		assets = append(assets, asset)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

func printAssets(w io.Writer, assets []*core.Asset) {
	if len(assets) == 0 {
		fmt.Fprintln(w, "No assets found")
		return
	}
	for i, a := range assets {
		line := fmt.Sprintf("%d: %s (%s) %s", i+1, a.OriginalName, a.MimeType, a.ID)
		if len(a.AIData.Tags) > 0 {
			line += " [" + strings.Join(a.AIData.Tags, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}
