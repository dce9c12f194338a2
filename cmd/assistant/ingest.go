package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/germanamz/assistant/pkg/retrieval"
)

// metaFlags collects repeated -meta key=value flags.
type metaFlags map[string]string

func (m metaFlags) String() string { return fmt.Sprint(map[string]string(m)) }

func (m metaFlags) Set(v string) error {
	key, val, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("metadata must be key=value, got %q", v)
	}
	m[strings.TrimSpace(key)] = val
	return nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	common := addCommonFlags(fs)
	docType := fs.String("type", "document", "document type stored as metadata")
	title := fs.String("title", "", "document title (default: file name)")
	id := fs.String("id", "", "document id (default: generated)")
	meta := metaFlags{}
	fs.Var(meta, "meta", "metadata key=value; repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("ingest: expected one file path, or - for stdin")
	}

	doc, err := readIngestDocument(fs.Arg(0), os.Stdin)
	if err != nil {
		return err
	}
	doc.Type, doc.ID, doc.Metadata = *docType, *id, meta
	if *title != "" {
		doc.Title = *title
	}

	ctx, cancel, eng, err := startEngine(common, newQuietLogger())
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = eng.Close() }()

	out, err := eng.Ingest(ctx, doc)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readIngestDocument reads the document body from path, or from stdin when
// path is "-". File names become the default title.
func readIngestDocument(path string, stdin io.Reader) (retrieval.IngestDocument, error) {
	var (
		data []byte
		err  error
		doc  retrieval.IngestDocument
	)

	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // path is the operator's own file
		doc.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err != nil {
		return retrieval.IngestDocument{}, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	doc.Content = strings.TrimSpace(string(data))
	if doc.Content == "" {
		return retrieval.IngestDocument{}, fmt.Errorf("ingest: %s is empty", path)
	}
	return doc, nil
}
