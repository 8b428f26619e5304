package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/dvloznov/qbo-converter/internal/domain"
	"github.com/dvloznov/qbo-converter/internal/extract"
	"github.com/dvloznov/qbo-converter/internal/ingest"
	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/storage"
)

// PipelineStep represents a single step in the conversion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	SourceKey    string
	DerivedKey   string
	OriginalName string
	ContentType  string
	Source       []byte
	Batch        domain.Batch
	Dropped      int
	QBO          []byte

	// AlreadyConverted is set when the derived object exists; later steps
	// become no-ops.
	AlreadyConverted bool
}

// ResolveSourceStep reads the upload's metadata: its original name decides
// the derived key.
type ResolveSourceStep struct {
	Store SourceStore
}

func (s *ResolveSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	info, err := s.Store.Stat(ctx, state.SourceKey)
	if err != nil {
		return fmt.Errorf("stat source %s: %w", state.SourceKey, err)
	}
	if state.ContentType == "" {
		state.ContentType = info.ContentType
	}
	if state.OriginalName == "" {
		state.OriginalName = info.Metadata[ingest.MetaOriginalName]
	}
	if state.OriginalName == "" {
		state.OriginalName = path.Base(state.SourceKey)
	}
	if state.DerivedKey == "" {
		state.DerivedKey = ingest.DerivedKey(state.OriginalName)
	}
	return nil
}

// SkipConvertedStep stops work on sources whose output already exists.
type SkipConvertedStep struct {
	Store SourceStore
}

func (s *SkipConvertedStep) Execute(ctx context.Context, state *PipelineState) error {
	_, err := s.Store.Stat(ctx, state.DerivedKey)
	switch {
	case err == nil:
		state.AlreadyConverted = true
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("probe derived %s: %w", state.DerivedKey, err)
	}
}

// FetchSourceStep loads the uploaded statement's bytes.
type FetchSourceStep struct {
	Store SourceStore
}

func (s *FetchSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.AlreadyConverted {
		return nil
	}
	rc, _, err := s.Store.Open(ctx, state.SourceKey)
	if err != nil {
		return fmt.Errorf("open source %s: %w", state.SourceKey, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read source %s: %w", state.SourceKey, err)
	}
	state.Source = data
	return nil
}

// ExtractStep turns the source bytes into a batch. CSV goes through the
// extractor; PDF goes to the StatementParser when one is configured.
type ExtractStep struct {
	Extractor *extract.Extractor
	Parser    StatementParser
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.AlreadyConverted {
		return nil
	}

	switch formatOf(state.ContentType, state.OriginalName) {
	case "csv":
		batch, stats, err := s.Extractor.Extract(ctx, extract.Source{
			Name:   state.OriginalName,
			Reader: bytes.NewReader(state.Source),
		})
		if err != nil {
			return err
		}
		state.Batch = batch
		state.Dropped = stats.Dropped
	case "pdf":
		if s.Parser == nil {
			return fmt.Errorf("%s: no PDF parser configured: %w", state.OriginalName, ErrUnsupportedFormat)
		}
		batch, err := s.Parser.ParseStatement(ctx, state.Source)
		if err != nil {
			return err
		}
		state.Batch = batch
	default:
		return fmt.Errorf("%s: %w", state.OriginalName, ErrUnsupportedFormat)
	}
	return nil
}

// EncodeStep renders the batch as a QBO document.
type EncodeStep struct {
	Encoder *ofx.Encoder
}

func (s *EncodeStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.AlreadyConverted {
		return nil
	}
	qbo, err := s.Encoder.Encode(state.Batch)
	if err != nil {
		return fmt.Errorf("encode %s: %w", state.SourceKey, err)
	}
	state.QBO = qbo
	return nil
}

// StoreDerivedStep writes the QBO file where status polls look for it.
// Losing a write race to another worker counts as success.
type StoreDerivedStep struct {
	Store SourceStore
}

func (s *StoreDerivedStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.AlreadyConverted {
		return nil
	}
	meta := map[string]string{"source-key": state.SourceKey}
	_, err := s.Store.Put(ctx, state.DerivedKey, ofx.ContentType, meta, bytes.NewReader(state.QBO))
	if errors.Is(err, storage.ErrAlreadyExists) {
		state.AlreadyConverted = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("store derived %s: %w", state.DerivedKey, err)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewConversionPipeline creates the standard pipeline for converting one
// uploaded statement. parser may be nil, in which case PDFs fail as unsupported.
func NewConversionPipeline(store SourceStore, extractor *extract.Extractor, parser StatementParser, encoder *ofx.Encoder) *Pipeline {
	return NewPipeline(
		&ResolveSourceStep{Store: store},
		&SkipConvertedStep{Store: store},
		&FetchSourceStep{Store: store},
		&ExtractStep{Extractor: extractor, Parser: parser},
		&EncodeStep{Encoder: encoder},
		&StoreDerivedStep{Store: store},
	)
}

// formatOf picks the reader for a source, preferring the content type and
// falling back to the file extension.
func formatOf(contentType, name string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(contentType)
	}
	switch mt {
	case ContentTypeCSV, "application/csv", "text/comma-separated-values":
		return "csv"
	case ContentTypePDF:
		return "pdf"
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "csv"
	case ".pdf":
		return "pdf"
	}
	return ""
}
