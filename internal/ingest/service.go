// Package ingest implements the asynchronous conversion path: statements are
// stored under incoming/, an external converter writes parsed/{name}.qbo, and
// status polls infer progress from whether that object exists yet.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dvloznov/qbo-converter/internal/ofx"
	"github.com/dvloznov/qbo-converter/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultMaxBytes is the largest statement accepted for upload.
const DefaultMaxBytes = 25 << 20

// ProcessingBankStatement is the only processing type this service handles.
const ProcessingBankStatement = "bank-statement"

// Account types accepted on upload.
const (
	AccountBank       = "bank"
	AccountCreditCard = "credit-card"
)

var allowedContentTypes = map[string]string{
	"application/pdf":             "pdf",
	"text/csv":                    "csv",
	"application/csv":             "csv",
	"text/comma-separated-values": "csv",
	"application/vnd.ms-excel":    "xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": "xlsx",
}

// Notifier is told about every stored upload. The bundled worker uses it to
// start converting without waiting for its next scan.
type Notifier interface {
	SourceUploaded(ctx context.Context, sourceKey, originalName string) error
}

// UploadRequest is a validated-on-entry statement upload.
type UploadRequest struct {
	Filename       string
	ContentType    string
	Size           int64
	ProcessingType string
	AccountType    string
	AccountNumber  string
	Body           io.Reader
}

// UploadResult is returned to the uploader.
type UploadResult struct {
	FileKey       string    `json:"fileKey"`
	Bucket        string    `json:"bucket"`
	OriginalName  string    `json:"originalName"`
	Size          int64     `json:"size"`
	AccountType   string    `json:"accountType"`
	AccountNumber string    `json:"accountNumber"`
	UploadedAt    time.Time `json:"uploadedAt"`
	ETag          string    `json:"s3ETag"`
	Location      string    `json:"s3Location"`
}

// Status is the answer to one poll.
type Status struct {
	FileKey       string    `json:"fileKey"`
	ParsedFileKey string    `json:"parsedFileKey"`
	Status        Phase     `json:"status"`
	Message       string    `json:"message"`
	Processed     bool      `json:"processed"`
	QBOURL        *string   `json:"qboUrl"`
	AccountType   string    `json:"accountType"`
	AccountNumber string    `json:"accountNumber"`
	ElapsedTime   int64     `json:"elapsedTime"`
	Timestamp     time.Time `json:"timestamp"`
}

// Download describes a converted file ready to stream.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for keys and elapsed time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(s *Service) { s.maxBytes = n }
}

// WithNotifier registers a Notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDownloadPath sets the URL path status responses point downloads at.
func WithDownloadPath(p string) Option {
	return func(s *Service) { s.downloadPath = p }
}

// Service runs the upload, status and download operations.
type Service struct {
	store        storage.ObjectStore
	log          zerolog.Logger
	now          func() time.Time
	maxBytes     int64
	notifier     Notifier
	downloadPath string
}

// NewService creates a Service on top of an object store.
func NewService(store storage.ObjectStore, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		log:          log,
		now:          time.Now,
		maxBytes:     DefaultMaxBytes,
		downloadPath: "/api/statements/download",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload validates the request and stores the statement under a fresh
// incoming/ key together with the metadata later polls need.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	ext, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	uploadedAt := s.now()
	key := SourceKey(uploadedAt, ext)
	name := path.Base(strings.ReplaceAll(req.Filename, `\`, "/"))

	meta := map[string]string{
		MetaOriginalName:  name,
		MetaAccountType:   req.AccountType,
		MetaAccountNumber: req.AccountNumber,
		MetaUploadedAt:    uploadedAt.UTC().Format(time.RFC3339),
	}

	body := &limitedReader{r: req.Body, remaining: s.maxBytes}
	info, err := s.store.Put(ctx, key, mediaType(req.ContentType), meta, body)
	if body.exceeded {
		return nil, invalid("file", "file exceeds the %d MB limit", s.maxBytes>>20)
	}
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.SourceUploaded(ctx, key, name); err != nil {
			s.log.Warn().Err(err).Str("file_key", key).Msg("Failed to notify converter of upload")
		}
	}

	return &UploadResult{
		FileKey:       key,
		Bucket:        s.store.Bucket(),
		OriginalName:  name,
		Size:          info.Size,
		AccountType:   req.AccountType,
		AccountNumber: req.AccountNumber,
		UploadedAt:    uploadedAt,
		ETag:          info.ETag,
		Location:      info.Location,
	}, nil
}

func (s *Service) validate(req UploadRequest) (string, error) {
	if req.Body == nil || strings.TrimSpace(req.Filename) == "" {
		return "", invalid("file", "a file is required")
	}
	if req.ProcessingType != ProcessingBankStatement {
		return "", invalid("processingType", "must be %q", ProcessingBankStatement)
	}
	if req.AccountType != AccountBank && req.AccountType != AccountCreditCard {
		return "", invalid("accountType", "must be %q or %q", AccountBank, AccountCreditCard)
	}
	if strings.TrimSpace(req.AccountNumber) == "" {
		return "", invalid("accountNumber", "is required")
	}
	if req.Size > s.maxBytes {
		return "", invalid("file", "file exceeds the %d MB limit", s.maxBytes>>20)
	}

	ext, ok := allowedContentTypes[mediaType(req.ContentType)]
	if !ok {
		// Browsers report CSV files inconsistently; trust the extension for plain text.
		fileExt := strings.ToLower(strings.TrimPrefix(path.Ext(req.Filename), "."))
		mt := mediaType(req.ContentType)
		if fileExt == "csv" && (mt == "text/plain" || mt == "application/octet-stream") {
			return "csv", nil
		}
		return "", invalid("file", "unsupported file type %q: upload a PDF, CSV, XLS or XLSX file", req.ContentType)
	}
	if fileExt := strings.ToLower(strings.TrimPrefix(path.Ext(req.Filename), ".")); fileExt != "" {
		ext = fileExt
	}
	return ext, nil
}

// Status answers a poll for fileKey. Every poll reads the upload's metadata
// and probes the derived object named after the stored original filename. An
// originalName from the caller must match that name. A missing derived object
// is the normal processing state, not an error.
func (s *Service) Status(ctx context.Context, fileKey, originalName string) (*Status, error) {
	uploadedAt, ok := ParseSourceKey(fileKey)
	if !ok {
		return nil, invalid("fileKey", "not an upload key")
	}

	src, err := s.statSource(ctx, fileKey)
	if err != nil {
		return nil, err
	}
	name := sourceName(src)
	if originalName != "" && originalName != name {
		return nil, invalid("originalName", "does not match the upload")
	}

	derivedKey := DerivedKey(name)
	exists, err := s.exists(ctx, derivedKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	phase := PhaseFor(uploadedAt, now, exists)

	st := &Status{
		FileKey:       fileKey,
		ParsedFileKey: derivedKey,
		Status:        phase,
		Message:       phase.Message(),
		Processed:     exists,
		AccountType:   src.Metadata[MetaAccountType],
		AccountNumber: src.Metadata[MetaAccountNumber],
		ElapsedTime:   int64(now.Sub(uploadedAt) / time.Second),
		Timestamp:     now,
	}
	if exists {
		u := s.downloadPath + "?fileKey=" + url.QueryEscape(fileKey)
		st.QBOURL = &u
	}
	return st, nil
}

func (s *Service) statSource(ctx context.Context, fileKey string) (storage.ObjectInfo, error) {
	info, err := s.store.Stat(ctx, fileKey)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.ObjectInfo{}, fmt.Errorf("%s: %w", fileKey, ErrUnknownUpload)
	}
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("probe upload %s: %w", fileKey, err)
	}
	return info, nil
}

func (s *Service) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.store.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("probe converted file %s: %w", key, err)
}

// Open streams the converted file for fileKey. The download name comes from
// the original upload, not from the derived key.
func (s *Service) Open(ctx context.Context, fileKey string) (io.ReadCloser, Download, error) {
	if _, ok := ParseSourceKey(fileKey); !ok {
		return nil, Download{}, invalid("fileKey", "not an upload key")
	}

	src, err := s.statSource(ctx, fileKey)
	if err != nil {
		return nil, Download{}, err
	}

	name := sourceName(src)
	rc, info, err := s.store.Open(ctx, DerivedKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, Download{}, fmt.Errorf("%s: %w", fileKey, ErrNotReady)
	}
	if err != nil {
		return nil, Download{}, fmt.Errorf("open converted file: %w", err)
	}

	return rc, Download{
		Filename:    DownloadName(name),
		ContentType: ofx.ContentType,
		Size:        info.Size,
	}, nil
}

// sourceName falls back to the key itself for objects written without metadata.
func sourceName(info storage.ObjectInfo) string {
	if name := info.Metadata[MetaOriginalName]; name != "" {
		return name
	}
	return path.Base(info.Key)
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// limitedReader fails once more than remaining bytes have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

var errTooLarge = errors.New("upload exceeds size limit")

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		l.exceeded = true
		return 0, errTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, errTooLarge
	}
	return n, err
}
