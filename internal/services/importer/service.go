package importer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"liaison/internal/ports"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type Request struct {
	Type           string
	FilePath       string
	BatchSize      int
	ImportRecordID string
}

type Result struct {
	ImportRecordID   string `json:"import_record_id,omitempty"`
	Source           string `json:"source"`
	FilePath         string `json:"file_path"`
	Format           string `json:"format"`
	RowsProcessed    int    `json:"rows_processed"`
	Applied          int    `json:"applied"`
	Skipped          int    `json:"skipped"`
	Failed           int    `json:"failed"`
	SHA256FirstChunk string `json:"sha256"`
	ContentType      string `json:"content_type,omitempty"`
	Bucket           string `json:"bucket,omitempty"`
	Key              string `json:"key,omitempty"`
	SizeBytes        int64  `json:"size_bytes,omitempty"`
}

// Tracker persists the lifecycle of one import run.
type Tracker interface {
	Start(ctx context.Context, typ, filePath string) (string, error)
	Finish(ctx context.Context, id string, count, applied, failed int, sha string, runErr error) error
}

type Service struct {
	Opener     ports.FileOpener
	Processors map[string]ports.Processor
	DefaultBS  int
	Tracker    Tracker
	Log        *zap.Logger
}

func NewService(opener ports.FileOpener, registry map[string]ports.Processor, defaultBatch int, log *zap.Logger) *Service {
	if defaultBatch <= 0 {
		defaultBatch = 1000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Opener: opener, Processors: registry, DefaultBS: defaultBatch, Log: log.Named("importer")}
}

func (s *Service) Import(ctx context.Context, req Request) (res Result, err error) {
	t0 := time.Now()
	log := s.Log.With(zap.String("type", req.Type), zap.String("path", req.FilePath))

	proc, ok := s.Processors[req.Type]
	if !ok {
		log.Error("no processor for type")
		return Result{}, errors.New("no processor for type: " + req.Type)
	}

	if req.ImportRecordID == "" && s.Tracker != nil {
		id, terr := s.Tracker.Start(ctx, req.Type, req.FilePath)
		if terr != nil {
			log.Warn("import record not created", zap.Error(terr))
		}
		req.ImportRecordID = id
	}
	if req.ImportRecordID != "" && s.Tracker != nil {
		defer func() {
			if ferr := s.Tracker.Finish(ctx, req.ImportRecordID, res.RowsProcessed, res.Applied, res.Failed, res.SHA256FirstChunk, err); ferr != nil {
				log.Warn("import record not finalized", zap.Error(ferr))
			}
		}()
	}
	ctx = context.WithValue(ctx, ports.CtxImportRecordID, req.ImportRecordID)
	log = log.With(zap.String("import_record_id", req.ImportRecordID))
	log.Info("import started", zap.Int("batch_size", req.BatchSize))

	rc, meta, err := s.Opener.Open(ctx, req.FilePath)
	if err != nil {
		log.Error("open failed", zap.Error(err))
		return Result{ImportRecordID: req.ImportRecordID}, err
	}
	defer rc.Close()

	// the whole body is buffered so a failed format attempt can be retried
	// with the other reader
	hasher := sha256.New()
	body, err := io.ReadAll(io.TeeReader(rc, hasher))
	if err != nil {
		return Result{ImportRecordID: req.ImportRecordID}, err
	}

	format := detectFormat(req.FilePath, meta.ContentType)
	log.Debug("source opened",
		zap.String("source", meta.Source),
		zap.String("content_type", meta.ContentType),
		zap.Int64("size", meta.Size),
		zap.String("detected_format", format),
	)

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.DefaultBS
	}

	read := func(f string) (int, ports.BatchResult, error) {
		if f == "xlsx" {
			return s.streamXLSXFirstSheet(ctx, bytes.NewReader(body), proc, batchSize)
		}
		return s.streamCSV(ctx, bytes.NewReader(body), proc, batchSize)
	}
	order := []string{"xlsx", "csv"}
	if format == "csv" {
		order = []string{"csv", "xlsx"}
	}

	var (
		total   int
		counts  ports.BatchResult
		readErr error
	)
	for _, f := range order {
		total, counts, readErr = read(f)
		var pe *processError
		if errors.As(readErr, &pe) {
			format, readErr = f, pe.err
			break
		}
		if readErr == nil || total > 0 {
			format = f
			break
		}
		log.Debug("reader failed, trying next format", zap.String("format", f), zap.Error(readErr))
	}

	res = Result{
		ImportRecordID:   req.ImportRecordID,
		Source:           meta.Source,
		FilePath:         req.FilePath,
		Format:           format,
		RowsProcessed:    total,
		Applied:          counts.Applied,
		Skipped:          counts.Skipped,
		Failed:           counts.Failed,
		SHA256FirstChunk: hex.EncodeToString(hasher.Sum(nil)),
		ContentType:      meta.ContentType,
		Bucket:           meta.Bucket,
		Key:              meta.Key,
		SizeBytes:        meta.Size,
	}
	if readErr != nil {
		log.Error("read pipeline failed", zap.Int("rows", total), zap.Error(readErr))
		return res, readErr
	}

	log.Info("import finished",
		zap.String("format", format),
		zap.Int("rows", total),
		zap.Int("applied", counts.Applied),
		zap.Int("skipped", counts.Skipped),
		zap.Int("failed", counts.Failed),
		zap.Duration("duration", time.Since(t0)),
	)
	return res, nil
}

func (s *Service) streamCSV(ctx context.Context, r io.Reader, proc ports.Processor, batchSize int) (int, ports.BatchResult, error) {
	var counts ports.BatchResult
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, counts, err
	}
	if len(header) < 2 {
		return 0, counts, errors.New("csv header has fewer than two columns")
	}

	batch := make([]map[string]string, 0, batchSize)
	total := 0
	// header is row 1
	flush := func() error {
		br, e := proc.ProcessBatch(ctx, total+2, batch)
		counts.Add(br)
		if e != nil {
			return &processError{err: e}
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.Log.Warn("csv row skipped", zap.Int("after_row", total+len(batch)+1), zap.Error(err))
			continue
		}
		batch = append(batch, toMap(header, record))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, counts, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return total, counts, err
		}
	}
	return total, counts, nil
}

func (s *Service) streamXLSXFirstSheet(ctx context.Context, r io.Reader, proc ports.Processor, batchSize int) (int, ports.BatchResult, error) {
	var counts ports.BatchResult
	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, counts, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, counts, errors.New("xlsx has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return 0, counts, err
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, counts, rows.Error()
	}
	header, err := rows.Columns()
	if err != nil {
		return 0, counts, err
	}

	batch := make([]map[string]string, 0, batchSize)
	total := 0
	flush := func() error {
		br, e := proc.ProcessBatch(ctx, total+2, batch)
		counts.Add(br)
		if e != nil {
			return &processError{err: e}
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			s.Log.Warn("xlsx row skipped", zap.Int("after_row", total+len(batch)+1), zap.Error(err))
			continue
		}
		batch = append(batch, toMap(header, cols))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, counts, err
			}
		}
	}
	if err := rows.Error(); err != nil {
		return total, counts, err
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return total, counts, err
		}
	}
	return total, counts, nil
}

// processError marks a failure raised by the processor rather than the
// reader, so no other format is attempted.
type processError struct{ err error }

func (e *processError) Error() string { return e.err.Error() }
func (e *processError) Unwrap() error { return e.err }

func toMap(header []string, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, key := range header {
		val := ""
		if i < len(row) {
			val = row[i]
		}
		m[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}
	return m
}

func detectFormat(filePath, contentType string) string {
	p := filePath
	if u, err := url.Parse(filePath); err == nil && u != nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	switch ext {
	case "xlsx":
		return "xlsx"
	case "csv":
		return "csv"
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/csv", "application/csv", "text/plain":
		return "csv"
	}
	return ""
}
