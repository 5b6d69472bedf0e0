package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-sis-api/internal/models"
	"github.com/noah-isme/uni-sis-api/pkg/export"
	"github.com/noah-isme/uni-sis-api/pkg/storage"
)

type transcriptProvider interface {
	GetStudentTranscript(ctx context.Context, studentID string) (*models.Transcript, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.TranscriptFormat
	ExpiresAt    time.Time
}

// TranscriptExportService renders transcripts into downloadable files and
// signs their download URLs.
type TranscriptExportService struct {
	transcripts transcriptProvider
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewTranscriptExportService constructs a TranscriptExportService.
func NewTranscriptExportService(transcripts transcriptProvider, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *TranscriptExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &TranscriptExportService{
		transcripts: transcripts,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the transcript dataset for the job's student and stores
// the rendered file.
func (s *TranscriptExportService) Generate(ctx context.Context, job *models.TranscriptJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	transcript, err := s.transcripts.GetStudentTranscript(ctx, job.Params.StudentID)
	if err != nil {
		return nil, err
	}
	dataset, title := buildTranscriptDataset(transcript)

	var payload []byte
	switch job.Params.Format {
	case models.TranscriptFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.TranscriptFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/transcripts/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *TranscriptExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *TranscriptExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *TranscriptExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to ResultTTL when ttl <= 0).
func (s *TranscriptExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *TranscriptExportService) buildFilename(job *models.TranscriptJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	studentPart := sanitizeFilename(job.Params.StudentID)
	return fmt.Sprintf("transcript_%s_%s.%s", studentPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func buildTranscriptDataset(t *models.Transcript) (export.Dataset, string) {
	headers := []string{"Term", "Course Code", "Course Title", "Credits", "Letter", "Grade Point", "Percentage"}
	rows := make([]map[string]string, 0, 16)
	for _, term := range t.Terms {
		for _, course := range term.Courses {
			rows = append(rows, map[string]string{
				"Term":         term.TermName,
				"Course Code":  course.CourseCode,
				"Course Title": course.CourseTitle,
				"Credits":      fmt.Sprintf("%d", course.Credits),
				"Letter":       course.LetterGrade,
				"Grade Point":  fmt.Sprintf("%.2f", course.GradePoint),
				"Percentage":   fmt.Sprintf("%.2f", course.TotalPercentage),
			})
		}
		rows = append(rows, map[string]string{
			"Term":         term.TermName,
			"Course Code":  "",
			"Course Title": "Term GPA",
			"Credits":      fmt.Sprintf("%d", term.CreditsEarned),
			"Letter":       "",
			"Grade Point":  fmt.Sprintf("%.2f", term.GPA),
			"Percentage":   "",
		})
	}
	rows = append(rows, map[string]string{
		"Term":         "",
		"Course Code":  "",
		"Course Title": "Cumulative GPA",
		"Credits":      fmt.Sprintf("%d", t.TotalCredits),
		"Letter":       string(t.Standing),
		"Grade Point":  fmt.Sprintf("%.2f", t.CGPA),
		"Percentage":   "",
	})

	title := fmt.Sprintf("Academic Transcript %s", t.StudentName)
	return export.Dataset{Headers: headers, Rows: rows}, title
}
