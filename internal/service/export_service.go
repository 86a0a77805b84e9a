package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
	"github.com/straywatch/straywatch-api/pkg/export"
)

// ExportFormat names a supported rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportIncidentLister interface {
	List(ctx context.Context, filter models.IncidentFilter) ([]models.IncidentReport, int, error)
}

type exportAnimalLister interface {
	List(ctx context.Context, filter models.AnimalFilter) ([]models.Animal, int, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Enabled bool
	MaxRows int
}

// ExportResult carries a rendered register.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders incident and animal registers as CSV or PDF files.
type ExportService struct {
	incidents exportIncidentLister
	animals   exportAnimalLister
	csv       csvRenderer
	pdf       pdfRenderer
	cfg       ExportConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(incidents exportIncidentLister, animals exportAnimalLister, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		incidents: incidents,
		animals:   animals,
		csv:       csv,
		pdf:       pdf,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IncidentRegister renders the incident register, newest first.
func (s *ExportService) IncidentRegister(ctx context.Context, format ExportFormat, dateFrom, dateTo *time.Time) (*ExportResult, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	incidents, _, err := s.incidents.List(ctx, models.IncidentFilter{
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Page:     1,
		PageSize: s.cfg.MaxRows,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load incidents")
	}

	rows := make([]map[string]string, 0, len(incidents))
	for _, incident := range incidents {
		rows = append(rows, map[string]string{
			"ID":           incident.ID,
			"Type":         string(incident.IncidentType),
			"Priority":     string(incident.Priority),
			"Status":       string(incident.Status),
			"Address":      incident.Address,
			"Submitted At": incident.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"ID", "Type", "Priority", "Status", "Address", "Submitted At"},
		Rows:    rows,
	}
	return s.render(dataset, "incident register", format)
}

// AnimalRegister renders the animal custody register.
func (s *ExportService) AnimalRegister(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	animals, _, err := s.animals.List(ctx, models.AnimalFilter{Page: 1, PageSize: s.cfg.MaxRows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load animals")
	}

	rows := make([]map[string]string, 0, len(animals))
	for _, animal := range animals {
		rfid := ""
		if animal.RFID != nil {
			rfid = *animal.RFID
		}
		rows = append(rows, map[string]string{
			"ID":          animal.ID,
			"Species":     animal.Species,
			"Status":      string(animal.Status),
			"RFID":        rfid,
			"Captured By": animal.CapturedBy,
			"Captured At": animal.CaptureDate.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"ID", "Species", "Status", "RFID", "Captured By", "Captured At"},
		Rows:    rows,
	}
	return s.render(dataset, "animal register", format)
}

func (s *ExportService) render(dataset export.Dataset, name string, format ExportFormat) (*ExportResult, error) {
	var payload []byte
	var contentType string
	var err error
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, name)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+string(format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("%s_%s.%s", strings.ReplaceAll(name, " ", "_"), s.now().Format("20060102_150405"), format)
	return &ExportResult{Filename: filename, ContentType: contentType, Payload: payload}, nil
}
