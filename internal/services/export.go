package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrExportNotImplemented = errors.New("export is not implemented yet")
	ErrUnsupportedFormat    = errors.New("unsupported export format")
)

// Export formats offered by the report page.
const (
	FormatPDF   = "pdf"
	FormatExcel = "excel"
)

// Exporter accepts export requests for reports. Document generation does
// not exist yet: after a short delay every valid request ends in
// ErrExportNotImplemented.
type Exporter struct {
	delay time.Duration
}

func NewExporter(delay time.Duration) *Exporter {
	return &Exporter{delay: delay}
}

func (e *Exporter) Export(ctx context.Context, format string) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatPDF && format != FormatExcel {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	return fmt.Errorf("%s: %w", format, ErrExportNotImplemented)
}
