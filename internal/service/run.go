package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/CZERTAINLY/camseeker/internal/bom"
	"github.com/CZERTAINLY/camseeker/internal/model"
)

// Scan implements CLI scan command. The report is written even when the
// run was interrupted.
func Scan(ctx context.Context, config model.Config, target model.Target, opts Options, out io.Writer) error {
	if err := checkFormat(config.Service.Format); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	scanner, err := NewScanner(ctx, config)
	if err != nil {
		return err
	}
	report, runErr := scanner.Do(ctx, target, opts)
	if err := Write(out, config.Service.Format, report); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func checkFormat(format string) error {
	switch format {
	case "", model.FormatText, model.FormatJSON, model.FormatCDX:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Write renders the report in given format.
func Write(w io.Writer, format string, report model.Report) error {
	switch format {
	case "", model.FormatText:
		return NewPrinter(w).Report(report)
	case model.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case model.FormatCDX:
		return bom.FromReport(report).AsJSON(w)
	default:
		return checkFormat(format)
	}
}
