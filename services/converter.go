package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// PDFConverter turns an Office document on disk into a PDF in outputDir.
type PDFConverter interface {
	Convert(ctx context.Context, scratchPath, outputDir string) (*ConversionResult, error)
}

// ConversionResult reports where the converter wrote the PDF.
type ConversionResult struct {
	PDFPath string
}

// SofficeConverter shells out to LibreOffice in headless mode.
type SofficeConverter struct {
	binary string
}

func NewSofficeConverter(binary string) *SofficeConverter {
	if binary == "" {
		binary = "soffice"
	}
	return &SofficeConverter{binary: binary}
}

func (c *SofficeConverter) Convert(ctx context.Context, scratchPath, outputDir string) (*ConversionResult, error) {
	cmd := exec.CommandContext(ctx, c.binary,
		"--headless", "--convert-to", "pdf", "--outdir", outputDir, scratchPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("soffice conversion failed: %v: %s", err, string(output))
	}

	base := strings.TrimSuffix(filepath.Base(scratchPath), filepath.Ext(scratchPath))
	pdfPath := filepath.Join(outputDir, base+".pdf")

	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("soffice reported success but %s is missing: %w", pdfPath, err)
	}

	return &ConversionResult{PDFPath: pdfPath}, nil
}
