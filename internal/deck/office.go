package deck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spherical/deck-narrator/internal/domain"
)

// fallbackOfficeBinaries are tried when the configured binary is not on PATH.
var fallbackOfficeBinaries = []string{
	"soffice",
	"libreoffice",
	"/usr/bin/soffice",
	"/usr/lib/libreoffice/program/soffice",
	"/opt/libreoffice/program/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
}

// OfficeConverter turns editable decks into PDF through a headless LibreOffice.
type OfficeConverter struct {
	binary  string
	timeout time.Duration
}

// NewOfficeConverter returns a converter using binary, bounded by timeout.
func NewOfficeConverter(binary string, timeout time.Duration) *OfficeConverter {
	return &OfficeConverter{binary: binary, timeout: timeout}
}

// Available reports the resolved binary path, or a RasterizerUnavailable error.
func (c *OfficeConverter) Available() (string, error) {
	candidates := append([]string{c.binary}, fallbackOfficeBinaries...)
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", domain.RasterizerUnavailableError(
		fmt.Sprintf("office application %q not found; install LibreOffice or set SOFFICE_PATH", c.binary), exec.ErrNotFound)
}

// ConvertToPDF converts srcPath into a PDF inside a fresh temporary directory.
// The caller must invoke cleanup once the PDF is no longer needed.
func (c *OfficeConverter) ConvertToPDF(ctx context.Context, srcPath string) (pdfPath string, cleanup func(), err error) {
	binary, err := c.Available()
	if err != nil {
		return "", func() {}, err
	}

	workDir, err := os.MkdirTemp("", "deck-narrator-office-*")
	if err != nil {
		return "", func() {}, domain.IOError("failed to create conversion directory", err)
	}
	cleanup = func() { os.RemoveAll(workDir) }

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// A private profile lets several conversions run at once.
	profile := "file://" + filepath.ToSlash(filepath.Join(workDir, "profile"))
	outDir := filepath.Join(workDir, "out")

	cmd := exec.CommandContext(ctx, binary,
		"-env:UserInstallation="+profile,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		srcPath,
	)
	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		cleanup()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", func() {}, domain.ConversionError(fmt.Sprintf("office conversion timed out after %s", c.timeout), ctx.Err())
		}
		return "", func() {}, domain.ConversionError(
			fmt.Sprintf("office conversion failed: %s", strings.TrimSpace(string(output))), runErr)
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	pdfPath = filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		cleanup()
		return "", func() {}, domain.ConversionError(
			fmt.Sprintf("office conversion produced no PDF: %s", strings.TrimSpace(string(output))), err)
	}

	return pdfPath, cleanup, nil
}
