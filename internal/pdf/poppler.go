package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
)

// WriteTemp persists uploaded PDF bytes to a scratch file so the poppler
// tools can read them. The returned cleanup removes the whole temp dir and
// must be called on every exit path.
func WriteTemp(data []byte) (path string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "letterpdf-*")
	if err != nil {
		return "", nil, fmt.Errorf("temp dir: %w", err)
	}
	cleanup = func() { _ = os.RemoveAll(tmpDir) }

	outPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write pdf: %w", err)
	}
	return outPath, cleanup, nil
}

func PageCount(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	re := regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)
	m := re.FindStringSubmatch(string(out))
	if len(m) != 2 {
		return 0, fmt.Errorf("pdfinfo: pages not found")
	}
	return strconv.Atoi(m[1])
}

func TextForPage(ctx context.Context, pdfPath string, page int) (string, error) {
	cmd := exec.CommandContext(ctx,
		"pdftotext",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-layout",
		pdfPath,
		"-",
	)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// RasterizeFirstPage renders page 1 to a JPEG at the given DPI. Used when a
// scanned PDF has no usable text layer.
func RasterizeFirstPage(ctx context.Context, pdfPath string, dpi int) ([]byte, error) {
	if dpi <= 0 {
		dpi = 200
	}
	prefix := filepath.Join(filepath.Dir(pdfPath), "page1")
	cmd := exec.CommandContext(ctx,
		"pdftoppm",
		"-f", "1",
		"-l", "1",
		"-r", strconv.Itoa(dpi),
		"-jpeg",
		"-singlefile",
		pdfPath,
		prefix,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}
	data, err := os.ReadFile(prefix + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	return data, nil
}
