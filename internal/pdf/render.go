package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"memorial/internal/logger"
)

// ErrRendererUnavailable is returned when no rasterization backend is
// installed. Rendering is required by the table/ROI extractors, so a
// missing backend is fatal for those code paths rather than a silent
// degradation.
var ErrRendererUnavailable = errors.New("pdftoppm not found in PATH: install poppler-utils")

// Renderer rasterizes a PDF page at a given resolution.
type Renderer interface {
	// RenderPage renders a page (1-based) to a pixel buffer at the
	// given DPI.
	RenderPage(ctx context.Context, path string, pageNumber, dpi int) (image.Image, error)
}

// PopplerRenderer rasterizes pages by shelling out to pdftoppm.
type PopplerRenderer struct {
	bin string
	log zerolog.Logger
}

// NewPopplerRenderer locates pdftoppm and fails fast when it is absent.
func NewPopplerRenderer() (*PopplerRenderer, error) {
	bin, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, ErrRendererUnavailable
	}
	return &PopplerRenderer{
		bin: bin,
		log: logger.WithComponent("renderer"),
	}, nil
}

// RenderPage renders one page to PNG in a temporary directory and
// decodes it.
func (r *PopplerRenderer) RenderPage(ctx context.Context, path string, pageNumber, dpi int) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "memorial-render-")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, r.bin,
		"-png",
		"-r", fmt.Sprintf("%d", dpi),
		"-f", fmt.Sprintf("%d", pageNumber),
		"-l", fmt.Sprintf("%d", pageNumber),
		"-singlefile",
		path,
		prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d of %s: %w: %s", pageNumber, filepath.Base(path), err, out)
	}

	f, err := os.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}

	r.log.Debug().
		Str("file", filepath.Base(path)).
		Int("page", pageNumber).
		Int("dpi", dpi).
		Msg("Rendered page")
	return img, nil
}
