//go:build windows

package textextract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/eequaled/recall/pkg/segstore"
)

// WindowsOCRRecognizer shells out to scripts/ocr.ps1, which uses
// Windows.Media.Ocr to recognize text at paragraph granularity and emit
// JSON with bounding boxes. This generalizes waddle's pkg/ocr/ocr.go,
// which invoked a similarly-located ocr.ps1 via the same
// exec.Command("powershell", ...) pattern but returned plain text with
// no region bounds; per-region bounds are needed here, so the script
// itself is new.
type WindowsOCRRecognizer struct {
	scriptPath string
}

// NewWindowsOCRRecognizer resolves scripts/ocr.ps1 relative to the
// running executable, falling back to a path relative to the current
// working directory for `go run`-style invocation during development.
func NewWindowsOCRRecognizer() (*WindowsOCRRecognizer, error) {
	candidates := []string{filepath.Join("pkg", "textextract", "scripts", "ocr.ps1")}
	if exe, err := os.Executable(); err == nil {
		candidates = append([]string{filepath.Join(filepath.Dir(exe), "scripts", "ocr.ps1")}, candidates...)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return &WindowsOCRRecognizer{scriptPath: c}, nil
		}
	}
	return nil, fmt.Errorf("ocr.ps1 not found in %v", candidates)
}

type ocrRegionJSON struct {
	Text string `json:"text"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	W    int    `json:"w"`
	H    int    `json:"h"`
}

// Recognize writes pixels to a temp PNG and invokes the PowerShell OCR
// script, parsing its JSON region output.
func (r *WindowsOCRRecognizer) Recognize(pixels segstore.PixelBuffer) ([]OCRRegion, error) {
	tmp, err := os.CreateTemp("", "recall-ocr-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, pixels.ToImage()); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("encode temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}

	cmd := exec.Command("powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", r.scriptPath, "-ImagePath", tmpPath)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ocr execution failed: %w, stderr: %s", err, stderr.String())
	}

	output := strings.TrimSpace(out.String())
	if strings.HasPrefix(output, "Error:") {
		return nil, fmt.Errorf("ocr script error: %s", output)
	}
	if output == "" {
		return nil, nil
	}

	var raw []ocrRegionJSON
	if err := json.Unmarshal([]byte(output), &raw); err != nil {
		return nil, fmt.Errorf("parse ocr output: %w", err)
	}

	regions := make([]OCRRegion, len(raw))
	for i, r := range raw {
		regions[i] = OCRRegion{Text: r.Text, X: r.X, Y: r.Y, W: r.W, H: r.H}
	}
	return regions, nil
}
