package rendering

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultCompileTimeout bounds one engine invocation. tectonic downloads
// support packages on its first run, which needs most of this budget.
const DefaultCompileTimeout = 2 * time.Minute

// Compiler produces the final PDF from assembled document source.
type Compiler interface {
	Compile(ctx context.Context, texPath, pdfPath string) error
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// ToolCompiler shells out to a LaTeX engine, preferring tectonic and
// falling back to pdflatex.
type ToolCompiler struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewToolCompiler(log *zap.Logger) *ToolCompiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ToolCompiler{Timeout: DefaultCompileTimeout, Logger: log}
}

type engine struct {
	path string
	args func(texPath, outDir string) []string
}

func resolveEngine() (*engine, error) {
	if path, err := lookPath("tectonic"); err == nil {
		return &engine{path: path, args: func(tex, outDir string) []string {
			return []string{"--outdir", outDir, tex}
		}}, nil
	}
	if path, err := lookPath("pdflatex"); err == nil {
		return &engine{path: path, args: func(tex, outDir string) []string {
			return []string{"-interaction=nonstopmode", "-output-directory", outDir, tex}
		}}, nil
	}
	return nil, &CompilationError{
		Message: "no LaTeX engine found; install tectonic or a TeX distribution providing pdflatex",
	}
}

// Compile runs the engine on texPath and moves the produced PDF to
// pdfPath. The engine writes into a scratch directory so auxiliary files
// never land next to the output.
func (c *ToolCompiler) Compile(ctx context.Context, texPath, pdfPath string) error {
	eng, err := resolveEngine()
	if err != nil {
		return err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCompileTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outDir, err := os.MkdirTemp("", "gitcv-compile-*")
	if err != nil {
		return &CompilationError{Message: "creating the compile directory", Cause: err}
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, eng.path, eng.args(texPath, outDir)...)
	var output strings.Builder
	cmd.Stdout = &output
	cmd.Stderr = &output

	c.Logger.Debug("compiling document",
		zap.String("engine", eng.path),
		zap.String("tex", texPath))
	runErr := cmd.Run()

	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(texPath), ".tex")+".pdf")
	if _, statErr := os.Stat(produced); statErr != nil {
		return &CompilationError{
			Message: "the engine produced no PDF",
			Log:     output.String(),
			Cause:   runErr,
		}
	}
	if runErr != nil {
		// Engines can exit nonzero after writing a usable PDF.
		c.Logger.Warn("engine reported errors but produced a PDF", zap.Error(runErr))
	}

	if err := moveFile(produced, pdfPath); err != nil {
		return &CompilationError{Message: "moving the PDF into place", Cause: err}
	}
	return nil
}

// moveFile renames, falling back to a copy for cross-device targets.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
