package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tbarbosa/gitcv/internal/rendering"
	"github.com/tbarbosa/gitcv/internal/schemas"
	"github.com/tbarbosa/gitcv/internal/types"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a previously generated resume content file to PDF",
	Long: `Reads a resume content JSON file (as produced by the generation stage),
fills the LaTeX template with it, and compiles the result to PDF. Useful
for re-rendering without burning LLM calls.`,
	RunE: runRender,
}

var (
	renderContent  string
	renderLanguage string
	renderOutput   string
	renderSaveTex  bool
)

func init() {
	renderCmd.Flags().StringVarP(&renderContent, "content", "c", "", "Path to a resume content JSON file (required)")
	renderCmd.Flags().StringVarP(&renderLanguage, "language", "l", "", "Resume language: en or pt-br")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output PDF path")
	renderCmd.Flags().BoolVar(&renderSaveTex, "save-tex", false, "Keep the intermediate LaTeX source next to the PDF")

	_ = renderCmd.MarkFlagRequired("content")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	rt, err := newRuntime(true)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := rt.cfg
	if cmd.Flags().Changed("language") {
		cfg.Output.Language = renderLanguage
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = renderOutput
	}
	if cmd.Flags().Changed("save-tex") {
		cfg.Output.SaveTex = renderSaveTex
	}

	raw, err := os.ReadFile(renderContent)
	if err != nil {
		return fmt.Errorf("reading content file failed: %w", err)
	}
	if err := schemas.Validate(schemas.ResumeContent, string(raw)); err != nil {
		return fmt.Errorf("content file is not valid resume content: %w", err)
	}
	var content types.ResumeContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return fmt.Errorf("decoding content file failed: %w", err)
	}

	doc, err := rendering.Assemble(cfg.PersonalInfo(), nil, &content, rendering.ParseLanguage(cfg.Output.Language))
	if err != nil {
		return fmt.Errorf("assembling resume failed: %w", err)
	}

	pdfPath := cfg.Output.Path
	texPath := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".tex"
	if dir := filepath.Dir(pdfPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory failed: %w", err)
		}
	}
	if err := os.WriteFile(texPath, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("writing LaTeX source failed: %w", err)
	}

	compiler := rendering.NewToolCompiler(rt.log)
	if err := compiler.Compile(ctx, texPath, pdfPath); err != nil {
		fmt.Printf("Compilation failed; the LaTeX source was kept at %s for inspection.\n", texPath)
		return fmt.Errorf("compiling resume failed: %w", err)
	}

	if cfg.Output.SaveTex {
		fmt.Printf("LaTeX source saved to %s\n", texPath)
	} else if err := os.Remove(texPath); err != nil {
		rt.log.Warn("removing intermediate LaTeX source failed", zap.Error(err))
	}

	fmt.Printf("Resume written to %s\n", pdfPath)
	return nil
}
