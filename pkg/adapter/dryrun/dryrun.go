// Package dryrun implements the adapter.Adapter the worker engine
// uses in dry-run mode (spec.md §4.6): it never calls a real
// generation backend, it synthesizes a minimal valid output file and
// zero-byte preview placeholders, and always succeeds.
package dryrun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archi3d/archi3d/pkg/adapter"
)

// placeholderGLB is the minimal byte sequence written for a dry-run
// "generated" model: the glTF Binary magic header is enough to make
// the file non-empty and recognizably a placeholder, without
// depending on a real glTF encoder.
var placeholderGLB = []byte("glTF\x02\x00\x00\x00dry-run-placeholder")

// Adapter is the dry-run generation backend.
type Adapter struct{}

// New returns a dry-run Adapter.
func New() *Adapter { return &Adapter{} }

// Execute synthesizes output under req.OutDir without invoking
// anything external.
func (a *Adapter) Execute(ctx context.Context, req adapter.Request) (adapter.Result, error) {
	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return adapter.Result{}, adapter.Permanent(fmt.Errorf("create output dir %q: %w", req.OutDir, err))
	}

	glbPath := filepath.Join(req.OutDir, "generated.glb")
	if err := os.WriteFile(glbPath, placeholderGLB, 0o644); err != nil {
		return adapter.Result{}, adapter.Permanent(fmt.Errorf("write placeholder glb: %w", err))
	}

	previewPath := filepath.Join(req.OutDir, "preview_1.png")
	if err := os.WriteFile(previewPath, nil, 0o644); err != nil {
		return adapter.Result{}, adapter.Permanent(fmt.Errorf("write placeholder preview: %w", err))
	}

	return adapter.Result{
		GeneratedGLB: glbPath,
		Previews:     []string{previewPath},
		AlgoVersion:  "dry-run",
	}, nil
}
