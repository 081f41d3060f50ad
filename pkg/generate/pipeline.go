package generate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/longop"
	"github.com/jacquetc/qleany/pkg/render"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/snapshot"
	"github.com/jacquetc/qleany/pkg/uow"
)

// Options tunes one generation run.
type Options struct {
	// OutputRoot is the directory the relative paths are resolved against.
	OutputRoot string
	// OnlyExisting keeps only descriptors whose file is already on disk.
	OnlyExisting bool
}

// Report is the JSON result of a completed run. Failures are per-file and
// never abort the siblings.
type Report struct {
	Target  string            `json:"target"`
	Written []string          `json:"written"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// Pipeline drives file generation end to end.
type Pipeline struct {
	factory  *uow.Factory
	renderer *render.Renderer
	ops      *longop.Manager
	log      *zap.Logger
}

func NewPipeline(factory *uow.Factory, renderer *render.Renderer, ops *longop.Manager, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{factory: factory, renderer: renderer, ops: ops, log: log}
}

// List enumerates the descriptors for a target without persisting anything.
func (p *Pipeline) List(target domain.TargetLanguage) ([]Descriptor, error) {
	var out []Descriptor
	err := p.factory.Read(func(set *repository.Set) error {
		var err error
		out, err = Descriptors(set, target)
		return err
	})
	return out, err
}

// Generate starts an asynchronous run and returns its operation id. Use the
// long-operation manager to poll status, stream progress or wait.
func (p *Pipeline) Generate(target domain.TargetLanguage, opts Options) (string, error) {
	if !target.Valid() {
		return "", fmt.Errorf("%w: unknown target %q", domain.ErrValidationFailed, target)
	}
	return p.ops.Start(func(h *longop.Handle) ([]byte, error) {
		report, err := p.run(h, target, opts)
		if err != nil {
			return nil, err
		}
		return json.Marshal(report)
	}), nil
}

func (p *Pipeline) run(h *longop.Handle, target domain.TargetLanguage, opts Options) (*Report, error) {
	root := opts.OutputRoot
	if root == "" {
		root = "."
	}

	var descriptors []Descriptor
	if err := p.factory.Read(func(set *repository.Set) error {
		var err error
		descriptors, err = Descriptors(set, target)
		return err
	}); err != nil {
		return nil, err
	}
	if opts.OnlyExisting {
		kept := descriptors[:0]
		for _, d := range descriptors {
			if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(d.RelativePath))); err == nil {
				kept = append(kept, d)
			}
		}
		descriptors = kept
	}
	h.Progress(0, fmt.Sprintf("%d files to generate", len(descriptors)))

	// Persisting the descriptors and clearing the previous run share one
	// transaction, so observers never see a half-replaced file list.
	var fileIDs []domain.EntityID
	if err := p.factory.Write(func(set *repository.Set) error {
		rootRow, err := set.Roots().Get(domain.RootID)
		if err != nil {
			return err
		}
		system, err := set.Systems().Get(rootRow.System)
		if err != nil {
			return err
		}
		for _, old := range system.Files {
			if err := set.Files().Delete(old); err != nil {
				return err
			}
		}
		fileIDs = make([]domain.EntityID, 0, len(descriptors))
		for _, d := range descriptors {
			id, err := set.Files().Create(d.toFile())
			if err != nil {
				return err
			}
			fileIDs = append(fileIDs, id)
		}
		return set.Systems().SetRelationship(system.ID, domain.RelSystemFiles, fileIDs)
	}); err != nil {
		return nil, err
	}

	report := &Report{Target: string(target), Failed: make(map[string]string)}
	cache := snapshot.NewCache()
	for i, id := range fileIDs {
		if h.Cancelled() {
			return nil, domain.ErrCancelledByUser
		}
		var file *domain.File
		var snap *snapshot.Snapshot
		err := p.factory.Read(func(set *repository.Set) error {
			var err error
			if file, err = set.Files().Get(id); err != nil {
				return err
			}
			if cached, ok := cache.Get(file); ok {
				snap = cached
				return nil
			}
			if snap, err = snapshot.NewBuilder(set).Build(file); err != nil {
				return err
			}
			cache.Put(file, snap)
			return nil
		})
		if err != nil {
			return nil, err
		}

		rel := file.RelativePath
		if err := p.emit(root, rel, file.TemplateName, snap); err != nil {
			report.Failed[rel] = err.Error()
			p.log.Warn("file generation failed", zap.String("path", rel), zap.Error(err))
		} else {
			report.Written = append(report.Written, rel)
		}
		h.Progress((i+1)*100/len(fileIDs), rel)
	}
	if len(report.Failed) == 0 {
		report.Failed = nil
	}
	return report, nil
}

// emit renders one template and writes it under root. Runs outside any
// transaction.
func (p *Pipeline) emit(root, rel, templateName string, snap *snapshot.Snapshot) error {
	content, err := p.renderer.Render(templateName, snap)
	if err != nil {
		return err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return nil
}
