// Package file provides file-based persistence for development and tests.
// Each entity is one JSON document under the root directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fluxionhq/fluxion/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local filesystem.
type Persistence struct {
	root string
	mu   sync.RWMutex

	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	stepLogRepo   *StepLogRepository
	scheduleRepo  *ScheduleRepository
}

func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{persistence: p}
	p.executionRepo = &ExecutionRepository{persistence: p}
	p.stepLogRepo = &StepLogRepository{persistence: p}
	p.scheduleRepo = &ScheduleRepository{persistence: p}

	return p
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) StepLogRepository() persistence.StepLogRepository {
	return p.stepLogRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// write marshals the value into <root>/<collection>/<id>.json.
func (p *Persistence) write(collection, id string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dir := filepath.Join(p.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}

	return nil
}

// read unmarshals <root>/<collection>/<id>.json into out. Missing files
// surface as notFound.
func (p *Persistence) read(collection, id string, out any, notFound error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(p.root, collection, id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}

	return nil
}

// ids lists the entity IDs present in a collection.
func (p *Persistence) ids(collection string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(p.root, collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

func (p *Persistence) remove(collection, id string, notFound error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(filepath.Join(p.root, collection, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound
	}

	return err
}
