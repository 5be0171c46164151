package executor

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
)

// Registry maps node types to executors. Factories are resolved once at
// engine start; lookup during a run is a plain map read.
type Registry struct {
	logger    *slog.Logger
	executors map[string]Executor
	schemas   map[string]*gojsonschema.Schema
	category  map[string]models.CategoryType
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		executors: make(map[string]Executor),
		schemas:   make(map[string]*gojsonschema.Schema),
		category:  make(map[string]models.CategoryType),
	}
}

// Register resolves the factory and compiles its config schema. A factory
// with a broken schema is a programming error, so this panics like any
// other init-time misconfiguration.
func (r *Registry) Register(factory Factory) {
	nodeType := factory.Type()

	r.executors[nodeType] = factory.New()
	r.category[nodeType] = factory.Category()

	if schema := factory.Schema(); schema != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
		if err != nil {
			panic(fmt.Sprintf("invalid config schema for node type %q: %v", nodeType, err))
		}

		r.schemas[nodeType] = compiled
	}

	r.logger.Debug("Registered node type", "node_type", nodeType)
}

// Executor returns the executor for a node type.
func (r *Registry) Executor(nodeType string) (Executor, error) {
	exec, ok := r.executors[nodeType]
	if !ok {
		return nil, flowerr.Configuration("node type %q not registered", nodeType)
	}

	return exec, nil
}

// Types returns all registered node types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.executors))
	for nodeType := range r.executors {
		types = append(types, nodeType)
	}

	return types
}

// ValidateConfig checks a node's configuration against the registered
// schema. Validation failures are terminal.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) error {
	schema, ok := r.schemas[nodeType]
	if !ok {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	document, err := json.Marshal(config)
	if err != nil {
		return flowerr.NonRetriable(fmt.Errorf("failed to encode config for %q: %w", nodeType, err))
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return flowerr.NonRetriable(fmt.Errorf("failed to validate config for %q: %w", nodeType, err))
	}

	if !result.Valid() {
		first := result.Errors()[0]

		return flowerr.Configuration("invalid config for %q: %s", nodeType, first.String())
	}

	return nil
}
