package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/sopflow/sopflow/pkg/bpmn"
	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
)

// Process manages process definitions. Every save re-parses the diagram so
// an unrenderable or layout-less graph is rejected before it reaches
// storage; nothing downstream ever sees a process that cannot execute.
type Process struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewProcess creates a new process service.
func NewProcess(logger *slog.Logger, p persistence.Persistence) *Process {
	return &Process{
		logger:      logger.With("module", "process-service"),
		persistence: p,
		validate:    validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Process) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns all processes, most recently updated first, each with its
// latest-session status.
func (s *Process) List(ctx context.Context) ([]*models.ProcessSummary, error) {
	summaries, err := s.persistence.Processes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	if summaries == nil {
		summaries = []*models.ProcessSummary{}
	}

	return summaries, nil
}

// FetchByID retrieves a process by its ID.
func (s *Process) FetchByID(ctx context.Context, id int64) (*models.Process, error) {
	return s.persistence.Processes().GetByID(ctx, id)
}

// FetchGraph loads a process and parses its diagram. The parsed graph is
// what every session operation runs against.
func (s *Process) FetchGraph(ctx context.Context, id int64) (*models.Process, *bpmn.Graph, error) {
	process, err := s.persistence.Processes().GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	graph, err := bpmn.Parse([]byte(process.XMLContent))
	if err != nil {
		return nil, nil, fmt.Errorf("stored diagram for process %d no longer parses: %w", id, err)
	}

	return process, graph, nil
}

// Create validates and stores a new process definition.
func (s *Process) Create(ctx context.Context, process *models.Process) (*models.Process, error) {
	if err := s.validateProcess(process); err != nil {
		return nil, err
	}

	process.ID = 0

	saved, err := s.persistence.Processes().Save(ctx, process)
	if err != nil {
		return nil, fmt.Errorf("failed to create process: %w", err)
	}

	return saved, nil
}

// Update replaces an existing process definition.
func (s *Process) Update(ctx context.Context, id int64, process *models.Process) (*models.Process, error) {
	if err := s.validateProcess(process); err != nil {
		return nil, err
	}

	if _, err := s.persistence.Processes().GetByID(ctx, id); err != nil {
		return nil, err
	}

	process.ID = id

	saved, err := s.persistence.Processes().Save(ctx, process)
	if err != nil {
		return nil, fmt.Errorf("failed to update process: %w", err)
	}

	return saved, nil
}

// Delete removes a process and its session.
func (s *Process) Delete(ctx context.Context, id int64) error {
	if _, err := s.persistence.Processes().GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.persistence.Processes().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete process: %w", err)
	}

	return nil
}

// validateProcess rejects incomplete definitions and unparseable diagrams
// before they reach storage.
func (s *Process) validateProcess(process *models.Process) error {
	if process == nil {
		return ErrProcessNil
	}

	if process.Name == "" {
		return ErrProcessNameRequired
	}

	if process.XMLContent == "" {
		return ErrDiagramRequired
	}

	if err := s.validate.Struct(process); err != nil {
		return NewValidationError("validateProcess", "INVALID_PROCESS", err.Error(), ErrInvalidRequest)
	}

	if _, err := bpmn.Parse([]byte(process.XMLContent)); err != nil {
		return NewValidationError("validateProcess", "INVALID_DIAGRAM", err.Error(), ErrInvalidRequest)
	}

	return nil
}
