package mapping

import (
	"context"
	"fmt"
	"sync"

	"admissions-lifecycle/internal/audit"
	"admissions-lifecycle/internal/authz"
	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/models"
)

// IntegrationsPath is the resource guarding mapping edits.
const IntegrationsPath = "/dashboard/integrations"

// Service applies authorized, audited edits to the shared table. An edit is
// kept only if both the repository save and the audit append succeed.
type Service struct {
	mu       sync.Mutex // serializes edits so rollback restores the right snapshot
	table    *Table
	repo     Repository
	gate     *authz.Gate
	recorder audit.Recorder
	logger   logger.Logger
}

// NewService wires the table to its collaborators. repo may be nil.
func NewService(table *Table, repo Repository, gate *authz.Gate, recorder audit.Recorder, log logger.Logger) *Service {
	return &Service{
		table:    table,
		repo:     repo,
		gate:     gate,
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"component": "field-mapping"}),
	}
}

// Load replaces the table with the persisted one, or seeds the store with the
// current table when nothing is stored yet. Calling it again picks up edits
// saved by other processes.
func (s *Service) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return s.repo.Save(ctx, s.table.Mappings())
	}
	s.table.Replace(stored)
	return nil
}

func (s *Service) Table() *Table { return s.table }

func (s *Service) List(actor models.Actor) ([]models.FieldMapping, error) {
	if err := s.gate.Require(actor, IntegrationsPath); err != nil {
		return nil, err
	}
	return s.table.Mappings(), nil
}

func (s *Service) Add(ctx context.Context, actor models.Actor, source, dest string) error {
	return s.apply(ctx, actor, func(t *Table) (string, error) {
		if err := t.Add(source, dest); err != nil {
			return "", err
		}
		return fmt.Sprintf("Mapped %s -> %s", source, dest), nil
	})
}

func (s *Service) Edit(ctx context.Context, actor models.Actor, index int, source, dest string) error {
	return s.apply(ctx, actor, func(t *Table) (string, error) {
		if err := t.Edit(index, source, dest); err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated mapping %d: %s -> %s", index, source, dest), nil
	})
}

func (s *Service) Remove(ctx context.Context, actor models.Actor, index int) error {
	return s.apply(ctx, actor, func(t *Table) (string, error) {
		before := t.Mappings()
		if err := t.Remove(index); err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed mapping %s", before[index].SourceField), nil
	})
}

func (s *Service) apply(ctx context.Context, actor models.Actor, edit func(*Table) (string, error)) error {
	if err := s.gate.Require(actor, IntegrationsPath); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.table.Mappings()
	detail, err := edit(s.table)
	if err != nil {
		return err
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, s.table.Mappings()); err != nil {
			s.table.Replace(previous)
			return err
		}
	}

	_, err = s.recorder.Append(ctx, models.AuditEntry{
		ActorID:  actor.ID,
		Action:   models.ActionFieldMappingUpdated,
		TargetID: "field-mappings",
		Detail:   detail,
	})
	if err != nil {
		s.table.Replace(previous)
		if s.repo != nil {
			if rbErr := s.repo.Save(ctx, previous); rbErr != nil {
				s.logger.Error("field mapping rollback not persisted", map[string]interface{}{
					"error": rbErr.Error(),
				})
			}
		}
		return apperrors.NewAuditFailureError(err)
	}

	s.logger.Info("field mapping updated", map[string]interface{}{
		"actorId": actor.ID,
		"detail":  detail,
	})
	return nil
}
