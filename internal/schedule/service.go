package schedule

import (
	"context"
	"fmt"
	"log"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/google/uuid"
)

// Service orchestrates schedule generation: it compiles the solver request,
// invokes the external solver, and commits the proposal transactionally.
type Service struct {
	store    Store
	gateway  *Gateway
	compiler *Compiler
}

// NewService wires the generation pipeline.
func NewService(store Store, gateway *Gateway, calendar HolidayCalendar) *Service {
	return &Service{
		store:    store,
		gateway:  gateway,
		compiler: &Compiler{Calendar: calendar},
	}
}

// Generate runs one generation for a unit. The solver executes outside any
// storage transaction; only the response is applied transactionally. With
// opts.Commit false the proposal is returned without touching storage.
//
// Overlapping runs for the same unit and window are a caller-responsibility
// race; the service does not serialize them.
func (s *Service) Generate(ctx context.Context, unitID int64, opts GenerateOptions) (*models.GenerateResult, error) {
	runID := uuid.NewString()

	var req models.SolverRequest
	var win Window
	err := s.store.WithTx(ctx, func(tx Tx) error {
		unit, err := tx.Unit(ctx, unitID)
		if err != nil {
			return err
		}
		req, win, err = s.compiler.Compile(ctx, tx, unit, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[SCHEDULE] run=%s unit=%d window=%s..%s preserve=%t solving",
		runID, unitID, win.Start, win.ExtendedEnd, opts.PreserveExisting)

	resp, err := s.gateway.Solve(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &models.GenerateResult{
		RunID:          runID,
		Assignments:    resp.Assignments,
		Committed:      false,
		GeneratedRange: models.DateWindow{StartDate: win.Start, EndDate: win.End},
		Summary:        resp.Summary,
	}
	if !opts.Commit {
		return result, nil
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		unit, err := tx.Unit(ctx, unitID)
		if err != nil {
			return err
		}
		return ApplyGeneration(ctx, tx, unit, resp, win, opts.PreserveExisting)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit generated schedule: %w", err)
	}
	result.Committed = true
	log.Printf("[SCHEDULE] run=%s unit=%d committed %d day entries", runID, unitID, len(resp.Assignments))
	return result, nil
}

// BatchUpsert applies cell-level edits in one all-or-nothing transaction.
func (s *Service) BatchUpsert(ctx context.Context, unitID int64, entries []models.BatchShiftEntry) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		unit, err := tx.Unit(ctx, unitID)
		if err != nil {
			return err
		}
		return ApplyBatch(ctx, tx, unit, entries)
	})
}

// DeleteRange bulk-deletes shifts in a resolved range, cascading to derived
// night follow-ups, in one transaction.
func (s *Service) DeleteRange(ctx context.Context, unitID int64, req models.DeleteRangeRequest) (models.DeleteRangeResult, error) {
	var result models.DeleteRangeResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		unit, err := tx.Unit(ctx, unitID)
		if err != nil {
			return err
		}
		result, err = DeleteShiftRange(ctx, tx, unit, req)
		return err
	})
	if err != nil {
		return models.DeleteRangeResult{}, err
	}
	return result, nil
}
