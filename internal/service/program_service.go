// Package service holds the program transaction manager: every write to
// the program aggregate goes through ProgramService so that validation,
// the allocation conflict check and the child rewrite share one
// transaction.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agroplan/planner/internal/access"
	"github.com/agroplan/planner/internal/model"
	"github.com/agroplan/planner/internal/queue"
	"github.com/agroplan/planner/internal/repository"
)

// CatalogLookup resolves catalog item codes.  ok is false on a miss.
type CatalogLookup interface {
	CultivarCode(ctx context.Context, name string) (code string, ok bool, err error)
	FertilizerCode(ctx context.Context, formulation string) (code string, ok bool, err error)
}

// EventPublisher receives program events after their transaction commits.
type EventPublisher interface {
	PublishProgramChanged(ctx context.Context, ev queue.ProgramChangedEvent) error
}

// ProgramService creates, rewrites, reviews and deletes programs.
type ProgramService struct {
	db         *sql.DB
	programs   *repository.ProgramRepo
	allocs     *repository.AllocationRepo
	plots      *repository.PlotRepo
	lines      *repository.LineRepo
	farms      *repository.ProducerRepo
	treatments *repository.TreatmentRepo
	catalog    CatalogLookup
	events     EventPublisher
	log        *zap.Logger
	newID      func() string
}

// NewProgramService wires the service to db.  catalog and events may be
// nil; a nil catalog leaves every code unresolved and a nil publisher
// drops events.
func NewProgramService(db *sql.DB, catalog CatalogLookup, events EventPublisher, log *zap.Logger) *ProgramService {
	if db == nil {
		panic("nil database passed to NewProgramService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgramService{
		db:         db,
		programs:   repository.NewProgramRepo(db),
		allocs:     repository.NewAllocationRepo(db),
		plots:      repository.NewPlotRepo(db),
		lines:      repository.NewLineRepo(db),
		farms:      repository.NewProducerRepo(db),
		treatments: repository.NewTreatmentRepo(db),
		catalog:    catalog,
		events:     events,
		log:        log,
		newID:      uuid.NewString,
	}
}

// Create validates in, checks every requested plot for conflicts and
// writes the program with all of its children in one transaction.  It
// returns the new program id.
func (s *ProgramService) Create(ctx context.Context, id access.Identity, pred access.Predicate, in ProgramInput) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	farm, err := s.authorizeTarget(ctx, pred, in.ProducerCode, in.FarmCode)
	if err != nil {
		return "", err
	}
	p := &model.Program{
		ID:             s.newID(),
		UserID:         optional(id.UserID),
		ProducerCode:   in.ProducerCode,
		FarmCode:       in.FarmCode,
		ConsultantCode: consultantFor(id, farm),
		AreaHa:         *in.Area,
		SeasonID:       in.SeasonID,
		PeriodID:       in.PeriodID,
		Type:           in.Type,
		Reviewed:       in.Reviewed != nil && *in.Reviewed,
	}
	children := s.buildChildren(ctx, p, in)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.checkPlots(ctx, tx, farm, p, in.PlotIDs); err != nil {
		return "", err
	}
	if err := s.checkConflicts(ctx, tx, p, in.PlotIDs); err != nil {
		return "", err
	}
	if err := s.programs.InsertTx(ctx, tx, p); err != nil {
		return "", fmt.Errorf("insert program: %w", err)
	}
	if err := s.replaceChildren(ctx, tx, p, children, false); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	committed = true

	s.log.Info("program created",
		zap.String("program_id", p.ID),
		zap.String("producer_code", p.ProducerCode),
		zap.String("farm_code", p.FarmCode),
		zap.Int("plots", len(children.Allocations)),
	)
	s.publish(ctx, queue.ActionCreated, p, in.PlotIDs, id)
	return p.ID, nil
}

// Update applies in to the program programID.  A payload carrying only the
// reviewed flag toggles that flag; anything else is a full rewrite of the
// header and of every child row.
func (s *ProgramService) Update(ctx context.Context, id access.Identity, pred access.Predicate, programID string, in ProgramInput) error {
	if in.ReviewedOnly() {
		return s.SetReviewed(ctx, id, pred, programID, *in.Reviewed)
	}
	if err := in.validate(); err != nil {
		return err
	}
	existing, err := s.authorizeExisting(ctx, pred, programID)
	if err != nil {
		return err
	}
	farm, err := s.authorizeTarget(ctx, pred, in.ProducerCode, in.FarmCode)
	if err != nil {
		return err
	}
	p := &model.Program{
		ID:             existing.ID,
		UserID:         optional(id.UserID),
		ProducerCode:   in.ProducerCode,
		FarmCode:       in.FarmCode,
		ConsultantCode: consultantFor(id, farm),
		AreaHa:         *in.Area,
		SeasonID:       in.SeasonID,
		PeriodID:       in.PeriodID,
		Type:           in.Type,
		Reviewed:       existing.Reviewed,
		CreatedAt:      existing.CreatedAt,
	}
	if p.UserID == nil {
		p.UserID = existing.UserID
	}
	if in.Reviewed != nil {
		p.Reviewed = *in.Reviewed
	}
	children := s.buildChildren(ctx, p, in)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := s.programs.GetByIDTx(ctx, tx, programID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProgramNotFound
		}
		return fmt.Errorf("load program: %w", err)
	}
	if err := s.checkPlots(ctx, tx, farm, p, in.PlotIDs); err != nil {
		return err
	}
	if err := s.checkConflicts(ctx, tx, p, in.PlotIDs); err != nil {
		return err
	}
	if err := s.programs.UpdateHeaderTx(ctx, tx, p); err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	if err := s.replaceChildren(ctx, tx, p, children, true); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true

	s.log.Info("program updated",
		zap.String("program_id", p.ID),
		zap.Int("plots", len(children.Allocations)),
	)
	s.publish(ctx, queue.ActionUpdated, p, in.PlotIDs, id)
	return nil
}

// SetReviewed toggles the reviewed flag of programID without touching its
// children or running the conflict check.
func (s *ProgramService) SetReviewed(ctx context.Context, id access.Identity, pred access.Predicate, programID string, reviewed bool) error {
	existing, err := s.authorizeExisting(ctx, pred, programID)
	if err != nil {
		return err
	}
	if err := s.programs.SetReviewed(ctx, programID, reviewed, optional(id.UserID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProgramNotFound
		}
		return fmt.Errorf("set reviewed: %w", err)
	}
	existing.Reviewed = reviewed
	s.log.Info("program reviewed", zap.String("program_id", programID), zap.Bool("reviewed", reviewed))
	s.publish(ctx, queue.ActionReviewed, existing, nil, id)
	return nil
}

// Delete removes programID and all of its children unless treatment
// applications already exist for its producer, farm and season.
func (s *ProgramService) Delete(ctx context.Context, id access.Identity, pred access.Predicate, programID string) error {
	if _, err := s.authorizeExisting(ctx, pred, programID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	p, err := s.programs.GetByIDTx(ctx, tx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProgramNotFound
		}
		return fmt.Errorf("load program: %w", err)
	}
	if p.SeasonID != nil {
		count, names, err := s.treatments.ApplicationsTx(ctx, tx, p.ProducerCode, p.FarmCode, *p.SeasonID)
		if err != nil {
			return fmt.Errorf("check treatment applications: %w", err)
		}
		if count > 0 {
			return &DeletionBlockedError{PlotNames: names, Count: count}
		}
	}
	if err := s.allocs.DeleteByProgramTx(ctx, tx, programID); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}
	if err := s.lines.DeleteByProgramTx(ctx, tx, programID); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	if err := s.programs.DeleteTx(ctx, tx, programID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProgramNotFound
		}
		return fmt.Errorf("delete program: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true

	s.log.Info("program deleted", zap.String("program_id", programID))
	s.publish(ctx, queue.ActionDeleted, p, nil, id)
	return nil
}

// Children returns the allocations and lines of programID.
func (s *ProgramService) Children(ctx context.Context, pred access.Predicate, programID string) (model.ProgramChildren, error) {
	if _, err := s.authorizeExisting(ctx, pred, programID); err != nil {
		return model.ProgramChildren{}, err
	}
	var (
		out model.ProgramChildren
		err error
	)
	if out.Allocations, err = s.allocs.ListByProgram(ctx, programID); err != nil {
		return model.ProgramChildren{}, fmt.Errorf("list allocations: %w", err)
	}
	if out.Cultivars, err = s.lines.CultivarsByProgram(ctx, programID); err != nil {
		return model.ProgramChildren{}, fmt.Errorf("list cultivars: %w", err)
	}
	if out.Fertilizations, err = s.lines.FertilizationsByProgram(ctx, programID); err != nil {
		return model.ProgramChildren{}, fmt.Errorf("list fertilizations: %w", err)
	}
	return out, nil
}

// checkPlots makes sure every requested plot exists on the program's farm
// and is eligible for its season.
func (s *ProgramService) checkPlots(ctx context.Context, tx *sql.Tx, farm *model.Farm, p *model.Program, plotIDs []string) error {
	if p.SeasonID == nil || len(plotIDs) == 0 {
		return nil
	}
	found, err := s.plots.EligibilityTx(ctx, tx, plotIDs, *p.SeasonID)
	if err != nil {
		return fmt.Errorf("load plots: %w", err)
	}
	for _, id := range plotIDs {
		plot, ok := found[id]
		switch {
		case !ok:
			return &ValidationError{Field: "plots", Message: "unknown plot " + id}
		case plot.FarmID != farm.ID:
			return &ValidationError{Field: "plots", Message: "plot " + id + " does not belong to farm " + p.FarmCode}
		case !plot.Eligible:
			return &ValidationError{Field: "plots", Message: "plot " + id + " is not eligible for season " + *p.SeasonID}
		}
	}
	return nil
}

// checkConflicts runs the conflict checker inside tx when a season and at
// least one plot are given.
func (s *ProgramService) checkConflicts(ctx context.Context, tx *sql.Tx, p *model.Program, plotIDs []string) error {
	if p.SeasonID == nil || len(plotIDs) == 0 {
		return nil
	}
	conflicts, err := s.allocs.FindConflictsTx(ctx, tx, repository.ConflictQuery{
		SeasonID:         *p.SeasonID,
		PeriodID:         p.PeriodID,
		FarmCode:         p.FarmCode,
		PlotIDs:          plotIDs,
		ExcludeProgramID: p.ID,
	})
	if err != nil {
		return fmt.Errorf("find conflicts: %w", err)
	}
	if len(conflicts) > 0 {
		s.log.Info("allocation conflict",
			zap.String("program_id", p.ID),
			zap.Strings("plots", (&AllocationConflictError{Plots: conflicts}).PlotIDs()),
		)
		return &AllocationConflictError{Plots: conflicts}
	}
	return nil
}

// replaceChildren is the single child-rewrite operation of the aggregate:
// on update it first removes every allocation and line of p, then inserts
// children.  A uniqueness violation on an allocation becomes an
// AllocationConflictError naming the plot.
func (s *ProgramService) replaceChildren(ctx context.Context, tx *sql.Tx, p *model.Program, children model.ProgramChildren, existing bool) error {
	if existing {
		if err := s.allocs.DeleteByProgramTx(ctx, tx, p.ID); err != nil {
			return fmt.Errorf("delete allocations: %w", err)
		}
		if err := s.lines.DeleteByProgramTx(ctx, tx, p.ID); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}
	}
	if err := s.allocs.InsertTx(ctx, tx, children.Allocations); err != nil {
		var dup *repository.DuplicateAllocationError
		if errors.As(err, &dup) {
			refs, nerr := s.allocs.PlotNamesTx(ctx, tx, []string{dup.PlotID})
			if nerr != nil {
				refs = []repository.PlotRef{{ID: dup.PlotID, Name: dup.PlotID}}
			}
			s.log.Warn("allocation rejected by unique index",
				zap.String("program_id", p.ID),
				zap.String("plot_id", dup.PlotID),
			)
			return &AllocationConflictError{Plots: refs}
		}
		return fmt.Errorf("insert allocations: %w", err)
	}
	if err := s.lines.InsertCultivarsTx(ctx, tx, children.Cultivars); err != nil {
		return fmt.Errorf("insert cultivars: %w", err)
	}
	if err := s.lines.InsertFertilizationsTx(ctx, tx, children.Fertilizations); err != nil {
		return fmt.Errorf("insert fertilizations: %w", err)
	}
	return nil
}

// buildChildren turns the payload into child rows of p and resolves the
// catalog codes.  Lookups are best-effort: a miss or a lookup error leaves
// the code nil.
func (s *ProgramService) buildChildren(ctx context.Context, p *model.Program, in ProgramInput) model.ProgramChildren {
	out := model.ProgramChildren{
		Allocations:    []model.Allocation{},
		Cultivars:      []model.CultivarLine{},
		Fertilizations: []model.FertilizationLine{},
	}
	if p.SeasonID != nil {
		for _, plotID := range in.PlotIDs {
			out.Allocations = append(out.Allocations, model.Allocation{
				ID:        s.newID(),
				ProgramID: p.ID,
				PlotID:    plotID,
				SeasonID:  *p.SeasonID,
				PeriodID:  p.PeriodID,
				FarmCode:  p.FarmCode,
			})
		}
	}
	for _, c := range in.Cultivars {
		line := model.CultivarLine{
			ID:            s.newID(),
			ProgramID:     p.ID,
			Cultivar:      c.Cultivar,
			CultivarCode:  s.resolve(ctx, "cultivar", c.Cultivar, s.cultivarCode),
			CoveragePct:   c.CoveragePct,
			PackagingType: blankToNil(c.PackagingType),
			TreatmentType: c.TreatmentType,
			TreatmentIDs:  []string{},
			Population:    c.Population,
			OwnSeed:       c.OwnSeed,
			RNCReference:  blankToNil(c.RNCReference),
			SeedsPerBag:   c.SeedsPerBag,
			PeriodID:      blankToNil(c.PeriodID),
			Defensives:    []model.OnFarmDefensive{},
		}
		if line.PeriodID == nil {
			line.PeriodID = p.PeriodID
		}
		line.PlantingDate, _ = parseDate(c.PlantingDate)
		if c.TreatmentType != model.TreatmentNone {
			if ids := dedupe(c.TreatmentIDs); len(ids) > 0 {
				line.TreatmentIDs = ids
				first := ids[0]
				line.TreatmentID = &first
			}
		}
		if c.TreatmentType == model.TreatmentOnFarm {
			for _, d := range c.Defensives {
				line.Defensives = append(line.Defensives, model.OnFarmDefensive{
					ID:             s.newID(),
					CultivarLineID: line.ID,
					Class:          blankToNil(d.Class),
					Application:    blankToNil(d.Application),
					Defensive:      strings.TrimSpace(d.Defensive),
					Dose:           d.Dose,
					Coverage:       d.Coverage,
					Total:          d.Total,
					SavedProduct:   d.SavedProduct,
				})
			}
		}
		out.Cultivars = append(out.Cultivars, line)
	}
	for _, f := range in.Fertilizations {
		line := model.FertilizationLine{
			ID:                      s.newID(),
			ProgramID:               p.ID,
			Formulation:             f.Formulation,
			FertilizerCode:          s.resolve(ctx, "fertilizer", f.Formulation, s.fertilizerCode),
			Dose:                    f.Dose,
			CoveragePct:             f.CoveragePct,
			Packaging:               blankToNil(f.Packaging),
			NoFertilizationReasonID: f.NoFertilizationReasonID,
			SavedFertilizer:         f.SavedFertilizer,
			Billable:                f.Billable == nil || *f.Billable,
			SavedPct:                f.SavedPct,
		}
		line.ApplicationDate, _ = parseDate(f.ApplicationDate)
		out.Fertilizations = append(out.Fertilizations, line)
	}
	return out
}

type lookupFunc func(ctx context.Context, name string) (string, bool, error)

func (s *ProgramService) cultivarCode(ctx context.Context, name string) (string, bool, error) {
	return s.catalog.CultivarCode(ctx, name)
}

func (s *ProgramService) fertilizerCode(ctx context.Context, name string) (string, bool, error) {
	return s.catalog.FertilizerCode(ctx, name)
}

func (s *ProgramService) resolve(ctx context.Context, kind, name string, fn lookupFunc) *string {
	if s.catalog == nil || name == "" {
		return nil
	}
	code, ok, err := fn(ctx, name)
	if err != nil {
		s.log.Warn("catalog lookup failed", zap.String("kind", kind), zap.String("name", name), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &code
}

// authorizeTarget loads the farm a write targets and checks it against
// pred.
func (s *ProgramService) authorizeTarget(ctx context.Context, pred access.Predicate, producerCode, farmCode string) (*model.Farm, error) {
	farm, producerConsultant, err := s.farms.FarmByCode(ctx, producerCode, farmCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ValidationError{Field: "farm_code", Message: "unknown farm for producer"}
		}
		return nil, fmt.Errorf("load farm: %w", err)
	}
	res := access.Resource{
		ProducerCode:    producerCode,
		FarmID:          farm.ID,
		ConsultantCodes: []string{deref(farm.ConsultantCode), deref(producerConsultant)},
	}
	if !pred.Allows(res) {
		return nil, &PolicyDenialError{ProducerCode: producerCode, FarmCode: farmCode}
	}
	return farm, nil
}

// authorizeExisting loads programID and checks it against pred the same
// way program listings filter rows.
func (s *ProgramService) authorizeExisting(ctx context.Context, pred access.Predicate, programID string) (*model.Program, error) {
	p, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgramNotFound
		}
		return nil, fmt.Errorf("load program: %w", err)
	}
	if pred.AllowAll {
		return p, nil
	}
	res := access.Resource{
		ProducerCode:    p.ProducerCode,
		ConsultantCodes: []string{deref(p.ConsultantCode)},
	}
	farm, producerConsultant, err := s.farms.FarmByCode(ctx, p.ProducerCode, p.FarmCode)
	switch {
	case err == nil:
		res.FarmID = farm.ID
		res.ConsultantCodes = append(res.ConsultantCodes, deref(farm.ConsultantCode), deref(producerConsultant))
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load farm: %w", err)
	}
	if !pred.Allows(res) {
		return nil, &PolicyDenialError{ProducerCode: p.ProducerCode, FarmCode: p.FarmCode}
	}
	return p, nil
}

func (s *ProgramService) publish(ctx context.Context, action string, p *model.Program, plotIDs []string, id access.Identity) {
	if s.events == nil {
		return
	}
	ev := queue.ProgramChangedEvent{
		ProgramID:    p.ID,
		Action:       action,
		ProducerCode: p.ProducerCode,
		FarmCode:     p.FarmCode,
		SeasonID:     p.SeasonID,
		PeriodID:     p.PeriodID,
		PlotIDs:      plotIDs,
		Reviewed:     p.Reviewed,
		UserID:       id.UserID,
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishProgramChanged(ctx, ev); err != nil {
		s.log.Warn("publish program event failed", zap.String("program_id", p.ID), zap.String("action", action), zap.Error(err))
	}
}

// consultantFor picks the caller's consultant code, else the farm's.
func consultantFor(id access.Identity, farm *model.Farm) *string {
	if id.ConsultantCode != "" {
		c := id.ConsultantCode
		return &c
	}
	if farm != nil && farm.ConsultantCode != nil {
		c := *farm.ConsultantCode
		return &c
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
