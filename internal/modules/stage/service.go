// README: Stage claim engine service (claim / complete / release per stage).
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"kilap/internal/metrics"
	"kilap/internal/modules/order"
	"kilap/internal/types"
)

var (
	ErrUnknownStage       = errors.New("unknown stage")
	ErrStageNotApplicable = errors.New("stage not applicable to this order")
	ErrPhotoRequired      = errors.New("completion photo required")
	ErrShoesRequired      = errors.New("inspection requires at least one shoe")
)

// PhotoStorage is the slice of the blob store the engine needs. Photo bytes
// land in storage before the database transaction opens; a storage failure
// must short-circuit with zero rows written.
type PhotoStorage interface {
	Put(ctx context.Context, path string, r io.Reader) error
}

type Service struct {
	store   *Store
	orders  *order.Store
	photos  PhotoStorage
	metrics *metrics.StageMetrics
}

func NewService(store *Store, orders *order.Store, photos PhotoStorage, m *metrics.StageMetrics) *Service {
	return &Service{store: store, orders: orders, photos: photos, metrics: m}
}

type ClaimCommand struct {
	OrderNumber string
	Stage       Stage
	AdminID     types.ID
}

type CompleteCommand struct {
	OrderNumber string
	Stage       Stage
	AdminID     types.ID
	Photo       io.Reader
	PhotoExt    string // ".jpg", ".png", …
	Note        string
	// Shoes is required for the inspection stage and ignored otherwise.
	Shoes []ShoeSelection
}

type ReleaseCommand struct {
	OrderNumber string
	Stage       Stage
	AdminID     types.ID
	Note        string
}

func (s *Service) resolve(ctx context.Context, number string, st Stage) (Descriptor, *order.Order, error) {
	d, ok := DescriptorFor(st)
	if !ok {
		return Descriptor{}, nil, ErrUnknownStage
	}
	o, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		return Descriptor{}, nil, err
	}
	// Offline orders are dropped off in store; there is no pickup to run.
	if st == StagePickup && o.Type == order.TypeOffline {
		return Descriptor{}, nil, ErrStageNotApplicable
	}
	return d, o, nil
}

func (s *Service) Claim(ctx context.Context, cmd ClaimCommand) error {
	d, o, err := s.resolve(ctx, cmd.OrderNumber, cmd.Stage)
	if err != nil {
		return err
	}
	err = s.store.Claim(ctx, d, o.ID, cmd.AdminID)
	if s.metrics != nil {
		switch {
		case err == nil:
			s.metrics.ClaimsTotal.WithLabelValues(string(d.Stage)).Inc()
		case errors.Is(err, ErrStageLockedByOther):
			s.metrics.ClaimConflictsTotal.WithLabelValues(string(d.Stage), "locked").Inc()
		case errors.Is(err, ErrStageAlreadyCompleted):
			s.metrics.ClaimConflictsTotal.WithLabelValues(string(d.Stage), "completed").Inc()
		}
	}
	return err
}

// PhotoPath derives the stage photo's stable relative path from the order
// number and stage, so retries overwrite rather than orphan.
func PhotoPath(orderNumber string, st Stage, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(orderNumber, string(st)+ext)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	d, o, err := s.resolve(ctx, cmd.OrderNumber, cmd.Stage)
	if err != nil {
		return err
	}
	if cmd.Photo == nil {
		return ErrPhotoRequired
	}
	if d.Stage == StageCheck && len(cmd.Shoes) == 0 {
		return ErrShoesRequired
	}

	photoPath := PhotoPath(o.Number, d.Stage, cmd.PhotoExt)
	if err := s.photos.Put(ctx, photoPath, cmd.Photo); err != nil {
		return fmt.Errorf("storing stage photo: %w", err)
	}

	_, err = s.store.Complete(ctx, d, o.ID, cmd.AdminID, photoPath, cmd.Note, cmd.Shoes)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CompletionsTotal.WithLabelValues(string(d.Stage)).Inc()
	}
	return nil
}

func (s *Service) Release(ctx context.Context, cmd ReleaseCommand) error {
	d, o, err := s.resolve(ctx, cmd.OrderNumber, cmd.Stage)
	if err != nil {
		return err
	}
	if err := s.store.Release(ctx, d, o.ID, cmd.AdminID, cmd.Note); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ReleasesTotal.WithLabelValues(string(d.Stage)).Inc()
	}
	return nil
}

// OpenClaim recomputes the staff member's active claim from the action log.
// There is no cached lock row to go stale; the scan is the lock.
func (s *Service) OpenClaim(ctx context.Context, adminID types.ID) (*OpenClaim, error) {
	actions, err := s.store.RecentActionsByAdmin(ctx, adminID, 200)
	if err != nil {
		return nil, err
	}
	return FindOpenClaim(actions), nil
}

func (s *Service) Photos(ctx context.Context, orderID types.ID) ([]PhotoRecord, error) {
	return s.store.PhotosByOrder(ctx, orderID)
}
