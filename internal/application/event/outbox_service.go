package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/domain/shared"
	"go.uber.org/zap"
)

// requeueBatch is how many dead entries RequeueAllDead moves per round trip
const requeueBatch = 100

// OutboxService is the operator view of the outbox: per-status counts,
// the dead-letter list and requeueing of dead entries.
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, logger: logger.Named("outbox_admin"), now: time.Now}
}

// OutboxEntryDTO is an outbox entry without its payload
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newOutboxEntryDTO(e *shared.OutboxEntry) *OutboxEntryDTO {
	return &OutboxEntryDTO{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// OutboxFilter pages the dead-letter list
type OutboxFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OutboxStatsDTO counts entries per delivery status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// DeadLetters lists entries that ran out of delivery attempts or could not
// be decoded.
func (s *OutboxService) DeadLetters(ctx context.Context, filter OutboxFilter) (*shared.Paginated[OutboxEntryDTO], error) {
	f := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}
	f.Normalize()

	entries, total, err := s.repo.FindDead(ctx, f.Page, f.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list dead outbox entries: %w", err)
	}
	items := make([]OutboxEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, *newOutboxEntryDTO(e))
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

func (s *OutboxService) Entry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newOutboxEntryDTO(e), nil
}

// Requeue gives one dead entry a fresh retry budget. Entries in any other
// status are rejected as an invalid transition.
func (s *OutboxService) Requeue(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.Requeue(s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("requeue outbox entry %s: %w", id, err)
	}
	s.logger.Info("Dead letter entry requeued",
		zap.String("entry_id", id.String()),
		zap.String("event_type", e.EventType),
		zap.String("aggregate_id", e.AggregateID.String()),
	)
	return newOutboxEntryDTO(e), nil
}

// RequeueAllDead requeues every dead entry and returns how many moved.
// Entries whose update fails stay dead and are logged.
func (s *OutboxService) RequeueAllDead(ctx context.Context) (int64, error) {
	var moved int64
	for {
		// requeued entries leave the dead set, so page one always holds the rest
		batch, _, err := s.repo.FindDead(ctx, 1, requeueBatch)
		if err != nil {
			return moved, fmt.Errorf("list dead outbox entries: %w", err)
		}
		round := 0
		for _, e := range batch {
			if e.Requeue(s.now()) != nil {
				continue
			}
			if err := s.repo.Update(ctx, e); err != nil {
				s.logger.Error("Failed to requeue outbox entry", zap.String("entry_id", e.ID.String()), zap.Error(err))
				continue
			}
			round++
		}
		moved += int64(round)
		if len(batch) < requeueBatch || round == 0 {
			break
		}
	}
	s.logger.Info("Requeued dead letter entries", zap.Int64("count", moved))
	return moved, nil
}

func (s *OutboxService) Stats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}
	stats := &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *OutboxService) load(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Outbox entry not found")
	}
	return e, nil
}
