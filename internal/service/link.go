package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// Link limits. Titles and descriptions are counted in runes, URLs in bytes.
const (
	MaxLinkTitleLength       = 100
	MaxLinkDescriptionLength = 300
	MaxLinkURLLength         = 2048
	MaxBatchSize             = 100
)

// OrderClock hands out strictly increasing sort keys based on wall-clock
// milliseconds, so a new link always lands after every link created earlier
// by this process, even within one clock tick. Keys stay below 2^53 and
// survive a round trip through a JavaScript client.
type OrderClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewOrderClock returns a clock reading time.Now.
func NewOrderClock() *OrderClock {
	return &OrderClock{now: time.Now}
}

// Next returns a key greater than every key returned before.
func (c *OrderClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.now().UnixMilli()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return n
}

// LinkService manages each uid's link collection.
type LinkService struct {
	repo   repository.LinkRepository
	clock  *OrderClock
	logger *slog.Logger
}

// NewLinkService creates a LinkService. A nil clock uses NewOrderClock.
func NewLinkService(repo repository.LinkRepository, clock *OrderClock, logger *slog.Logger) *LinkService {
	if clock == nil {
		clock = NewOrderClock()
	}
	return &LinkService{repo: repo, clock: clock, logger: logger}
}

// Add validates in and appends it to uid's collection with clicks = 0.
func (s *LinkService) Add(ctx context.Context, uid string, in model.LinkInput) (*model.Link, error) {
	l := &model.Link{
		UID:         uid,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		URL:         strings.TrimSpace(in.URL),
		Icon:        model.ParseIcon(in.Icon),
	}
	if err := validateLinkFields(&l.Title, &l.Description, &l.URL, true); err != nil {
		return nil, err
	}
	l.Order = s.clock.Next()

	if err := s.repo.Create(ctx, l); err != nil {
		s.logger.Error("failed to create link", slog.String("uid", uid), slog.String("error", err.Error()))
		return nil, storeError("creating link", err)
	}
	s.logger.Info("link created", slog.String("uid", uid), slog.String("id", l.ID))
	return l, nil
}

// List returns uid's links in display order: ascending order, ties by id.
// Repeated calls without writes in between return identical sequences.
func (s *LinkService) List(ctx context.Context, uid string) ([]model.Link, error) {
	links, err := s.repo.List(ctx, uid)
	if err != nil {
		return nil, storeError("listing links", err)
	}
	model.SortLinks(links)
	return links, nil
}

// Get returns one of uid's links.
func (s *LinkService) Get(ctx context.Context, uid, id string) (*model.Link, error) {
	l, err := s.repo.Get(ctx, uid, id)
	if err != nil {
		return nil, storeError("reading link", err)
	}
	return l, nil
}

// Update applies a partial update to one of uid's links. An id that uid does
// not own is NotFound.
func (s *LinkService) Update(ctx context.Context, uid, id string, u model.LinkUpdate) (*model.Link, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "link id is required")
	}
	if err := validateLinkUpdate(&u); err != nil {
		return nil, err
	}
	if u.IsEmpty() {
		return s.Get(ctx, uid, id)
	}
	if err := s.repo.Update(ctx, uid, id, u); err != nil {
		return nil, storeError("updating link", err)
	}
	return s.Get(ctx, uid, id)
}

// Remove deletes one of uid's links. It reports false, with no error, when
// the link was already gone.
func (s *LinkService) Remove(ctx context.Context, uid, id string) (bool, error) {
	err := s.repo.Delete(ctx, uid, id)
	switch {
	case err == nil:
		s.logger.Info("link removed", slog.String("uid", uid), slog.String("id", id))
		return true, nil
	case errors.Is(err, apperror.ErrNotFound):
		return false, nil
	default:
		return false, storeError("removing link", err)
	}
}

// Click counts a visit to one of uid's links and returns it, so the caller
// can redirect to its Href.
func (s *LinkService) Click(ctx context.Context, uid, id string) (*model.Link, error) {
	if err := s.repo.IncrementClicks(ctx, uid, id); err != nil {
		return nil, storeError("counting click", err)
	}
	l, err := s.Get(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// BatchOp is one entry of a BulkSave request.
type BatchOp struct {
	ID     string
	Delete bool
	Update model.LinkUpdate
}

// Batch result statuses.
const (
	BatchUpdated  = "updated"
	BatchDeleted  = "deleted"
	BatchNotFound = "not_found"
	BatchInvalid  = "invalid"
	BatchFailed   = "failed"
)

// BatchResult reports what happened to one BatchOp.
type BatchResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// BulkSave applies ops as independent partial updates, in order. There is no
// atomicity across entries: each result says whether that entry succeeded,
// and a missing id never aborts the rest of the batch.
func (s *LinkService) BulkSave(ctx context.Context, uid string, ops []BatchOp) ([]BatchResult, error) {
	if len(ops) > MaxBatchSize {
		return nil, apperror.ValidationFailed("entries",
			fmt.Sprintf("a batch may hold at most %d entries", MaxBatchSize))
	}

	results := make([]BatchResult, len(ops))
	failed := 0
	for i, op := range ops {
		results[i] = s.applyOne(ctx, uid, op)
		if results[i].Status != BatchUpdated && results[i].Status != BatchDeleted {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Warn("batch partially applied",
			slog.String("uid", uid), slog.Int("entries", len(ops)), slog.Int("failed", failed))
	}
	return results, nil
}

func (s *LinkService) applyOne(ctx context.Context, uid string, op BatchOp) BatchResult {
	r := BatchResult{ID: op.ID}
	if op.ID == "" {
		r.Status, r.Message = BatchInvalid, "link id is required"
		return r
	}

	if op.Delete {
		removed, err := s.Remove(ctx, uid, op.ID)
		switch {
		case err != nil:
			r.Status, r.Message = BatchFailed, err.Error()
		case !removed:
			r.Status = BatchNotFound
		default:
			r.Status = BatchDeleted
		}
		return r
	}

	_, err := s.Update(ctx, uid, op.ID, op.Update)
	switch {
	case err == nil:
		r.Status = BatchUpdated
	case errors.Is(err, apperror.ErrNotFound):
		r.Status = BatchNotFound
	case errors.Is(err, apperror.ErrValidation):
		r.Status, r.Message = BatchInvalid, err.Error()
	default:
		r.Status, r.Message = BatchFailed, err.Error()
	}
	return r
}

func validateLinkUpdate(u *model.LinkUpdate) error {
	if u.Title != nil {
		*u.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		*u.Description = strings.TrimSpace(*u.Description)
	}
	if u.URL != nil {
		*u.URL = strings.TrimSpace(*u.URL)
	}
	return validateLinkFields(u.Title, u.Description, u.URL, false)
}

// validateLinkFields checks the already-trimmed fields. Nil pointers are
// skipped; when required is set, title and url must be present.
func validateLinkFields(title, description, url *string, required bool) error {
	if title != nil || required {
		if title == nil || *title == "" {
			return apperror.ValidationFailed("title", "title is required")
		}
		if utf8.RuneCountInString(*title) > MaxLinkTitleLength {
			return apperror.ValidationFailed("title",
				fmt.Sprintf("title must be %d characters or less", MaxLinkTitleLength))
		}
	}
	if description != nil && utf8.RuneCountInString(*description) > MaxLinkDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxLinkDescriptionLength))
	}
	if url != nil || required {
		if url == nil || *url == "" {
			return apperror.ValidationFailed("url", "url is required")
		}
		if len(*url) > MaxLinkURLLength {
			return apperror.ValidationFailed("url",
				fmt.Sprintf("url must be %d characters or less", MaxLinkURLLength))
		}
		if strings.ContainsAny(*url, " \t\r\n") {
			return apperror.ValidationFailed("url", "url must not contain whitespace")
		}
		lower := strings.ToLower(*url)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
			return apperror.ValidationFailed("url", "url scheme is not allowed")
		}
	}
	return nil
}
