package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"
	"shortlink/pkg/safety"
	"shortlink/pkg/storage"

	"github.com/google/uuid"
)

const (
	defaultValidityMinutes = 30
	maxGenerateAttempts    = 10
	clickWriteTimeout      = 5 * time.Second
	maxCacheTTL            = 24 * time.Hour
)

// LinkService is the shortcode allocation and resolution engine: it creates
// links (delegating uniqueness to the store's atomic insert), resolves codes
// with expiry semantics, records clicks off the redirect path, and enforces
// ownership on mutations.
type LinkService struct {
	storage storage.LinkStorage
	cache   cache.LinkCacheInterface
	checker safety.Checker
	logger  *logging.Logger
	now     func() time.Time

	clicks sync.WaitGroup
}

func NewLinkService(storage storage.LinkStorage, cache cache.LinkCacheInterface, checker safety.Checker, logger *logging.Logger) *LinkService {
	return &LinkService{
		storage: storage,
		cache:   cache,
		checker: checker,
		logger:  logger,
		now:     time.Now,
	}
}

type CreateLinkRequest struct {
	URL             string `json:"url"`
	Shortcode       string `json:"shortcode,omitempty"`
	ValidityMinutes int    `json:"validity,omitempty"`
}

func (s *LinkService) Create(ctx context.Context, req *CreateLinkRequest) (*storage.ShortLink, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}

	validity := req.ValidityMinutes
	if validity == 0 {
		validity = defaultValidityMinutes
	}
	if validity < 0 {
		return nil, fmt.Errorf("%w: validity must be positive", ErrInvalidInput)
	}

	owner := middleware.OwnerFromContext(ctx)
	if owner == uuid.Nil {
		return nil, fmt.Errorf("%w: owner identity missing", ErrInvalidInput)
	}

	verdict := s.checker.Check(ctx, req.URL)
	s.logger.LogURLValidation(ctx, verdict.Safe, verdict.Reason)
	if !verdict.Safe {
		return nil, fmt.Errorf("%w: %s", ErrUnsafeURL, verdict.Reason)
	}

	now := s.now()
	link := &storage.ShortLink{
		Target:    req.URL,
		OwnerID:   owner,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(validity) * time.Minute),
	}

	if req.Shortcode != "" {
		// Custom code: one atomic attempt, conflict goes back to the caller.
		if !ValidateCustomCode(req.Shortcode) {
			return nil, fmt.Errorf("%w: invalid shortcode", ErrInvalidInput)
		}
		link.Code = req.Shortcode
		inserted, err := s.storage.Insert(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}
		if !inserted {
			return nil, ErrCodeTaken
		}
	} else {
		if err := s.insertGenerated(ctx, link); err != nil {
			return nil, err
		}
	}

	s.logger.LogLinkOperation(ctx, "create", link.Code, true)
	return link, nil
}

// insertGenerated claims a fresh generated code. Each attempt is a single
// atomic insert; nothing is held between attempts, so colliding creates
// only ever slow themselves down.
func (s *LinkService) insertGenerated(ctx context.Context, link *storage.ShortLink) error {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		link.Code = code
		inserted, err := s.storage.Insert(ctx, link)
		if err != nil {
			return fmt.Errorf("create link: %w", err)
		}
		if inserted {
			return nil
		}
	}
	return ErrGenerationExhausted
}

// ClickInfo carries the request attributes recorded with a resolution.
type ClickInfo struct {
	Referrer string
	Location string
}

// Resolve returns the live target for a code and records a click. The click
// write runs on its own goroutine with a detached context: the redirect is
// never delayed by click persistence, and a lost click is logged, never
// surfaced.
func (s *LinkService) Resolve(ctx context.Context, code string, info ClickInfo) (string, error) {
	now := s.now()

	if cached, err := s.cache.Get(ctx, code); err == nil && cached != nil {
		if cached.ExpiresAt.After(now) {
			s.recordClick(ctx, code, info)
			return cached.Target, nil
		}
		// Stale entry; drop it and fall through to the store.
		s.cache.Delete(ctx, code)
	}

	link, err := s.storage.GetByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("resolve link: %w", err)
	}
	if link == nil {
		return "", ErrNotFound
	}
	if link.Expired(now) {
		return "", ErrExpired
	}

	ttl := maxCacheTTL
	if remaining := link.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	s.cache.Set(ctx, code, &cache.CachedLink{Target: link.Target, ExpiresAt: link.ExpiresAt}, ttl)

	s.recordClick(ctx, code, info)
	return link.Target, nil
}

func (s *LinkService) recordClick(ctx context.Context, code string, info ClickInfo) {
	ev := storage.ClickEvent{
		Timestamp: s.now(),
		Referrer:  info.Referrer,
		Location:  info.Location,
	}
	if ev.Referrer == "" {
		ev.Referrer = "direct"
	}
	if ev.Location == "" {
		ev.Location = "unknown"
	}

	detached := context.WithoutCancel(ctx)
	s.clicks.Add(1)
	go func() {
		defer s.clicks.Done()
		cctx, cancel := context.WithTimeout(detached, clickWriteTimeout)
		defer cancel()
		if err := s.storage.AppendClick(cctx, code, ev); err != nil {
			s.logger.Error(cctx, "append click failed", "code", code, "err", err)
		}
	}()
}

// Flush waits for in-flight click writes. Called on shutdown and in tests.
func (s *LinkService) Flush() {
	s.clicks.Wait()
}

// LinkStats is the owner-visible view of a link and its click log.
type LinkStats struct {
	OriginalURL string               `json:"originalURL"`
	CreatedAt   time.Time            `json:"createdAt"`
	ExpiryDate  time.Time            `json:"expiryDate"`
	ClickCount  int                  `json:"clickCount"`
	ClickLogs   []storage.ClickEvent `json:"clickLogs"`
}

func (s *LinkService) Stats(ctx context.Context, code string) (*LinkStats, error) {
	link, err := s.ownedLink(ctx, code)
	if err != nil {
		return nil, err
	}

	clicks, err := s.storage.ListClicks(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	if clicks == nil {
		clicks = []storage.ClickEvent{}
	}

	return &LinkStats{
		OriginalURL: link.Target,
		CreatedAt:   link.CreatedAt,
		ExpiryDate:  link.ExpiresAt,
		ClickCount:  len(clicks),
		ClickLogs:   clicks,
	}, nil
}

func (s *LinkService) List(ctx context.Context) ([]*storage.ShortLink, error) {
	owner := middleware.OwnerFromContext(ctx)
	if owner == uuid.Nil {
		return nil, fmt.Errorf("%w: owner identity missing", ErrInvalidInput)
	}
	links, err := s.storage.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

type UpdateLinkRequest struct {
	URL             *string `json:"url,omitempty"`
	ValidityMinutes *int    `json:"validity,omitempty"`
}

// UpdateLinkResult reports the observable expiry transition: setting a new
// validity is the only way an expired link becomes active again.
type UpdateLinkResult struct {
	Link        *storage.ShortLink
	WasExpired  bool
	IsNowActive bool
}

func (s *LinkService) Update(ctx context.Context, code string, req *UpdateLinkRequest) (*UpdateLinkResult, error) {
	link, err := s.ownedLink(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	wasExpired := link.Expired(now)

	if req.URL != nil {
		verdict := s.checker.Check(ctx, *req.URL)
		s.logger.LogURLValidation(ctx, verdict.Safe, verdict.Reason)
		if !verdict.Safe {
			return nil, fmt.Errorf("%w: %s", ErrUnsafeURL, verdict.Reason)
		}
		link.Target = *req.URL
	}

	if req.ValidityMinutes != nil {
		if *req.ValidityMinutes <= 0 {
			return nil, fmt.Errorf("%w: validity must be positive", ErrInvalidInput)
		}
		link.ExpiresAt = now.Add(time.Duration(*req.ValidityMinutes) * time.Minute)
	}

	if err := s.storage.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	s.cache.Delete(ctx, code)
	s.logger.LogLinkOperation(ctx, "update", code, true)

	return &UpdateLinkResult{
		Link:        link,
		WasExpired:  wasExpired,
		IsNowActive: !link.Expired(now),
	}, nil
}

// Delete removes a link permanently. Deleting an absent or non-owned code
// fails with ErrNotFound; it never silently succeeds.
func (s *LinkService) Delete(ctx context.Context, code string) (wasExpired bool, err error) {
	link, err := s.ownedLink(ctx, code)
	if err != nil {
		return false, err
	}
	wasExpired = link.Expired(s.now())

	s.cache.Delete(ctx, code)
	if err := s.storage.Delete(ctx, code); err != nil {
		return false, fmt.Errorf("delete link: %w", err)
	}
	s.logger.LogLinkOperation(ctx, "delete", code, true)
	return wasExpired, nil
}

// ownedLink fetches a link scoped to the calling owner. A non-owned code
// reads the same as an absent one.
func (s *LinkService) ownedLink(ctx context.Context, code string) (*storage.ShortLink, error) {
	owner := middleware.OwnerFromContext(ctx)
	if owner == uuid.Nil {
		return nil, fmt.Errorf("%w: owner identity missing", ErrInvalidInput)
	}
	link, err := s.storage.GetByCodeAndOwner(ctx, code, owner)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	if link == nil {
		return nil, ErrNotFound
	}
	return link, nil
}
