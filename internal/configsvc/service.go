package configsvc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const (
	// SnapshotTTL bounds how long a process serves a cached snapshot before
	// consulting durable storage again.
	SnapshotTTL = 30 * time.Second

	versionKey = "config:version"
)

// Service resolves effective flags and provider live/shadow state. The
// snapshot is cached in-process and replaced wholesale, never mutated, so
// concurrent readers always see a consistent view. Mutations bump a shared
// version token, invalidating every process's cache once its TTL lapses.
type Service struct {
	settings   ports.SettingsStore
	shared     ports.SharedStore
	recognized []domain.ProviderConfig
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu        sync.RWMutex
	snapshot  *domain.ConfigSnapshot
	fetchedAt time.Time
}

// New constructs the service with the standard TTL. recognized lists the
// providers this deployment knows about; mutations for any other name are
// rejected, and a recognized provider missing from durable storage is
// created from its entry here.
func New(settings ports.SettingsStore, shared ports.SharedStore, recognized []domain.ProviderConfig, logger *slog.Logger) *Service {
	return &Service{
		settings:   settings,
		shared:     shared,
		recognized: recognized,
		ttl:        SnapshotTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetFlags returns the current snapshot, rebuilding it from durable storage
// when the cached copy is older than the TTL.
func (s *Service) GetFlags(ctx context.Context) (domain.ConfigSnapshot, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		snap := *s.snapshot
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	snap, err := s.build(ctx)
	if err != nil {
		return domain.ConfigSnapshot{}, err
	}

	s.mu.Lock()
	s.snapshot = &snap
	s.fetchedAt = s.now()
	s.mu.Unlock()

	return snap, nil
}

// SetShadowLive flips one provider between live and shadow mode. The durable
// update touches only that provider's row, the shared version token is
// bumped, and the local cache is cleared so the next read rebuilds.
func (s *Service) SetShadowLive(ctx context.Context, provider string, live bool) (domain.ConfigSnapshot, error) {
	snap, err := s.GetFlags(ctx)
	if err != nil {
		return domain.ConfigSnapshot{}, err
	}

	defaults, found := providerDefaults(snap, s.recognized, provider)
	if !found {
		return domain.ConfigSnapshot{}, domain.Validationf("unknown provider %q", provider)
	}

	if err := s.settings.SetProviderShadow(ctx, defaults, !live); err != nil {
		return domain.ConfigSnapshot{}, domain.Transient("update provider shadow", err)
	}

	if _, err := s.shared.Add(ctx, versionKey, 1, 0); err != nil {
		return domain.ConfigSnapshot{}, domain.Transient("bump config version", err)
	}

	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()

	s.debug("provider mode changed", "provider", provider, "live", live)
	return s.GetFlags(ctx)
}

func (s *Service) build(ctx context.Context) (domain.ConfigSnapshot, error) {
	flags, err := s.settings.Flags(ctx)
	if err != nil {
		return domain.ConfigSnapshot{}, domain.Transient("load flags", err)
	}

	providers, err := s.settings.Providers(ctx)
	if err != nil {
		return domain.ConfigSnapshot{}, domain.Transient("load providers", err)
	}

	version, err := s.currentVersion(ctx)
	if err != nil {
		return domain.ConfigSnapshot{}, err
	}

	shadow := map[string]struct{}{}
	for _, p := range providers {
		if p.Shadow {
			shadow[p.Name] = struct{}{}
		}
	}

	if flags == nil {
		flags = map[string]string{}
	}

	return domain.ConfigSnapshot{
		Flags:           flags,
		Providers:       providers,
		ShadowProviders: shadow,
		Version:         version,
	}, nil
}

func (s *Service) currentVersion(ctx context.Context) (int64, error) {
	raw, ok, err := s.shared.Get(ctx, versionKey)
	if err != nil {
		return 0, domain.Transient("read config version", err)
	}
	if !ok {
		// First process to look wins; losers read the winner's token.
		if _, err := s.shared.SetNX(ctx, versionKey, "1", 0); err != nil {
			return 0, domain.Transient("init config version", err)
		}
		raw, _, err = s.shared.Get(ctx, versionKey)
		if err != nil {
			return 0, domain.Transient("read config version", err)
		}
	}

	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed config version %q: %w", raw, err)
	}
	return version, nil
}

func providerDefaults(snap domain.ConfigSnapshot, recognized []domain.ProviderConfig, provider string) (domain.ProviderConfig, bool) {
	for _, p := range snap.Providers {
		if p.Name == provider {
			return p, true
		}
	}
	for _, p := range recognized {
		if p.Name == provider {
			return p, true
		}
	}
	return domain.ProviderConfig{}, false
}

func (s *Service) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
