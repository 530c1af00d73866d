// Package syncer orchestrates read-through and write-through traffic between
// the multi-index store and the remote asset service. Every operation either
// fully applies its effect to the store or propagates the error with the
// cache untouched; nothing is ever written speculatively, so there is no
// rollback path.
//
// Operations against the same record are not queued here: a caller racing an
// update against a delete on one id must serialize them itself.
package syncer

import (
	"context"
	"errors"
	"log/slog"

	"assetmirror/internal/metrics"
	"assetmirror/internal/remote"
	"assetmirror/internal/store"
	"assetmirror/internal/validation"
	"assetmirror/pkg/domain"
)

// ListQuery selects the view a list read returns.
type ListQuery struct {
	Type       domain.AssetType
	ActiveOnly bool
}

// Syncer is the single choke point that talks to the remote service.
type Syncer struct {
	store   *store.Store
	client  remote.Client
	metrics metrics.Recorder
	logger  *slog.Logger
}

// Config wires the façade's collaborators.
type Config struct {
	Store   *store.Store
	Client  remote.Client
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// New constructs a façade over the given store and remote client.
func New(cfg Config) *Syncer {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Syncer{
		store:   cfg.Store,
		client:  cfg.Client,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Store exposes the underlying mirror's read accessors.
func (s *Syncer) Store() *store.Store { return s.store }

func (s *Syncer) view(q ListQuery) []domain.Asset {
	switch {
	case q.Type != "":
		return s.store.ListByType(q.Type)
	case q.ActiveOnly:
		return s.store.ListActive()
	default:
		return s.store.List()
	}
}

// servableLocally reports whether list reads can skip the network. A mirror
// that holds records but was never bulk-refreshed (populated only by creates
// and single fetches) is served as-is: every record in it is
// server-confirmed, and the freshness clock only starts ticking once a bulk
// fetch has happened.
func (s *Syncer) servableLocally() bool {
	if s.store.Empty() {
		return false
	}
	if s.store.LastRefreshed().IsZero() {
		return true
	}
	return !s.store.Stale()
}

// ReadList serves the requested view from the mirror when it is populated
// and fresh, with zero network calls. Otherwise it fetches the full record
// set, repopulates the mirror, and returns the view.
func (s *Syncer) ReadList(ctx context.Context, q ListQuery) ([]domain.Asset, error) {
	if s.servableLocally() {
		s.metrics.CacheHit("read_list")
		return s.view(q), nil
	}
	s.metrics.CacheMiss("read_list")

	assets, err := s.fetchAll(ctx)
	if err != nil {
		s.metrics.RemoteError("read_list")
		return nil, err
	}
	s.store.UpsertMany(assets)
	s.metrics.Refresh()
	s.metrics.SetResident(s.store.Len())
	return s.view(q), nil
}

// fetchAll walks the paginated list endpoint until every record is in hand.
func (s *Syncer) fetchAll(ctx context.Context) ([]domain.Asset, error) {
	var all []domain.Asset
	for page := 1; ; page++ {
		result, err := s.client.List(ctx, remote.ListOptions{Page: page})
		if err != nil {
			return nil, err
		}
		all = append(all, result.Assets...)
		if len(result.Assets) == 0 || len(all) >= result.Total {
			return all, nil
		}
	}
}

// ReadOne is cache-first: a mirror hit returns immediately with no network
// call; a miss fetches the record and admits it without marking the whole
// list fresh.
func (s *Syncer) ReadOne(ctx context.Context, id int64) (domain.Asset, error) {
	if a, ok := s.store.GetByID(id); ok {
		s.metrics.CacheHit("read_one")
		return a, nil
	}
	s.metrics.CacheMiss("read_one")

	a, err := s.client.Get(ctx, id)
	if err != nil {
		var nf domain.NotFoundError
		if !errors.As(err, &nf) {
			s.metrics.RemoteError("read_one")
		}
		return domain.Asset{}, err
	}
	s.store.UpsertOne(a)
	s.metrics.SetResident(s.store.Len())
	return a, nil
}

// Create validates the input before any network call, then admits the
// server's authoritative response. The input itself is never inserted: the
// server assigns the primary key and may normalize fields, and a speculative
// insert would risk a second, divergent entry.
func (s *Syncer) Create(ctx context.Context, input domain.NewAssetInput) (domain.Asset, error) {
	if err := validation.ValidateNewAsset(input); err != nil {
		return domain.Asset{}, err
	}
	created, err := s.client.Create(ctx, input)
	if err != nil {
		s.metrics.RemoteError("create")
		return domain.Asset{}, err
	}
	s.store.UpsertOne(created)
	s.metrics.SetResident(s.store.Len())
	return created, nil
}

// Update sends the patch and applies the server's full response, not the
// caller's patch: the server may default or normalize fields the patch never
// touched. On failure the cached record is left byte-identical.
func (s *Syncer) Update(ctx context.Context, id int64, patch domain.AssetPatch) (domain.Asset, error) {
	updated, err := s.client.Update(ctx, id, patch)
	if err != nil {
		s.metrics.RemoteError("update")
		return domain.Asset{}, err
	}
	if _, err := s.store.ApplyPatch(id, domain.PatchFromAsset(updated)); err != nil {
		// A record updated before it was ever read locally lands as an insert.
		var nf domain.NotFoundError
		if !errors.As(err, &nf) {
			return domain.Asset{}, err
		}
		s.store.UpsertOne(updated)
	}
	s.metrics.SetResident(s.store.Len())
	return updated, nil
}

// Delete removes the record from the mirror only after the remote service
// confirms the deletion.
func (s *Syncer) Delete(ctx context.Context, id int64) error {
	if err := s.client.Delete(ctx, id); err != nil {
		s.metrics.RemoteError("delete")
		return err
	}
	s.store.Remove(id)
	s.metrics.SetResident(s.store.Len())
	return nil
}
