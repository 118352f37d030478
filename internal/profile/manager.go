// internal/profile/manager.go

// Package profile manages the lifecycle of the user's dietary profile.
//
// There are two states. In NoProfile, evaluation applies no restrictions.
// In ProfileSet, the profile (possibly empty) is applied to every search and
// lookup. Set replaces the whole profile; Clear returns to NoProfile.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mcp-diet-check/internal/models"
	"mcp-diet-check/internal/storage"
)

// Manager holds the active profile and persists changes to a [storage.Store].
// Readers get a private copy, so an in-flight search never observes a later
// Set or Clear. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	profile *models.DietaryProfile
	store   storage.Store
	logger  *slog.Logger
}

// SetResult describes the outcome of [Manager.Set].
type SetResult struct {
	Profile   *models.DietaryProfile
	Dropped   []DroppedField
	Persisted bool
}

func NewManager(store storage.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Load reads the stored profile. A missing or unreadable profile leaves the
// manager in NoProfile; the latter is logged and otherwise ignored.
func (m *Manager) Load(ctx context.Context) {
	doc, err := m.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.InfoContext(ctx, "no saved user profile found")
		return
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to load user profile", slog.Any("err", err))
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(doc, &raw); err != nil || raw == nil {
		m.logger.ErrorContext(ctx, "stored user profile is not a JSON object, ignoring it", slog.Any("err", err))
		return
	}

	p, dropped := Parse(raw)
	m.logDropped(ctx, dropped)

	m.mu.Lock()
	m.profile = p
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "user profile loaded", slog.String("profile", p.DisplayName()))
}

// Get returns a copy of the active profile and whether one is set.
func (m *Manager) Get() (*models.DietaryProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.profile.Clone(), m.profile != nil
}

// Set replaces the profile with one parsed from args. Fields left out of args
// are empty in the new profile. A persistence failure is logged and reported
// in the result, but the new profile is still active.
func (m *Manager) Set(ctx context.Context, args map[string]any) SetResult {
	p, dropped := Parse(args)
	m.logDropped(ctx, dropped)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.profile = p
	res := SetResult{Profile: p.Clone(), Dropped: dropped, Persisted: true}

	doc, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		err = m.store.Save(ctx, doc)
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to save user profile", slog.Any("err", err))
		res.Persisted = false
	}

	return res
}

// Clear returns to NoProfile and removes the stored profile. It reports
// whether a profile was set.
func (m *Manager) Clear(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	had := m.profile != nil
	m.profile = nil

	if err := m.store.Delete(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to delete saved user profile", slog.Any("err", err))
	}

	return had
}

// History returns set and clear counts when the store keeps them.
func (m *Manager) History(ctx context.Context) (map[string]int, bool) {
	h, ok := m.store.(interface {
		Events(ctx context.Context) (map[string]int, error)
	})
	if !ok {
		return nil, false
	}
	events, err := h.Events(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to read profile history", slog.Any("err", err))
		return nil, false
	}
	return events, true
}

func (m *Manager) logDropped(ctx context.Context, dropped []DroppedField) {
	for _, d := range dropped {
		m.logger.WarnContext(ctx, "dropped profile field",
			slog.String("field", d.Field),
			slog.String("reason", d.Reason),
		)
	}
}

// Encode returns the profile as stored, for use in responses.
func Encode(p *models.DietaryProfile) (map[string]any, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	return out, nil
}
