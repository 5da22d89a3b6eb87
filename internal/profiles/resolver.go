package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/linetrace/linelist-tracker/internal/common"
	"github.com/linetrace/linelist-tracker/internal/entity"
	"github.com/linetrace/linelist-tracker/internal/grammar"
)

// ErrNoneSelected blocks submission when no profile (preset or custom) has
// been chosen yet.
var ErrNoneSelected = errors.New("no format profile selected")

// ProfileError wraps profile resolution failures.
type ProfileError struct {
	Message string
	Cause   error
}

func (e *ProfileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProfileError) Unwrap() error {
	return e.Cause
}

// Resolver owns the active FormatProfile for the current extraction session.
// The active profile is process-wide mutable state: reads snapshot it
// atomically so a profile edit mid-poll cannot change an in-flight job's
// already-submitted grammar.
type Resolver struct {
	store  *Store
	scope  string
	logger *slog.Logger

	mu     sync.RWMutex
	active *entity.FormatProfile
}

// NewResolver creates a resolver persisting under the given scope key.
func NewResolver(store *Store, scope string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, scope: scope, logger: logger}
}

// SelectPreset replaces the active profile with the named preset.
func (r *Resolver) SelectPreset(name string) (entity.FormatProfile, error) {
	preset, ok := Preset(name)
	if !ok {
		return entity.FormatProfile{}, &ProfileError{Message: fmt.Sprintf("unknown preset %q", name)}
	}

	r.mu.Lock()
	r.active = &preset
	r.mu.Unlock()

	r.logger.Info("profile preset selected", "preset", name, "template", preset.Template())
	return preset.Clone(), nil
}

// SetCustom replaces the active profile with an operator-edited profile.
// The profile is validated structurally and must compile.
func (r *Resolver) SetCustom(profile entity.FormatProfile) error {
	validator := common.NewValidator()
	validator.Field("name", profile.Name, func(field string, value interface{}) *common.ValidationError {
		return common.MaxLength(field, value, 80)
	})
	validator.Field("separator", profile.Separator, common.Required, common.Separator)
	for _, c := range profile.Components {
		validator.Field("component.id", c.ID, common.Required)
		if c.Enabled {
			validator.Field(fmt.Sprintf("component[%s].pattern", c.ID), c.Pattern, common.Required, common.RegexPattern)
		}
	}
	if err := validator.Error(); err != nil {
		return &ProfileError{Message: "invalid custom profile", Cause: err}
	}
	if _, err := grammar.Compile(profile); err != nil {
		return &ProfileError{Message: "custom profile does not compile", Cause: err}
	}

	// Custom profiles are not preset-bound, so the area flag is free.
	profile.Preset = ""
	snapshot := profile.Clone()

	r.mu.Lock()
	r.active = &snapshot
	r.mu.Unlock()

	r.logger.Info("custom profile set", "template", snapshot.Template())
	return nil
}

// Active returns an atomic snapshot of the active profile. It fails with
// ErrNoneSelected when extraction is attempted before any profile is chosen.
func (r *Resolver) Active() (entity.FormatProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return entity.FormatProfile{}, ErrNoneSelected
	}
	return r.active.Clone(), nil
}

// LoadPersisted restores the profile saved under this resolver's scope and
// makes it active. Persisted patterns for known components are normalized
// back to their canonical regexes before use. A missing persisted profile is
// not an error; the resolver simply stays unselected.
func (r *Resolver) LoadPersisted(ctx context.Context) error {
	profile, err := r.store.Load(ctx, r.scope)
	if errors.Is(err, common.ErrNotFound) {
		r.logger.Info("no persisted profile", "scope", r.scope)
		return nil
	}
	if err != nil {
		return &ProfileError{Message: "load persisted profile", Cause: err}
	}

	normalized := grammar.NormalizeProfile(profile)
	if _, err := grammar.Compile(normalized); err != nil {
		// Persisted state is corrupt beyond pattern normalization. Refuse to
		// activate it rather than carry a broken grammar into submissions.
		return &ProfileError{Message: "persisted profile does not compile", Cause: err}
	}

	r.mu.Lock()
	r.active = &normalized
	r.mu.Unlock()

	r.logger.Info("persisted profile loaded", "scope", r.scope, "template", normalized.Template())
	return nil
}

// Save persists the active profile under this resolver's scope. Edits are
// only durable after an explicit save.
func (r *Resolver) Save(ctx context.Context) error {
	profile, err := r.Active()
	if err != nil {
		return err
	}
	if err := r.store.Save(ctx, r.scope, profile); err != nil {
		return &ProfileError{Message: "save profile", Cause: err}
	}
	r.logger.Info("profile saved", "scope", r.scope, "template", profile.Template())
	return nil
}
