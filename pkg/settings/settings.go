// Package settings holds the runtime-editable prompt and search settings
// the engine reads at the start of every run, and the Store contract the
// persistent backends implement.
package settings

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/rhuss/voxorder/pkg/storage"
)

// ErrNotFound is returned by Store.Current when nothing was ever saved.
var ErrNotFound = storage.ErrNotFound

// ErrInvalid wraps every Validate failure.
var ErrInvalid = errors.New("invalid settings")

// Limits for VectorSearchResultLimit.
const (
	MinSearchLimit     = 1
	MaxSearchLimit     = 100
	DefaultSearchLimit = 20
)

// DefaultSystemPrompt is used when settings are created from scratch.
const DefaultSystemPrompt = "You are a helpful assistant"

// DefaultModelKey addresses Settings.Defaults in update requests.
const DefaultModelKey = "default"

// ModelPrompts are the prompts used for one model.
type ModelPrompts struct {
	SystemPrompt       string `json:"systemPrompt,omitempty" yaml:"system_prompt"`
	UserPromptTemplate string `json:"userPromptTemplate,omitempty" yaml:"user_prompt_template"`
	AssistantPrefill   string `json:"assistantPrefill,omitempty" yaml:"assistant_prefill"`
}

// Settings is one snapshot of the editable configuration.
type Settings struct {
	Defaults                ModelPrompts            `json:"defaults" yaml:"defaults"`
	Models                  map[string]ModelPrompts `json:"models,omitempty" yaml:"models"`
	VectorSearchResultLimit int                     `json:"vectorSearchResultLimit" yaml:"vector_search_result_limit"`
	UpdatedAt               time.Time               `json:"updatedAt" yaml:"-"`
}

// Default returns the settings created when a store is empty.
func Default() *Settings {
	return &Settings{
		Defaults:                ModelPrompts{SystemPrompt: DefaultSystemPrompt},
		VectorSearchResultLimit: DefaultSearchLimit,
	}
}

// PromptsFor returns the prompts for modelID. Each field falls back to the
// defaults independently when the model entry leaves it empty.
func (s *Settings) PromptsFor(modelID string) ModelPrompts {
	p := s.Defaults
	m, ok := s.Models[modelID]
	if !ok {
		return p
	}
	if m.SystemPrompt != "" {
		p.SystemPrompt = m.SystemPrompt
	}
	if m.UserPromptTemplate != "" {
		p.UserPromptTemplate = m.UserPromptTemplate
	}
	if m.AssistantPrefill != "" {
		p.AssistantPrefill = m.AssistantPrefill
	}
	return p
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	cp := *s
	cp.Models = maps.Clone(s.Models)
	return &cp
}

// Validate checks the search limit range and model keys.
func (s *Settings) Validate() error {
	var errs []error
	if s.VectorSearchResultLimit < MinSearchLimit || s.VectorSearchResultLimit > MaxSearchLimit {
		errs = append(errs, fmt.Errorf("vectorSearchResultLimit must be between %d and %d, got %d",
			MinSearchLimit, MaxSearchLimit, s.VectorSearchResultLimit))
	}
	for k := range s.Models {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, errors.New("models: empty model id"))
		}
		if k == DefaultModelKey {
			errs = append(errs, fmt.Errorf("models: %q is reserved for the defaults", DefaultModelKey))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// PromptsPatch is a partial update of ModelPrompts. Nil fields are left
// unchanged; an empty string clears the field.
type PromptsPatch struct {
	SystemPrompt       *string `json:"systemPrompt"`
	UserPromptTemplate *string `json:"userPromptTemplate"`
	AssistantPrefill   *string `json:"assistantPrefill"`
}

// Empty reports whether the patch changes nothing.
func (p PromptsPatch) Empty() bool {
	return p.SystemPrompt == nil && p.UserPromptTemplate == nil && p.AssistantPrefill == nil
}

// Apply returns mp with the patch applied.
func (p PromptsPatch) Apply(mp ModelPrompts) ModelPrompts {
	if p.SystemPrompt != nil {
		mp.SystemPrompt = *p.SystemPrompt
	}
	if p.UserPromptTemplate != nil {
		mp.UserPromptTemplate = *p.UserPromptTemplate
	}
	if p.AssistantPrefill != nil {
		mp.AssistantPrefill = *p.AssistantPrefill
	}
	return mp
}

// PatchModel applies patch to the prompts of modelID, or to the defaults
// when modelID is DefaultModelKey. A model entry left with no prompts is
// removed.
func (s *Settings) PatchModel(modelID string, patch PromptsPatch) {
	if modelID == DefaultModelKey {
		s.Defaults = patch.Apply(s.Defaults)
		return
	}
	mp := patch.Apply(s.Models[modelID])
	if mp == (ModelPrompts{}) {
		delete(s.Models, modelID)
		return
	}
	if s.Models == nil {
		s.Models = make(map[string]ModelPrompts)
	}
	s.Models[modelID] = mp
}

// Store persists one Settings document.
type Store interface {
	// Current returns a copy of the saved settings, or ErrNotFound.
	Current(ctx context.Context) (*Settings, error)

	// Save validates and replaces the saved settings.
	Save(ctx context.Context, s *Settings) error

	// Update applies fn to the current settings (Default() when none are
	// saved) and saves the result atomically with respect to other updates.
	Update(ctx context.Context, fn func(*Settings) error) (*Settings, error)

	// Close releases the store's resources.
	Close() error
}

// Seed saves s when the store holds no settings yet. It reports whether
// the seed was written.
func Seed(ctx context.Context, store Store, s *Settings) (bool, error) {
	_, err := store.Current(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err := store.Save(ctx, s); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentOrDefault returns the saved settings. When none exist it saves and
// returns Default().
func CurrentOrDefault(ctx context.Context, store Store) (*Settings, error) {
	s, err := store.Current(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return store.Update(ctx, func(*Settings) error { return nil })
}
