// Package settingstest is a behavioral test suite every settings.Store
// implementation runs against itself.
package settingstest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rhuss/voxorder/pkg/settings"
)

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) settings.Store) {
	t.Helper()

	t.Run("CurrentEmpty", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Current(context.Background()); !errors.Is(err, settings.ErrNotFound) {
			t.Fatalf("Current() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("SaveAndCurrent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		in := &settings.Settings{
			Defaults:                settings.ModelPrompts{SystemPrompt: "sys", UserPromptTemplate: "{{query}}"},
			Models:                  map[string]settings.ModelPrompts{"gpt-4o": {AssistantPrefill: "{"}},
			VectorSearchResultLimit: 7,
		}
		if err := s.Save(ctx, in); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Current(ctx)
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if got.Defaults != in.Defaults || got.VectorSearchResultLimit != 7 {
			t.Errorf("got %+v", got)
		}
		if got.Models["gpt-4o"].AssistantPrefill != "{" {
			t.Errorf("models = %+v", got.Models)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("UpdatedAt not set")
		}

		got.Models["gpt-4o"] = settings.ModelPrompts{}
		again, _ := s.Current(ctx)
		if again.Models["gpt-4o"].AssistantPrefill != "{" {
			t.Error("Current returned shared state")
		}
	})

	t.Run("SaveRejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		err := s.Save(context.Background(), &settings.Settings{VectorSearchResultLimit: 0})
		if !errors.Is(err, settings.ErrInvalid) {
			t.Fatalf("Save() = %v, want ErrInvalid", err)
		}
	})

	t.Run("UpdateStartsFromDefault", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Update(context.Background(), func(st *settings.Settings) error {
			st.VectorSearchResultLimit = 30
			return nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.VectorSearchResultLimit != 30 || got.Defaults.SystemPrompt != settings.DefaultSystemPrompt {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("UpdateErrorLeavesState", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Save(ctx, settings.Default()); err != nil {
			t.Fatal(err)
		}
		boom := errors.New("boom")
		_, err := s.Update(ctx, func(st *settings.Settings) error {
			st.VectorSearchResultLimit = 99
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update error = %v, want boom", err)
		}
		_, err = s.Update(ctx, func(st *settings.Settings) error {
			st.VectorSearchResultLimit = 1000
			return nil
		})
		if err == nil {
			t.Fatal("Update accepted invalid settings")
		}
		got, _ := s.Current(ctx)
		if got.VectorSearchResultLimit != settings.DefaultSearchLimit {
			t.Errorf("limit = %d, want unchanged %d", got.VectorSearchResultLimit, settings.DefaultSearchLimit)
		}
	})

	t.Run("ConcurrentUpdates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Save(ctx, &settings.Settings{VectorSearchResultLimit: 1}); err != nil {
			t.Fatal(err)
		}

		const n = 10
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Update(ctx, func(st *settings.Settings) error {
					st.VectorSearchResultLimit++
					return nil
				}); err != nil {
					t.Errorf("Update: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := s.Current(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got.VectorSearchResultLimit != 1+n {
			t.Errorf("limit = %d, want %d (lost update)", got.VectorSearchResultLimit, 1+n)
		}
	})

	t.Run("Seed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seed := &settings.Settings{Defaults: settings.ModelPrompts{SystemPrompt: "seeded"}, VectorSearchResultLimit: 5}

		wrote, err := settings.Seed(ctx, s, seed)
		if err != nil || !wrote {
			t.Fatalf("first Seed = %v, %v", wrote, err)
		}
		wrote, err = settings.Seed(ctx, s, settings.Default())
		if err != nil || wrote {
			t.Fatalf("second Seed = %v, %v", wrote, err)
		}
		got, _ := s.Current(ctx)
		if got.Defaults.SystemPrompt != "seeded" {
			t.Errorf("seed overwritten: %+v", got.Defaults)
		}
	})

	t.Run("CurrentOrDefault", func(t *testing.T) {
		s := newStore(t)
		got, err := settings.CurrentOrDefault(context.Background(), s)
		if err != nil {
			t.Fatal(err)
		}
		if got.VectorSearchResultLimit != settings.DefaultSearchLimit || got.Defaults.SystemPrompt != settings.DefaultSystemPrompt {
			t.Errorf("got %+v", got)
		}
		if _, err := s.Current(context.Background()); err != nil {
			t.Errorf("defaults not saved: %v", err)
		}
	})
}
