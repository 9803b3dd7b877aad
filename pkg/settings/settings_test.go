package settings

import (
	"errors"
	"strings"
	"testing"
)

func ptr(s string) *string { return &s }

func TestPromptsForMergesPerField(t *testing.T) {
	s := &Settings{
		Defaults: ModelPrompts{SystemPrompt: "sys", UserPromptTemplate: "Q: {{query}}", AssistantPrefill: "<response>"},
		Models: map[string]ModelPrompts{
			"claude-3-5-haiku-20241022": {SystemPrompt: "haiku sys"},
			"gpt-4o":                    {AssistantPrefill: ""},
		},
	}

	got := s.PromptsFor("claude-3-5-haiku-20241022")
	want := ModelPrompts{SystemPrompt: "haiku sys", UserPromptTemplate: "Q: {{query}}", AssistantPrefill: "<response>"}
	if got != want {
		t.Errorf("PromptsFor(haiku) = %+v, want %+v", got, want)
	}
	if got := s.PromptsFor("unknown-model"); got != s.Defaults {
		t.Errorf("PromptsFor(unknown) = %+v, want defaults", got)
	}
	if got := s.PromptsFor("gpt-4o"); got != s.Defaults {
		t.Errorf("empty model entry should inherit defaults, got %+v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr string
	}{
		{"default", *Default(), ""},
		{"limit low", Settings{VectorSearchResultLimit: 0}, "vectorSearchResultLimit"},
		{"limit high", Settings{VectorSearchResultLimit: 101}, "vectorSearchResultLimit"},
		{"blank model", Settings{VectorSearchResultLimit: 5, Models: map[string]ModelPrompts{" ": {}}}, "empty model id"},
		{"reserved model", Settings{VectorSearchResultLimit: 5, Models: map[string]ModelPrompts{"default": {}}}, "reserved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestPatchModel(t *testing.T) {
	s := Default()

	s.PatchModel("gpt-4o", PromptsPatch{UserPromptTemplate: ptr("Order: {{query}}")})
	if got := s.Models["gpt-4o"].UserPromptTemplate; got != "Order: {{query}}" {
		t.Errorf("template = %q", got)
	}

	s.PatchModel("gpt-4o", PromptsPatch{SystemPrompt: ptr("terse")})
	mp := s.Models["gpt-4o"]
	if mp.SystemPrompt != "terse" || mp.UserPromptTemplate != "Order: {{query}}" {
		t.Errorf("partial update lost fields: %+v", mp)
	}

	s.PatchModel(DefaultModelKey, PromptsPatch{AssistantPrefill: ptr("<response>")})
	if s.Defaults.AssistantPrefill != "<response>" || s.Defaults.SystemPrompt != DefaultSystemPrompt {
		t.Errorf("defaults = %+v", s.Defaults)
	}

	s.PatchModel("gpt-4o", PromptsPatch{SystemPrompt: ptr(""), UserPromptTemplate: ptr("")})
	if _, ok := s.Models["gpt-4o"]; ok {
		t.Error("cleared model entry should be removed")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := Default()
	s.Models = map[string]ModelPrompts{"a": {SystemPrompt: "x"}}
	cp := s.Clone()
	cp.Models["a"] = ModelPrompts{SystemPrompt: "changed"}
	if s.Models["a"].SystemPrompt != "x" {
		t.Error("clone shares the models map")
	}
}

func TestPromptsPatchEmpty(t *testing.T) {
	if !(PromptsPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	if (PromptsPatch{AssistantPrefill: ptr("")}).Empty() {
		t.Error("clearing patch is not empty")
	}
}
