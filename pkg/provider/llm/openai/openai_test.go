package openai

import (
	"testing"

	"github.com/MrWong99/finanalyst/pkg/provider/llm"
	"github.com/MrWong99/finanalyst/pkg/types"
)

func TestConvertMessage_Roles(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role  string
		check func(t *testing.T, m types.Message)
	}{
		{"system", func(t *testing.T, m types.Message) {
			p, err := convertMessage(m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.OfSystem == nil {
				t.Fatal("expected OfSystem to be set")
			}
		}},
		{"user", func(t *testing.T, m types.Message) {
			p, err := convertMessage(m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.OfUser == nil {
				t.Fatal("expected OfUser to be set")
			}
		}},
		{"assistant", func(t *testing.T, m types.Message) {
			p, err := convertMessage(m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.OfAssistant == nil {
				t.Fatal("expected OfAssistant to be set")
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			tc.check(t, types.Message{Role: tc.role, Content: "plot TSLA"})
		})
	}
}

func TestConvertMessage_UnsupportedRole(t *testing.T) {
	t.Parallel()
	for _, role := range []string{"tool", "unknown", ""} {
		if _, err := convertMessage(types.Message{Role: role}); err == nil {
			t.Errorf("role %q: expected error, got nil", role)
		}
	}
}

func TestBuildParams_SystemPromptFirst(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You write Python.",
		Messages:     []types.Message{{Role: "user", Content: "plot AAPL"}},
		MaxTokens:    512,
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected first message to be the system prompt")
	}
	if params.ResponseFormat.OfJSONObject == nil {
		t.Error("expected JSON object response format when JSONMode is set")
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	cases := []struct {
		model         string
		contextWindow int
		vision        bool
	}{
		{"gpt-4o-mini", 128_000, true},
		{"gpt-4o", 128_000, true},
		{"gpt-4.1", 1_047_576, true},
		{"gpt-4", 8_192, false},
		{"gpt-3.5-turbo", 16_385, false},
		{"o3-mini", 200_000, false},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			caps := modelCapabilities(tc.model)
			if caps.ContextWindow != tc.contextWindow {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tc.contextWindow)
			}
			if caps.SupportsVision != tc.vision {
				t.Errorf("SupportsVision = %v, want %v", caps.SupportsVision, tc.vision)
			}
		})
	}
}

func TestModelCapabilities_UnknownModel(t *testing.T) {
	t.Parallel()
	caps := modelCapabilities("my-custom-model")
	if caps.ContextWindow <= 0 || caps.MaxOutputTokens <= 0 {
		t.Errorf("unknown model: expected positive defaults, got %+v", caps)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("https://custom.example.com"), WithOrganization("org-123")); err != nil {
		t.Errorf("unexpected error with valid options: %v", err)
	}
}

func TestWithMaxRetries(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		n    int
		want int
	}{
		{"disable", 0, 0},
		{"raise", 3, 3},
		{"negative ignored", -1, defaultMaxRetries},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config{maxRetries: defaultMaxRetries}
			WithMaxRetries(tc.n)(cfg)
			if cfg.maxRetries != tc.want {
				t.Errorf("maxRetries = %d, want %d", cfg.maxRetries, tc.want)
			}
		})
	}
}
