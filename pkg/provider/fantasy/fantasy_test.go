package fantasy

import (
	"context"
	"errors"
	"testing"

	core "charm.land/fantasy"

	"tourdesk/pkg/config"
)

type fakeLanguageModelProvider struct {
	model     core.LanguageModel
	err       error
	lastID    string
	callCount int
}

func (f *fakeLanguageModelProvider) LanguageModel(ctx context.Context, modelID string) (core.LanguageModel, error) {
	f.callCount++
	f.lastID = modelID
	if f.err != nil {
		return nil, f.err
	}

	return f.model, nil
}

type fakeLanguageModel struct{}

func (f *fakeLanguageModel) Generate(context.Context, core.Call) (*core.Response, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLanguageModel) Stream(context.Context, core.Call) (core.StreamResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLanguageModel) GenerateObject(context.Context, core.ObjectCall) (*core.ObjectResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLanguageModel) StreamObject(context.Context, core.ObjectCall) (core.ObjectStreamResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLanguageModel) Provider() string { return "openai" }
func (f *fakeLanguageModel) Model() string    { return "gpt-5-mini" }

func TestNewRequiresAPIKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Capability.Model = "openai/gpt-5-mini"

	_, err := New(cfg, "")
	if err == nil {
		t.Fatal("expected missing api key error")
	}
}

func TestNewRejectsForeignModel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Capability.Model = "anthropic/claude"

	_, err := New(cfg, "sk-test")
	if err == nil {
		t.Fatal("expected unsupported model error")
	}
}

func TestNormalizeOpenAIModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain model", input: "gpt-5-mini", want: "gpt-5-mini"},
		{name: "openai prefixed", input: "openai/gpt-5-mini", want: "gpt-5-mini"},
		{name: "non openai prefixed", input: "anthropic/claude", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeOpenAIModel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeOpenAIModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("normalizeOpenAIModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCompleteSendsSystemMessageAndIsStateless(t *testing.T) {
	provider := &fakeLanguageModelProvider{model: &fakeLanguageModel{}}
	var calls []core.AgentCall
	client := &Client{
		provider: provider,
		modelID:  "gpt-5-mini",
		generate: func(ctx context.Context, model core.LanguageModel, call core.AgentCall) (*core.AgentResult, error) {
			calls = append(calls, call)
			return &core.AgentResult{
				Response: core.Response{
					Content: core.ResponseContent{core.TextContent{Text: ` {"destination":"Nhật Bản"} `}},
				},
			}, nil
		},
	}

	for range 2 {
		got, err := client.Complete(context.Background(), "Return JSON.", "đi Nhật")
		if err != nil {
			t.Fatalf("Complete error: %v", err)
		}
		if got != `{"destination":"Nhật Bản"}` {
			t.Fatalf("Complete() = %q", got)
		}
	}

	if len(calls) != 2 {
		t.Fatalf("generate calls = %d, want 2", len(calls))
	}
	for _, call := range calls {
		if len(call.Messages) != 1 || call.Messages[0].Role != core.MessageRoleSystem {
			t.Fatalf("call messages = %#v, want only the system message", call.Messages)
		}
		if call.Prompt != "đi Nhật" {
			t.Fatalf("call prompt = %q", call.Prompt)
		}
	}
	if provider.lastID != "gpt-5-mini" {
		t.Fatalf("model id = %q", provider.lastID)
	}
}

func TestCompleteErrors(t *testing.T) {
	client := &Client{
		provider: &fakeLanguageModelProvider{err: errors.New("no such model")},
		modelID:  "gpt-5-mini",
	}
	if _, err := client.Complete(context.Background(), "", "đi Nhật"); err == nil {
		t.Fatal("expected model resolution error")
	}

	client = &Client{
		provider: &fakeLanguageModelProvider{model: &fakeLanguageModel{}},
		modelID:  "gpt-5-mini",
		generate: func(context.Context, core.LanguageModel, core.AgentCall) (*core.AgentResult, error) {
			return &core.AgentResult{Response: core.Response{Content: core.ResponseContent{core.ReasoningContent{Text: "thinking"}}}}, nil
		},
	}
	if _, err := client.Complete(context.Background(), "", "đi Nhật"); err == nil {
		t.Fatal("expected empty response error")
	}
	if _, err := client.Complete(context.Background(), "", "   "); err == nil {
		t.Fatal("expected empty input error")
	}
}

func TestExtractText(t *testing.T) {
	content := core.ResponseContent{
		core.ReasoningContent{Text: "ignore me"},
		core.TextContent{Text: "  first  "},
		core.TextContent{Text: ""},
		core.TextContent{Text: "second"},
	}

	if got := extractText(content); got != "first\nsecond" {
		t.Fatalf("extractText() = %q", got)
	}
}
