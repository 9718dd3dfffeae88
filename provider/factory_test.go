package provider

import (
	"testing"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "ollama needs no key",
			cfg:     Config{Type: ProviderTypeOllama, BaseURL: "http://localhost:11434", Model: "llama3.1"},
			wantErr: false,
		},
		{
			name:    "anthropic with key",
			cfg:     Config{Type: ProviderTypeAnthropic, APIKey: "sk-ant-test"},
			wantErr: false,
		},
		{
			name:    "anthropic without key",
			cfg:     Config{Type: ProviderTypeAnthropic},
			wantErr: true,
		},
		{
			name:    "openai without key",
			cfg:     Config{Type: ProviderTypeOpenAI},
			wantErr: true,
		},
		{
			name:    "openrouter without key",
			cfg:     Config{Type: ProviderTypeOpenRouter},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     Config{Type: "bedrock"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p == nil {
				t.Fatal("nil provider without error")
			}
		})
	}
}

func TestMapProviderIDToType(t *testing.T) {
	tests := []struct {
		id   string
		want ProviderType
	}{
		{"ollama", ProviderTypeOllama},
		{"openrouter", ProviderTypeOpenRouter},
		{"openai", ProviderTypeOpenAI},
		{"anthropic", ProviderTypeAnthropic},
		{"custom", ProviderType("custom")},
	}
	for _, tt := range tests {
		if got := MapProviderIDToType(tt.id); got != tt.want {
			t.Errorf("MapProviderIDToType(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
