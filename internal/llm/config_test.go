package llm

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider != ProviderGemini {
		t.Errorf("expected provider %s, got %s", ProviderGemini, cfg.Provider)
	}
	if cfg.GetModel(TierLite) == "" {
		t.Error("expected a model for TierLite")
	}
	if cfg.GetModel(TierStandard) == "" {
		t.Error("expected a model for TierStandard")
	}
}

func TestGetModelFallback(t *testing.T) {
	tests := []struct {
		name     string
		models   map[ModelTier]string
		tier     ModelTier
		expected string
	}{
		{"exact match", map[ModelTier]string{TierLite: "m-lite"}, TierLite, "m-lite"},
		{"fallback to standard", map[ModelTier]string{TierStandard: "m-std"}, ModelTier("unknown"), "m-std"},
		{"fallback to lite", map[ModelTier]string{TierLite: "m-lite"}, TierStandard, "m-lite"},
		{"no models", map[ModelTier]string{}, TierLite, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: ProviderGemini, Models: tt.models}
			if got := cfg.GetModel(tt.tier); got != tt.expected {
				t.Errorf("GetModel(%s) = %q, expected %q", tt.tier, got, tt.expected)
			}
		})
	}
}
