package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
)

func baseConfig() Config {
	return Config{
		APIKey:                "key",
		Model:                 "default/model",
		MaxCompletionToken:    1000,
		SupervisorTemperature: -1,
		SalesTemperature:      -1,
		GeneratorTemperature:  -1,
		RAGTemperature:        -1,
	}
}

func TestOpenRouterForTemperatures(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cases := map[contractx.AgentType]float32{
		contractx.AgentTypeSupervisor: 0,
		contractx.AgentTypeSales:      0,
		contractx.AgentTypeRAG:        0,
		contractx.AgentTypeGenerator:  0.7,
	}
	for agentType, want := range cases {
		got := cfg.OpenRouterFor(agentType)
		if got.Temperature != want {
			t.Fatalf("%s temperature = %v, want %v", agentType, got.Temperature, want)
		}
		if got.Model != "default/model" {
			t.Fatalf("%s model = %q", agentType, got.Model)
		}
	}
}

func TestOpenRouterForOverrides(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.SalesModel = "sales/model"
	cfg.SalesTemperature = 0.2

	got := cfg.OpenRouterFor(contractx.AgentTypeSales)
	if got.Model != "sales/model" || got.Temperature != 0.2 {
		t.Fatalf("unexpected override result: model=%q temp=%v", got.Model, got.Temperature)
	}
	if got.MaxCompletionToken == nil || *got.MaxCompletionToken != 1000 {
		t.Fatalf("unexpected max tokens: %v", got.MaxCompletionToken)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.APIKey = " "
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
