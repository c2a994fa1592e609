package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	openrouterx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/openrouter"
)

const (
	deterministicTemperature float32 = 0
	creativeTemperature      float32 = 0.7
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SupervisorModel       string  `envconfig:"SUPERVISOR_MODEL" split_words:"true"`
	SalesModel            string  `envconfig:"SALES_MODEL" split_words:"true"`
	GeneratorModel        string  `envconfig:"GENERATOR_MODEL" split_words:"true"`
	RAGModel              string  `envconfig:"RAG_MODEL" split_words:"true"`
	SupervisorTemperature float32 `envconfig:"SUPERVISOR_TEMPERATURE" split_words:"true" default:"-1"`
	SalesTemperature      float32 `envconfig:"SALES_TEMPERATURE" split_words:"true" default:"-1"`
	GeneratorTemperature  float32 `envconfig:"GENERATOR_TEMPERATURE" split_words:"true" default:"-1"`
	RAGTemperature        float32 `envconfig:"RAG_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model and temperature for one agent type.
// Routing, tool use and grounded answers run deterministic; content
// generation runs at 0.7. Negative overrides mean "use the default".
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := deterministicTemperature

	pick := func(model string, override float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if override >= 0 {
			temp = override
		}
	}

	switch agentType {
	case contractx.AgentTypeSupervisor:
		pick(c.SupervisorModel, c.SupervisorTemperature)
	case contractx.AgentTypeSales:
		pick(c.SalesModel, c.SalesTemperature)
	case contractx.AgentTypeGenerator, contractx.AgentTypeMarketing:
		temp = creativeTemperature
		pick(c.GeneratorModel, c.GeneratorTemperature)
	case contractx.AgentTypeRAG, contractx.AgentTypeService:
		pick(c.RAGModel, c.RAGTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
