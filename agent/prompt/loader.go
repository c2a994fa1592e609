package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
)

var (
	//go:embed template/supervisor.txt
	supervisorRaw string

	//go:embed template/sales.txt
	salesRaw string

	//go:embed template/rag.txt
	ragRaw string

	//go:embed template/blog_outline.txt
	blogOutlineRaw string

	//go:embed template/marketing_email.txt
	marketingEmailRaw string

	//go:embed template/customer_response.txt
	customerResponseRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Supervisor       string
	Sales            string
	RAG              string
	BlogOutline      string
	MarketingEmail   string
	CustomerResponse string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Supervisor:       strings.TrimSpace(supervisorRaw),
		Sales:            strings.TrimSpace(salesRaw),
		RAG:              strings.TrimSpace(ragRaw),
		BlogOutline:      strings.TrimSpace(blogOutlineRaw),
		MarketingEmail:   strings.TrimSpace(marketingEmailRaw),
		CustomerResponse: strings.TrimSpace(customerResponseRaw),
	}
}

func (p PromptSet) Validate() error {
	for name, body := range map[string]string{
		"supervisor":        p.Supervisor,
		"sales":             p.Sales,
		"rag":               p.RAG,
		"blog_outline":      p.BlogOutline,
		"marketing_email":   p.MarketingEmail,
		"customer_response": p.CustomerResponse,
	} {
		if strings.TrimSpace(body) == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}
	return nil
}

// Render substitutes {name} placeholders. Unknown placeholders and other
// braces are left untouched, so templates may carry literal JSON.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
