package cmd

// Options is the root command. Struct tags are read by
// github.com/jessevdk/go-flags.
type Options struct {
	Env    string     `short:"e" long:"env" description:"path to a .env file exported before configuration is read"`
	Serve  *ServeCmd  `command:"serve" description:"Start the HTTP server (chat, webhook, jobs)"`
	Chat   *ChatCmd   `command:"chat" description:"Talk to the multi-agent copilot interactively"`
	Ask    *AskCmd    `command:"ask" description:"Ask the knowledge base questions interactively"`
	Ingest *IngestCmd `command:"ingest" description:"Index recent CRM deals into the vector store"`
	Audit  *AuditCmd  `command:"audit" description:"Show recent side-effecting tool invocations"`
}

// Init allocates the sub-command named by firstArg so flags.Parse can fill it.
func (o *Options) Init(firstArg string) {
	switch firstArg {
	case "serve":
		o.Serve = &ServeCmd{}
	case "chat":
		o.Chat = &ChatCmd{}
	case "ask":
		o.Ask = &AskCmd{}
	case "ingest":
		o.Ingest = &IngestCmd{}
	case "audit":
		o.Audit = &AuditCmd{}
	}
}
