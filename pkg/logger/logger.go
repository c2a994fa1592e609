package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultService = "breeze-copilot"

// Config is read with the LOG prefix.
type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Service      string `split_words:"true" default:"breeze-copilot"`

	// Output replaces stdout; it is never read from the environment.
	Output io.Writer `ignored:"true"`
}

// New builds the process logger: every entry carries the service name, the
// caller and, for errors, the stack.
func New(conf Config) zerolog.Logger {
	out := conf.Output
	if out == nil {
		out = os.Stdout
	}
	if conf.PrettyFormat {
		out = zerolog.ConsoleWriter{Out: out}
	}

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}

	service := strings.TrimSpace(conf.Service)
	if service == "" {
		service = DefaultService
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Caller().
		Stack().
		Logger()
}

// Init installs New(conf) as the global logger and as the fallback for
// contexts that carry none. Without a config the defaults apply.
func Init(opts ...Config) {
	conf := Config{Service: DefaultService}
	if len(opts) > 0 {
		conf = opts[0]
	}
	log.Logger = New(conf)
	zerolog.DefaultContextLogger = &log.Logger
}
