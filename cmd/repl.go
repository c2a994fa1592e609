package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	supervisorx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/supervisor"
	statex "github.com/tanpawarit/Breeze-CRM-Copilot/agent/state"
)

type answerFunc func(ctx context.Context, input string) (string, error)

// repl reads lines from in until EOF or "exit"/"quit" and prints each answer.
// A failed answer is reported and the loop continues.
func repl(ctx context.Context, in io.Reader, out io.Writer, banner string, answer answerFunc) error {
	fmt.Fprintln(out, banner)
	fmt.Fprintln(out, "Type 'exit' to quit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		reply, err := answer(ctx, line)
		if err != nil {
			log.Error().Err(err).Msg("answer failed")
			if reply == "" {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
		}
		fmt.Fprintf(out, "Copilot: %s\n", reply)
	}
}

// ChatCmd runs the multi-agent copilot in the terminal. The session keeps its
// own history so follow-up questions have context.
type ChatCmd struct {
	Trace bool `short:"t" long:"trace" description:"print the route and handler of every turn"`

	in  io.Reader
	out io.Writer
}

func (c *ChatCmd) Execute(_ []string) error {
	ctx := context.Background()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	in, out := streams(c.in, c.out)
	return repl(ctx, in, out, "Breeze CRM Copilot", newChatSession(a.Supervisor, out, c.Trace).answer)
}

type chatSession struct {
	turns          turnHandler
	out            io.Writer
	trace          bool
	conversationID string
	history        []statex.Message
}

type turnHandler interface {
	HandleTurn(ctx context.Context, req supervisorx.TurnRequest) (supervisorx.TurnResult, error)
}

func newChatSession(turns turnHandler, out io.Writer, trace bool) *chatSession {
	return &chatSession{turns: turns, out: out, trace: trace, conversationID: uuid.NewString()}
}

func (s *chatSession) answer(ctx context.Context, input string) (string, error) {
	res, err := s.turns.HandleTurn(ctx, supervisorx.TurnRequest{
		Message:        input,
		History:        s.history,
		ConversationID: s.conversationID,
	})
	if err == nil && res.State != nil {
		s.history = append([]statex.Message(nil), res.State.Messages...)
	}
	if s.trace {
		fmt.Fprintf(s.out, "[route=%s handler=%s turn=%s]\n", res.Route, res.Handler, res.TurnID)
	}
	return res.Reply, err
}

// AskCmd answers questions from the indexed CRM knowledge only.
type AskCmd struct {
	in  io.Reader
	out io.Writer
}

func (c *AskCmd) Execute(_ []string) error {
	ctx := context.Background()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	in, out := streams(c.in, c.out)
	return repl(ctx, in, out, "Breeze knowledge base", a.RAG.Answer)
}

func streams(in io.Reader, out io.Writer) (io.Reader, io.Writer) {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return in, out
}
