// Package repl is the interactive terminal front end.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/assistant"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
)

const (
	Banner = "Apple Agent Ready (type 'exit' to quit)"
	Prompt = "Ask about Apple products: "
)

type Asker interface {
	Ask(ctx context.Context, sess *sessionx.Session, query string) (assistant.Answer, error)
}

// Run reads one query per line until exit, quit, EOF or ctx cancellation.
// All turns share sess. Errors from a single turn are printed and the loop
// continues.
func Run(ctx context.Context, asker Asker, sess *sessionx.Session, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintf(out, "\n %s\n\n", Banner)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(out, Prompt)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		input := strings.TrimSpace(line)
		if isExit(input) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if input == "" {
			if eof {
				fmt.Fprintln(out)
				return nil
			}
			continue
		}

		ans, askErr := asker.Ask(ctx, sess, input)
		if askErr != nil {
			log.Error().Err(askErr).Msg("agent error")
			fmt.Fprintf(out, "\nError: %v\n\n", askErr)
		} else {
			fmt.Fprintln(out, "\nAnswer:")
			fmt.Fprintln(out, ans.Reply)
			fmt.Fprintln(out)
		}

		if eof {
			return nil
		}
	}
}

func isExit(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit":
		return true
	}
	return false
}
