package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/torque-advisor/internal/advisor"
	"github.com/khanglvm/torque-advisor/internal/turn"
)

// NewAskCmd creates the 'ask' command for running turns from the terminal.
func NewAskCmd(opts *globalOptions) *cobra.Command {
	var (
		sessionID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask for a tool recommendation",
		Long: `Run conversational turns from the terminal.

With a question argument a single turn is run. Without one, questions are
read line by line from stdin in a single session until EOF or "exit".`,
		Example: `  # One turn
  torque-advisor ask "cordless nutrunner 18V for 50Nm"

  # Interactive conversation
  torque-advisor ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			printer := responsePrinter{out: cmd.OutOrStdout(), json: asJSON}
			if len(args) > 0 {
				res, err := a.advisor.Ask(ctx, strings.Join(args, " "), sessionID)
				if err != nil {
					return err
				}
				return printer.print(res)
			}
			return runConversation(ctx, a.advisor, cmd.InOrStdin(), printer, sessionID)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to continue")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON responses")

	return cmd
}

// asker runs one turn.
type asker interface {
	Ask(ctx context.Context, question, sessionID string) (advisor.Result, error)
}

// runConversation reads questions from in and answers them in one session.
func runConversation(ctx context.Context, a asker, in io.Reader, p responsePrinter, sessionID string) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(p.out, "> ")
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		switch {
		case q == "":
		case q == "exit" || q == "quit":
			return nil
		default:
			res, err := a.Ask(ctx, q, sessionID)
			if err != nil {
				fmt.Fprintf(p.out, "Error: %v\n", err)
			} else {
				sessionID = res.SessionID
				if err := p.print(res); err != nil {
					return err
				}
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(p.out, "> ")
	}
	return scanner.Err()
}

type responsePrinter struct {
	out  io.Writer
	json bool
}

func (p responsePrinter) print(res advisor.Result) error {
	if p.json {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(p.out, string(data))
		return nil
	}

	r := res.Response
	switch r.Kind {
	case turn.KindClarification:
		c := r.Clarification
		fmt.Fprintf(p.out, "❓ %s\n", c.Message)
		for _, q := range c.Questions {
			fmt.Fprintf(p.out, "   • %s\n", q)
		}
		if len(c.Suggestions) > 0 {
			fmt.Fprintln(p.out, "   Options:")
			for _, key := range sortedKeys(c.Suggestions) {
				fmt.Fprintf(p.out, "     %s: %s\n", key, strings.Join(c.Suggestions[key], ", "))
			}
		}
	case turn.KindRecommendation:
		rec := r.Recommendation
		fmt.Fprintf(p.out, "✓ %s", rec.ToolName)
		if rec.Model != "" {
			fmt.Fprintf(p.out, " (%s)", rec.Model)
		}
		fmt.Fprintln(p.out)
		if rec.WhyRecommended != "" {
			fmt.Fprintf(p.out, "  %s\n", rec.WhyRecommended)
		}
		for _, s := range rec.KeySpecs {
			fmt.Fprintf(p.out, "   • %s\n", s)
		}
		if rec.Confidence != "" {
			fmt.Fprintf(p.out, "  Confidence: %s\n", rec.Confidence)
		}
	case turn.KindError:
		fmt.Fprintf(p.out, "✗ %s\n", r.Error.Error)
	}
	fmt.Fprintf(p.out, "  session: %s\n", res.SessionID)
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
