package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/services"
	"github.com/manthysbr/travelagent/pkg/kernel"
)

func newAskCmd() *cobra.Command {
	var (
		stream    bool
		forcePlan string
	)
	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Run one request locally and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), logger, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req := domain.AgentRequest{
				RequestID: uuid.NewString(),
				Message:   strings.Join(args, " "),
				Stream:    stream,
			}
			if forcePlan != "" {
				decision, err := services.ParsePlanOverride(forcePlan)
				if err != nil {
					return err
				}
				req.ForcePlan = &decision
			}
			return runAsk(cmd.Context(), a.orch, req, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "print generated tokens as they arrive")
	cmd.Flags().StringVar(&forcePlan, "force-plan", "", "skip the planner with a fixed decision (answer, clarify, use_currency or JSON)")
	return cmd
}

type askOutput struct {
	Result  *domain.AgentResult    `json:"result,omitempty"`
	Clarify *domain.ClarifyPayload `json:"clarify,omitempty"`
	Meta    *domain.Meta           `json:"meta,omitempty"`
}

// runAsk executes req and writes the terminal outcome to out. In stream mode
// tokens are written first, followed by a newline and the JSON outcome.
func runAsk(ctx context.Context, agent kernel.Agent, req domain.AgentRequest, out io.Writer) error {
	buf := services.NewBufferSink()
	sink := services.SinkFunc(func(ctx context.Context, evt domain.StreamEvent) error {
		if tok, ok := evt.Payload.(domain.TokenPayload); ok && req.Stream {
			if _, err := io.WriteString(out, tok.Token); err != nil {
				return err
			}
		}
		return buf.Send(ctx, evt)
	})

	runErr := agent.Run(ctx, req, sink)
	outcome := buf.Outcome()

	if req.Stream && outcome.Result != nil {
		fmt.Fprintln(out)
	}

	var resp askOutput
	switch {
	case outcome.Result != nil:
		resp.Result = &outcome.Result.Result
		resp.Meta = &outcome.Result.Meta
	case outcome.Clarify != nil:
		resp.Clarify = outcome.Clarify
		if outcome.Done != nil {
			resp.Meta = outcome.Done.Meta
		}
	case outcome.Error != nil:
		if runErr == nil {
			runErr = errors.New(outcome.Error.Error)
		}
		return fmt.Errorf("%s stage: %w", outcome.Error.Stage, runErr)
	case runErr != nil:
		return runErr
	default:
		return errors.New("agent finished without a result")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
