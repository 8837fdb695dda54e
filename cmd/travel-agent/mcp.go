package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/services"
	"github.com/manthysbr/travelagent/pkg/kernel"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server on stdio exposing trip planning and currency tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), logger, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			s := mcpserver.NewMCPServer("travel-agent", "1.0.0", mcpserver.WithToolCapabilities(false))
			s.AddTool(planTripTool(), makePlanTripHandler(a.orch))
			s.AddTool(convertCurrencyTool(), makeConvertCurrencyHandler(a.tools))
			return mcpserver.ServeStdio(s)
		},
	}
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	OpenWorldHint:   mcp.ToBoolPtr(true),
}

func planTripTool() mcp.Tool {
	return mcp.NewTool("plan_trip",
		mcp.WithDescription("Plan a trip from a natural language request. Returns a JSON itinerary with summary, plan, assumptions, next steps and cited sources, or a clarifying question."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The travel request, e.g. 'Plan 3 days in Tokyo on a mid budget'"),
		),
	)
}

func convertCurrencyTool() mcp.Tool {
	return mcp.NewTool("convert_currency",
		mcp.WithDescription("Convert an amount between two ISO 4217 currencies using current reference rates."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Positive amount to convert")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source currency code, e.g. USD")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target currency code, e.g. JPY")),
	)
}

func makePlanTripHandler(agent kernel.Agent) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message := req.GetString("message", "")
		if message == "" {
			return mcp.NewToolResultError("message is required"), nil
		}

		sink := services.NewBufferSink()
		runErr := agent.Run(ctx, domain.AgentRequest{RequestID: uuid.NewString(), Message: message}, sink)
		out := sink.Outcome()

		switch {
		case out.Result != nil:
			b, err := json.Marshal(out.Result)
			if err != nil {
				return mcp.NewToolResultErrorFromErr("encode result", err), nil
			}
			return mcp.NewToolResultText(string(b)), nil
		case out.Clarify != nil:
			return mcp.NewToolResultText("Clarification needed: " + out.Clarify.Question), nil
		case out.Error != nil:
			return mcp.NewToolResultError(fmt.Sprintf("planning failed at %s stage: %s", out.Error.Stage, out.Error.Error)), nil
		default:
			return mcp.NewToolResultErrorFromErr("planning failed", runErr), nil
		}
	}
}

func makeConvertCurrencyHandler(tools *domain.ToolRegistry) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{
			"amount": req.GetFloat("amount", 0),
			"from":   req.GetString("from", ""),
			"to":     req.GetString("to", ""),
		}
		res, err := tools.Execute(ctx, services.CurrencyToolName, args)
		if err != nil {
			return mcp.NewToolResultError(services.ToolFailureNote(services.CurrencyToolName, err)), nil
		}
		return mcp.NewToolResultText(res.Note), nil
	}
}
