package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
)

// CurrencyToolName is the registry key; the planner selects it as use_currency.
const CurrencyToolName = "currency"

// CurrencyArgs are validated and normalized currency tool arguments.
type CurrencyArgs struct {
	Amount float64
	From   string
	To     string
}

// CurrencyPayload is the success payload of the currency tool.
type CurrencyPayload struct {
	Amount   float64 `json:"amount"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Value    float64 `json:"value"`
	Rate     float64 `json:"rate"`
	Date     *string `json:"date"`
	Provider string  `json:"provider"`
}

// NewCurrencyTool converts an amount between two ISO 4217 codes using rates.
func NewCurrencyTool(rates ports.RateSource) *domain.Tool {
	return &domain.Tool{
		Name:        CurrencyToolName,
		Description: "Converts an amount of money between two currencies using current exchange rates.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]any{
				"amount": map[string]any{
					"type":        "number",
					"description": "Positive amount to convert, e.g. 100.",
				},
				"from": map[string]any{
					"type":        "string",
					"description": "Three-letter source currency code, e.g. USD.",
				},
				"to": map[string]any{
					"type":        "string",
					"description": "Three-letter target currency code, e.g. JPY.",
				},
			},
			Required: []string{"amount", "from", "to"},
		},
		Execute: func(ctx context.Context, params map[string]any) (*domain.ToolResult, error) {
			args, err := ParseCurrencyArgs(params)
			if err != nil {
				return nil, err
			}

			quote, err := rates.Convert(ctx, args.Amount, args.From, args.To)
			if err != nil {
				if errors.Is(err, domain.ErrUpstream) {
					return nil, err
				}
				return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
			}

			rate := quote.Value / args.Amount
			if !finite(quote.Value) || !finite(rate) {
				return nil, fmt.Errorf("%w: %s to %s conversion of %v is not a finite number", domain.ErrUpstream, args.From, args.To, args.Amount)
			}

			payload := CurrencyPayload{
				Amount:   args.Amount,
				From:     args.From,
				To:       args.To,
				Value:    quote.Value,
				Rate:     rate,
				Provider: quote.Provider,
			}
			if quote.Date != "" {
				date := quote.Date
				payload.Date = &date
			}
			return &domain.ToolResult{
				Tool:    CurrencyToolName,
				Payload: payload,
				Note:    currencyNote(payload),
			}, nil
		},
	}
}

// ParseCurrencyArgs validates raw args. amount must be a positive finite
// number (numeric strings are accepted); from and to must be exactly three
// letters and are uppercased.
func ParseCurrencyArgs(params map[string]any) (CurrencyArgs, error) {
	amount, err := positiveAmount(params["amount"])
	if err != nil {
		return CurrencyArgs{}, err
	}
	from, err := currencyCode("from", params["from"])
	if err != nil {
		return CurrencyArgs{}, err
	}
	to, err := currencyCode("to", params["to"])
	if err != nil {
		return CurrencyArgs{}, err
	}
	return CurrencyArgs{Amount: amount, From: from, To: to}, nil
}

func positiveAmount(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: amount is required", domain.ErrInvalidArgument)
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: amount %q is not a number", domain.ErrInvalidArgument, n)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: amount %q is not a number", domain.ErrInvalidArgument, n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: amount must be a number, got %T", domain.ErrInvalidArgument, v)
	}
	if !finite(f) || f <= 0 {
		return 0, fmt.Errorf("%w: amount must be a positive number, got %v", domain.ErrInvalidArgument, f)
	}
	return f, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func currencyCode(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a 3-letter currency code", domain.ErrInvalidArgument, field)
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return "", fmt.Errorf("%w: %s must be a 3-letter currency code, got %q", domain.ErrInvalidArgument, field, s)
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return "", fmt.Errorf("%w: %s must be a 3-letter currency code, got %q", domain.ErrInvalidArgument, field, s)
		}
	}
	return s, nil
}

func currencyNote(p CurrencyPayload) string {
	asOf := ""
	if p.Date != nil {
		asOf = ", as of " + *p.Date
	}
	return fmt.Sprintf("Currency conversion: %s %s = %.2f %s (rate %.6f%s, source %s).",
		strconv.FormatFloat(p.Amount, 'f', -1, 64), p.From, p.Value, p.To, p.Rate, asOf, p.Provider)
}

// ToolFailureNote is the grounding line used when a tool call fails.
func ToolFailureNote(tool string, err error) string {
	name := strings.TrimSpace(tool)
	if name == "" {
		name = "tool"
	}
	r, size := utf8.DecodeRuneInString(name)
	return fmt.Sprintf("%c%s tool failed: %v", unicode.ToUpper(r), name[size:], err)
}
