// Package orchestrate drives one narrator exchange end to end: send the
// conversation to the generative backend, validate the reply, and retry
// with corrective context when the reply cannot be used.
package orchestrate

import (
	"context"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/louisbranch/loreweaver/internal/narrator"
	"github.com/louisbranch/loreweaver/internal/narrator/directive"
)

var tracer = otel.Tracer("loreweaver/narrator")

const (
	defaultMaxAttempts = 3
	defaultRetryPause  = 2 * time.Second
)

// RepairInstruction is the corrective turn appended after a reply with
// malformed directive markup, so the next attempt sees its own mistake.
const RepairInstruction = "The response you just sent contained a malformed " +
	"[APPDATA] block. Please correct the formatting of the JSON data and " +
	"resend your message."

// Player-facing fallback messages for each failure mode. These are returned
// as the rendered reply once the attempt budget is spent.
const (
	transportFallback = "Error: Could not connect to the bot."
	malformedFallback = "Sorry, I'm having trouble generating a valid response right now. Please try again later."
	emptyFallback     = "Sorry, I received an empty or invalid response from the AI."
)

// Generator produces one model reply for a conversation.
type Generator interface {
	Generate(ctx context.Context, history narrator.History) (string, error)
}

// Result is the outcome of one orchestrated exchange. Raw is empty when
// every attempt failed, in which case Rendered carries a fallback message
// that should be shown but never persisted as a model turn.
type Result struct {
	// Rendered is display-ready HTML, or a fallback message on failure.
	Rendered string
	// Raw is the validated backend text, suitable for persisting.
	Raw string
}

// Ok reports whether the exchange produced a usable reply.
func (r Result) Ok() bool { return r.Raw != "" }

// Orchestrator retries backend calls against a shared attempt budget.
// Transport errors, empty replies, and malformed directive markup all draw
// from the same budget; only the malformed path feeds corrective turns back
// into the conversation.
type Orchestrator struct {
	backend     Generator
	processor   *directive.Processor
	maxAttempts int
	retryPause  time.Duration
	sleep       func(time.Duration)
}

// New builds an orchestrator with the default attempt budget and pause.
func New(backend Generator, processor *directive.Processor) *Orchestrator {
	return &Orchestrator{
		backend:     backend,
		processor:   processor,
		maxAttempts: defaultMaxAttempts,
		retryPause:  defaultRetryPause,
		sleep:       time.Sleep,
	}
}

// Send runs one exchange. The supplied history is never modified: repair
// turns extend a local copy that lives only for the duration of the call.
func (o *Orchestrator) Send(ctx context.Context, history narrator.History, characterID string) Result {
	ctx, span := tracer.Start(ctx, "narrator.send")
	defer span.End()

	attempts := o.maxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	local := history
	fallback := malformedFallback
	for attempt := 1; attempt <= attempts; attempt++ {
		span.SetAttributes(attribute.Int("narrator.attempt", attempt))

		raw, err := o.backend.Generate(ctx, local)
		if err != nil {
			log.Printf("narrator backend attempt %d/%d failed: %v", attempt, attempts, err)
			fallback = transportFallback
			if attempt < attempts {
				o.sleep(o.retryPause)
			}
			continue
		}
		if strings.TrimSpace(raw) == "" {
			log.Printf("narrator backend attempt %d/%d returned empty text", attempt, attempts)
			fallback = emptyFallback
			continue
		}

		rendered, err := o.processor.Process(ctx, raw, characterID)
		if err != nil {
			log.Printf("narrator reply attempt %d/%d rejected: %v", attempt, attempts, err)
			fallback = malformedFallback
			local = local.
				Append(narrator.RoleModel, raw).
				Append(narrator.RoleUser, RepairInstruction)
			continue
		}
		return Result{Rendered: rendered, Raw: raw}
	}

	return Result{Rendered: fallback}
}
