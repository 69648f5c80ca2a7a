package directive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// Marker pairs recognized in generated text. The character-sheet pair may
// appear independently of the directive pair, anywhere in the same text.
const (
	appDataOpen  = "[APPDATA]"
	appDataClose = "[/APPDATA]"
	sheetOpen    = "[CHARACTERSHEET]"
	sheetClose   = "[/CHARACTERSHEET]"
)

// SheetUpdater receives well-formed character-sheet payloads found in
// generated text. Implementations persist the sheet; this package never
// interprets it.
type SheetUpdater interface {
	UpdateSheet(ctx context.Context, characterID string, sheet map[string]json.RawMessage) error
}

// Extraction is the validated content of one generated response.
type Extraction struct {
	// Narration is the text with all directive markup removed. Line-break
	// escapes are still in wire form; rendering converts them.
	Narration string
	// Directives holds every decoded widget request in document order.
	Directives []Directive
}

// Extract validates directive markers in raw text and decodes every
// payload. Text outside markers is always preserved, whether or not any
// directive decodes.
func Extract(raw string) (Extraction, error) {
	opens := strings.Count(raw, appDataOpen)
	closes := strings.Count(raw, appDataClose)
	if opens != closes {
		return Extraction{}, fmt.Errorf("%w: %d open, %d close", ErrUnbalancedMarkers, opens, closes)
	}

	var narration strings.Builder
	var directives []Directive
	rest := raw
	for {
		start := strings.Index(rest, appDataOpen)
		if start < 0 {
			narration.WriteString(rest)
			break
		}
		payloadStart := start + len(appDataOpen)
		end := strings.Index(rest[payloadStart:], appDataClose)
		if end < 0 {
			// Counts matched but a close marker preceded this open marker.
			return Extraction{}, fmt.Errorf("%w: open marker without a following close marker", ErrUnbalancedMarkers)
		}
		narration.WriteString(rest[:start])

		payload := rest[payloadStart : payloadStart+end]
		decoded, err := Decode([]byte(payload))
		if err != nil {
			return Extraction{}, err
		}
		if decoded != nil {
			directives = append(directives, decoded)
		}
		rest = rest[payloadStart+end+len(appDataClose):]
	}

	return Extraction{
		Narration:  strings.TrimSpace(narration.String()),
		Directives: directives,
	}, nil
}

// extractSheet splits the first character-sheet block out of raw text.
//
// When a well-formed block is found, every sheet marker pair is stripped
// from the returned text. When the payload fails to decode the text is
// returned unchanged so the raw block stays visible downstream.
func extractSheet(raw string) (string, map[string]json.RawMessage, error) {
	start := strings.Index(raw, sheetOpen)
	if start < 0 {
		return raw, nil, nil
	}
	payloadStart := start + len(sheetOpen)
	end := strings.Index(raw[payloadStart:], sheetClose)
	if end < 0 {
		return raw, nil, nil
	}

	var sheet map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[payloadStart:payloadStart+end]), &sheet); err != nil {
		return raw, nil, fmt.Errorf("decode character sheet payload: %w", err)
	}
	return strings.TrimSpace(stripSheetBlocks(raw)), sheet, nil
}

// stripSheetBlocks removes every well-formed sheet marker pair.
func stripSheetBlocks(raw string) string {
	var out strings.Builder
	rest := raw
	for {
		start := strings.Index(rest, sheetOpen)
		if start < 0 {
			out.WriteString(rest)
			return out.String()
		}
		end := strings.Index(rest[start+len(sheetOpen):], sheetClose)
		if end < 0 {
			out.WriteString(rest)
			return out.String()
		}
		out.WriteString(rest[:start])
		rest = rest[start+len(sheetOpen)+end+len(sheetClose):]
	}
}

// Processor turns raw generated text into display-ready HTML, forwarding
// character-sheet payloads to the configured collaborator.
type Processor struct {
	sheets SheetUpdater
}

// NewProcessor builds a processor. A nil updater disables sheet forwarding.
func NewProcessor(sheets SheetUpdater) *Processor {
	return &Processor{sheets: sheets}
}

// Process validates and renders one generated response.
//
// Character-sheet handling is best effort: a malformed sheet payload or a
// failing collaborator is logged and the narration continues unharmed.
// Directive validation is strict and returns ErrUnbalancedMarkers or
// ErrInvalidPayload for the orchestrator's repair path.
func (p *Processor) Process(ctx context.Context, raw, characterID string) (string, error) {
	remaining, sheet, err := extractSheet(raw)
	if err != nil {
		log.Printf("character sheet ignored: %v", err)
	} else if sheet != nil {
		raw = remaining
		if p.sheets != nil && characterID != "" {
			if err := p.sheets.UpdateSheet(ctx, characterID, sheet); err != nil {
				log.Printf("character sheet update for %s failed: %v", characterID, err)
			}
		}
	}

	extraction, err := Extract(raw)
	if err != nil {
		return "", err
	}
	return RenderHTML(ctx, extraction)
}
