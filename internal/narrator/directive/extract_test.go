package directive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// recordingSheets captures forwarded character-sheet payloads.
type recordingSheets struct {
	characterID string
	sheet       map[string]json.RawMessage
	calls       int
	err         error
}

func (r *recordingSheets) UpdateSheet(_ context.Context, characterID string, sheet map[string]json.RawMessage) error {
	r.calls++
	r.characterID = characterID
	r.sheet = sheet
	return r.err
}

// TestExtractPlainTextPassesThrough keeps directive-free narration intact.
func TestExtractPlainTextPassesThrough(t *testing.T) {
	extraction, err := Extract(`You enter the tavern.\nThe bard waves.`)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if extraction.Narration != `You enter the tavern.\nThe bard waves.` {
		t.Fatalf("narration = %q", extraction.Narration)
	}
	if len(extraction.Directives) != 0 {
		t.Fatalf("directives = %d, want 0", len(extraction.Directives))
	}
}

// TestExtractUnbalancedMarkers ensures a marker count mismatch fails before
// any payload decoding.
func TestExtractUnbalancedMarkers(t *testing.T) {
	tcs := []string{
		`Before [APPDATA]{"SingleChoice": {}}`,
		`Before [/APPDATA] after`,
		`[APPDATA]{"a":1}[/APPDATA][APPDATA]`,
		`[/APPDATA]trailing[APPDATA]`,
	}

	for _, raw := range tcs {
		if _, err := Extract(raw); !errors.Is(err, ErrUnbalancedMarkers) {
			t.Fatalf("Extract(%q) error = %v, want %v", raw, err, ErrUnbalancedMarkers)
		}
	}
}

// TestExtractPreservesSurroundingText ensures text outside validated
// markers always survives extraction.
func TestExtractPreservesSurroundingText(t *testing.T) {
	raw := `The smith nods. [APPDATA]{"SingleChoice": {"Options": {"a": {"Name": "Buy"}}}}[/APPDATA] He waits.`
	extraction, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if extraction.Narration != "The smith nods.  He waits." {
		t.Fatalf("narration = %q", extraction.Narration)
	}
	if len(extraction.Directives) != 1 {
		t.Fatalf("directives = %d, want 1", len(extraction.Directives))
	}
}

// TestExtractUnknownDirectiveKeepsNarration drops unknown shapes silently.
func TestExtractUnknownDirectiveKeepsNarration(t *testing.T) {
	raw := `Story continues. [APPDATA]{"FutureWidget": {"Title": "x"}}[/APPDATA]`
	extraction, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if extraction.Narration != "Story continues." {
		t.Fatalf("narration = %q", extraction.Narration)
	}
	if len(extraction.Directives) != 0 {
		t.Fatalf("directives = %d, want 0", len(extraction.Directives))
	}
}

// TestExtractInvalidPayload surfaces decode failures for recognized keys.
func TestExtractInvalidPayload(t *testing.T) {
	raw := `Text [APPDATA]{not json}[/APPDATA]`
	if _, err := Extract(raw); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("Extract error = %v, want %v", err, ErrInvalidPayload)
	}
}

// TestProcessConvertsLineBreaks renders wire escapes as display breaks.
func TestProcessConvertsLineBreaks(t *testing.T) {
	html, err := NewProcessor(nil).Process(context.Background(), `First line.\nSecond line.`, "")
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if html != "First line.<br>Second line." {
		t.Fatalf("html = %q", html)
	}
}

// TestProcessForwardsCharacterSheet ensures well-formed sheet blocks reach
// the collaborator and vanish from the narration.
func TestProcessForwardsCharacterSheet(t *testing.T) {
	sheets := &recordingSheets{}
	raw := `You level up! [CHARACTERSHEET]{"Level": 2, "HP": 15}[/CHARACTERSHEET] Onward.`

	html, err := NewProcessor(sheets).Process(context.Background(), raw, "char-1")
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if sheets.calls != 1 {
		t.Fatalf("sheet updates = %d, want 1", sheets.calls)
	}
	if sheets.characterID != "char-1" {
		t.Fatalf("character id = %q, want char-1", sheets.characterID)
	}
	if string(sheets.sheet["Level"]) != "2" {
		t.Fatalf("sheet level = %s, want 2", sheets.sheet["Level"])
	}
	if strings.Contains(html, "CHARACTERSHEET") {
		t.Fatalf("sheet markers leaked into output: %q", html)
	}
	if !strings.Contains(html, "You level up!") || !strings.Contains(html, "Onward.") {
		t.Fatalf("narration lost around sheet block: %q", html)
	}
}

// TestProcessIgnoresMalformedSheet keeps sheet handling best effort: bad
// payloads are logged, not fatal.
func TestProcessIgnoresMalformedSheet(t *testing.T) {
	sheets := &recordingSheets{}
	raw := `Narration [CHARACTERSHEET]{broken[/CHARACTERSHEET] continues.`

	html, err := NewProcessor(sheets).Process(context.Background(), raw, "char-1")
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if sheets.calls != 0 {
		t.Fatalf("sheet updates = %d, want 0", sheets.calls)
	}
	if !strings.Contains(html, "continues.") {
		t.Fatalf("narration lost: %q", html)
	}
}

// TestProcessSkipsSheetWithoutCharacter still strips sheet markup from the
// output but never forwards it when no character context is supplied.
func TestProcessSkipsSheetWithoutCharacter(t *testing.T) {
	sheets := &recordingSheets{}
	raw := `Text [CHARACTERSHEET]{"HP": 3}[/CHARACTERSHEET]`

	html, err := NewProcessor(sheets).Process(context.Background(), raw, "")
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if sheets.calls != 0 {
		t.Fatalf("sheet updates = %d, want 0", sheets.calls)
	}
	if strings.Contains(html, "CHARACTERSHEET") {
		t.Fatalf("sheet markers leaked into output: %q", html)
	}
}

// TestProcessRendersWidget covers the end-to-end path from raw text to
// widget markup.
func TestProcessRendersWidget(t *testing.T) {
	raw := `Choose wisely.\n[APPDATA]{"SingleChoice": {"Title": "Door", "Options": {"a": {"Name": "Left", "Description": "creaky"}}}}[/APPDATA]`
	html, err := NewProcessor(nil).Process(context.Background(), raw, "")
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !strings.Contains(html, "Choose wisely.<br>") {
		t.Fatalf("narration missing: %q", html)
	}
	if !strings.Contains(html, `<h3>Door</h3>`) {
		t.Fatalf("widget title missing: %q", html)
	}
	if !strings.Contains(html, `sendChoice('Left')`) {
		t.Fatalf("choice button missing: %q", html)
	}
}
