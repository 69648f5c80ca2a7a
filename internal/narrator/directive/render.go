package directive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// lineBreak is the wire-format escape the backend uses inside prose.
const lineBreak = `\n`

// RenderHTML renders narration plus every widget into one HTML fragment.
// Wire-format line-break escapes become <br> elements.
func RenderHTML(ctx context.Context, extraction Extraction) (string, error) {
	var out strings.Builder
	out.WriteString(strings.ReplaceAll(extraction.Narration, lineBreak, "<br>"))
	for _, decoded := range extraction.Directives {
		component, err := Component(decoded)
		if err != nil {
			return "", err
		}
		if err := component.Render(ctx, &out); err != nil {
			return "", fmt.Errorf("render widget: %w", err)
		}
	}
	return out.String(), nil
}

// Component maps one directive onto its interactive widget markup. All
// dynamic text is escaped before insertion.
func Component(decoded Directive) (templ.Component, error) {
	switch d := decoded.(type) {
	case SingleChoice:
		return singleChoiceComponent(d), nil
	case OrderedList:
		return orderedListComponent(d), nil
	case MultiSelect:
		return multiSelectComponent(d), nil
	case DiceRoll:
		return diceRollComponent(d), nil
	}
	return nil, fmt.Errorf("unsupported directive %T", decoded)
}

func singleChoiceComponent(choice SingleChoice) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="singlechoice-container"><h3>`)
		b.WriteString(templ.EscapeString(choice.Title))
		b.WriteString(`</h3>`)
		for _, key := range sortedOptionKeys(choice.Options) {
			option := choice.Options[key]
			name := templ.EscapeString(option.Name)
			b.WriteString(`<div class="singlechoice-option"><div class="singlechoice-option-inner">`)
			b.WriteString(`<button onclick="sendChoice('` + name + `')">` + name + `</button>`)
			b.WriteString(`</div><span class="description">`)
			b.WriteString(templ.EscapeString(option.Description))
			b.WriteString(`</span></div>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func orderedListComponent(list OrderedList) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="ordered-list-container"><h3>`)
		b.WriteString(templ.EscapeString(list.Title))
		b.WriteString(`</h3><ul id="sortable-list">`)
		for i, item := range list.Items {
			class := "sortable-item"
			if i == 0 {
				class += " first-item"
			}
			if i == len(list.Items)-1 {
				class += " last-item"
			}
			name := templ.EscapeString(item.Name)
			b.WriteString(`<li class="` + class + `" data-name="` + name + `">` + name)
			b.WriteString(`<div class="value-card" draggable="true" ondragstart="drag(event)" id="val-` + strconv.Itoa(i) + `">`)
			b.WriteString(`<span class="value">` + strconv.Itoa(list.Values[i]) + `</span>`)
			b.WriteString(`<span class="arrows">`)
			b.WriteString(`<span class="up-arrow" onclick="moveValueUp(this)">&#8593;</span>`)
			b.WriteString(`<span class="down-arrow" onclick="moveValueDown(this)">&#8595;</span>`)
			b.WriteString(`</span><span class="drag-handle">&#9776;</span></div></li>`)
		}
		b.WriteString(`</ul><button onclick="confirmOrderedList()">Confirm</button></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func multiSelectComponent(selection MultiSelect) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="multiselect-container" data-max-choices="` + strconv.Itoa(selection.MaxChoices) + `"><h3>`)
		b.WriteString(templ.EscapeString(selection.Title))
		b.WriteString(`</h3>`)
		for _, key := range sortedOptionKeys(selection.Options) {
			option := selection.Options[key]
			id := templ.EscapeString(key)
			name := templ.EscapeString(option.Name)
			b.WriteString(`<div class="multiselect-option"><div class="multiselect-option-inner">`)
			b.WriteString(`<input type="checkbox" id="` + id + `" name="` + name + `" value="` + name + `">`)
			b.WriteString(`<label for="` + id + `">` + name + `</label>`)
			b.WriteString(`</div><span class="description">`)
			b.WriteString(templ.EscapeString(option.Description))
			b.WriteString(`</span></div>`)
		}
		b.WriteString(`<button onclick="confirmMultiSelect(this)">Confirm</button></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func diceRollComponent(roll DiceRoll) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		params, err := json.Marshal(roll)
		if err != nil {
			return fmt.Errorf("encode roll parameters: %w", err)
		}
		var b strings.Builder
		b.WriteString(`<div class="diceroll-container"><h3>`)
		b.WriteString(templ.EscapeString(roll.Title))
		b.WriteString(`</h3><button onclick="rollDice('` + templ.EscapeString(string(params)) + `')">`)
		b.WriteString(templ.EscapeString(roll.ButtonText))
		b.WriteString(`</button></div>`)
		_, err = io.WriteString(w, b.String())
		return err
	})
}

// sortedOptionKeys fixes the widget option order; map iteration would
// shuffle options between renders of the same directive.
func sortedOptionKeys(options map[string]Option) []string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
