// Package directive extracts and validates structured widget requests
// embedded in generated narration.
//
// The backend marks machine-readable instructions with [APPDATA] marker
// pairs whose payload is a JSON object keyed by the widget kind. The
// decoder maps each recognized kind onto a closed set of Directive
// variants, each owning its required-field validation. Unrecognized kinds
// are dropped silently so newer backends stay compatible with older
// clients.
package directive

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/loreweaver/internal/dice"
)

// ErrUnbalancedMarkers indicates open and close directive markers do not pair up.
var ErrUnbalancedMarkers = errors.New("mismatched directive markers")

// ErrInvalidPayload indicates a directive payload failed to decode or validate.
var ErrInvalidPayload = errors.New("invalid directive payload")

// Directive is one validated widget request. The set of implementations is
// closed; renderers switch exhaustively over it.
type Directive interface {
	directive()
}

// Option is a selectable entry in a choice widget.
type Option struct {
	Name        string `json:"Name"`
	Description string `json:"Description"`
}

// SingleChoice asks the player to pick exactly one option.
type SingleChoice struct {
	Title   string            `json:"Title"`
	Options map[string]Option `json:"Options"`
}

func (SingleChoice) directive() {}

// Item is a named slot in an ordered-value assignment.
type Item struct {
	Name string `json:"Name"`
}

// OrderedList asks the player to assign the listed values to the listed
// items by reordering. Items and Values pair by position.
type OrderedList struct {
	Title  string `json:"Title"`
	Items  []Item `json:"Items"`
	Values []int  `json:"Values"`
}

func (OrderedList) directive() {}

// MultiSelect asks the player to pick up to MaxChoices options.
type MultiSelect struct {
	Title      string            `json:"Title"`
	MaxChoices int               `json:"MaxChoices"`
	Options    map[string]Option `json:"Options"`
}

func (MultiSelect) directive() {}

// DiceRoll asks the player to trigger a roll. Execution happens later via
// the dice engine; the directive only carries the roll parameters.
type DiceRoll struct {
	Title        string        `json:"Title"`
	ButtonText   string        `json:"ButtonText"`
	Mechanic     dice.Mechanic `json:"Mechanic"`
	Dice         string        `json:"Dice,omitempty"`
	NumRolls     int           `json:"NumRolls"`
	Advantage    bool          `json:"Advantage"`
	Disadvantage bool          `json:"Disadvantage"`
}

func (DiceRoll) directive() {}

// Decode parses one directive payload.
//
// A payload whose JSON object carries none of the recognized keys decodes
// to (nil, nil): unknown directives are not errors. Decode or validation
// failures for a recognized key wrap ErrInvalidPayload.
func Decode(payload []byte) (Directive, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(payload, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if raw, ok := shape["SingleChoice"]; ok {
		return decodeSingleChoice(raw)
	}
	if raw, ok := shape["OrderedList"]; ok {
		return decodeOrderedList(raw)
	}
	if raw, ok := shape["MultiSelect"]; ok {
		return decodeMultiSelect(raw)
	}
	if raw, ok := shape["DiceRoll"]; ok {
		return decodeDiceRoll(raw)
	}
	return nil, nil
}

func decodeSingleChoice(raw json.RawMessage) (Directive, error) {
	var choice SingleChoice
	if err := json.Unmarshal(raw, &choice); err != nil {
		return nil, fmt.Errorf("%w: SingleChoice: %v", ErrInvalidPayload, err)
	}
	if choice.Title == "" {
		choice.Title = "Choose an option"
	}
	if len(choice.Options) == 0 {
		return nil, fmt.Errorf("%w: SingleChoice requires options", ErrInvalidPayload)
	}
	return choice, nil
}

func decodeOrderedList(raw json.RawMessage) (Directive, error) {
	var list OrderedList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: OrderedList: %v", ErrInvalidPayload, err)
	}
	if list.Title == "" {
		list.Title = "Ordered List"
	}
	if len(list.Items) == 0 {
		return nil, fmt.Errorf("%w: OrderedList requires items", ErrInvalidPayload)
	}
	if len(list.Items) != len(list.Values) {
		return nil, fmt.Errorf("%w: OrderedList has %d items but %d values", ErrInvalidPayload, len(list.Items), len(list.Values))
	}
	return list, nil
}

func decodeMultiSelect(raw json.RawMessage) (Directive, error) {
	var selection MultiSelect
	if err := json.Unmarshal(raw, &selection); err != nil {
		return nil, fmt.Errorf("%w: MultiSelect: %v", ErrInvalidPayload, err)
	}
	if selection.Title == "" {
		selection.Title = "Choose an option"
	}
	if selection.MaxChoices == 0 {
		selection.MaxChoices = 1
	}
	if selection.MaxChoices < 0 {
		return nil, fmt.Errorf("%w: MultiSelect max choices must be positive", ErrInvalidPayload)
	}
	if len(selection.Options) == 0 {
		return nil, fmt.Errorf("%w: MultiSelect requires options", ErrInvalidPayload)
	}
	return selection, nil
}

func decodeDiceRoll(raw json.RawMessage) (Directive, error) {
	var roll DiceRoll
	if err := json.Unmarshal(raw, &roll); err != nil {
		return nil, fmt.Errorf("%w: DiceRoll: %v", ErrInvalidPayload, err)
	}
	if roll.Title == "" {
		roll.Title = "Roll Dice"
	}
	if roll.ButtonText == "" {
		roll.ButtonText = "Roll"
	}
	if roll.NumRolls == 0 {
		roll.NumRolls = 1
	}
	if roll.NumRolls < 0 {
		return nil, fmt.Errorf("%w: DiceRoll num rolls must be positive", ErrInvalidPayload)
	}
	mechanic, err := dice.ParseMechanic(string(roll.Mechanic))
	if err != nil {
		return nil, fmt.Errorf("%w: DiceRoll: %v", ErrInvalidPayload, err)
	}
	roll.Mechanic = mechanic
	if (mechanic == dice.MechanicClassic || mechanic == dice.MechanicHeroic) && roll.Dice == "" {
		return nil, fmt.Errorf("%w: DiceRoll mechanic %s requires a dice expression", ErrInvalidPayload, mechanic)
	}
	return roll, nil
}
