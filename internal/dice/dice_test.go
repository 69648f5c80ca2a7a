package dice

import (
	"errors"
	"testing"
)

// scriptedSource replays a fixed sequence of die values and counts calls.
type scriptedSource struct {
	values []int
	calls  int
}

func (s *scriptedSource) Roll(sides int) int {
	if s.calls >= len(s.values) {
		panic("scripted source exhausted")
	}
	value := s.values[s.calls]
	s.calls++
	return value
}

// TestRollExpressionBoundsAndTotal ensures every die lands in range and the
// total includes the modifier.
func TestRollExpressionBoundsAndTotal(t *testing.T) {
	tcs := []struct {
		expression string
		count      int
		sides      int
		modifier   int
	}{
		{expression: "4d6", count: 4, sides: 6},
		{expression: "d20", count: 1, sides: 20},
		{expression: "2d10+5", count: 2, sides: 10, modifier: 5},
		{expression: "3d8-2", count: 3, sides: 8, modifier: -2},
	}

	roller := NewRoller(NewSource(1))
	for _, tc := range tcs {
		rolls, total, err := roller.RollExpression(tc.expression)
		if err != nil {
			t.Fatalf("RollExpression(%q) returned error: %v", tc.expression, err)
		}
		if len(rolls) != tc.count {
			t.Fatalf("RollExpression(%q) rolled %d dice, want %d", tc.expression, len(rolls), tc.count)
		}
		sum := 0
		for _, value := range rolls {
			if value < 1 || value > tc.sides {
				t.Fatalf("RollExpression(%q) produced out-of-range die %d", tc.expression, value)
			}
			sum += value
		}
		if total != sum+tc.modifier {
			t.Fatalf("RollExpression(%q) total = %d, want %d", tc.expression, total, sum+tc.modifier)
		}
	}
}

// TestRollExpressionRejectsMalformedInput ensures parse failures surface.
func TestRollExpressionRejectsMalformedInput(t *testing.T) {
	roller := NewRoller(NewSource(1))
	for _, input := range []string{"", "0d6", "4d0", "4x6", "4d6extra"} {
		if _, _, err := roller.RollExpression(input); !errors.Is(err, ErrInvalidExpression) {
			t.Fatalf("RollExpression(%q) error = %v, want %v", input, err, ErrInvalidExpression)
		}
	}
}

// TestRollClassicStubbed replays the 1d20 scenario from the roll protocol.
func TestRollClassicStubbed(t *testing.T) {
	source := &scriptedSource{values: []int{17}}
	roller := NewRoller(source)

	results, err := roller.Roll(Request{Mechanic: MechanicClassic, Dice: "1d20"})
	if err != nil {
		t.Fatalf("Roll returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	result := results[0]
	if result.Total != 17 {
		t.Fatalf("total = %d, want 17", result.Total)
	}
	if len(result.Rolls) != 1 || result.Rolls[0] != 17 {
		t.Fatalf("rolls = %v, want [17]", result.Rolls)
	}
	if len(result.Dropped) != 0 {
		t.Fatalf("dropped = %v, want empty", result.Dropped)
	}
}

// TestRollHeroicDropsLowest replays the 4d6 drop-lowest scenario.
func TestRollHeroicDropsLowest(t *testing.T) {
	source := &scriptedSource{values: []int{6, 5, 4, 1}}
	roller := NewRoller(source)

	results, err := roller.Roll(Request{Mechanic: MechanicHeroic, Dice: "4d6"})
	if err != nil {
		t.Fatalf("Roll returned error: %v", err)
	}
	result := results[0]
	if result.Total != 15 {
		t.Fatalf("total = %d, want 15", result.Total)
	}
	if len(result.Dropped) != 1 || result.Dropped[0] != 1 {
		t.Fatalf("dropped = %v, want [1]", result.Dropped)
	}
	if len(result.Rolls) != 4 || result.Rolls[0] != 6 || result.Rolls[3] != 1 {
		t.Fatalf("rolls = %v, want [6 5 4 1]", result.Rolls)
	}
}

// TestRollHeroicMatchesClassicMinusLowest checks the drop-lowest identity
// against the plain sum for the same die sequence.
func TestRollHeroicMatchesClassicMinusLowest(t *testing.T) {
	values := []int{3, 6, 2, 2}

	classic, err := NewRoller(&scriptedSource{values: values}).Roll(Request{Mechanic: MechanicClassic, Dice: "4d6"})
	if err != nil {
		t.Fatalf("classic roll returned error: %v", err)
	}
	heroic, err := NewRoller(&scriptedSource{values: values}).Roll(Request{Mechanic: MechanicHeroic, Dice: "4d6"})
	if err != nil {
		t.Fatalf("heroic roll returned error: %v", err)
	}

	lowest := values[0]
	for _, value := range values {
		if value < lowest {
			lowest = value
		}
	}
	if heroic[0].Total != classic[0].Total-lowest {
		t.Fatalf("heroic total = %d, want %d", heroic[0].Total, classic[0].Total-lowest)
	}
	if len(heroic[0].Dropped) != 1 {
		t.Fatalf("dropped = %v, want exactly one value", heroic[0].Dropped)
	}
}

// TestFixedMechanicsIgnoreDiceArgument ensures High Floor and Percentile use
// their fixed expressions regardless of the supplied dice string.
func TestFixedMechanicsIgnoreDiceArgument(t *testing.T) {
	highFloor := &scriptedSource{values: []int{3, 4}}
	results, err := NewRoller(highFloor).Roll(Request{Mechanic: MechanicHighFloor, Dice: "9d9"})
	if err != nil {
		t.Fatalf("high floor roll returned error: %v", err)
	}
	if highFloor.calls != 2 {
		t.Fatalf("high floor rolled %d dice, want 2", highFloor.calls)
	}
	if results[0].Total != 3+4+6 {
		t.Fatalf("high floor total = %d, want %d", results[0].Total, 3+4+6)
	}

	percentile := &scriptedSource{values: []int{42}}
	results, err = NewRoller(percentile).Roll(Request{Mechanic: MechanicPercentile, Dice: "9d9"})
	if err != nil {
		t.Fatalf("percentile roll returned error: %v", err)
	}
	if percentile.calls != 1 {
		t.Fatalf("percentile rolled %d dice, want 1", percentile.calls)
	}
	if results[0].Total != 42 {
		t.Fatalf("percentile total = %d, want 42", results[0].Total)
	}
}

// TestRollRequiresDiceForExpressionMechanics ensures Heroic and Classic
// reject requests without a dice expression.
func TestRollRequiresDiceForExpressionMechanics(t *testing.T) {
	roller := NewRoller(NewSource(1))
	for _, mechanic := range []Mechanic{MechanicClassic, MechanicHeroic} {
		_, err := roller.Roll(Request{Mechanic: mechanic})
		if !errors.Is(err, ErrMissingDice) {
			t.Fatalf("Roll(%s) error = %v, want %v", mechanic, err, ErrMissingDice)
		}
	}
}

// TestRollRejectsUnknownMechanic ensures unrecognized mechanics fail.
func TestRollRejectsUnknownMechanic(t *testing.T) {
	_, err := NewRoller(NewSource(1)).Roll(Request{Mechanic: "Wild"})
	if !errors.Is(err, ErrUnknownMechanic) {
		t.Fatalf("Roll error = %v, want %v", err, ErrUnknownMechanic)
	}
}

// TestRollAdvantageKeepsHigherTotal verifies advantage and disadvantage pick
// the right sub-roll and retain both for display.
func TestRollAdvantageKeepsHigherTotal(t *testing.T) {
	source := &scriptedSource{values: []int{4, 18}}
	results, err := NewRoller(source).Roll(Request{Mechanic: MechanicClassic, Dice: "1d20", Advantage: true})
	if err != nil {
		t.Fatalf("Roll returned error: %v", err)
	}
	result := results[0]
	if result.Total != 18 {
		t.Fatalf("advantage total = %d, want 18", result.Total)
	}
	if len(result.AllRolls) != 2 {
		t.Fatalf("expected both sub-rolls, got %d", len(result.AllRolls))
	}
	if result.AllRolls[0].Total != 4 || result.AllRolls[1].Total != 18 {
		t.Fatalf("sub-roll totals = %d, %d, want 4, 18", result.AllRolls[0].Total, result.AllRolls[1].Total)
	}
}

func TestRollDisadvantageKeepsLowerTotal(t *testing.T) {
	source := &scriptedSource{values: []int{4, 18}}
	results, err := NewRoller(source).Roll(Request{Mechanic: MechanicClassic, Dice: "1d20", Disadvantage: true})
	if err != nil {
		t.Fatalf("Roll returned error: %v", err)
	}
	if results[0].Total != 4 {
		t.Fatalf("disadvantage total = %d, want 4", results[0].Total)
	}
}

// TestRollBothFlagsCancel ensures advantage plus disadvantage rolls the
// mechanic exactly once.
func TestRollBothFlagsCancel(t *testing.T) {
	source := &scriptedSource{values: []int{6, 5, 4, 1, 9, 9, 9, 9}}
	results, err := NewRoller(source).Roll(Request{
		Mechanic:     MechanicHeroic,
		Dice:         "4d6",
		Advantage:    true,
		Disadvantage: true,
	})
	if err != nil {
		t.Fatalf("Roll returned error: %v", err)
	}
	if source.calls != 4 {
		t.Fatalf("rolled %d dice, want 4 (single mechanic invocation)", source.calls)
	}
	if len(results[0].AllRolls) != 0 {
		t.Fatalf("expected no sub-rolls when flags cancel, got %d", len(results[0].AllRolls))
	}
}

// TestRollRepeats ensures NumRolls produces independent result entries.
func TestRollRepeats(t *testing.T) {
	source := &scriptedSource{values: []int{2, 9, 13}}
	results, err := NewRoller(source).Roll(Request{Mechanic: MechanicClassic, Dice: "1d20", NumRolls: 3})
	if err != nil {
		t.Fatalf("Roll returned error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []int{2, 9, 13} {
		if results[i].Total != want {
			t.Fatalf("result %d total = %d, want %d", i, results[i].Total, want)
		}
	}
}

// TestParseMechanic ensures known names parse and unknown ones fail.
func TestParseMechanic(t *testing.T) {
	for _, name := range []string{"Classic", "Heroic", "High Floor", "Percentile"} {
		mechanic, err := ParseMechanic(name)
		if err != nil {
			t.Fatalf("ParseMechanic(%q) returned error: %v", name, err)
		}
		if string(mechanic) != name {
			t.Fatalf("ParseMechanic(%q) = %q", name, mechanic)
		}
	}
	if _, err := ParseMechanic("Brutal"); !errors.Is(err, ErrUnknownMechanic) {
		t.Fatalf("ParseMechanic error = %v, want %v", err, ErrUnknownMechanic)
	}
}
