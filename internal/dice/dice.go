// Package dice implements the dice mechanics behind narrator roll requests.
//
// A roll is described by a Request naming a Mechanic plus optional
// repetition and advantage flags. Randomness comes from a Source so
// callers can inject a deterministic sequence in tests.
package dice

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// ErrMissingDice indicates a mechanic that needs a dice expression got none.
var ErrMissingDice = errors.New("mechanic requires a dice expression")

// ErrUnknownMechanic indicates an unrecognized roll mechanic name.
var ErrUnknownMechanic = errors.New("unknown roll mechanic")

// Mechanic names a dice-rolling method.
type Mechanic string

const (
	// MechanicClassic rolls the expression and sums it.
	MechanicClassic Mechanic = "Classic"
	// MechanicHeroic rolls the expression and drops the single lowest die.
	MechanicHeroic Mechanic = "Heroic"
	// MechanicHighFloor always rolls 2d6+6, ignoring any expression.
	MechanicHighFloor Mechanic = "High Floor"
	// MechanicPercentile always rolls 1d100, ignoring any expression.
	MechanicPercentile Mechanic = "Percentile"
)

// ParseMechanic validates a mechanic name.
func ParseMechanic(value string) (Mechanic, error) {
	switch Mechanic(value) {
	case MechanicClassic, MechanicHeroic, MechanicHighFloor, MechanicPercentile:
		return Mechanic(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMechanic, value)
}

// Source produces individual die values. Roll returns a value in [1, sides].
// Implementations must be safe for concurrent use.
type Source interface {
	Roll(sides int) int
}

// lockedSource wraps a rand.Rand with a mutex so concurrent turns may share it.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Roll(sides int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(sides) + 1
}

// NewSource returns a seeded random die source.
func NewSource(seed int64) Source {
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

// Request describes one or more rolls of a mechanic.
type Request struct {
	Mechanic     Mechanic
	Dice         string
	NumRolls     int
	Advantage    bool
	Disadvantage bool
}

// RollResult captures the outcome of a single mechanic invocation.
type RollResult struct {
	Total   int
	Rolls   []int
	Dropped []int
	// AllRolls holds both sub-results when advantage or disadvantage
	// picked between two rolls, in roll order.
	AllRolls []RollResult
}

// Roller executes roll requests against a die source.
type Roller struct {
	source Source
}

// NewRoller builds a roller. A nil source gets a time-seeded one.
func NewRoller(source Source) *Roller {
	if source == nil {
		source = NewSource(time.Now().UnixNano())
	}
	return &Roller{source: source}
}

// RollExpression parses and rolls a dice expression, returning the
// individual die values and the modified total.
func (r *Roller) RollExpression(expression string) ([]int, int, error) {
	expr, err := ParseExpression(expression)
	if err != nil {
		return nil, 0, err
	}
	rolls, sum := r.rollAll(expr)
	return rolls, sum + expr.Modifier, nil
}

// Roll executes a request, producing NumRolls independent results.
//
// With advantage the mechanic runs twice and the higher total wins; with
// disadvantage the lower. Both flags together cancel out and the mechanic
// runs exactly once.
func (r *Roller) Roll(request Request) ([]RollResult, error) {
	single, err := r.mechanic(request)
	if err != nil {
		return nil, err
	}

	numRolls := request.NumRolls
	if numRolls < 1 {
		numRolls = 1
	}

	results := make([]RollResult, 0, numRolls)
	for i := 0; i < numRolls; i++ {
		var result RollResult
		switch {
		case request.Advantage == request.Disadvantage:
			result = single()
		case request.Advantage:
			result = pick(single(), single(), true)
		default:
			result = pick(single(), single(), false)
		}
		results = append(results, result)
	}
	return results, nil
}

// mechanic validates the request and returns the underlying roll function.
// All validation happens here so the returned function cannot fail.
func (r *Roller) mechanic(request Request) (func() RollResult, error) {
	switch request.Mechanic {
	case MechanicClassic, MechanicHeroic:
		if request.Dice == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingDice, request.Mechanic)
		}
		expr, err := ParseExpression(request.Dice)
		if err != nil {
			return nil, err
		}
		if request.Mechanic == MechanicHeroic {
			return func() RollResult { return r.rollHeroic(expr) }, nil
		}
		return func() RollResult { return r.rollClassic(expr) }, nil
	case MechanicHighFloor:
		return func() RollResult { return r.rollClassic(Expression{Count: 2, Sides: 6, Modifier: 6}) }, nil
	case MechanicPercentile:
		return func() RollResult { return r.rollClassic(Expression{Count: 1, Sides: 100}) }, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMechanic, request.Mechanic)
}

// rollAll rolls every die in the expression, returning values and their sum
// without the modifier applied.
func (r *Roller) rollAll(expr Expression) ([]int, int) {
	rolls := make([]int, expr.Count)
	sum := 0
	for i := range rolls {
		rolls[i] = r.source.Roll(expr.Sides)
		sum += rolls[i]
	}
	return rolls, sum
}

func (r *Roller) rollClassic(expr Expression) RollResult {
	rolls, sum := r.rollAll(expr)
	return RollResult{
		Total:   sum + expr.Modifier,
		Rolls:   rolls,
		Dropped: []int{},
	}
}

// rollHeroic drops exactly one minimal die from the sum. The modifier is
// ignored; the reported rolls are sorted highest first.
func (r *Roller) rollHeroic(expr Expression) RollResult {
	rolls, sum := r.rollAll(expr)
	dropped := rolls[0]
	for _, value := range rolls[1:] {
		if value < dropped {
			dropped = value
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rolls)))
	return RollResult{
		Total:   sum - dropped,
		Rolls:   rolls,
		Dropped: []int{dropped},
	}
}

// pick keeps the result with the higher total when higher is true,
// otherwise the lower. Both sub-results are retained for display.
func pick(first, second RollResult, higher bool) RollResult {
	kept := first
	if higher && second.Total > first.Total {
		kept = second
	}
	if !higher && second.Total < first.Total {
		kept = second
	}
	kept.AllRolls = []RollResult{first, second}
	return kept
}
