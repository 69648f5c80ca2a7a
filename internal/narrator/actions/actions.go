// Package actions turns widget interactions into the fixed player turns the
// narrator expects. The phrasing is part of the conversation protocol: the
// backend is primed on these exact forms, so they must stay byte stable.
package actions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/loreweaver/internal/dice"
)

// lineBreak is the wire-format escape used inside conversation turns.
const lineBreak = `\n`

// Choice phrases a single-choice selection.
func Choice(option string) string {
	return "I choose: " + option
}

// MultiChoice phrases a multi-select confirmation in selection order.
func MultiChoice(options []string) string {
	return "I choose the following: " + strings.Join(options, ", ")
}

// Score is one name/value pairing confirmed from an ordered list.
type Score struct {
	Name  string
	Value int
}

// OrderedScores phrases an ordered-list confirmation, one pairing per line.
func OrderedScores(scores []Score) string {
	var b strings.Builder
	b.WriteString("I have assigned the scores as follows:")
	b.WriteString(lineBreak)
	for _, score := range scores {
		b.WriteString(score.Name)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(score.Value))
		b.WriteString(lineBreak)
	}
	return b.String()
}

// RollSummary phrases dice results. Each result reads
// "(Total: 12, Rolls: [6, 5, 1])" with dropped dice appended when the
// mechanic discarded any.
func RollSummary(title string, results []dice.RollResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		part := fmt.Sprintf("Total: %d, Rolls: %s", result.Total, formatRolls(result.Rolls))
		if len(result.Dropped) > 0 {
			part += ", Dropped: " + formatRolls(result.Dropped)
		}
		parts = append(parts, "("+part+")")
	}
	return fmt.Sprintf("I rolled for %s: %s", title, strings.Join(parts, ", "))
}

func formatRolls(rolls []int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, roll := range rolls {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(roll))
	}
	b.WriteByte(']')
	return b.String()
}
