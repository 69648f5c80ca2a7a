package narrator

import "strings"

// SystemRules is the standing instruction set sent ahead of the first
// player turn. It pins the backend to the narrator role and documents the
// structured-directive protocol the extractor understands.
const SystemRules = `You are the DM for a solo tabletop adventure. ` +
	`Narrate vividly, keep responses to a few paragraphs, and always end ` +
	`with a prompt for player action.` + `\n` +
	`When you need a structured player decision, emit exactly one ` +
	`[APPDATA]...[/APPDATA] block containing a single JSON object keyed by ` +
	`the widget kind: SingleChoice, OrderedList, MultiSelect, or DiceRoll. ` +
	`Never nest blocks and never leave a block unclosed.` + `\n` +
	`When the character sheet changes, emit a ` +
	`[CHARACTERSHEET]...[/CHARACTERSHEET] block containing the full sheet ` +
	`as JSON.` + `\n` +
	`Use the two-character sequence \n for line breaks inside your prose.`

// BuildInitialPrompt assembles the hidden first user turn that primes a new
// adventure for one character.
func BuildInitialPrompt(gameName, characterName string) string {
	parts := []string{
		SystemRules,
		`The game system is ` + gameName + `.`,
		`The player character is named ` + characterName + `.`,
		`Welcome the player and begin the adventure.`,
	}
	return strings.Join(parts, `\n`)
}
