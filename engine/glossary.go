package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Glossary pins domain terms to fixed renderings so recurring names and
// rank titles stay consistent across hundreds of chapters instead of
// drifting with the translator's mood.
type Glossary struct {
	Name    string
	Source  string // uppercase language code
	Target  string // uppercase language code
	Entries map[string]string
}

// shadowSlaveTerms is the built-in EN→ES glossary. Proper nouns and
// ability names map to themselves so they stay in English; ranks and a few
// recurring words carry fixed Spanish renderings.
var shadowSlaveTerms = map[string]string{
	// System and mechanics
	"Shadow Slave":       "Shadow Slave",
	"Nightmare Creature": "Nightmare Creature",
	"Memory":             "Memory",
	"Echo":               "Echo",
	"Soul Core":          "Soul Core",
	"Awakened":           "Awakened",
	"Sleepers":           "Sleepers",
	"Flaws":              "Flaws",
	"First Nightmare":    "First Nightmare",
	"Second Nightmare":   "Second Nightmare",
	"Third Nightmare":    "Third Nightmare",
	"Fourth Nightmare":   "Fourth Nightmare",
	"Fifth Nightmare":    "Fifth Nightmare",
	"Sixth Nightmare":    "Sixth Nightmare",
	"Seventh Nightmare":  "Seventh Nightmare",

	"Memory Shard": "Memory Shard",
	"Soul Flame":   "Soul Flame",
	"Soul Sea":     "Soul Sea",
	"Weaving":      "Weaving",

	// Ranks and titles
	"Saint":        "Santo",
	"Master":       "Maestro",
	"Great":        "Gran",
	"Supreme":      "Supremo",
	"Transcendent": "Transcendente",
	"Dormant":      "Durmiente",

	// Abilities
	"Shadow Step":          "Shadow Step",
	"Shadow Sense":         "Shadow Sense",
	"Shadow Manifestation": "Shadow Manifestation",
	"Shadow Control":       "Shadow Control",
	"Shadow Form":          "Shadow Form",
	"Shadow Domain":        "Shadow Domain",
	"Shadow Armor":         "Shadow Armor",
	"Shadow Weapon":        "Shadow Weapon",
	"Shadow Clone":         "Shadow Clone",
	"Shadow Travel":        "Shadow Travel",

	// Places and dimensions
	"Dream Realm":  "Dream Realm",
	"Nightmare":    "Nightmare",
	"Tower":        "Tower",
	"Spire":        "Spire",
	"Memory Realm": "Memory Realm",
	"Echo Realm":   "Echo Realm",

	// Factions
	"Sovereigns":          "Sovereigns",
	"Great Clans":         "Great Clans",
	"Great Families":      "Great Families",
	"Nightmare Creatures": "Nightmare Creatures",
	"Transcendents":       "Transcendents",

	"Flawed":  "Flawed",
	"Blessed": "Blessed",
	"Cursed":  "Cursed",

	// Combat
	"Shadow Combat": "Shadow Combat",
	"Shadow Arts":   "Shadow Arts",

	"Echoes": "Eco",
}

var builtinGlossaries = []Glossary{
	{Name: "Shadow Slave Glossary", Source: "EN", Target: "ES", Entries: shadowSlaveTerms},
}

// GlossaryFor returns the built-in glossary for a language pair, or nil
// when none applies.
func GlossaryFor(source, target string) *Glossary {
	for i := range builtinGlossaries {
		g := &builtinGlossaries[i]
		if strings.EqualFold(g.Source, source) && strings.EqualFold(g.Target, target) {
			return g
		}
	}
	return nil
}

// TSV renders the entries in the tab-separated form the DeepL glossary
// endpoint accepts.
func (g *Glossary) TSV() string {
	terms := g.sortedTerms()
	var b strings.Builder
	for _, term := range terms {
		b.WriteString(term)
		b.WriteByte('\t')
		b.WriteString(g.Entries[term])
		b.WriteByte('\n')
	}
	return b.String()
}

// Pin substitutes every glossary term with an opaque placeholder that
// survives machine translation, returning the pinned text and the
// placeholder table for Restore. Longer terms substitute first so
// "Shadow Slave" is never clobbered by a shorter overlapping term.
func (g *Glossary) Pin(text string) (string, map[string]string) {
	pinned := make(map[string]string)
	for i, term := range g.sortedTerms() {
		if !strings.Contains(text, term) {
			continue
		}
		ph := fmt.Sprintf("⦉%d⦊", i)
		text = strings.ReplaceAll(text, term, ph)
		pinned[ph] = g.Entries[term]
	}
	return text, pinned
}

// Restore replaces the placeholders from Pin with the glossary's target
// renderings.
func Restore(text string, pinned map[string]string) string {
	for ph, target := range pinned {
		text = strings.ReplaceAll(text, ph, target)
	}
	return text
}

// sortedTerms returns the terms longest-first, ties broken
// alphabetically so placeholder indices are deterministic.
func (g *Glossary) sortedTerms() []string {
	terms := make([]string, 0, len(g.Entries))
	for term := range g.Entries {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	return terms
}
