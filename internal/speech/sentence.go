package speech

import (
	"strings"
	"unicode"
)

var abbreviations = makeAbbreviationMap()

// makeAbbreviationMap lists words whose trailing period does not end a
// sentence.
func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr",
		"ph.d", "m.d", "b.a", "m.a", "b.s",
		"llc", "inc", "ltd", "co", "corp",
		"i.e", "e.g", "etc", "vs", "cf", "al",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"st", "rd", "ave", "blvd",
		"u.s", "u.k", "u.n", "e.u",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm",
		"hr", "hrs", "min", "mins", "sec", "secs",
	}
	m := make(map[string]bool, len(abbrevs))
	for _, a := range abbrevs {
		m[a] = true
	}
	return m
}

// sentences splits text after sentence-ending punctuation. The pieces keep
// their punctuation and are trimmed.
func sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		end := i + 1
		for end < len(runes) && strings.ContainsRune(".!?", runes[end]) {
			end++
		}
		for end < len(runes) && strings.ContainsRune("\"')]", runes[end]) {
			end++
		}
		if !sentenceEnd(runes, i, end) {
			i = end - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// sentenceEnd reports whether the punctuation at pos, which runs up to end,
// closes a sentence.
func sentenceEnd(runes []rune, pos, end int) bool {
	if end >= len(runes) {
		return true
	}
	// Must have whitespace after punctuation.
	if !unicode.IsSpace(runes[end]) {
		return false
	}
	// "?", "!" and runs such as "..." always end a sentence.
	if runes[pos] != '.' || strings.ContainsRune(".!?", runes[pos+1]) {
		return true
	}

	wordStart := pos
	for wordStart > 0 && !unicode.IsSpace(runes[wordStart-1]) {
		wordStart--
	}
	word := strings.TrimLeft(strings.ToLower(string(runes[wordStart:pos])), "\"'([")
	if abbreviations[word] {
		return false
	}
	// Initials such as "J." in "J. R. R. Tolkien".
	if r := []rune(word); len(r) == 1 && unicode.IsLetter(r[0]) {
		return false
	}

	next := end
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	return next >= len(runes) || !unicode.IsLower(runes[next])
}

// chunks packs the sentences of text into pieces of at most limit bytes.
// Sentences longer than limit are cut at spaces, or anywhere when a single
// word is too long. limit <= 0 returns text whole.
func chunks(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	add := func(piece string) {
		if cur.Len() > 0 && cur.Len()+1+len(piece) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(piece)
	}

	for _, s := range sentences(text) {
		if len(s) <= limit {
			add(s)
			continue
		}
		for _, w := range strings.Fields(s) {
			for len(w) > limit {
				flush()
				cut := cutAt(w, limit)
				out = append(out, w[:cut])
				w = w[cut:]
			}
			add(w)
		}
	}
	flush()
	return out
}

// cutAt returns the largest rune boundary of s not beyond limit.
func cutAt(s string, limit int) int {
	cut := 0
	for i := range s {
		if i > limit {
			break
		}
		cut = i
	}
	if cut == 0 {
		// First rune alone is wider than limit.
		for i := range s {
			if i > 0 {
				return i
			}
		}
		return len(s)
	}
	return cut
}
