package scanning

import "strings"

// cleanTranscript strips the markdown fences models like to wrap answers in
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Drop a language tag such as ```text
		if i := strings.IndexByte(text, '\n'); i >= 0 && !strings.ContainsAny(text[:i], " \t") {
			text = text[i+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

// joinPages concatenates page transcripts, skipping blank ones
func joinPages(pages []string) string {
	var out []string
	for _, p := range pages {
		if p = cleanTranscript(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
