package helpers

import (
	"fmt"
	"strings"

	"github.com/bluesky-social/chatmod/automod/platform"

	"github.com/rivo/uniseg"
	"github.com/spaolacci/murmur3"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// returns a fast, compact hash of a string
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

// Concatenates the text-bearing parts of embeds, one segment per line, skipping blank segments.
//
// Order per embed: author, title, description, each field name and value, footer.
func FlattenEmbeds(embeds []platform.Embed) string {
	var lines []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			lines = append(lines, s)
		}
	}
	for _, e := range embeds {
		add(e.Author)
		add(e.Title)
		add(e.Description)
		for _, f := range e.Fields {
			add(f.Name)
			add(f.Value)
		}
		add(e.Footer)
	}
	return strings.Join(lines, "\n")
}

// Truncates to at most max grapheme clusters, replacing the last kept cluster with an ellipsis if anything was cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	var clusters []string
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if len(clusters) == max {
			clusters[max-1] = "…"
			return strings.Join(clusters, "")
		}
		clusters = append(clusters, g.Str())
	}
	return s
}
