package mining

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
)

// MatchResult is the outcome of linking tickets to fix commits.
type MatchResult struct {
	Tickets []dataset.Ticket
	Commits []dataset.Commit
	// Unmatched lists the keys of tickets no commit references.
	Unmatched []string
}

// MatchTickets links each ticket to the first commit, in stored order, whose
// message references the ticket key as a whole token. That commit is flagged
// as a fix. Tickets without a referencing commit are removed. The inputs are
// not modified.
func MatchTickets(tickets []dataset.Ticket, commits []dataset.Commit) MatchResult {
	out := MatchResult{
		Tickets: make([]dataset.Ticket, 0, len(tickets)),
		Commits: make([]dataset.Commit, len(commits)),
	}

	for i, c := range commits {
		c.Tickets = slices.Clone(c.Tickets)
		out.Commits[i] = c
	}

	for _, t := range tickets {
		idx := slices.IndexFunc(out.Commits, func(c dataset.Commit) bool {
			return ReferencesKey(c.Message, t.Key)
		})

		if idx < 0 {
			out.Unmatched = append(out.Unmatched, t.Key)

			continue
		}

		fix := &out.Commits[idx]
		fix.IsFix = true
		fix.Tickets = append(fix.Tickets, t.Key)
		out.Tickets = append(out.Tickets, t.Clone())
	}

	return out
}

// ReferencesKey reports whether message contains key delimited on both sides
// by a non-identifier character, so "PROJ-12" does not match "PROJ-123".
func ReferencesKey(message, key string) bool {
	if key == "" {
		return false
	}

	for offset := 0; offset < len(message); {
		idx := strings.Index(message[offset:], key)
		if idx < 0 {
			return false
		}

		start := offset + idx
		end := start + len(key)

		if boundaryBefore(message, start, key) && boundaryAfter(message, end) {
			return true
		}

		offset = start + 1
	}

	return false
}

func boundaryBefore(message string, start int, key string) bool {
	if start == 0 {
		return true
	}

	first, _ := utf8.DecodeRuneInString(key)
	if !isKeyRune(first) {
		return true
	}

	prev, _ := utf8.DecodeLastRuneInString(message[:start])

	return !isKeyRune(prev)
}

func boundaryAfter(message string, end int) bool {
	if end >= len(message) {
		return true
	}

	next, _ := utf8.DecodeRuneInString(message[end:])

	return !isKeyRune(next)
}

func isKeyRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
