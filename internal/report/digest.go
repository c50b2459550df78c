// Package report renders a chamber's derived signals and recent
// activity as a human-readable Markdown-to-HTML digest. The activity CLI
// subcommand prints its Markdown; the web server does not serve it.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/nugget/chamberwatch/internal/session"
)

// Digest holds the rendered forms of one chamber's activity summary.
type Digest struct {
	Chamber  string
	Markdown string
	HTML     string
}

// displayName maps a chamber key to its prose name for the digest.
func displayName(chamber string) string {
	switch chamber {
	case "house":
		return "House"
	case "senate":
		return "Senate"
	default:
		return chamber
	}
}

// Build renders a Markdown (and HTML) digest of a chamber's current
// signals plus the nearest activity to at, the way
// session.Activity reports it. at is typically "now".
func Build(chamber string, signals session.Signals, activity session.Event, hasActivity bool, at time.Time) (Digest, error) {
	var md strings.Builder

	fmt.Fprintf(&md, "# %s\n\n", displayName(chamber))
	fmt.Fprintf(&md, "- **Convened:** %s\n", signals.Convened.String())

	if signals.ConvenedAt != nil {
		fmt.Fprintf(&md, "- **Convened at:** %s\n", signals.ConvenedAt.Format(time.RFC3339))
	}
	if signals.AdjournedAt != nil {
		fmt.Fprintf(&md, "- **Adjourned at:** %s\n", signals.AdjournedAt.Format(time.RFC3339))
	}
	if signals.ConvenesAt != nil {
		fmt.Fprintf(&md, "- **Next convening:** %s\n", signals.ConvenesAt.Format(time.RFC3339))
	}

	md.WriteString("\n## Nearest activity\n\n")
	if hasActivity {
		fmt.Fprintf(&md, "As of %s, the closest recorded event is **%s** at %s",
			at.Format(time.RFC3339), activity.Kind.String(), activity.Timestamp.Format(time.RFC3339))
		if activity.Description != "" {
			fmt.Fprintf(&md, ":\n\n> %s\n", activity.Description)
		} else {
			md.WriteString(".\n")
		}
	} else {
		md.WriteString("No recorded activity for this chamber yet.\n")
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &buf); err != nil {
		return Digest{}, fmt.Errorf("report: render digest for %s: %w", chamber, err)
	}

	return Digest{Chamber: chamber, Markdown: md.String(), HTML: buf.String()}, nil
}

// BuildActivity renders the digest for a chamber given its full event
// log, delegating the "closest event to at" lookup to session.Activity.
func BuildActivity(chamber string, signals session.Signals, events []session.Event, now, at time.Time) (Digest, error) {
	ev, ok := session.Activity(events, now, at)
	return Build(chamber, signals, ev, ok, at)
}
