package notify

import (
	"fmt"
	"strings"

	"github.com/schedora/schedora/scheduler/invite"
)

// Subject prefixes per verb, keyed by language tag.  Lookups fall back to
// English for unknown locales.
var replyPrefixes = map[string]map[invite.ReplyVerb]string{
	"en": {
		invite.VerbAccept:         "Accepted",
		invite.VerbDecline:        "Declined",
		invite.VerbTentative:      "Tentative",
		invite.VerbCounter:        "New Time Proposed",
		invite.VerbDeclineCounter: "New Time Declined",
	},
	"de": {
		invite.VerbAccept:         "Zugesagt",
		invite.VerbDecline:        "Abgelehnt",
		invite.VerbTentative:      "Vorbehaltlich",
		invite.VerbCounter:        "Neuer Terminvorschlag",
		invite.VerbDeclineCounter: "Terminvorschlag abgelehnt",
	},
	"fr": {
		invite.VerbAccept:         "Accepté",
		invite.VerbDecline:        "Refusé",
		invite.VerbTentative:      "Provisoire",
		invite.VerbCounter:        "Nouvel horaire proposé",
		invite.VerbDeclineCounter: "Nouvel horaire refusé",
	},
}

var cancelPrefixes = map[string]string{
	"en": "Cancelled",
	"de": "Abgesagt",
	"fr": "Annulé",
}

// lang reduces a locale tag like "de-CH" to its base language.
func lang(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

// ReplySubject builds the subject line for a reply notification in the
// recipient's locale, e.g. "Accepted: Weekly sync".
func ReplySubject(verb invite.ReplyVerb, summary, locale string) string {
	prefixes, ok := replyPrefixes[lang(locale)]
	if !ok {
		prefixes = replyPrefixes["en"]
	}
	prefix, ok := prefixes[verb]
	if !ok {
		prefix = replyPrefixes["en"][invite.VerbAccept]
	}
	return fmt.Sprintf("%s: %s", prefix, summary)
}

// CancelSubject builds the subject line for a cancellation notice.
func CancelSubject(summary, locale string) string {
	prefix, ok := cancelPrefixes[lang(locale)]
	if !ok {
		prefix = cancelPrefixes["en"]
	}
	return fmt.Sprintf("%s: %s", prefix, summary)
}

// ReplyBodyLine builds the one-line plain text body of a reply
// notification.
func ReplyBodyLine(verb invite.ReplyVerb, actor, summary, locale string) string {
	switch lang(locale) {
	case "de":
		return fmt.Sprintf("%s hat auf die Einladung %q geantwortet: %s", actor, summary, ReplySubject(verb, summary, locale))
	case "fr":
		return fmt.Sprintf("%s a répondu à l'invitation %q : %s", actor, summary, ReplySubject(verb, summary, locale))
	default:
		var action string
		switch verb {
		case invite.VerbDecline:
			action = "declined"
		case invite.VerbTentative:
			action = "tentatively accepted"
		case invite.VerbCounter:
			action = "proposed a new time for"
		case invite.VerbDeclineCounter:
			action = "declined the new time proposed for"
		default:
			action = "accepted"
		}
		return fmt.Sprintf("%s has %s the invitation %q.", actor, action, summary)
	}
}
