package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// ForbiddenSlots derives the set of topics the agent must not re-ask about:
// exactly the keys of facts whose value is non-nil. Pure derivation, never
// cached or independently authored.
func ForbiddenSlots(facts map[string]any) map[string]struct{} {
	if len(facts) == 0 {
		return nil
	}
	slots := make(map[string]struct{}, len(facts))
	for k, v := range facts {
		if v == nil {
			continue
		}
		slots[k] = struct{}{}
	}
	if len(slots) == 0 {
		return nil
	}
	return slots
}

// ContextPrefix renders the session's known context as inline message
// content for the very first turn. An instruction-following model only
// reliably reacts to information present in message content, so this is
// injected into the conversation rather than left as side-channel state.
//
// Returns "" only when facts, forbidden slots, and every bootstrap
// attribute are all empty.
func ContextPrefix(sess *models.Session) string {
	if sess == nil {
		return ""
	}
	var b strings.Builder

	if sess.DisplayName != "" {
		fmt.Fprintf(&b, "The user's name is %s.\n", sess.DisplayName)
	}
	if sess.Locale != "" {
		fmt.Fprintf(&b, "The user's locale is %s.\n", sess.Locale)
	}

	if len(sess.Facts) > 0 {
		b.WriteString("Known facts about this conversation:\n")
		for _, k := range sortedKeys(sess.Facts) {
			v := sess.Facts[k]
			if v == nil {
				continue
			}
			fmt.Fprintf(&b, "- %s: %v\n", k, v)
		}
	}

	if len(sess.ForbiddenSlots) > 0 {
		slots := make([]string, 0, len(sess.ForbiddenSlots))
		for k := range sess.ForbiddenSlots {
			slots = append(slots, k)
		}
		sort.Strings(slots)
		b.WriteString("Do not ask the user again about: ")
		b.WriteString(strings.Join(slots, ", "))
		b.WriteString(".\n")
	}

	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
