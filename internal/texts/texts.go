// Package texts holds the user-facing message catalog. Replies are
// available in Hinglish (Hindi in Latin script, the default) and Hindi;
// language codes from user input are resolved to a supported tag with
// golang.org/x/text's matcher so near-misses ("hi-IN", "hin") still land on
// Hindi instead of falling back silently.
package texts

import (
	"fmt"
	"sync"

	"golang.org/x/text/language"
)

// Supported reply languages. Hinglish is modeled as hi-Latn.
var (
	Hinglish = language.MustParse("hi-Latn")
	Hindi    = language.MustParse("hi")
)

var matcher = language.NewMatcher([]language.Tag{Hinglish, Hindi})

// Resolve maps a user-supplied language code to a supported tag. The short
// codes "hx" and "hi" are the documented command arguments; anything else is
// given to the BCP 47 matcher. Unparseable input resolves to Hinglish.
func Resolve(code string) (language.Tag, bool) {
	switch code {
	case "hx":
		return Hinglish, true
	case "hi":
		return Hindi, true
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Hinglish, false
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Hinglish, false
	}
	return []language.Tag{Hinglish, Hindi}[idx], true
}

// catalog maps message keys to per-language format strings. Most entries are
// identical across the two languages in the source material; they are kept
// separate anyway so either side can drift.
var catalog = map[string]map[language.Tag]string{
	"usage_request": {
		Hinglish: "Use: /request <item>\nExample: /request React WKS",
		Hindi:    "Use: /request <item>\nExample: /request React WKS",
	},
	"pm_request_not_allowed": {
		Hinglish: "📌 How it works\n\n👥 Group me request bhejo\n➡️ /request <item>\n   Example: /request Avengers\n\n📬 Status dekhna ho\n➡️ PM me /myrequests use karo",
		Hindi:    "📌 How it works\n\n👥 Group me request bhejo\n➡️ /request <item>\n   Example: /request Avengers\n\n📬 Status dekhna ho\n➡️ PM me /myrequests use karo",
	},
	"check_dm_hint": {
		Hinglish: "📩 Check your DM\n\nPehle bot ko private chat me open karke /start karo,\nphir wapas group me aakar /request bhejna.",
		Hindi:    "📩 Check your DM\n\nPehle bot ko private chat me open karke /start karo,\nphir wapas group me aakar /request bhejna.",
	},
	"first_time_dm": {
		Hinglish: "👋 Setup complete!\n\nAb group me jaake /request <item> bhejo.\nConfirmation aur status yahin PM me milega.",
		Hindi:    "👋 Setup complete!\n\nAb group me jaake /request <item> bhejo.\nConfirmation aur status yahin PM me milega.",
	},
	"group_hint_open_pm": {
		Hinglish: "📩 Bot PM open karke /start karo, phir request bhejna.",
		Hindi:    "📩 Bot PM open karke /start karo, phir request bhejna.",
	},
	"dup_pending": {
		Hinglish: "📌 Same request already pending hai\nGroup: %s\nID: #%d\nItem: %s\nStatus: pending\n\nStatus check: /myrequests",
		Hindi:    "📌 Same request pehle se pending hai\nGroup: %s\nID: #%d\nItem: %s\nStatus: pending\n\nStatus check: /myrequests",
	},
	"submitted": {
		Hinglish: "✅ Request submit ho gaya\nGroup: %s\nID: #%d\nItem: %s\nStatus: pending\n\nStatus check karne ke liye: /myrequests",
		Hindi:    "✅ Request submit ho gaya\nGroup: %s\nID: #%d\nItem: %s\nStatus: pending\n\nStatus check karne ke liye: /myrequests",
	},
	"auto_approved": {
		Hinglish: "✅ Auto-approved\nID: #%d\nItem: %s",
		Hindi:    "✅ Auto-approved\nID: #%d\nItem: %s",
	},
	"status_update": {
		Hinglish: "🔔 Request update\nGroup: %s\nID: #%d\nItem: %s\nStatus: %s",
		Hindi:    "🔔 Request update\nGroup: %s\nID: #%d\nItem: %s\nStatus: %s",
	},
	"blocked": {
		Hinglish: "Aap blocked ho. Aap request nahi kar sakte.",
		Hindi:    "Aap blocked ho. Aap request nahi kar sakte.",
	},
	"cooldown": {
		Hinglish: "5 min baad request bhejo.",
		Hindi:    "5 min baad request bhejo.",
	},
	"quota_exceeded": {
		Hinglish: "Aapki 48 hours ki request limit full ho gayi hai. 48 hours baad try karo.",
		Hindi:    "Aapki 48 hours ki request limit full ho gayi hai. 48 hours baad try karo.",
	},
	"myreqs_empty": {
		Hinglish: "Koi request nahi mila.",
		Hindi:    "Koi request nahi mila.",
	},
	"myreqs_pm_only": {
		Hinglish: "Status dekhna ho toh bot PM me /myrequests use karo.",
		Hindi:    "Status dekhna ho toh bot PM me /myrequests use karo.",
	},
	"pending_pm_only": {
		Hinglish: "Pending list dekhni ho toh PM me /pending use karo.",
		Hindi:    "Pending list dekhni ho toh PM me /pending use karo.",
	},
	"stats_pm_only": {
		Hinglish: "Stats dekhna ho toh PM me /stats use karo.",
		Hindi:    "Stats dekhna ho toh PM me /stats use karo.",
	},
	"lang_help": {
		Hinglish: "Language set karne ke liye:\n/lang hx  (Hinglish)\n/lang hi  (Hindi)",
		Hindi:    "Language set karne ke liye:\n/lang hx  (Hinglish)\n/lang hi  (Hindi)",
	},
	"lang_set": {
		Hinglish: "✅ Language Hinglish set ho gayi.",
		Hindi:    "✅ Language Hindi set ho gayi.",
	},
	"help_full": {
		Hinglish: "📌 Help (User)\n\n✅ /request <item>  (GROUP me)\n• Group me msg delete ho jayega\n• Bot DM me confirmation bhejega\n\n✅ /myrequests  (SIRF PM me)\n• Apni requests + status dekhne ke liye\n\nℹ️ Pehli baar: bot ko PM me /start karna zaroori hai.",
		Hindi:    "📌 Help (User)\n\n✅ /request <item>  (GROUP me)\n• Group me msg delete ho jayega\n• Bot DM me confirmation bhejega\n\n✅ /myrequests  (SIRF PM me)\n• Apni requests + status dekhne ke liye\n\nℹ️ Pehli baar: bot ko PM me /start karna zaroori hai.",
	},
}

// T renders the catalog entry for key in the given language, applying args
// with fmt. Unknown keys render as the key itself so a missing entry is
// visible instead of silent.
func T(lang language.Tag, key string, args ...any) string {
	entry, ok := catalog[key]
	if !ok {
		return key
	}
	format, ok := entry[lang]
	if !ok {
		format = entry[Hinglish]
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Prefs stores per-user reply-language preferences. Process-local by design;
// the preference was never persisted in this system.
type Prefs struct {
	mu sync.RWMutex
	m  map[int64]language.Tag
}

// NewPrefs returns an empty preference table.
func NewPrefs() *Prefs {
	return &Prefs{m: make(map[int64]language.Tag)}
}

// Get returns the user's preferred language, defaulting to Hinglish.
func (p *Prefs) Get(userID int64) language.Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if tag, ok := p.m[userID]; ok {
		return tag
	}
	return Hinglish
}

// Set stores the user's preferred language.
func (p *Prefs) Set(userID int64, tag language.Tag) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[userID] = tag
}
