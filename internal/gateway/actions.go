package gateway

import (
	"sort"
	"time"

	"github.com/vinayprograms/aide/internal/approval"
)

// Timeout classes. Reads and clicks come back fast; navigation and content
// extraction take longer; package installs and IDE delegation run minutes.
const (
	timeoutShort   = 15 * time.Second
	timeoutMedium  = 60 * time.Second
	timeoutInstall = 10 * time.Minute
	timeoutIDE     = 15 * time.Minute
)

// ActionSpec describes one entry of the closed action vocabulary.
type ActionSpec struct {
	Name           string
	Tier           approval.Tier
	Timeout        time.Duration
	DestinationKey string // params key holding the destination, "" if none
}

// actionTable is the fixed vocabulary of remote actions. Risk tiers are
// static per action kind; only the destination allowlist can downgrade a
// Tier-1 destination action at authorization time.
var actionTable = map[string]ActionSpec{
	// Browser.
	"browser.connect":    {Name: "browser.connect", Tier: approval.TierConfirm, Timeout: timeoutMedium, DestinationKey: "url"},
	"browser.navigate":   {Name: "browser.navigate", Tier: approval.TierConfirm, Timeout: timeoutMedium, DestinationKey: "url"},
	"browser.screenshot": {Name: "browser.screenshot", Tier: approval.TierAuto, Timeout: timeoutShort},
	"browser.click":      {Name: "browser.click", Tier: approval.TierConfirm, Timeout: timeoutShort},
	"browser.type":       {Name: "browser.type", Tier: approval.TierConfirm, Timeout: timeoutShort},
	"browser.read":       {Name: "browser.read", Tier: approval.TierAuto, Timeout: timeoutShort},
	"browser.scroll":     {Name: "browser.scroll", Tier: approval.TierConfirm, Timeout: timeoutShort},
	"browser.press_key":  {Name: "browser.press_key", Tier: approval.TierConfirm, Timeout: timeoutShort},
	"browser.list_tabs":  {Name: "browser.list_tabs", Tier: approval.TierAuto, Timeout: timeoutShort},
	"browser.switch_tab": {Name: "browser.switch_tab", Tier: approval.TierConfirm, Timeout: timeoutShort},

	// Desktop.
	"desktop.screenshot": {Name: "desktop.screenshot", Tier: approval.TierAuto, Timeout: timeoutShort},
	"desktop.click":      {Name: "desktop.click", Tier: approval.TierConfirm, Timeout: timeoutShort},
	"desktop.type":       {Name: "desktop.type", Tier: approval.TierConfirm, Timeout: timeoutShort},
	"desktop.hotkey":     {Name: "desktop.hotkey", Tier: approval.TierConfirm, Timeout: timeoutShort},
	"desktop.focus":      {Name: "desktop.focus", Tier: approval.TierConfirm, Timeout: timeoutShort},
	"desktop.install":    {Name: "desktop.install", Tier: approval.TierDouble, Timeout: timeoutInstall},

	// Content.
	"content.scrape":  {Name: "content.scrape", Tier: approval.TierAuto, Timeout: timeoutMedium},
	"content.extract": {Name: "content.extract", Tier: approval.TierAuto, Timeout: timeoutMedium},

	// IDE delegation.
	"ide.connect": {Name: "ide.connect", Tier: approval.TierConfirm, Timeout: timeoutMedium},
	"ide.prompt":  {Name: "ide.prompt", Tier: approval.TierConfirm, Timeout: timeoutIDE},
	"ide.state":   {Name: "ide.state", Tier: approval.TierAuto, Timeout: timeoutShort},
}

// Lookup returns the spec for an action name.
func Lookup(name string) (ActionSpec, bool) {
	spec, ok := actionTable[name]
	return spec, ok
}

// Actions returns the vocabulary sorted by name.
func Actions() []ActionSpec {
	out := make([]ActionSpec, 0, len(actionTable))
	for _, spec := range actionTable {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
