package ui

import (
	"fmt"
	"strings"

	"grimm.is/tornet/internal/policy"
	"grimm.is/tornet/internal/probe"
)

// Status is the --status view.
type Status struct {
	TorInstalled      bool   `json:"tor_installed"`
	TorRunning        bool   `json:"tor_running"`
	IP                string `json:"ip,omitempty"`
	CountryCode       string `json:"ip_country_code,omitempty"`
	CountryName       string `json:"ip_country,omitempty"`
	ConfiguredCountry string `json:"configured_country"`
	ServiceManager    string `json:"service_manager"`
	PackageManager    string `json:"package_manager"`
	ConfigFile        string `json:"config_file"`
	LogFile           string `json:"log_file"`
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func (t *Theme) header(title string) string {
	bar := t.Frame.Render("─────────────[")
	end := t.Frame.Render("]─────────────")
	return " " + bar + " " + t.Title.Render(title) + " " + end + "\n"
}

func (t *Theme) footer() string {
	return t.Frame.Render(Rule) + "\n"
}

func (t *Theme) field(label, value string) string {
	return " " + t.Label.Render(label+":") + " " + value + "\n"
}

func (t *Theme) tick(ok bool) string {
	if ok {
		return t.Good.Render(mark(true))
	}
	return t.Bad.Render(mark(false))
}

// Status renders the status panel.
func (t *Theme) Status(s Status) string {
	var b strings.Builder
	b.WriteString(t.header("TorNet Status"))
	b.WriteString(t.field("Tor Installed", t.tick(s.TorInstalled)))
	b.WriteString(t.field("Tor Running", t.tick(s.TorRunning)))
	if s.IP != "" {
		b.WriteString(t.field("Current IP", t.Value.Render(s.IP)))
		if s.CountryCode != "" && s.CountryName != "" {
			b.WriteString(t.field("IP Country", fmt.Sprintf("%s (%s)", s.CountryName, s.CountryCode)))
		}
	} else {
		b.WriteString(t.field("Current IP", t.Bad.Render("Unknown")))
	}
	b.WriteString(t.field("Configured Country", s.ConfiguredCountry))
	b.WriteString(t.field("Service Manager", orUnknown(s.ServiceManager)))
	b.WriteString(t.field("Package Manager", orUnknown(s.PackageManager)))
	b.WriteString(t.field("Config File", s.ConfigFile))
	b.WriteString(t.field("Log File", s.LogFile))
	b.WriteString(t.footer())
	return b.String()
}

// Countries renders the selectable exit regions followed by AUTO.
func (t *Theme) Countries(list []policy.Country) string {
	var b strings.Builder
	b.WriteString(t.header("Available Countries"))
	for _, c := range list {
		b.WriteString(t.field(c.Code, c.Name))
	}
	b.WriteString(t.field("AUTO", "Random country (default)"))
	b.WriteString(t.footer())
	b.WriteString(t.Notice("Use: tornet --country CODE (e.g., tornet --country US)"))
	return b.String()
}

// LeakTest renders one line per leak-test endpoint.
func (t *Theme) LeakTest(results []probe.LeakResult) string {
	var b strings.Builder
	b.WriteString(t.header("DNS Leak Test"))
	for _, r := range results {
		var verdict string
		switch {
		case r.Reachable:
			verdict = t.Good.Render("Accessible via Tor " + mark(true))
		case r.Error != "":
			verdict = t.Bad.Render("Failed to connect via Tor " + mark(false))
		default:
			verdict = t.Bad.Render("Inaccessible via Tor " + mark(false))
		}
		b.WriteString(t.field(r.URL, verdict))
	}
	b.WriteString(t.footer())
	return b.String()
}

// Banner is printed before the default rotation loop.
func (t *Theme) Banner(version string) string {
	return t.Title.Render("TorNet") + " " + t.Frame.Render("v"+version) + "\n" +
		t.Label.Render("Automate IP address changes using Tor") + "\n\n"
}

// Success formats a "[+]" line.
func (t *Theme) Success(msg string) string {
	return " [" + t.Good.Render("+") + "] " + t.Good.Render(msg) + "\n"
}

// Failure formats a "[!]" line.
func (t *Theme) Failure(msg string) string {
	return " [" + t.Bad.Render("!") + "] " + t.Bad.Render(msg) + "\n"
}

// Notice formats a "[*]" line.
func (t *Theme) Notice(msg string) string {
	return " [" + t.Info.Render("*") + "] " + t.Info.Render(msg) + "\n"
}
