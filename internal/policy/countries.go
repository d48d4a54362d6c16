package policy

import "strings"

// Country is a selectable exit region.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// listed is the region table shown to users, in display order.
var listed = []Country{
	{"US", "United States"},
	{"GB", "United Kingdom"},
	{"DE", "Germany"},
	{"FR", "France"},
	{"CA", "Canada"},
	{"AU", "Australia"},
	{"JP", "Japan"},
	{"NL", "Netherlands"},
	{"SE", "Sweden"},
	{"CH", "Switzerland"},
	{"NO", "Norway"},
	{"DK", "Denmark"},
	{"FI", "Finland"},
	{"RU", "Russia"},
	{"CN", "China"},
	{"IN", "India"},
	{"BR", "Brazil"},
	{"MX", "Mexico"},
	{"ZA", "South Africa"},
	{"SG", "Singapore"},
	{"HK", "Hong Kong"},
	{"TW", "Taiwan"},
}

// extra names regions that are recognised but not advertised.
var extra = []Country{
	{"KR", "South Korea"},
	{"IT", "Italy"},
	{"ES", "Spain"},
	{"PL", "Poland"},
	{"TR", "Turkey"},
	{"EG", "Egypt"},
	{"NG", "Nigeria"},
	{"KE", "Kenya"},
	{"IL", "Israel"},
	{"AE", "United Arab Emirates"},
	{"SA", "Saudi Arabia"},
}

var names = func() map[string]string {
	m := make(map[string]string, len(listed)+len(extra))
	for _, c := range append(append([]Country{}, listed...), extra...) {
		m[c.Code] = c.Name
	}
	return m
}()

// Countries returns the advertised region table.
func Countries() []Country {
	out := make([]Country, len(listed))
	copy(out, listed)
	return out
}

// CountryName returns the display name for code, or the upper-cased code
// itself when unknown.
func CountryName(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if n, ok := names[c]; ok {
		return n
	}
	return c
}
