package cmd

import (
	"encoding/json"

	"grimm.is/tornet/internal/policy"
)

// RunListCountries prints the selectable exit regions.
func (a *App) RunListCountries() error {
	list := policy.Countries()
	if a.JSON {
		list = append(list, policy.Country{Code: "AUTO", Name: "Random country (default)"})
		return json.NewEncoder(a.Out).Encode(list)
	}
	a.print(a.Theme.Countries(list))
	return nil
}
