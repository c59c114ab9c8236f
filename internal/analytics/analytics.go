// Package analytics summarizes archived menu history.
package analytics

import (
	"math"
	"sort"

	"whats-cooking/internal/catalog"
	"whats-cooking/internal/planner"
)

// DefaultTopItems is how many frequent items a report lists.
const DefaultTopItems = 5

// ItemCount is how often one item was planned.
type ItemCount struct {
	Key      string           `json:"key"`
	Name     string           `json:"name"`
	Category catalog.Category `json:"category"`
	Count    int              `json:"count"`
}

// Report covers the history entries within [From, To].
type Report struct {
	From          string                   `json:"from"`
	To            string                   `json:"to"`
	Days          int                      `json:"days"`
	FirstDate     string                   `json:"firstDate,omitempty"`
	LastDate      string                   `json:"lastDate,omitempty"`
	Totals        planner.Totals           `json:"totals"`
	DailyAverage  planner.Totals           `json:"dailyAverage"`
	CategoryItems map[catalog.Category]int `json:"categoryItems"`
	TopItems      []ItemCount              `json:"topItems"`
}

// Summarize aggregates the entries dated from..to inclusive. An empty bound
// is open.
func Summarize(h planner.History, from, to string) Report {
	r := Report{
		From:          from,
		To:            to,
		CategoryItems: make(map[catalog.Category]int, len(catalog.All)),
		TopItems:      []ItemCount{},
	}
	for _, cat := range catalog.All {
		r.CategoryItems[cat] = 0
	}

	counts := map[string]*ItemCount{}
	for _, date := range h.Dates() {
		if (from != "" && date < from) || (to != "" && date > to) {
			continue
		}
		entry := h[date]

		r.Days++
		if r.FirstDate == "" {
			r.FirstDate = date
		}
		r.LastDate = date
		r.Totals = r.Totals.Add(entry.Nutrition)

		for _, cat := range catalog.All {
			for _, it := range entry.Meals[cat] {
				r.CategoryItems[cat]++
				key := string(cat) + "/" + it.Key()
				c, ok := counts[key]
				if !ok {
					c = &ItemCount{Key: it.Key(), Name: it.Name, Category: cat}
					counts[key] = c
				}
				c.Count++
			}
		}
	}

	if r.Days > 0 {
		d := float64(r.Days)
		r.DailyAverage = planner.Totals{
			Calories: int(math.Round(float64(r.Totals.Calories) / d)),
			Protein:  math.Round(r.Totals.Protein/d*10) / 10,
			Carbs:    math.Round(r.Totals.Carbs/d*10) / 10,
			Fat:      math.Round(r.Totals.Fat/d*10) / 10,
		}
	}

	r.TopItems = topItems(counts, DefaultTopItems)
	return r
}

// topItems orders by count, then name, then key.
func topItems(counts map[string]*ItemCount, n int) []ItemCount {
	items := make([]ItemCount, 0, len(counts))
	for _, c := range counts {
		items = append(items, *c)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].Key < items[j].Key
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}
