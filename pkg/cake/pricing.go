package cake

import (
	"math"
	"sort"
)

const (
	// MaxFillings is the number of fillings a single cake can carry.
	MaxFillings = 3
	// MaxComplements is the number of add-ons a single order can carry.
	MaxComplements = 10
	// MinWeight is the smallest weight in kilograms an order accepts; anything
	// at or below it is treated as not filled in.
	MinWeight = 0.099
	// SliceWeight is the weight in kilograms of one piece.
	SliceWeight = 0.1
)

// Total computes the order value. Only the most expensive selected filling
// prices the whole weight; complements add a flat amount each.
func Total(fillings []Filling, weight float64, complements []Complement) float64 {
	var rate float64
	for _, f := range fillings {
		if f.PricePerKg > rate {
			rate = f.PricePerKg
		}
	}
	total := rate * weight
	for _, c := range complements {
		total += c.Price
	}
	return total
}

// WeightFor derives a weight in kilograms from a guest count, rounded to
// whole grams.
func WeightFor(people, piecesPerPerson int) float64 {
	if people <= 0 || piecesPerPerson <= 0 {
		return 0
	}
	w := float64(people) * float64(piecesPerPerson) * SliceWeight
	return math.Round(w*1000) / 1000
}

// PriceTier groups fillings sharing a price per kilogram.
type PriceTier struct {
	PricePerKg float64   `json:"pricePerKg"`
	Fillings   []Filling `json:"fillings"`
}

// GroupByPrice returns fillings grouped into tiers, cheapest first.
func GroupByPrice(fillings []Filling) []PriceTier {
	index := map[float64]int{}
	var tiers []PriceTier
	for _, f := range fillings {
		i, ok := index[f.PricePerKg]
		if !ok {
			i = len(tiers)
			index[f.PricePerKg] = i
			tiers = append(tiers, PriceTier{PricePerKg: f.PricePerKg})
		}
		tiers[i].Fillings = append(tiers[i].Fillings, f)
	}
	sort.SliceStable(tiers, func(a, b int) bool {
		return tiers[a].PricePerKg < tiers[b].PricePerKg
	})
	return tiers
}

// CategoryGroup is a category with the models that belong to it.
type CategoryGroup struct {
	Name   string  `json:"category_name"`
	Models []Model `json:"models"`
}

// GroupByCategory groups models by category name, keeping the order in which
// categories first appear.
func GroupByCategory(models []Model) []CategoryGroup {
	index := map[string]int{}
	var groups []CategoryGroup
	for _, m := range models {
		name := m.Category.Name
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, CategoryGroup{Name: name})
		}
		groups[i].Models = append(groups[i].Models, m)
	}
	return groups
}
