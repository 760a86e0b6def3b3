// Package dist holds the static distribution tables that shape a synthetic
// day of commerce: meal-period weights, dining-option mixes, tip-rate bands,
// and weekday order-volume ranges. Pure data plus sampling helpers.
//
// Contract: weights within any one distribution sum to 100. Consumers
// tolerate integer rounding by assigning any leftover count to the
// last-declared bucket.
package dist

import (
	"math/rand"
	"time"

	"github.com/mealforge/posgen/internal/model"
)

// OptionWeight pairs a dining option with its share of a period's orders.
type OptionWeight struct {
	Option model.DiningOption
	Weight int
}

// PeriodSpec describes one meal period: its hour range, selection weight,
// item-count and party-size ranges, the categories it favors, and its
// dining-option mix.
type PeriodSpec struct {
	Period    model.MealPeriod
	StartHour int
	EndHour   int
	Weight    int // out of 100 across all periods

	MinItems int
	MaxItems int
	MinParty int
	MaxParty int

	PreferredCategories []string
	DiningMix           []OptionWeight // weights sum to 100
}

// Periods lists every meal period in declaration order. Apportionment
// assigns rounding remainders to the last entry, so order matters.
var Periods = []PeriodSpec{
	{
		Period: model.Breakfast, StartHour: 7, EndHour: 11, Weight: 15,
		MinItems: 1, MaxItems: 3, MinParty: 1, MaxParty: 3,
		PreferredCategories: []string{"Breakfast", "Coffee & Tea", "Pastries"},
		DiningMix: []OptionWeight{
			{model.DineIn, 40}, {model.Takeout, 45}, {model.Delivery, 15},
		},
	},
	{
		Period: model.Lunch, StartHour: 11, EndHour: 15, Weight: 30,
		MinItems: 2, MaxItems: 4, MinParty: 1, MaxParty: 4,
		PreferredCategories: []string{"Sandwiches", "Salads", "Entrees"},
		DiningMix: []OptionWeight{
			{model.DineIn, 45}, {model.Takeout, 35}, {model.Delivery, 20},
		},
	},
	{
		Period: model.HappyHour, StartHour: 15, EndHour: 18, Weight: 10,
		MinItems: 2, MaxItems: 5, MinParty: 2, MaxParty: 6,
		PreferredCategories: []string{"Appetizers", "Beer & Wine", "Cocktails"},
		DiningMix: []OptionWeight{
			{model.DineIn, 85}, {model.Takeout, 10}, {model.Delivery, 5},
		},
	},
	{
		Period: model.Dinner, StartHour: 18, EndHour: 22, Weight: 35,
		MinItems: 3, MaxItems: 6, MinParty: 2, MaxParty: 8,
		PreferredCategories: []string{"Entrees", "Sides", "Desserts"},
		DiningMix: []OptionWeight{
			{model.DineIn, 60}, {model.Takeout, 20}, {model.Delivery, 20},
		},
	},
	{
		Period: model.LateNight, StartHour: 22, EndHour: 2, Weight: 10,
		MinItems: 1, MaxItems: 3, MinParty: 1, MaxParty: 4,
		PreferredCategories: []string{"Appetizers", "Desserts", "Cocktails"},
		DiningMix: []OptionWeight{
			{model.DineIn, 30}, {model.Takeout, 40}, {model.Delivery, 30},
		},
	},
}

// TipBand is an inclusive tip-percentage range sampled per dining option.
type TipBand struct {
	Min int
	Max int
}

var tipBands = map[model.DiningOption]TipBand{
	model.DineIn:   {Min: 15, Max: 25},
	model.Takeout:  {Min: 0, Max: 15},
	model.Delivery: {Min: 10, Max: 20},
}

// TipBandFor returns the tip-percentage band for a dining option.
func TipBandFor(option model.DiningOption) TipBand {
	return tipBands[option]
}

// VolumeRange is an inclusive order-count range for one weekday class.
type VolumeRange struct {
	Min int
	Max int
}

// VolumeFor returns the order-volume range for a date's weekday.
func VolumeFor(weekday time.Weekday) VolumeRange {
	switch weekday {
	case time.Sunday:
		return VolumeRange{Min: 50, Max: 80}
	case time.Friday:
		return VolumeRange{Min: 70, Max: 100}
	case time.Saturday:
		return VolumeRange{Min: 80, Max: 120}
	default:
		return VolumeRange{Min: 40, Max: 60}
	}
}

// SampleVolume draws a uniform order count from the weekday's range.
func SampleVolume(rng *rand.Rand, weekday time.Weekday) int {
	r := VolumeFor(weekday)
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

// Apportion distributes total orders across meal periods proportionally to
// period weight. The last-declared period absorbs the rounding remainder,
// so the counts always sum to exactly total.
func Apportion(total int) map[model.MealPeriod]int {
	counts := make(map[model.MealPeriod]int, len(Periods))
	assigned := 0
	for i, p := range Periods {
		if i == len(Periods)-1 {
			counts[p.Period] = total - assigned
			break
		}
		n := total * p.Weight / 100
		counts[p.Period] = n
		assigned += n
	}
	return counts
}

// SpecFor returns the spec for a meal period, or the last-declared period
// if the name is unknown.
func SpecFor(period model.MealPeriod) PeriodSpec {
	for _, p := range Periods {
		if p.Period == period {
			return p
		}
	}
	return Periods[len(Periods)-1]
}

// PickDiningOption draws a dining option from the period's mix.
func PickDiningOption(rng *rand.Rand, period model.MealPeriod) model.DiningOption {
	spec := SpecFor(period)
	r := rng.Intn(100)
	cum := 0
	for _, ow := range spec.DiningMix {
		cum += ow.Weight
		if r < cum {
			return ow.Option
		}
	}
	return spec.DiningMix[len(spec.DiningMix)-1].Option
}

// PartySize draws a party size from the period's range.
func PartySize(rng *rand.Rand, period model.MealPeriod) int {
	spec := SpecFor(period)
	return spec.MinParty + rng.Intn(spec.MaxParty-spec.MinParty+1)
}

// BaseItemCount draws a base line-item count from the period's range,
// before the party-size adjustment applied by the synthesizer.
func BaseItemCount(rng *rand.Rand, period model.MealPeriod) int {
	spec := SpecFor(period)
	return spec.MinItems + rng.Intn(spec.MaxItems-spec.MinItems+1)
}
