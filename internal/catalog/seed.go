package catalog

import "github.com/sharpfade/booking-platform/pkg/civil"

func mustTime(s string) civil.TimeOfDay {
	t, err := civil.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Seed returns the shop's reference data.
func Seed() *Catalog {
	services := []Service{
		{
			ID:              "haircut",
			Name:            "Standard Haircut",
			PriceCents:      3000,
			DurationMinutes: 45,
			Tags:            []string{"hair"},
		},
		{
			ID:              "beard-trim",
			Name:            "Beard Trim",
			PriceCents:      2000,
			DurationMinutes: 30,
			Tags:            []string{"beard"},
		},
		{
			ID:              "haircut-beard",
			Name:            "Haircut & Beard Trim",
			PriceCents:      5000,
			DurationMinutes: 75,
			Tags:            []string{"hair", "beard"},
		},
		{
			ID:              "shave",
			Name:            "Hot Towel Shave",
			PriceCents:      4000,
			DurationMinutes: 60,
			Tags:            []string{"razor"},
		},
	}

	providers := []Provider{
		{
			ID:            "albert",
			Name:          "Albert",
			ShiftStart:    mustTime("09:00"),
			ShiftEnd:      mustTime("17:00"),
			Bio:           "Master barber, twenty years at the chair.",
			SpecialtyTags: []string{"hair", "beard", "razor"},
		},
		{
			ID:            "ben",
			Name:          "Ben",
			ShiftStart:    mustTime("10:00"),
			ShiftEnd:      mustTime("18:00"),
			Bio:           "Fades and classic cuts.",
			SpecialtyTags: []string{"hair"},
		},
		{
			ID:            "charles",
			Name:          "Charles",
			ShiftStart:    mustTime("11:00"),
			ShiftEnd:      mustTime("19:00"),
			Bio:           "Beard sculpting and straight-razor work.",
			SpecialtyTags: []string{"beard", "razor"},
		},
	}

	c, err := New(services, providers)
	if err != nil {
		panic(err)
	}
	return c
}
