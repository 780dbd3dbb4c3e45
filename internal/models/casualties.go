package models

import "time"

// DailyRecord is one reporting day of the casualties_daily dataset.
type DailyRecord struct {
	Date              time.Time `json:"date"`
	Killed            int64     `json:"killed"`
	KilledCum         int64     `json:"killed_cum"`
	KilledChildrenCum int64     `json:"killed_children_cum"`
	KilledWomenCum    int64     `json:"killed_women_cum"`
	Injured           int64     `json:"injured"`
	InjuredCum        int64     `json:"injured_cum"`
	MassacresCum      int64     `json:"massacres_cum"`
	MedKilledCum      int64     `json:"med_killed_cum"`
	CivdefKilledCum   int64     `json:"civdef_killed_cum"`
	PressKilledCum    int64     `json:"press_killed_cum"`
}

// Person is an entry of the killed-in-gaza list. Age is nil when unknown.
type Person struct {
	Name string `json:"name"`
	Age  *int   `json:"age,omitempty"`
	Sex  string `json:"sex,omitempty"`
}

// Dataset bundles everything fetched for a single render.
type Dataset struct {
	Daily  []DailyRecord
	Killed []Person
}

// DailyRow is a single line of the daily deaths table.
type DailyRow struct {
	Date          time.Time `json:"date"`
	Deaths        int64     `json:"deaths"`
	MovingAverage float64   `json:"moving_average"`
	Cumulative    int64     `json:"cumulative"`
}

// AgeBucket counts deaths within an age range such as "20-29".
type AgeBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Category is one slice of the demographic breakdown.
type Category struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Metrics are the headline numbers shown above the charts.
type Metrics struct {
	TotalDeaths int64 `json:"total_deaths"`
	Children    int64 `json:"children"`
	Men         int64 `json:"men"`
	Women       int64 `json:"women"`
	Injured     int64 `json:"injured"`
}

// Point is a single sample of a time series.
type Point struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
}
