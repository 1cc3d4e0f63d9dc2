package domain

// Temperature is the coarse urgency bucket derived from a lead's score.
type Temperature string

const (
	TemperatureCold    Temperature = "cold"
	TemperatureWarm    Temperature = "warm"
	TemperatureHot     Temperature = "hot"
	TemperatureBurning Temperature = "burning"
)
