package core

type Availability int

const (
	AvailabilityUnknown Availability = iota
	AvailabilityAvailable
	AvailabilityUnavailable
)

func (a Availability) String() string {
	switch a {
	case AvailabilityAvailable:
		return "available"
	case AvailabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (a Availability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Availability) UnmarshalText(text []byte) error {
	switch string(text) {
	case "available":
		*a = AvailabilityAvailable
	case "unavailable":
		*a = AvailabilityUnavailable
	default:
		*a = AvailabilityUnknown
	}
	return nil
}
