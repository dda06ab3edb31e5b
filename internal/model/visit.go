package model

// Level identifies which page handler a visit is routed to.
type Level int

const (
	// LevelStates is the root listing of states.
	LevelStates Level = iota + 1
	// LevelCounties is a state page listing counties.
	LevelCounties
	// LevelLocations is a county page listing individual locations.
	LevelLocations
)

// String returns the human-readable level name.
func (l Level) String() string {
	switch l {
	case LevelStates:
		return "states"
	case LevelCounties:
		return "counties"
	case LevelLocations:
		return "locations"
	default:
		return "unknown"
	}
}

// Visit is a scheduled page fetch plus the context accumulated by its
// ancestors. Children copy State, County and Population unchanged.
type Visit struct {
	Level      Level
	URL        string
	State      string
	County     string
	Population Population
}

// Child returns a visit one level down carrying the parent's context.
func (v Visit) Child(url string) Visit {
	return Visit{
		Level:      v.Level + 1,
		URL:        url,
		State:      v.State,
		County:     v.County,
		Population: v.Population,
	}
}
