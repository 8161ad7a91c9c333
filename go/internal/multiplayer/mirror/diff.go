package mirror

// Diff describes what one snapshot or delta changed in the mirror
type Diff struct {
	PlayersAdded     []string
	PlayersUpdated   []string
	PlayersRemoved   []string
	ResourcesAdded   []string
	ResourcesUpdated []string
	ResourcesRemoved []string
	WeatherChanged   bool
	LeaderboardSet   bool
}

// Empty reports whether the diff carries no change
func (d Diff) Empty() bool {
	return len(d.PlayersAdded) == 0 && len(d.PlayersUpdated) == 0 && len(d.PlayersRemoved) == 0 &&
		len(d.ResourcesAdded) == 0 && len(d.ResourcesUpdated) == 0 && len(d.ResourcesRemoved) == 0 &&
		!d.WeatherChanged && !d.LeaderboardSet
}
