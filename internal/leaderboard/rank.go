package leaderboard

import (
	"sort"

	"quizbook-service/internal/domain"
)

// DefaultLimit is the number of entries shown on a quiz leaderboard.
const DefaultLimit = 10

// Anonymous is shown for results that carry neither a name nor an email.
const Anonymous = "Anonymous"

// Rank orders every attempt by score (highest first), breaking ties by the
// shorter time taken, and keeps the first limit entries. A user may appear
// more than once when they attempted the quiz several times.
func Rank(results []domain.Result, limit int) []domain.LeaderboardEntry {
	attempts := make([]domain.Result, len(results))
	copy(attempts, results)

	sort.SliceStable(attempts, func(i, j int) bool {
		if attempts[i].Score != attempts[j].Score {
			return attempts[i].Score > attempts[j].Score
		}
		return attempts[i].TimeTaken < attempts[j].TimeTaken
	})

	if limit > 0 && len(attempts) > limit {
		attempts = attempts[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(attempts))
	for i, a := range attempts {
		entries = append(entries, domain.LeaderboardEntry{
			Position:    i + 1,
			DisplayName: DisplayName(a),
			Score:       a.Score,
			TimeTaken:   a.TimeTaken,
		})
	}
	return entries
}

// DisplayName resolves the name shown for a result.
func DisplayName(r domain.Result) string {
	switch {
	case r.DisplayName != "":
		return r.DisplayName
	case r.Email != "":
		return r.Email
	default:
		return Anonymous
	}
}
