package command

// suggest returns the candidate closest to unknown by edit distance.
// A candidate qualifies only when at most half of the longer name differs.
// Ties go to the earliest candidate.
func suggest(unknown string, candidates []string) string {
	bestName := ""
	bestDistance := -1

	for _, candidate := range candidates {
		distance := levenshtein(unknown, candidate)
		if distance > max(len([]rune(unknown)), len([]rune(candidate)))/2 {
			continue
		}
		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			bestName = candidate
		}
	}

	return bestName
}

// levenshtein computes the edit distance between two strings over runes.
func levenshtein(a, b string) int {
	left, right := []rune(a), []rune(b)
	if len(left) == 0 {
		return len(right)
	}
	if len(right) == 0 {
		return len(left)
	}
	if len(left) > len(right) {
		left, right = right, left
	}

	previous := make([]int, len(left)+1)
	for i := range previous {
		previous[i] = i
	}
	current := make([]int, len(left)+1)

	for j := 1; j <= len(right); j++ {
		current[0] = j
		for i := 1; i <= len(left); i++ {
			cost := 1
			if left[i-1] == right[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}
		previous, current = current, previous
	}

	return previous[len(left)]
}
