package github

// importanceScore ranks a repository by stars, forks, and size, each capped
// so a single outlier cannot dominate. Archived repositories and forks
// score zero.
func importanceScore(stars, forks, sizeKB int, archived, fork bool) int {
	if archived || fork {
		return 0
	}
	return min(stars, 1000)*3 + min(forks, 100)*2 + min(sizeKB, 10000)/100
}
