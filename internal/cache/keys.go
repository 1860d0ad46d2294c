package cache

// Key builders shared by the scheduler (writes) and the HTTP layer (reads),
// so both sides derive identical fingerprints.

// ResultKey fingerprints a single game's analysis artifact.
func ResultKey(owner, gameID string) string {
	return Fingerprint(owner, "result", gameID)
}

// StatsKey fingerprints the owner's aggregate stats artifact.
func StatsKey(owner string) string {
	return Fingerprint(owner, "stats")
}
