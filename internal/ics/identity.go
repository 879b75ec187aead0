package ics

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// OccurrenceID derives the stable identity for one occurrence: a
// deterministic hash over (title, date, startTime, endTime, location). The
// source feed carries no durable identifier for expanded recurrences, so this
// content hash is the only identity mechanism — two occurrences with the same
// five fields always get the same id, and two genuinely different events that
// coincide in all five fields are indistinguishable. The collision tolerance
// is an accepted trade-off; the derivation must stay stable across releases
// because stored annotation links key off it.
func OccurrenceID(title, date, startTime, endTime, location string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join([]string{title, date, startTime, endTime, location}, "|")))
	return fmt.Sprintf("evt-%016x", h.Sum64())
}
