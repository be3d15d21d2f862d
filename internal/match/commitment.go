package match

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// TeamCommitment computes the commitment hash for a team submission. Both
// players publish commitments first and reveal the underlying teams only once
// both commitments are on the ledger, so neither side learns the other's team
// early. The secret salts the hash so a small team space cannot be brute
// forced from the commitment.
func TeamCommitment(team []string, secret string) string {
	sum := blake2b.Sum256([]byte(strings.Join(team, ",") + "," + secret))
	return hex.EncodeToString(sum[:])
}
