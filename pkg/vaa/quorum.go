package vaa

import "fmt"

// CalculateQuorum returns floor(2n/3) + 1, the number of distinct guardians of a set of
// numGuardians that must sign a VAA. Every deployed core bridge uses the same formula.
func CalculateQuorum(numGuardians int) int {
	if numGuardians < 0 {
		panic(fmt.Sprintf("negative guardian set size: %d", numGuardians))
	}
	return numGuardians*2/3 + 1
}

// HasQuorum reports whether signatures distinct guardians out of numGuardians are enough.
func HasQuorum(signatures, numGuardians int) bool {
	return signatures >= CalculateQuorum(numGuardians)
}
