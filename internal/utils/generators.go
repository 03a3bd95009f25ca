package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

var referenceSpace = big.NewInt(1_000_000_000)

// GenerateReference returns prefix followed by the current unix milliseconds
// and a random number below one billion, e.g. INF1760860800000123456789.
func GenerateReference(prefix string) string {
	return generateReference(prefix, time.Now())
}

func generateReference(prefix string, now time.Time) string {
	n, err := rand.Int(rand.Reader, referenceSpace)
	if err != nil {
		return fmt.Sprintf("%s%d", prefix, now.UnixNano())
	}
	return fmt.Sprintf("%s%d%d", prefix, now.UnixMilli(), n.Int64())
}
