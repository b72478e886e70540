package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/faucet"
)

// parseAmount accepts "500" or "500utsoar" when denom is "utsoar".
func parseAmount(raw, denom string) (uint64, error) {
	s := strings.TrimSpace(raw)
	if denom != "" {
		s = strings.TrimSuffix(s, denom)
	}
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", faucet.ErrInvalidAmount, raw)
	}
	return amount, nil
}
