package planet

import (
	"fmt"
	"time"
)

// Product bundles by band count, with the older bundle names the
// provider still honors as fallbacks for legacy scenes.
const (
	Bundle4Band         = "ortho_analytic_4b_sr"
	Bundle4BandFallback = "analytic_sr_udm2"
	Bundle8Band         = "ortho_analytic_8b_sr"
	Bundle8BandFallback = "analytic_8b_sr_udm2"
)

// eightBandSince is the first acquisition date with 8-band products.
var eightBandSince = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// BundleForBands maps a band count to its product bundle and fallback.
func BundleForBands(numBands int) (bundle, fallback string, err error) {
	switch numBands {
	case 4:
		return Bundle4Band, Bundle4BandFallback, nil
	case 8:
		return Bundle8Band, Bundle8BandFallback, nil
	}
	return "", "", fmt.Errorf("unsupported band count %d (want 4 or 8)", numBands)
}

// ValidateBandsForRange rejects 8-band orders whose window starts
// before 8-band products exist.
func ValidateBandsForRange(numBands int, startDate string) error {
	if numBands != 8 {
		return nil
	}
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	if start.Before(eightBandSince) {
		return fmt.Errorf("8-band products are unavailable before %s (start date %s)",
			eightBandSince.Format("2006-01-02"), startDate)
	}
	return nil
}
