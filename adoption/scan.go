package adoption

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// MarkAdopted reads the adopters of every pet from the contract and shows the adopted ones as such. Errors are logged
// and the page is left untouched. Pets are never shown as available again.
func (a *App) MarkAdopted(ctx context.Context) {
	c, err := a.Deployed(ctx)
	if err != nil {
		a.log.Printf("[%s] Error scanning adoptions: %v", a.net, err)
		scans.WithLabelValues(resultFail).Inc()

		return
	}

	adopters, err := c.Adopters(ctx)
	if err != nil {
		a.log.Printf("[%s] Error scanning adoptions: %v", a.net, err)
		scans.WithLabelValues(resultFail).Inc()

		return
	}

	for i, addr := range adopters {
		if addr != (common.Address{}) {
			a.page.MarkAdopted(i)
		}
	}

	scans.WithLabelValues(resultOK).Inc()
	adopted.Set(float64(a.page.Adopted()))
}
