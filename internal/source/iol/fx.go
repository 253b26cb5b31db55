package iol

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// Bond pair backing the implied FX rate: the same sovereign bond quoted in
// pesos (AL30) and in dollars (AL30D). Their price ratio is the CCL proxy.
const (
	arsBond = "AL30"
	usdBond = "AL30D"
)

// AL30Source implements domain.FXRateSource by dividing the peso-denominated
// bond price by its dollar-denominated twin. It requires an authenticated
// broker session and reports ErrUnauthenticated without one, which the FX
// resolver treats as "move to the next source".
type AL30Source struct {
	client *Client
}

// NewAL30Source creates the implied-rate source over the given broker client.
func NewAL30Source(client *Client) *AL30Source {
	return &AL30Source{client: client}
}

// Name identifies the source in logs and cache keys.
func (s *AL30Source) Name() string { return "iol_al30" }

// RequiresSession reports that the implied rate needs a broker session.
func (s *AL30Source) RequiresSession() bool { return true }

// GetRate fetches both bond legs concurrently and returns the implied rate.
func (s *AL30Source) GetRate(ctx context.Context, access domain.Access) (domain.FXRate, error) {
	session, ok := domain.SessionFrom(access)
	if !ok {
		return domain.FXRate{}, fmt.Errorf("iol: al30 rate: %w", domain.ErrUnauthenticated)
	}

	var arsPrice, usdPrice float64
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.client.GetBondPrice(ctx, arsBond, session)
		if err != nil {
			return err
		}
		arsPrice = p
		return nil
	})
	g.Go(func() error {
		p, err := s.client.GetBondPrice(ctx, usdBond, session)
		if err != nil {
			return err
		}
		usdPrice = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.FXRate{}, fmt.Errorf("iol: al30 rate: %w", err)
	}

	if usdPrice <= 0 {
		return domain.FXRate{}, fmt.Errorf("iol: al30 rate: invalid %s price %v: %w",
			usdBond, usdPrice, domain.ErrSourceUnavailable)
	}

	return domain.FXRate{
		Rate:      arsPrice / usdPrice,
		Source:    s.Name(),
		Timestamp: time.Now(),
	}, nil
}

// Compile-time interface checks.
var (
	_ domain.FXRateSource = (*AL30Source)(nil)
	_ domain.SessionGated = (*AL30Source)(nil)
)
