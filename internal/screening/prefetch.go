package screening

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/harborview/marisk/internal/checks"
	"github.com/harborview/marisk/internal/fetch"
	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
	"github.com/harborview/marisk/internal/upstream"
)

// prefetch warms the session against every upstream source in one
// concurrent pass: the five Intelligence-A endpoints, both Intelligence-B
// calls, and the watchlist lookup. Per-source failures land in the returned
// dataset, not in an error — a dead provider degrades its checks to none,
// it does not abort the screening.
func (s *Service) prefetch(ctx context.Context, sess *fetch.Session, imo string, window model.DateWindow) *checks.VesselData {
	data := &checks.VesselData{}

	// IMO was validated upstream; conversion cannot fail here.
	imoInt, _ := model.IMOToInt(imo)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.a.Sanctions(gctx, sess, imo)
		data.Sanctions = sourceOf(items, err)
		return nil
	})
	g.Go(func() error {
		score, err := s.a.RiskScore(gctx, sess, imo, window)
		data.RiskScore = sourceOf(score, err)
		return nil
	})
	g.Go(func() error {
		items, err := s.a.ComplianceRisks(gctx, sess, imo, window)
		data.ComplianceRisks = sourceOf(items, err)
		return nil
	})
	g.Go(func() error {
		items, err := s.a.VoyageEvents(gctx, sess, imo, window)
		data.VoyageEvents = sourceOf(items, err)
		return nil
	})
	g.Go(func() error {
		items, err := s.a.Compliance(gctx, sess, imo, window)
		data.ComplianceSummary = sourceOf(items, err)
		return nil
	})
	g.Go(func() error {
		risks, err := s.b.BulkRisk(gctx, sess, []int{imoInt}, window)
		if err != nil {
			data.BulkRisk = checks.Fail[*upstream.VesselRisk](err)
			return nil
		}
		data.BulkRisk = checks.Ok(upstream.FindVesselRisk(risks, imoInt))
		return nil
	})
	g.Go(func() error {
		screening, err := s.b.Compliance(gctx, sess, imoInt)
		data.CompanyScreening = sourceOf(screening, err)
		return nil
	})
	g.Go(func() error {
		w, err := s.store.LookupWatchlistVessel(gctx, imo)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			data.Watchlist = checks.Ok[*storage.WatchlistVessel](nil)
		case err != nil:
			data.Watchlist = checks.Fail[*storage.WatchlistVessel](err)
		default:
			data.Watchlist = checks.Ok(&w)
		}
		return nil
	})

	// Goroutines never return errors; Wait only synchronizes.
	_ = g.Wait()
	return data
}

func sourceOf[T any](v T, err error) checks.Source[T] {
	if err != nil {
		return checks.Fail[T](err)
	}
	return checks.Ok(v)
}
