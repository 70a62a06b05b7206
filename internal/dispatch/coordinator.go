package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stveit/argus/internal/media"
	"github.com/stveit/argus/internal/metrics"
	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/storage"
)

// Report is the aggregated result of dispatching one incident: one send
// result per media slug that had deduplicated destinations. Partial
// failure is representable; one failing channel never fails the others.
type Report struct {
	IncidentID string                      `json:"incident_id"`
	Matched    int                         `json:"matched_profiles"`
	Results    map[string]media.SendResult `json:"results"`
}

// OK reports whether no channel that had destinations hit a transport
// failure.
func (r *Report) OK() bool {
	for _, result := range r.Results {
		if result.Outcome == media.OutcomeTransportUnavailable {
			return false
		}
	}
	return true
}

// Options configures the dispatch coordinator.
type Options struct {
	// MatchFanout bounds concurrent profile evaluation (default 8).
	MatchFanout int
}

// Coordinator loads candidate profiles, matches them against incidents
// and fans out to the media registry.
type Coordinator struct {
	store    storage.Storage
	registry *media.Registry
	matcher  *Matcher
	fanout   int
}

// NewCoordinator creates a dispatch coordinator.
func NewCoordinator(store storage.Storage, registry *media.Registry, matcher *Matcher, opts *Options) *Coordinator {
	fanout := 8
	if opts != nil && opts.MatchFanout > 0 {
		fanout = opts.MatchFanout
	}
	return &Coordinator{
		store:    store,
		registry: registry,
		matcher:  matcher,
		fanout:   fanout,
	}
}

// Dispatch matches all notification profiles against the incident and
// sends notifications for the matched set. Once fan-out starts the
// dispatch runs to completion regardless of caller cancellation and the
// outcome is reported, never raised.
func (c *Coordinator) Dispatch(ctx context.Context, incident *models.Incident) (*Report, error) {
	start := time.Now()

	profiles, err := c.store.Profiles().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	matched, err := c.matchProfiles(ctx, profiles, incident)
	if err != nil {
		return nil, err
	}

	destinations, err := c.collectDestinations(ctx, matched)
	if err != nil {
		return nil, err
	}

	report := &Report{
		IncidentID: incident.ID,
		Matched:    len(matched),
		Results:    c.send(ctx, incident, destinations),
	}

	metrics.DispatchesTotal.Inc()
	metrics.ProfilesMatched.Add(float64(len(matched)))
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	for slug, result := range report.Results {
		metrics.SendOutcomes.WithLabelValues(slug, string(result.Outcome)).Inc()
	}

	return report, nil
}

// matchProfiles evaluates ProfileFires over a bounded worker pool.
// Matching is read-only, so profiles evaluate concurrently; the matched
// set is order-independent.
func (c *Coordinator) matchProfiles(ctx context.Context, profiles []*models.NotificationProfile, incident *models.Incident) ([]*models.NotificationProfile, error) {
	var mu sync.Mutex
	var matched []*models.NotificationProfile

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)

	for _, profile := range profiles {
		profile := profile
		g.Go(func() error {
			timeslot, err := c.store.Timeslots().GetByID(gctx, profile.TimeslotID)
			if err == models.ErrNotFound {
				timeslot = nil
			} else if err != nil {
				return fmt.Errorf("load timeslot for profile %s: %w", profile.ID, err)
			}

			var filters []*models.Filter
			if c.matcher.FilterGating && len(profile.FilterIDs) > 0 {
				filters, err = c.store.Profiles().Filters(gctx, profile.ID)
				if err != nil {
					return fmt.Errorf("load filters for profile %s: %w", profile.ID, err)
				}
			}

			if c.matcher.ProfileFires(profile, timeslot, filters, incident) {
				mu.Lock()
				matched = append(matched, profile)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matched, nil
}

// collectDestinations resolves and deduplicates the destination sets of
// the matched profiles. Identity is the medium's address label, so two
// profiles pointing at the same phone number produce one message.
func (c *Coordinator) collectDestinations(ctx context.Context, matched []*models.NotificationProfile) ([]*models.DestinationConfig, error) {
	seen := make(map[string]bool)
	var destinations []*models.DestinationConfig

	for _, profile := range matched {
		profileDests, err := c.store.Profiles().Destinations(ctx, profile.ID)
		if err != nil {
			return nil, fmt.Errorf("load destinations for profile %s: %w", profile.ID, err)
		}
		for _, destination := range profileDests {
			key := destination.MediaSlug + "\x00"
			if m, ok := c.registry.Get(destination.MediaSlug); ok {
				key += m.Label(destination)
			} else {
				key += destination.ID
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			destinations = append(destinations, destination)
		}
	}
	return destinations, nil
}

// send groups destinations by media slug and invokes each medium's send
// in its own goroutine. Channels are independent: a failure in one never
// blocks or cancels another, and caller cancellation no longer applies.
func (c *Coordinator) send(ctx context.Context, incident *models.Incident, destinations []*models.DestinationConfig) map[string]media.SendResult {
	groups := make(map[string][]*models.DestinationConfig)
	for _, destination := range destinations {
		groups[destination.MediaSlug] = append(groups[destination.MediaSlug], destination)
	}

	// Run to completion even if the caller goes away mid-dispatch.
	sendCtx := context.WithoutCancel(ctx)

	var mu sync.Mutex
	results := make(map[string]media.SendResult, len(groups))

	var wg sync.WaitGroup
	for slug, group := range groups {
		slug, group := slug, group
		m, ok := c.registry.Get(slug)
		if !ok {
			log.Printf("dispatch: no medium registered for slug %q, skipping %d destinations", slug, len(group))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			result := m.Send(sendCtx, incident, group)
			mu.Lock()
			results[slug] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	return results
}
