package modules

import (
	"context"
	"time"

	"github.com/Luismorlan/pagemux/facebook"
	"github.com/Luismorlan/pagemux/metrics"
	"github.com/Luismorlan/pagemux/model"
	"github.com/Luismorlan/pagemux/store"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/pkg/errors"
)

type CredentialSweepConfig struct {
	Name string
	// Local hour of day at which the sweep runs.
	SweepHour int
	// Credentials issued longer ago than this are exchanged.
	RefreshAfter time.Duration
}

type TokenPlatform interface {
	ExchangeUserToken(ctx context.Context, userToken string) (*facebook.Token, error)
	GetPageAccessToken(ctx context.Context, pageId string, userToken string) (string, error)
}

type FanpagePublisher interface {
	PublishFanpageChanged(ctx context.Context, pageId string) error
}

// CredentialSweep keeps long-lived Facebook credentials from expiring. Once a
// day it exchanges every user credential older than RefreshAfter and rotates
// the page credentials of the user's connected fanpages with the new one.
type CredentialSweep struct {
	Config CredentialSweepConfig

	store     *store.Store
	platform  TokenPlatform
	publisher FanpagePublisher
	metrics   *metrics.Reporter

	now func() time.Time
}

func NewCredentialSweep(config CredentialSweepConfig, s *store.Store, platform TokenPlatform, publisher FanpagePublisher, m *metrics.Reporter) *CredentialSweep {
	return &CredentialSweep{
		Config:    config,
		store:     s,
		platform:  platform,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// SweepReport counts what one sweep did.
type SweepReport struct {
	Users     int
	Refreshed int
	Fanpages  int
	Failures  int
}

// NextRun returns the first time at hour:00 strictly after now, in now's
// location.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *CredentialSweep) RunModule(ctx context.Context) error {
	for {
		wait := NextRun(s.now(), s.Config.SweepHour).Sub(s.now())
		Log.WithField("module", s.Name()).Infof("next credential sweep in %s", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		if _, err := s.Sweep(ctx); err != nil {
			return err
		}
	}
}

// Sweep runs one pass over every user holding a Facebook credential. A user
// that fails is logged and skipped; only failing to list users is an error.
func (s *CredentialSweep) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{}
	users, err := s.store.ListUsersWithFacebookToken(ctx)
	if err != nil {
		return report, err
	}
	report.Users = len(users)

	threshold := s.now().Add(-s.Config.RefreshAfter)
	for i := range users {
		user := &users[i]
		if !user.CredentialIssuedAt().Before(threshold) {
			continue
		}
		fanpages, failures, err := s.refreshUser(ctx, user)
		if err != nil {
			report.Failures++
			s.metrics.Incr(metrics.CredentialRefreshCounter, "kind:user", "result:failure")
			Log.WithField("user_id", user.Id).Errorln("fail to refresh facebook credential: ", err)
			continue
		}
		report.Refreshed++
		report.Fanpages += fanpages
		report.Failures += failures
		s.metrics.Incr(metrics.CredentialRefreshCounter, "kind:user", "result:success")
	}

	Log.WithField("module", s.Name()).Infof("credential sweep done: %+v", report)
	return report, nil
}

// refreshUser exchanges the user credential, then rotates the page
// credential of each connected fanpage. It returns the number of rotated
// pages and of pages that failed.
func (s *CredentialSweep) refreshUser(ctx context.Context, user *model.User) (int, int, error) {
	token, err := s.platform.ExchangeUserToken(ctx, user.FacebookToken)
	if err != nil {
		return 0, 0, errors.Wrap(err, "fail to exchange user token")
	}
	if err := s.store.UpdateUserFacebookToken(ctx, user.Id, token.AccessToken, s.now()); err != nil {
		return 0, 0, err
	}

	fanpages, err := s.store.ListConnectedFanpagesByUser(ctx, user.Id)
	if err != nil {
		return 0, 0, err
	}
	rotated, failures := 0, 0
	for i := range fanpages {
		if err := s.refreshFanpage(ctx, &fanpages[i], token.AccessToken); err != nil {
			failures++
			s.metrics.Incr(metrics.CredentialRefreshCounter, "kind:fanpage", "result:failure")
			Log.WithFields(map[string]interface{}{
				"user_id": user.Id,
				"page_id": fanpages[i].PageId,
			}).Errorln("fail to refresh page credential: ", err)
			continue
		}
		rotated++
		s.metrics.Incr(metrics.CredentialRefreshCounter, "kind:fanpage", "result:success")
	}
	return rotated, failures, nil
}

func (s *CredentialSweep) refreshFanpage(ctx context.Context, fanpage *model.Fanpage, userToken string) error {
	pageToken, err := s.platform.GetPageAccessToken(ctx, fanpage.PageId, userToken)
	if err != nil {
		return err
	}
	if _, err := s.store.UpdateFanpageToken(ctx, fanpage.Id, pageToken); err != nil {
		return err
	}
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishFanpageChanged(ctx, fanpage.PageId)
}

func (s *CredentialSweep) Name() string {
	return s.Config.Name
}
