package session

import (
	"context"
	"errors"
	"log"
	"time"
)

type Route int

const (
	RouteLogin Route = iota
	RouteTasks
)

func (r Route) String() string {
	if r == RouteTasks {
		return "tasks"
	}
	return "login"
}

// Refresher obtains a new access token from the stored refresh token. It is
// expected to clear the session itself when the refresh is rejected.
type Refresher interface {
	RefreshAccess(ctx context.Context) error
}

// Guard decides which view to open at startup. Any failure lands on login;
// a malformed access token, or an expired one with no way to renew it,
// also wipes the stored session.
func Guard(ctx context.Context, s Store, r Refresher, now time.Time) Route {
	access := s.Access()
	if access != "" {
		if _, err := Decode(access); errors.Is(err, ErrMalformedToken) {
			dropSession(ctx, s, "malformed access token")
			return RouteLogin
		}
		if ShouldAttach(access, now) {
			return RouteTasks
		}
	}

	if s.Refresh() == "" {
		if access != "" {
			dropSession(ctx, s, "access token expired and no refresh token")
		}
		return RouteLogin
	}

	if err := r.RefreshAccess(ctx); err != nil {
		return RouteLogin
	}
	if !ShouldAttach(s.Access(), now) {
		dropSession(ctx, s, "refreshed access token is unusable")
		return RouteLogin
	}
	return RouteTasks
}

func dropSession(ctx context.Context, s Store, reason string) {
	log.Printf("[WARN] dropping session: %s", reason)
	if err := s.Clear(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
	}
}
