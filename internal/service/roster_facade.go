package service

import (
	"context"

	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

// RosterFacade gives the transport layer read access to the external
// roster without reaching into the repository directly.
type RosterFacade struct {
	roster rosterReader
}

// NewRosterFacade constructs the facade.
func NewRosterFacade(roster rosterReader) *RosterFacade {
	return &RosterFacade{roster: roster}
}

// StudentTeam resolves the team a student belongs to inside a class,
// nil when the student has none there.
func (f *RosterFacade) StudentTeam(ctx context.Context, classID, studentID int64) (*int64, error) {
	teamID, err := f.roster.StudentTeamInClass(ctx, classID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student team")
	}
	return teamID, nil
}

// Team fetches one team.
func (f *RosterFacade) Team(ctx context.Context, id int64) (*models.Team, error) {
	team, err := f.roster.FindTeam(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if team == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
	}
	return team, nil
}
