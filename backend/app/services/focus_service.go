package services

import (
	"time"

	"shortsguard/backend/app/models"
	"shortsguard/backend/app/repo"
)

const (
	SessionFocus    = "focus"
	SessionPomodoro = "pomodoro"
)

// FocusService tracks focus/pomodoro sessions. The active state is purely a
// signal for the UI; blocking policy never consults it.
type FocusService struct {
	repo *repo.FocusRepository
}

func NewFocusService(r *repo.FocusRepository) *FocusService {
	return &FocusService{repo: r}
}

// Start opens a session of the given kind, closing any previous one.
// minutes <= 0 means open-ended.
func (s *FocusService) Start(kind string, minutes int) (*models.FocusSession, error) {
	if kind != SessionFocus && kind != SessionPomodoro {
		return nil, ErrInvalidInput
	}
	if err := s.repo.DeactivateAll(); err != nil {
		return nil, err
	}
	sess := &models.FocusSession{
		Kind:      kind,
		StartedAt: time.Now(),
		Active:    true,
	}
	if minutes > 0 {
		ends := sess.StartedAt.Add(time.Duration(minutes) * time.Minute)
		sess.EndsAt = &ends
	}
	if err := s.repo.Create(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Cancel closes the active session of the given kind, if any.
func (s *FocusService) Cancel(kind string) error {
	if kind != SessionFocus && kind != SessionPomodoro {
		return ErrInvalidInput
	}
	return s.repo.DeactivateAll()
}

// Active reports whether a session is currently running, accounting for
// timed sessions that expired without an explicit cancel.
func (s *FocusService) Active() (bool, error) {
	sess, err := s.repo.ActiveSession()
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	if sess.EndsAt != nil && time.Now().After(*sess.EndsAt) {
		return false, s.repo.DeactivateAll()
	}
	return true, nil
}
