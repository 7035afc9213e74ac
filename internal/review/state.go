package review

import (
	"time"

	"github.com/JaimeStill/creditdesk/internal/applications"
)

// NoticeLevel classifies a user-visible notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible message. Transient notices clear themselves.
type Notice struct {
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	Transient bool        `json:"transient"`
	RaisedAt  time.Time   `json:"raised_at"`
}

// State is everything a client needs to render a view.
type State struct {
	ViewID              string                    `json:"view_id,omitempty"`
	ApplicationID       string                    `json:"application_id"`
	Reviewer            string                    `json:"reviewer"`
	Application         *applications.Application `json:"application"`
	EffectiveAIDecision applications.Decision     `json:"effective_ai_decision"`
	RiskLevel           applications.RiskLevel    `json:"risk_level"`
	ReviewStatus        applications.ReviewStatus `json:"review_status"`
	LockState           applications.LockState    `json:"lock_state"`
	EmailMode           applications.EmailMode    `json:"email_mode,omitempty"`
	CanDecide           bool                      `json:"can_decide"`
	Polling             bool                      `json:"polling"`
	Dialog              DialogView                `json:"dialog"`
	Notice              *Notice                   `json:"notice,omitempty"`
}

// State returns a consistent view of the session.
func (s *Session) State() State {
	snap := s.store.current()

	lock := s.lockState()

	s.mu.Lock()
	dialog := s.dialog
	mode := s.emailMode
	var notice *Notice
	if s.notice != nil {
		n := *s.notice
		notice = &n
	}
	s.mu.Unlock()

	st := State{
		ViewID:        s.viewID,
		ApplicationID: s.appID,
		Reviewer:      s.reviewer,
		Application:   snap,
		EmailMode:     mode,
		LockState:     lock,
		Polling:       s.poller.Active(),
		Dialog:        viewDialog(dialog),
		Notice:        notice,
	}

	if snap != nil {
		st.EffectiveAIDecision = snap.EffectiveAIDecision()
		st.RiskLevel = snap.EffectiveRiskLevel()
		st.ReviewStatus = snap.EffectiveReviewStatus()
		st.CanDecide = snap.Decidable() && lock == applications.Unlocked
	}
	return st
}

// Notice returns the current notice, nil when none is shown.
func (s *Session) Notice() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return nil
	}
	n := *s.notice
	return &n
}

// DismissNotice clears the current notice.
func (s *Session) DismissNotice() {
	s.mu.Lock()
	s.clearNoticeLocked()
	s.mu.Unlock()
	s.changed()
}

// flash replaces the current notice. A positive ttl clears it after the
// delay unless it has been replaced in the meantime.
func (s *Session) flash(level NoticeLevel, message string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.clearNoticeLocked()

	n := &Notice{
		Level:     level,
		Message:   message,
		Transient: ttl > 0,
		RaisedAt:  s.clock.Now(),
	}
	s.notice = n

	if ttl > 0 {
		// the callback may run while the clock holds its own lock
		s.noticeTimer = s.clock.AfterFunc(ttl, func() {
			go s.expire(n)
		})
	}
}

func (s *Session) clearNoticeLocked() {
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
		s.noticeTimer = nil
	}
	s.notice = nil
}

func (s *Session) expire(n *Notice) {
	s.mu.Lock()
	cleared := s.notice == n
	if cleared {
		s.notice = nil
		s.noticeTimer = nil
	}
	s.mu.Unlock()

	if cleared {
		s.changed()
	}
}
