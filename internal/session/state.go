package session

import "github.com/StefanRadev91/TSPlaywrightSite/internal/models"

type Phase string

const (
	PhaseUnknown       Phase = "unknown"
	PhaseAnonymous     Phase = "anonymous"
	PhaseAuthenticated Phase = "authenticated"
)

// SyncStatus reports remote writes that are still running and the last one that failed.
// Failed writes are not retried and the in-memory state is kept.
type SyncStatus struct {
	Pending     int    `json:"pending"`
	LastError   string `json:"lastError,omitempty"`
	LastErrorAt int64  `json:"lastErrorAt,omitempty"`
}

// State is an immutable snapshot of a Store.
type State struct {
	Identity           *models.Identity    `json:"identity"`
	LoadingInitialAuth bool                `json:"loadingInitialAuth"`
	LoadingProfile     bool                `json:"loadingProfile"`
	Progress           models.Progress     `json:"progress"`
	QuizHistory        []models.QuizRecord `json:"quizHistory"`
	Sync               SyncStatus          `json:"sync"`
	Version            uint64              `json:"version"`
}

func (s State) Phase() Phase {
	switch {
	case s.LoadingInitialAuth:
		return PhaseUnknown
	case s.Identity == nil:
		return PhaseAnonymous
	default:
		return PhaseAuthenticated
	}
}

// HistoryFor returns the first quiz record dated day.
func (s State) HistoryFor(day string) (models.QuizRecord, bool) {
	for _, r := range s.QuizHistory {
		if r.Date == day {
			return r, true
		}
	}
	return models.QuizRecord{}, false
}

func (s State) clone() State {
	out := s
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	out.Progress = s.Progress.Clone()
	out.QuizHistory = append([]models.QuizRecord{}, s.QuizHistory...)
	return out
}

func initialState() State {
	return State{
		LoadingInitialAuth: true,
		Progress:           models.DefaultProgress(),
		QuizHistory:        []models.QuizRecord{},
	}
}
