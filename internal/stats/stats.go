package stats

import (
	"math"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"
)

const (
	WindowDays    = 30
	RecentAnswers = 10
)

type Summary struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Rate    int `json:"rate"`
}

type Day struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Correct int    `json:"correct"`
	Wrong   int    `json:"wrong"`
}

type Window struct {
	Total   int   `json:"total"`
	Correct int   `json:"correct"`
	Wrong   int   `json:"wrong"`
	Rate    int   `json:"rate"`
	Days    []Day `json:"days"`
}

type ProgressSummary struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

type Profile struct {
	AllTime  Summary             `json:"allTime"`
	Recent   Window              `json:"last30Days"`
	Answers  []models.QuizRecord `json:"recentAnswers"`
	Progress ProgressSummary     `json:"progress"`
}

// percent rounds half up, matching the figures shown on the profile page.
func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Floor(float64(part)*100/float64(whole) + 0.5))
}

func AllTime(history []models.QuizRecord) Summary {
	s := Summary{Total: len(history)}
	for _, r := range history {
		if r.Correct {
			s.Correct++
		}
	}
	s.Rate = percent(s.Correct, s.Total)
	return s
}

// LastDays summarises answers whose timestamp falls in the trailing window
// ending at now, with one bucket per calendar day, oldest first.
func LastDays(history []models.QuizRecord, now time.Time, loc *time.Location, days int) Window {
	if loc == nil {
		loc = time.Local
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	type counts struct{ correct, wrong int }
	byDate := make(map[string]*counts)

	var w Window
	for _, r := range history {
		if r.Timestamp < cutoff {
			continue
		}
		w.Total++
		c, ok := byDate[r.Date]
		if !ok {
			c = &counts{}
			byDate[r.Date] = c
		}
		if r.Correct {
			w.Correct++
			c.correct++
		} else {
			c.wrong++
		}
	}
	w.Wrong = w.Total - w.Correct
	w.Rate = percent(w.Correct, w.Total)

	local := now.In(loc)
	w.Days = make([]Day, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := local.AddDate(0, 0, -i)
		key := d.Format(models.DateLayout)
		day := Day{Date: key, Label: d.Format("Jan 2")}
		if c, ok := byDate[key]; ok {
			day.Correct = c.correct
			day.Wrong = c.wrong
		}
		w.Days = append(w.Days, day)
	}
	return w
}

// Latest returns up to n answers, newest first.
func Latest(history []models.QuizRecord, n int) []models.QuizRecord {
	out := make([]models.QuizRecord, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history[i])
	}
	return out
}

func ProgressOf(p models.Progress) ProgressSummary {
	total := len(models.Modules)
	done := p.CompletedCount()
	return ProgressSummary{Completed: done, Total: total, Percentage: percent(done, total)}
}

func Build(history []models.QuizRecord, progress models.Progress, now time.Time, loc *time.Location) Profile {
	return Profile{
		AllTime:  AllTime(history),
		Recent:   LastDays(history, now, loc, WindowDays),
		Answers:  Latest(history, RecentAnswers),
		Progress: ProgressOf(progress),
	}
}
