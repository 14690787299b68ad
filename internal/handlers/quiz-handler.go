package handlers

import (
	"context"
	"errors"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/daily"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/event"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/middleware"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"github.com/gofiber/fiber/v3"
)

type QuizHandler struct {
	selector *daily.Selector
	events   event.Publisher
}

func NewQuizHandler(selector *daily.Selector, events event.Publisher) *QuizHandler {
	return &QuizHandler{
		selector: selector,
		events:   events,
	}
}

func (h *QuizHandler) RegisterRoutes(app fiber.Router) {
	quizGroup := app.Group("/public/quiz/daily")
	quizGroup.Get("/", h.GetDaily)
	quizGroup.Post("/answer", h.Answer)
}

type questionView struct {
	ID          int      `json:"id"`
	Category    string   `json:"category"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     *int     `json:"correct,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

type dailyView struct {
	Date     string       `json:"date"`
	Question questionView `json:"question"`
	Answered bool         `json:"answered"`
	Selected *int         `json:"selected,omitempty"`
	Correct  *bool        `json:"correct,omitempty"`
	Source   string       `json:"source,omitempty"`
	Loading  bool         `json:"loading,omitempty"`
}

// toDailyView hides the answer key and explanation until the question is answered.
func toDailyView(st daily.State) dailyView {
	q := questionView{
		ID:       st.Question.ID,
		Category: st.Question.Category,
		Question: st.Question.Question,
		Options:  st.Question.Options,
	}
	if st.Answered {
		correct := st.Question.Correct
		q.Correct = &correct
		q.Explanation = st.Question.Explanation
	}
	return dailyView{
		Date:     st.Date,
		Question: q,
		Answered: st.Answered,
		Selected: st.Selected,
		Correct:  st.Correct,
		Source:   st.Source,
		Loading:  st.Loading,
	}
}

func (h *QuizHandler) GetDaily(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	st := h.selector.State(ctx, middleware.ClientID(c), middleware.StoreFrom(c))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": toDailyView(st),
	})
}

func (h *QuizHandler) Answer(c fiber.Ctx) error {
	var answerRequest struct {
		Option *int `json:"option"`
	}

	if err := c.Bind().Body(&answerRequest); err != nil || answerRequest.Option == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	store := middleware.StoreFrom(c)
	st, accepted, err := h.selector.Submit(ctx, middleware.ClientID(c), *answerRequest.Option, store)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOption) {
			return respondError(c, err)
		}
		if errors.Is(err, daily.ErrProfileLoading) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Your profile is still loading. Please try again.",
				"data":  toDailyView(st),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": models.UserMessage(err),
		})
	}
	if !accepted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "You have already answered today's question.",
			"data":  toDailyView(st),
		})
	}

	phase := "guest"
	uid := ""
	if id := store.Identity(); id != nil {
		phase = "signed_in"
		uid = id.UID
	}
	correct := st.Correct != nil && *st.Correct
	result := "wrong"
	if correct {
		result = "correct"
	}
	dailyAnswers.WithLabelValues(result, phase).Inc()
	publishAsync(h.events, func(ctx context.Context) error {
		return h.events.PublishQuizAnswered(ctx, uid, st.Question.ID, correct, st.Date)
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": toDailyView(st),
	})
}
