package handler

import (
	"coursequiz/internal/domain"
	"coursequiz/internal/dto"
	"coursequiz/internal/middleware"
	"coursequiz/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

// QuizHandler handles material, quiz and task HTTP requests
type QuizHandler struct {
	service    service.QuizService
	validation *middleware.ValidationMiddleware
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.QuizService, validation *middleware.ValidationMiddleware) *QuizHandler {
	return &QuizHandler{
		service:    service,
		validation: validation,
	}
}

// RegisterRoutes mounts the handler under router (normally /api).
func (h *QuizHandler) RegisterRoutes(router fiber.Router) {
	course := h.validation.KeyParams("courseID")
	quiz := h.validation.ULIDParams("quizID")

	router.Post("/courses/:courseID/materials", course, h.RegisterMaterial)
	router.Post("/courses/:courseID/quizzes", course, h.CreateQuiz)
	router.Get("/courses/:courseID/quizzes", course, h.ListCourseQuizzes)
	router.Delete("/materials/:materialID/standby", h.validation.ULIDParams("materialID"), h.RemoveStandby)
	router.Post("/quizzes/:quizID/generate", quiz, h.SupplyQuestions)
	router.Get("/quizzes/:quizID/status", quiz, h.GetGenerationStatus)
	router.Get("/quizzes/:quizID", quiz, h.GetQuiz)
	router.Post("/quizzes/:quizID/check", quiz, h.CheckAnswers)
	router.Get("/tasks/:taskID", h.validation.ULIDParams("taskID"), h.GetTask)
}

// RegisterMaterial handles POST /api/courses/:courseID/materials
func (h *QuizHandler) RegisterMaterial(c *fiber.Ctx) error {
	var req dto.RegisterMaterialRequest
	if err := h.validation.RequestBody(c, &req); err != nil {
		return err
	}
	m := &domain.Material{CourseID: c.Params("courseID"), FilePath: req.FilePath, FileName: req.FileName}
	quiz, tasks, err := h.service.RegisterMaterial(c.UserContext(), m)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.RegisterMaterialResponse{
		Material: dto.MaterialResponse{
			ID:       m.ID,
			CourseID: m.CourseID,
			FilePath: m.FilePath,
			FileName: m.FileName,
			Created:  m.CreatedAt,
		},
		StandbyQuizID: quiz.ID,
		Tasks:         lo.Ternary(tasks == nil, []domain.TaskInfo{}, tasks),
	})
}

// RemoveStandby handles DELETE /api/materials/:materialID/standby
func (h *QuizHandler) RemoveStandby(c *fiber.Ctx) error {
	if err := h.service.RemoveStandby(c.UserContext(), c.Params("materialID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateQuiz handles POST /api/courses/:courseID/quizzes
func (h *QuizHandler) CreateQuiz(c *fiber.Ctx) error {
	var req dto.CreateQuizRequest
	if err := h.validation.RequestBody(c, &req); err != nil {
		return err
	}
	quiz, err := h.service.CreateQuiz(c.UserContext(), service.CreateQuizInput{
		CourseID:         c.Params("courseID"),
		Title:            req.Title,
		RequestedCount:   req.QuestionCount,
		TimeLimitSeconds: req.TimeLimitSeconds,
		MaterialIDs:      req.MaterialIDs,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToQuizResponse(quiz))
}

// ListCourseQuizzes handles GET /api/courses/:courseID/quizzes
func (h *QuizHandler) ListCourseQuizzes(c *fiber.Ctx) error {
	courseID := c.Params("courseID")
	summaries, err := h.service.ListCourseQuizzes(c.UserContext(), courseID)
	if err != nil {
		return err
	}
	return c.JSON(dto.QuizListResponse{
		CourseID: courseID,
		Quizzes: lo.Map(summaries, func(s service.QuizSummary, _ int) dto.QuizSummaryResponse {
			return dto.QuizSummaryResponse{
				ID:               s.ID,
				Title:            s.Title,
				RequestedCount:   s.RequestedCount,
				TimeLimitSeconds: s.TimeLimitSeconds,
				BestScore:        s.BestScore,
				LastTakenAt:      s.LastTakenAt,
				MaterialIDs:      s.MaterialIDs,
				CreatedAt:        s.CreatedAt,
			}
		}),
	})
}

// SupplyQuestions handles POST /api/quizzes/:quizID/generate
func (h *QuizHandler) SupplyQuestions(c *fiber.Ctx) error {
	result, err := h.service.SupplyQuestions(c.UserContext(), c.Params("quizID"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.SupplyResponse{
		Outcome:          result.Outcome,
		QuizID:           result.QuizID,
		DonorID:          result.DonorID,
		MovedQuestionIDs: result.MovedQuestionIDs,
		Tasks:            lo.Ternary(result.Tasks == nil, []domain.TaskInfo{}, result.Tasks),
	})
}

// GetGenerationStatus handles GET /api/quizzes/:quizID/status
func (h *QuizHandler) GetGenerationStatus(c *fiber.Ctx) error {
	status, err := h.service.GenerationStatus(c.UserContext(), c.Params("quizID"))
	if err != nil {
		return err
	}
	return c.JSON(dto.GenerationStatusResponse{
		QuizID:         status.QuizID,
		State:          status.State,
		QuestionCount:  status.QuestionCount,
		RequestedCount: status.RequestedCount,
		Tasks:          lo.Ternary(status.Tasks == nil, []domain.TaskInfo{}, status.Tasks),
	})
}

// GetQuiz handles GET /api/quizzes/:quizID
func (h *QuizHandler) GetQuiz(c *fiber.Ctx) error {
	quiz, err := h.service.GetQuiz(c.UserContext(), c.Params("quizID"))
	if err != nil {
		return err
	}
	return c.JSON(dto.ToQuizResponse(quiz))
}

// CheckAnswers handles POST /api/quizzes/:quizID/check
func (h *QuizHandler) CheckAnswers(c *fiber.Ctx) error {
	var req dto.CheckAnswersRequest
	if err := h.validation.RequestBody(c, &req); err != nil {
		return err
	}
	answers := lo.SliceToMap(req.Answers, func(a dto.AnswerItem) (string, string) {
		return a.QuestionID, a.Answer
	})
	result, err := h.service.CheckAnswers(c.UserContext(), c.Params("quizID"), answers)
	if err != nil {
		return err
	}
	return c.JSON(dto.CheckAnswersResponse{
		QuizID:    result.QuizID,
		Score:     result.Score,
		Total:     result.Total,
		BestScore: result.BestScore,
		Results: lo.Map(result.Results, func(r domain.AnswerResult, _ int) dto.AnswerResultResponse {
			return dto.AnswerResultResponse{
				QuestionID:    r.QuestionID,
				Answer:        r.Given,
				CorrectAnswer: r.CorrectAnswer,
				Correct:       r.Correct,
			}
		}),
	})
}

// GetTask handles GET /api/tasks/:taskID
func (h *QuizHandler) GetTask(c *fiber.Ctx) error {
	info, err := h.service.TaskStatus(c.UserContext(), c.Params("taskID"))
	if err != nil {
		return err
	}
	return c.JSON(info)
}
