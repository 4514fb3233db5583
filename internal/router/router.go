package router

import (
	"net/http"
	"time"

	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/handler"
	"github.com/examly/examly-backend/internal/middleware"
	"github.com/examly/examly-backend/internal/response"
	"github.com/examly/examly-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handlers bundles every HTTP handler wired by Setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Subject   *handler.SubjectHandler
	Question  *handler.QuestionHandler
	TestPaper *handler.TestPaperHandler
	Exam      *handler.ExamHandler
	Taking    *handler.TakingHandler
	Dashboard *handler.DashboardHandler
	WS        *handler.WSHandler
}

// Setup builds the Gin engine with all routes and middleware.
func Setup(cfg *config.Config, authService *service.AuthService, log zerolog.Logger, h Handlers) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware())
	r.Use(middleware.RequestLogger(log))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/teacher/login", h.Auth.LoginTeacher)
		auth.POST("/student/login", h.Auth.LoginStudent)
		auth.POST("/student/register", h.Auth.Register)
	}

	// Profile endpoints accept either audience.
	profile := api.Group("/auth")
	profile.Use(middleware.RequireJWT(authService))
	{
		profile.POST("/logout", h.Auth.Logout)
		profile.GET("/profile", h.Auth.Profile)
		profile.PUT("/profile", h.Auth.UpdateProfile)
		profile.PUT("/password", h.Auth.ChangePassword)
	}

	teacher := api.Group("/teacher")
	teacher.Use(middleware.RequireTeacherJWT(authService))
	{
		teacher.GET("/dashboard", h.Dashboard.TeacherStats)
		teacher.GET("/students", h.Dashboard.Students)

		teacher.GET("/subjects", h.Subject.List)
		teacher.POST("/subjects", h.Subject.Create)
		teacher.PUT("/subjects/:id", h.Subject.Update)
		teacher.DELETE("/subjects/:id", h.Subject.Delete)

		teacher.GET("/questions", h.Question.List)
		teacher.POST("/questions", h.Question.Create)
		teacher.GET("/questions/:id", h.Question.Get)
		teacher.PUT("/questions/:id", h.Question.Update)
		teacher.DELETE("/questions/:id", h.Question.Delete)

		teacher.GET("/papers", h.TestPaper.List)
		teacher.POST("/papers", h.TestPaper.Create)
		teacher.GET("/papers/:id", h.TestPaper.Get)
		teacher.GET("/papers/:id/questions", h.TestPaper.Questions)
		teacher.PUT("/papers/:id", h.TestPaper.Update)
		teacher.DELETE("/papers/:id", h.TestPaper.Delete)

		teacher.GET("/exams", h.Exam.List)
		teacher.POST("/exams", h.Exam.Create)
		teacher.GET("/exams/:id", h.Exam.Get)
		teacher.PUT("/exams/:id", h.Exam.Update)
		teacher.DELETE("/exams/:id", h.Exam.Delete)
		teacher.POST("/exams/:id/publish", h.Exam.Publish)
		teacher.POST("/exams/:id/close", h.Exam.Close)
		teacher.GET("/exams/:id/students", h.Exam.Students)
		teacher.POST("/exams/:id/students", h.Exam.Enroll)
		teacher.DELETE("/exams/:id/students/:student_id", h.Exam.Unenroll)
		teacher.GET("/exams/:id/results", h.Exam.Results)
	}

	student := api.Group("/student")
	student.Use(middleware.RequireStudentJWT(authService))
	student.Use(middleware.CheckSingleDeviceSession(authService))
	{
		student.GET("/dashboard", h.Dashboard.StudentStats)

		student.GET("/exams", h.Taking.Available)
		student.GET("/exams/:exam_id", h.Taking.Info)
		student.POST("/exams/:exam_id/start", h.Taking.Start)
		student.GET("/exams/:exam_id/paper", h.Taking.Paper)
		student.PUT("/exams/:exam_id/answers", h.Taking.SaveAnswer)
		student.POST("/exams/:exam_id/submit", h.Taking.Submit)
		student.GET("/exams/:exam_id/status", h.Taking.Status)
		student.GET("/exams/:exam_id/result", h.Taking.Result)
	}

	wsGroup := r.Group("/ws/v1/student")
	wsGroup.Use(middleware.RequireStudentWSAuth(authService))
	wsGroup.Use(middleware.CheckSingleDeviceSession(authService))
	{
		wsGroup.GET("/exams/:exam_id/stream", h.WS.Stream)
	}

	return r
}
