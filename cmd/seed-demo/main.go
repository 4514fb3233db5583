package main

import (
	"context"
	"fmt"
	"time"

	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/database"
	"github.com/examly/examly-backend/internal/logger"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// seed-demo populates a fresh database with a teacher, a handful of students,
// one subject, a small question bank, a paper and a published-ready draft
// examination. Intended for local development only.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)
	subjects := repository.NewSubjectRepository(pool)
	questions := repository.NewQuestionRepository(pool)
	papers := repository.NewTestPaperRepository(pool)
	exams := repository.NewExamRepository(pool)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("password hash failed")
	}

	teacher := &model.User{
		Username:     "teacher1",
		Name:         "Dana Wijaya",
		Email:        "teacher1@example.com",
		Role:         model.RoleTeacher,
		PasswordHash: string(hash),
	}
	if err := users.Create(ctx, teacher); err != nil {
		log.Fatal().Err(err).Msg("teacher seed failed")
	}

	var studentIDs []int
	for i := 1; i <= 5; i++ {
		student := &model.User{
			Username:     fmt.Sprintf("student%d", i),
			Name:         fmt.Sprintf("Student %d", i),
			Email:        fmt.Sprintf("student%d@example.com", i),
			Role:         model.RoleStudent,
			PasswordHash: string(hash),
		}
		if err := users.Create(ctx, student); err != nil {
			log.Fatal().Err(err).Msg("student seed failed")
		}
		studentIDs = append(studentIDs, student.ID)
	}

	subject := &model.Subject{Name: "Biology"}
	if err := subjects.Create(ctx, subject); err != nil {
		log.Fatal().Err(err).Msg("subject seed failed")
	}

	var entries []model.PaperQuestion
	for i, dq := range demoQuestions() {
		q := &model.Question{
			SubjectID: subject.ID,
			AuthorID:  teacher.ID,
			Type:      dq.qType,
			Prompt:    dq.prompt,
			Options:   dq.options,
		}
		if err := questions.Create(ctx, q); err != nil {
			log.Fatal().Err(err).Msg("question seed failed")
		}
		entries = append(entries, model.PaperQuestion{QuestionID: q.ID, Score: dq.score, Position: i})
	}

	paper := &model.TestPaper{
		Name:         "Biology Midterm",
		SubjectID:    subject.ID,
		AuthorID:     teacher.ID,
		PassingScore: 60,
	}
	if err := papers.Create(ctx, paper, entries); err != nil {
		log.Fatal().Err(err).Msg("paper seed failed")
	}

	exam := &model.Examination{
		Name:      "Biology Midterm Session A",
		PaperID:   paper.ID,
		SubjectID: subject.ID,
		AuthorID:  teacher.ID,
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		Status:    model.ExamStatusDraft,
	}
	if err := exams.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("exam seed failed")
	}
	if err := exams.Enroll(ctx, exam.ID, studentIDs); err != nil {
		log.Fatal().Err(err).Msg("enrollment seed failed")
	}

	log.Info().
		Str("exam_id", exam.ID.String()).
		Msg("demo data seeded, publish the exam via the teacher API to open it")
}

type demoQuestion struct {
	qType   model.QuestionType
	prompt  string
	score   float64
	options []model.Option
}

func demoQuestions() []demoQuestion {
	return []demoQuestion{
		{
			qType:  model.QuestionTypeSingleChoice,
			prompt: "Which organelle is the site of cellular respiration?",
			score:  25,
			options: []model.Option{
				{Text: "Mitochondrion", IsCorrect: true, Position: 0},
				{Text: "Ribosome", Position: 1},
				{Text: "Golgi apparatus", Position: 2},
				{Text: "Nucleus", Position: 3},
			},
		},
		{
			qType:  model.QuestionTypeMultiChoice,
			prompt: "Which of the following are products of photosynthesis?",
			score:  25,
			options: []model.Option{
				{Text: "Glucose", IsCorrect: true, Position: 0},
				{Text: "Oxygen", IsCorrect: true, Position: 1},
				{Text: "Carbon dioxide", Position: 2},
				{Text: "Nitrogen", Position: 3},
			},
		},
		{
			qType:  model.QuestionTypeSingleChoice,
			prompt: "What is the basic unit of heredity?",
			score:  25,
			options: []model.Option{
				{Text: "Gene", IsCorrect: true, Position: 0},
				{Text: "Cell", Position: 1},
				{Text: "Protein", Position: 2},
			},
		},
		{
			qType:  model.QuestionTypeFillIn,
			prompt: "Name the process by which cells divide to produce gametes.",
			score:  25,
		},
	}
}
