package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/examly/examly-backend/internal/config"
	"github.com/examly/examly-backend/internal/database"
	"github.com/examly/examly-backend/internal/logger"
	"github.com/examly/examly-backend/internal/model"
	"github.com/examly/examly-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// create-teacher provisions a teacher account interactively. Teacher accounts
// have no self-registration endpoint.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()

	reader := bufio.NewReader(os.Stdin)

	username := prompt(reader, "Username: ")
	name := prompt(reader, "Full name: ")
	email := prompt(reader, "Email: ")

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatal().Err(err).Msg("password read failed")
	}
	if len(password) < 6 {
		log.Fatal().Msg("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("password hash failed")
	}

	users := repository.NewUserRepository(pool)
	user := &model.User{
		Username:     username,
		Name:         name,
		Email:        email,
		Role:         model.RoleTeacher,
		PasswordHash: string(hash),
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatal().Err(err).Msg("teacher creation failed")
	}

	log.Info().Int("id", user.ID).Str("username", username).Msg("teacher created")
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
