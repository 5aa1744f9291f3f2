package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/stemsi/examflow-backend/internal/config"
	"github.com/stemsi/examflow-backend/internal/database"
	"github.com/stemsi/examflow-backend/internal/logger"
	"github.com/stemsi/examflow-backend/internal/model"
	"github.com/stemsi/examflow-backend/internal/repository"
	"github.com/stemsi/examflow-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	teacherRepo := repository.NewTeacherRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)
	authService := service.NewAuthService(cfg, nil)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Teacher ===")

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// Subject ID (optional)
	fmt.Print("Enter Subject ID (empty for none): ")
	subjectIDStr, _ := reader.ReadString('\n')
	subjectIDStr = strings.TrimSpace(subjectIDStr)
	var subjectID *int
	if subjectIDStr != "" {
		id, err := strconv.Atoi(subjectIDStr)
		if err != nil {
			fmt.Println("Error: Subject ID must be a number")
			return
		}
		if _, err := subjectRepo.GetByID(ctx, id); err != nil {
			fmt.Printf("Error: Subject %d not found\n", id)
			return
		}
		subjectID = &id
	}

	// ─── Create Teacher ────────────────────────────────────────────────
	hash, err := authService.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	teacher := &model.Teacher{
		Name:         name,
		Email:        email,
		SubjectID:    subjectID,
		PasswordHash: hash,
	}
	if err := teacherRepo.Create(ctx, teacher); err != nil {
		log.Fatal().Err(err).Msg("Failed to create teacher")
	}

	fmt.Printf("Teacher created with ID: %d\n", teacher.ID)
}
