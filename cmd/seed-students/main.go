package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/examflow-backend/internal/config"
	"github.com/stemsi/examflow-backend/internal/database"
	"github.com/stemsi/examflow-backend/internal/logger"
	"github.com/stemsi/examflow-backend/internal/model"
	"github.com/stemsi/examflow-backend/internal/repository"
	"github.com/stemsi/examflow-backend/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentRepo := repository.NewStudentRepository(pool)
	authService := service.NewAuthService(cfg, nil)

	fmt.Println("=== Seeding 50 Students ===")

	names := []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
		"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
		"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
		"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
		"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
		"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
		"Bagas Saputra", "Citra Kirana", "Dimas Anggara", "Elisa Novita", "Fikri Maulana",
		"Gali Rakasiwi", "Hani Hanifah", "Iqbal Ramadhan", "Jasmine Azzahra", "Kevin Sanjaya",
		"Larasati Dewi", "Miko Pambudi", "Nia Ramadhani", "Oscar Lawalata", "Puput Melati",
		"Reza Rahadian", "Sari Nila", "Tigor Siahaan", "Utari Maharani", "Vicky Prasetyo",
	}

	successCount := 0
	for i, name := range names {
		nisn := fmt.Sprintf("user%d", i+1)

		hash, err := authService.HashPassword("password")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash password")
		}

		student := &model.Student{
			Name:         name,
			NISN:         nisn,
			PasswordHash: hash,
		}
		if err := studentRepo.Create(ctx, student); err != nil {
			log.Error().Err(err).Str("nisn", nisn).Msg("Failed to create student, skipping")
			continue
		}
		successCount++
	}

	fmt.Printf("Seeded %d/%d students (password: \"password\")\n", successCount, len(names))
}
