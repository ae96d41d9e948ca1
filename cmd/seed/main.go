package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/tanishqsrivastavaa/petique-app/internal/auth"
	"github.com/tanishqsrivastavaa/petique-app/internal/config"
	"github.com/tanishqsrivastavaa/petique-app/internal/db"
	"github.com/tanishqsrivastavaa/petique-app/internal/scheduling"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

var species = []string{"dog", "cat", "rabbit", "parrot", "hamster", "ferret"}

var workdays = []scheduling.Weekday{
	scheduling.Monday, scheduling.Tuesday, scheduling.Wednesday, scheduling.Thursday, scheduling.Friday,
}

func main() {
	log.Info().Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	if cfg.PostgresDSN == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	vetCount := envInt("SEED_VETS", 20)
	ownerCount := envInt("SEED_OWNERS", 500)

	vets, err := seedVets(ctx, pool, vetCount)
	if err != nil {
		log.Fatal().Err(err).Msg("seed vets")
	}
	owners, err := seedOwners(ctx, pool, ownerCount)
	if err != nil {
		log.Fatal().Err(err).Msg("seed owners")
	}

	printTokens(cfg.Auth, vets, owners)

	log.Info().Msg("seed complete")
}

func seedVets(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding vets")

	ids := make([]uuid.UUID, 0, count)

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			email := gofakeit.Email()
			specialty := scheduling.Specialties[gofakeit.Number(0, len(scheduling.Specialties)-1)]

			if _, err := tx.Exec(ctx, `
				INSERT INTO vets (id, full_name, email, specialty, is_active)
				VALUES ($1, $2, $3, $4, TRUE)
			`, id, "Dr. "+gofakeit.Name(), email, string(specialty)); err != nil {
				return err
			}

			// one morning and one afternoon window each weekday, with a lunch gap
			for _, day := range workdays {
				for _, w := range [][2]int{{9, 12}, {13, 17}} {
					if _, err := tx.Exec(ctx, `
						INSERT INTO vet_working_hours (id, vet_id, day, start_time, end_time, is_active)
						VALUES ($1, $2, $3, make_time($4, 0, 0), make_time($5, 0, 0), TRUE)
					`, uuid.New(), id, string(day), w[0], w[1]); err != nil {
						return err
					}
				}
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int("count", len(ids)).Msg("vets seeded")
	return ids, nil
}

func seedOwners(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding owners and pets")

	const batchSize = 250
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			id := uuid.New()
			batch.Queue(`INSERT INTO owners (id, full_name, email) VALUES ($1, $2, $3)`,
				id, gofakeit.Name(), fmt.Sprintf("%d.%s", i, gofakeit.Email()))

			pets := gofakeit.Number(1, 3)
			for p := 0; p < pets; p++ {
				var breed *string
				if gofakeit.Bool() {
					b := gofakeit.Dog()
					breed = &b
				}
				batch.Queue(`INSERT INTO pets (id, owner_id, name, species, breed) VALUES ($1, $2, $3, $4, $5)`,
					uuid.New(), id, gofakeit.PetName(), species[gofakeit.Number(0, len(species)-1)], breed)
			}
			ids = append(ids, id)
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return nil, err
		}

		log.Info().Int("seeded", end).Int("total", count).Msg("owners seeded")
	}

	return ids, nil
}

// printTokens writes one bearer token per role to stdout for manual testing.
func printTokens(cfg config.AuthConfig, vets, owners []uuid.UUID) {
	if len(vets) == 0 || len(owners) == 0 {
		return
	}

	tokens := auth.NewManager(cfg)
	vetID := vets[0]

	vetToken, _, err := tokens.Issue(scheduling.Actor{UserID: uuid.New(), Role: scheduling.RoleVet, VetID: &vetID})
	if err != nil {
		log.Error().Err(err).Msg("issue vet token")
		return
	}
	ownerToken, _, err := tokens.Issue(scheduling.Actor{UserID: owners[0], Role: scheduling.RoleOwner})
	if err != nil {
		log.Error().Err(err).Msg("issue owner token")
		return
	}

	fmt.Printf("VET_ID=%s\nVET_TOKEN=%s\nOWNER_ID=%s\nOWNER_TOKEN=%s\n", vetID, vetToken, owners[0], ownerToken)
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
