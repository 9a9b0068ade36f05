// cmd/db is the database admin tool: it applies migrations and loads problem banks
// without starting the battle server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/config"
	"github.com/jason-s-yu/codeduel/internal/database"
	"github.com/sirupsen/logrus"
)

const usage = `usage: db <command> [flags]

commands:
  migrate              apply pending schema migrations
  seed -file <path>    apply migrations, then upsert every problem in a JSON problem file
`

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if !cfg.Postgres.Enabled() {
		logger.Fatal("PG_HOST must be set")
	}

	switch os.Args[1] {
	case "migrate":
		if err := database.Migrate(cfg.Postgres); err != nil {
			logger.Fatal(err)
		}
		logger.Info("migrations applied")

	case "seed":
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		file := fs.String("file", cfg.ProblemsFile, "problem bank JSON file")
		_ = fs.Parse(os.Args[2:])
		if *file == "" {
			logger.Fatal("seed needs -file or PROBLEMS_FILE")
		}
		n, err := seed(cfg, *file)
		if err != nil {
			logger.Fatal(err)
		}
		logger.WithField("file", *file).Infof("seeded %d problems", n)

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func seed(cfg *config.Config, path string) (int, error) {
	pool, err := battle.LoadProblemsFile(path)
	if err != nil {
		return 0, err
	}
	problems := pool.Problems()

	if err := database.Migrate(cfg.Postgres); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	db, err := database.Connect(ctx, cfg.Postgres)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err := database.NewProblemRepository(db).UpsertProblems(ctx, problems); err != nil {
		return 0, err
	}
	return len(problems), nil
}
