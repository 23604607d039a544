package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/quiz"
	"github.com/trezcool/edunex/core/user"
	emailsvc "github.com/trezcool/edunex/services/email"
	logsvc "github.com/trezcool/edunex/services/logger"
	"github.com/trezcool/edunex/storage/database"
	sqlxrepos "github.com/trezcool/edunex/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	usrRepo := sqlxrepos.NewUserRepository(db)

	// start CLI
	cli := commandLine{
		usrRepo: usrRepo,
		usrSvc:  user.NewService(usrRepo, emailsvc.NewConsoleService(conf, logger), conf, validate),
		migrate: func(ctx context.Context, command string, args ...string) error {
			return database.Migrate(ctx, db.DB, command, args...)
		},
		out: os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
