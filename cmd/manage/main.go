// Команды обслуживания для cron и администратора:
//
//	manage auto-manage [-weeks N]   закрыть закончившиеся занятия и догенерировать расписание
//	manage migrate                  накатить миграции
//	manage create-teacher -email ... -password ... [-first ...] [-last ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/attendance-tracker/internal/app"
	"github.com/Spok95/attendance-tracker/internal/auth"
	"github.com/Spok95/attendance-tracker/internal/config"
	"github.com/Spok95/attendance-tracker/internal/db"
	"github.com/Spok95/attendance-tracker/internal/jobs"
	"github.com/Spok95/attendance-tracker/internal/logging"
	"github.com/Spok95/attendance-tracker/internal/models"
	"github.com/Spok95/attendance-tracker/internal/notify"
	"github.com/Spok95/attendance-tracker/internal/observability"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: manage auto-manage [-weeks N] | migrate | create-teacher -email E -password P [-first F] [-last L]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logging.Init(logging.Options{Level: cfg.LogLevel, Env: cfg.Env, Service: "attendance-manage"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "manage")
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer database.Close()
	store := db.New(database)

	switch cmd {
	case "migrate":
		err = db.Migrate(database)
	case "auto-manage":
		err = autoManage(ctx, cfg, store, logger, args)
	case "create-teacher":
		err = createTeacher(ctx, cfg, store, logger, args)
	default:
		usage()
	}
	if err != nil {
		logger.Error(cmd+" failed", zap.Error(err))
		observability.CaptureErr(err)
		flush()
		lg.Closer()
		os.Exit(1)
	}
}

func autoManage(ctx context.Context, cfg *config.Config, store *db.Store, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("auto-manage", flag.ExitOnError)
	weeks := fs.Int("weeks", cfg.WeeksAhead, "на сколько недель вперёд генерировать занятия")
	_ = fs.Parse(args)
	if *weeks <= 0 {
		return fmt.Errorf("-weeks должно быть больше нуля")
	}
	cfg.WeeksAhead = *weeks

	notifier, err := notify.New(cfg.BotToken, cfg.AdminIDs, logger.Named("notify"))
	if err != nil {
		logger.Warn("telegram notifier disabled", zap.Error(err))
		notifier = notify.Nop{}
	}
	job := app.NewServices(cfg, store, logger).AutoManage(cfg, notifier, logger)

	var res jobs.Result
	err = jobs.Run(ctx, "auto_manage", func(ctx context.Context) error {
		var err error
		res, err = job.Run(ctx)
		return err
	})
	fmt.Printf("closed: %d, generated: %d\n", res.Closed, res.Generated)
	return err
}

func createTeacher(ctx context.Context, cfg *config.Config, store *db.Store, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("create-teacher", flag.ExitOnError)
	email := fs.String("email", "", "email преподавателя")
	password := fs.String("password", "", "пароль, не короче 8 символов")
	first := fs.String("first", "", "имя")
	last := fs.String("last", "", "фамилия")
	_ = fs.Parse(args)

	svc := app.NewServices(cfg, store, logger)
	u, err := svc.Auth.Register(ctx, auth.RegisterInput{
		Email:     *email,
		Password:  *password,
		FirstName: *first,
		LastName:  *last,
		Role:      models.Teacher,
	})
	if err != nil {
		return err
	}
	fmt.Printf("teacher created: id=%d email=%s\n", u.ID, u.Email)
	return nil
}
