package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"speakwise/internal/adapters/email"
	"speakwise/internal/adapters/mx"
	"speakwise/internal/domain"
	"speakwise/internal/importer"
	"speakwise/internal/repository/postgres"
	"speakwise/internal/services"
)

// deps is the object graph shared by the serve and import commands.
type deps struct {
	db         *sql.DB
	attendance domain.AttendanceService
}

func (d *deps) Close() error {
	return d.db.Close()
}

func openDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (a *app) buildDeps(ctx context.Context) (*deps, error) {
	db, err := openDB(ctx, a.cfg.DBUrl)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	eventRepo := postgres.NewEventRepository(db)
	attendanceRepo := postgres.NewAttendanceRepository(db)

	var domains importer.DomainChecker
	if a.cfg.Import.CheckDeliverability {
		domains = mx.NewChecker(nil, mx.Config{}, a.logger)
	}
	opts := importer.DefaultOptions()
	opts.MaxUploadBytes = a.cfg.Import.MaxUploadBytes
	opts.BatchSize = a.cfg.Import.BatchSize
	opts.ProcessTimeout = a.cfg.Import.ProcessTimeout
	if a.cfg.Import.TempDir != "" {
		opts.TempDir = a.cfg.Import.TempDir
	}
	imp := importer.New(attendanceRepo, importer.NewEmailValidator(domains), opts, a.logger)

	var emailService domain.EmailService
	if a.cfg.Import.NotifyAttendees {
		mailer, err := email.NewMailer(email.MailerConfig{
			Provider:    a.cfg.Mail.Provider,
			FromAddress: a.cfg.Mail.FromAddress,
			FromName:    a.cfg.Mail.FromName,
			SES: email.SESConfig{
				Region:             a.cfg.Mail.SESRegion,
				AccessKeyID:        a.cfg.Mail.SESAccessKeyID,
				SecretAccessKey:    a.cfg.Mail.SESSecretAccessKey,
				InsecureSkipVerify: a.cfg.Mail.SESInsecureSkipTLS,
			},
		}, a.logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		renderer, err := email.NewTemplateRenderer()
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		emailService = services.NewEmailService(mailer, renderer, a.logger)
	}

	svc := services.NewAttendanceService(services.AttendanceServiceConfig{
		EventRepo:      eventRepo,
		AttendanceRepo: attendanceRepo,
		Importer:       imp,
		// Verification and feedback lookups only need the canonical form.
		Emails:       importer.NewEmailValidator(nil),
		EmailService: emailService,
		Notify:       a.cfg.Import.NotifyAttendees,
		Logger:       a.logger,
	})
	return &deps{db: db, attendance: svc}, nil
}
