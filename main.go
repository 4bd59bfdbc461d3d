package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pixeluwjal/sanghaforms-sub002/app"
	"github.com/pixeluwjal/sanghaforms-sub002/auth"
	"github.com/pixeluwjal/sanghaforms-sub002/config"
	"github.com/pixeluwjal/sanghaforms-sub002/database"
	"github.com/pixeluwjal/sanghaforms-sub002/log"
	"github.com/pixeluwjal/sanghaforms-sub002/model"
	"github.com/pixeluwjal/sanghaforms-sub002/routes"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	if err := bootstrapAdmin(db, cfg); err != nil {
		log.Fatal("main.bootstrap_admin:", err)
	}

	app := app.App{
		DB:        db,
		TokenAuth: auth.New(cfg.TokenSecret),
		Config:    cfg,
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}

// bootstrapAdmin creates the configured super admin when no account with
// that email exists yet, so a fresh deployment can be logged into.
func bootstrapAdmin(db *sql.DB, cfg config.Config) error {
	if cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		return nil
	}

	ctx := context.Background()
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM admins WHERE email = ?`, cfg.BootstrapEmail).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = db.ExecContext(ctx, `
		INSERT INTO admins (id, email, password_hash, role, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), cfg.BootstrapEmail, string(hash),
		model.RoleSuperAdmin, model.AdminActive, now, now,
	)
	if err != nil {
		return err
	}

	log.Infof("bootstrapped super admin %s", cfg.BootstrapEmail)
	return nil
}
