package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/models"
	"github.com/noah-isme/credpoints-api/internal/repository"
	"github.com/noah-isme/credpoints-api/internal/service"
	"github.com/noah-isme/credpoints-api/pkg/config"
	"github.com/noah-isme/credpoints-api/pkg/database"
	"github.com/noah-isme/credpoints-api/pkg/logger"
)

// issue-token mints an access token for a seeded user so the API can be
// exercised locally without an external identity provider.
//
//	issue-token -user <id>
//	issue-token -email advisor@example.com
//	issue-token -role ADVISOR   lists active users holding the role
func main() {
	userID := flag.String("user", "", "user id to issue the token for")
	email := flag.String("email", "", "email of the user to issue the token for")
	role := flag.String("role", "", "list active users with this role instead of issuing a token")
	flag.Parse()
	if *userID == "" && *email == "" && *role == "" {
		fmt.Fprintln(os.Stderr, "usage: issue-token -user <id> | -email <email> | -role <role>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	users := repository.NewUserRepository(db)

	if *role != "" {
		r := models.UserRole(strings.ToUpper(*role))
		if !r.Valid() {
			logr.Fatal("unknown role", zap.String("role", *role))
		}
		list, err := users.ListByRole(ctx, r)
		if err != nil {
			logr.Fatal("failed to list users", zap.String("role", *role), zap.Error(err))
		}
		for _, u := range list {
			fmt.Printf("%s\t%s\t%s\n", u.ID, u.Email, u.FullName)
		}
		return
	}

	if *userID == "" {
		user, err := users.FindByEmail(ctx, *email)
		if err != nil {
			logr.Fatal("failed to find user", zap.String("email", *email), zap.Error(err))
		}
		*userID = user.ID
	}

	auth := service.NewAuthService(users, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	token, expiresAt, err := auth.IssueToken(ctx, *userID)
	if err != nil {
		logr.Fatal("failed to issue token", zap.String("user_id", *userID), zap.Error(err))
	}
	fmt.Printf("%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
}
