package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/sitecraft/sitecraft-backend/config"
)

// NewFirebaseApp initializes the Firebase Admin SDK. The same app backs token
// verification and the Cloud Storage blob store.
func NewFirebaseApp(ctx context.Context, cfg *config.FirebaseConfig) (*firebase.App, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" || cfg.StorageBucket != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID, StorageBucket: cfg.StorageBucket}
	}

	app, err := firebase.NewApp(ctx, fbCfg, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// NewAuthClient returns the Auth client of an initialized app.
func NewAuthClient(ctx context.Context, app *firebase.App) (*fbauth.Client, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}
	return client, nil
}
