package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/nhle/deadliner/internal/credential"
	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/store"
)

// openBackend constructs the configured persistence backend and returns it
// with its closer.
func openBackend(ctx context.Context, cfg *model.AppConfig, log zerolog.Logger) (store.Backend, func() error, error) {
	switch cfg.Backend {
	case model.BackendFirestore:
		opts := firestoreOptions(cfg.Firestore, log)
		s, err := store.NewFirestoreStore(ctx, store.FirestoreConfig{
			ProjectID:  cfg.Firestore.ProjectID,
			DatabaseID: cfg.Firestore.DatabaseID,
			Collection: cfg.Firestore.Collection,
		}, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		s, err := store.NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// firestoreOptions picks credentials: an explicit file, then the keyring,
// then application default credentials.
func firestoreOptions(cfg model.FirestoreConfig, log zerolog.Logger) []option.ClientOption {
	if cfg.CredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
	}

	key := cfg.CredentialsKey
	if key == "" {
		key = credential.FirestoreKey
	}

	vault, err := credential.Open()
	if err != nil {
		log.Debug().Err(err).Msg("keyring unavailable, using default credentials")
		return nil
	}
	creds, err := vault.Get(key)
	if errors.Is(err, credential.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("reading firestore credentials from keyring")
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
}
