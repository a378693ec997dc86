package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/saml-front/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultFirestoreCollection holds one document per tracked user
const DefaultFirestoreCollection = "saml_front_users"

// FirestoreStorage tracks users in Google Cloud Firestore
type FirestoreStorage struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

var _ Storage = (*FirestoreStorage)(nil)

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		collection = DefaultFirestoreCollection
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if database != "" && database != firestore.DefaultDatabaseID {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Using Firestore user storage", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStorage{
		client:     client,
		collection: collection,
		now:        time.Now,
	}, nil
}

func (s *FirestoreStorage) users() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// UpsertUser creates or updates a user's last seen time
func (s *FirestoreStorage) UpsertUser(ctx context.Context, username, realm string) error {
	ref := s.users().Doc(userKey(username, realm))
	now := s.now()

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if err == nil {
			return tx.Update(ref, []firestore.Update{
				{Path: "last_seen", Value: now},
			})
		}
		if status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to get user from Firestore: %w", err)
		}
		return tx.Set(ref, TrackedUser{
			Username:  username,
			Realm:     realm,
			FirstSeen: now,
			LastSeen:  now,
		})
	})
}

// RecordLogout stamps the user's last logout time
func (s *FirestoreStorage) RecordLogout(ctx context.Context, username, realm string) error {
	_, err := s.users().Doc(userKey(username, realm)).Update(ctx, []firestore.Update{
		{Path: "last_logout", Value: s.now()},
	})
	if status.Code(err) == codes.NotFound {
		return ErrUserNotFound
	}
	return err
}

// GetAllUsers returns all users ordered by realm and username
func (s *FirestoreStorage) GetAllUsers(ctx context.Context) ([]TrackedUser, error) {
	iter := s.users().Documents(ctx)
	defer iter.Stop()

	users := []TrackedUser{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate users: %w", err)
		}

		var user TrackedUser
		if err := doc.DataTo(&user); err != nil {
			log.LogError("Failed to unmarshal user %s: %v", doc.Ref.ID, err)
			continue
		}
		users = append(users, user)
	}

	sortUsers(users)
	return users, nil
}

// PruneUsers removes users last seen before the cutoff
func (s *FirestoreStorage) PruneUsers(ctx context.Context, before time.Time) (int, error) {
	iter := s.users().Where("last_seen", "<", before).Documents(ctx)
	defer iter.Stop()

	removed := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("failed to iterate stale users: %w", err)
		}

		if _, err := doc.Ref.Delete(ctx); err != nil {
			log.LogError("Failed to delete stale user %s: %v", doc.Ref.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Close closes the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
