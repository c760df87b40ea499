package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/promodash/dash-front/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreBackend stores session records in Google Cloud Firestore so that
// server-mode sessions survive restarts and are shared across instances.
//
// Error handling strategy: read paths return errors (a session that cannot be
// read is a logged-out session upstream), the expiry sweep logs and continues.
type FirestoreBackend struct {
	client     *firestore.Client
	collection string
}

var _ Backend = (*FirestoreBackend)(nil)

// sessionDoc is the Firestore document shape for a session record
type sessionDoc struct {
	Bundle    []byte    `firestore:"bundle"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// NewFirestoreBackend creates a Firestore-backed session record store
func NewFirestoreBackend(ctx context.Context, projectID, database, collection string) (*FirestoreBackend, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	if collection == "" {
		collection = "dash_front_sessions"
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Firestore session backend ready", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreBackend{
		client:     client,
		collection: collection,
	}, nil
}

// Close releases the underlying Firestore client
func (f *FirestoreBackend) Close() error {
	return f.client.Close()
}

// Put stores or overwrites a record
func (f *FirestoreBackend) Put(ctx context.Context, rec Record) error {
	doc := sessionDoc{
		Bundle:    rec.Bundle,
		ExpiresAt: rec.ExpiresAt,
	}

	if _, err := f.client.Collection(f.collection).Doc(rec.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("writing session record: %w", err)
	}
	return nil
}

// Get returns the record, treating missing and expired documents as absent
func (f *FirestoreBackend) Get(ctx context.Context, id string) (Record, error) {
	snap, err := f.client.Collection(f.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("reading session record: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return Record{}, fmt.Errorf("decoding session record: %w", err)
	}

	rec := Record{ID: id, Bundle: doc.Bundle, ExpiresAt: doc.ExpiresAt}
	if rec.Expired(time.Now()) {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

// Delete removes the record; deleting a missing record is not an error
func (f *FirestoreBackend) Delete(ctx context.Context, id string) error {
	if _, err := f.client.Collection(f.collection).Doc(id).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("deleting session record: %w", err)
	}
	return nil
}

// DeleteExpired sweeps records past their expiry
func (f *FirestoreBackend) DeleteExpired(ctx context.Context) (int, error) {
	iter := f.client.Collection(f.collection).
		Where("expires_at", "<", time.Now()).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("iterating expired session records: %w", err)
		}

		if _, err := snap.Ref.Delete(ctx); err != nil {
			log.LogErrorWithFields("storage", "Failed to delete expired session record", map[string]any{
				"id":    snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}
		count++
	}

	return count, nil
}
