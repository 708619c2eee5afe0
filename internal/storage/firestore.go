package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultFirestoreCollection is the root collection for kit state.
const DefaultFirestoreCollection = "notifykit_kv"

// FirestoreStore backs the key-value collaborator with Google Cloud
// Firestore, one document per key.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// kvRecord is the internal document representation. The raw key is kept
// in the document because the document id is a hash of it.
type kvRecord struct {
	Key       string    `firestore:"key"`
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestoreStore wraps an existing firestore client. An empty
// collection name falls back to DefaultFirestoreCollection.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultFirestoreCollection
	}
	return &FirestoreStore{client: client, collection: collection}
}

// docRef hashes the key for the document id to keep arbitrary key bytes
// out of document paths and avoid hot-spotting on common prefixes.
func (s *FirestoreStore) docRef(key string) *firestore.DocumentRef {
	sum := sha256.Sum256([]byte(key))
	return s.client.Collection(s.collection).Doc(hex.EncodeToString(sum[:]))
}

func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	snap, err := s.docRef(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("firestore get failed: %w", err)
	}

	var record kvRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, false, fmt.Errorf("firestore record decode failed: %w", err)
	}
	return record.Value, true, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.docRef(key).Set(ctx, kvRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	})
	return err
}

func (s *FirestoreStore) Remove(ctx context.Context, key string) error {
	_, err := s.docRef(key).Delete(ctx)
	return err
}

func (s *FirestoreStore) Clear(ctx context.Context) error {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("firestore iteration failed: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *FirestoreStore) Keys(ctx context.Context) ([]string, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var keys []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}
		var record kvRecord
		if err := doc.DataTo(&record); err != nil {
			// Skip corrupt rows rather than failing the listing.
			continue
		}
		keys = append(keys, record.Key)
	}
	return keys, nil
}
