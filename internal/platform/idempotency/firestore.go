package idempotency

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/hmcts/sscs-hearings-api/internal/platform/firestore"
)

const (
	defaultCollection   = "hmc_message_ledger"
	defaultCleanupLimit = 100
)

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name used for ledger entries.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name = strings.TrimSpace(name); name != "" {
			store.collection = name
		}
	}
}

// FirestoreStore implements Store on Firestore. Reservations run in a transaction
// so two instances receiving the same delivery cannot both own it.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
}

// NewFirestoreStore constructs a Firestore-backed ledger.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{provider: provider, collection: defaultCollection}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

type ledgerDocument struct {
	Key       string    `firestore:"key"`
	Status    string    `firestore:"status"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

func (d ledgerDocument) record() Record {
	return Record{Key: d.Key, Status: Status(d.Status), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, ExpiresAt: d.ExpiresAt}
}

func documentFrom(r Record) ledgerDocument {
	return ledgerDocument{Key: r.Key, Status: string(r.Status), CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, ExpiresAt: r.ExpiresAt}
}

func (s *FirestoreStore) ref(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(documentID(key)), nil
}

// Reserve implements Store.
func (s *FirestoreStore) Reserve(ctx context.Context, key string, now time.Time, pendingHold time.Duration) (Reservation, error) {
	if strings.TrimSpace(key) == "" {
		return Reservation{}, ErrEmptyKey
	}
	now = now.UTC()
	if pendingHold <= 0 {
		pendingHold = DefaultPendingHold
	}
	ref, err := s.ref(ctx, key)
	if err != nil {
		return Reservation{}, err
	}

	var result Reservation
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var existing *Record
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var doc ledgerDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			record := doc.record()
			existing = &record
		case !pfirestore.IsNotFound(pfirestore.WrapError("ledger get", err)):
			return err
		}

		next, state := decide(existing, key, now, pendingHold)
		if next == nil {
			result = Reservation{State: state, Record: *existing}
			return nil
		}
		result = Reservation{State: state, Record: *next}
		return tx.Set(ref, documentFrom(*next))
	})
	return result, err
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key string, now time.Time, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]any{
		"key":        key,
		"status":     string(StatusCompleted),
		"updated_at": now,
		"expires_at": now.Add(ttl),
	}, firestore.MergeAll)
	return pfirestore.WrapError("ledger complete", err)
}

// Release implements Store.
func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && !pfirestore.IsNotFound(pfirestore.WrapError("ledger release", err)) {
		return pfirestore.WrapError("ledger release", err)
	}
	return nil
}

// CleanupExpired implements Store.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultCleanupLimit
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := client.Collection(s.collection).Where("expires_at", "<=", now.UTC()).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return 0, pfirestore.WrapError("ledger cleanup query", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	bw := client.BulkWriter(ctx)
	for _, doc := range docs {
		if _, err := bw.Delete(doc.Ref); err != nil {
			bw.End()
			return 0, pfirestore.WrapError("ledger cleanup", err)
		}
	}
	bw.End()
	return len(docs), nil
}
