package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gpavault/internal/gpa/models"
	"gpavault/pkg/platform/sentinel"
	"gpavault/pkg/requestcontext"
)

// firestoreRecord is the persisted document shape.
type firestoreRecord struct {
	RegistrationNumber string             `firestore:"registrationNumber"`
	Gpas               map[string]float64 `firestore:"gpas"`
	CreatedAt          time.Time          `firestore:"createdAt"`
	UpdatedAt          time.Time          `firestore:"updatedAt"`
}

// FirestoreStore keeps one document per record. Document IDs are the
// base64url encoding of the registration number, so any key maps to a legal,
// collision-free ID.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore constructs a store over the given collection.
func NewFirestore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &FirestoreStore{client: client, collection: collection}
}

// FirestoreDocID returns the document ID used for a registration number.
func FirestoreDocID(registrationNumber string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(registrationNumber))
}

func (s *FirestoreStore) doc(registrationNumber string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(FirestoreDocID(registrationNumber))
}

func (s *FirestoreStore) Get(ctx context.Context, registrationNumber string) (*models.Record, error) {
	snap, err := s.doc(registrationNumber).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get gpa document: %w", err)
	}
	var doc firestoreRecord
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode gpa document: %w", err)
	}
	if doc.Gpas == nil {
		doc.Gpas = map[string]float64{}
	}
	return &models.Record{
		RegistrationNumber: registrationNumber,
		Gpas:               doc.Gpas,
		CreatedAt:          doc.CreatedAt.UTC(),
		UpdatedAt:          doc.UpdatedAt.UTC(),
	}, nil
}

// MergeGpas writes each semester as a leaf field path inside a transaction,
// so unspecified semesters are kept and createdAt is only set once.
func (s *FirestoreStore) MergeGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	return s.write(ctx, registrationNumber, gpas, false)
}

func (s *FirestoreStore) ReplaceGpas(ctx context.Context, registrationNumber string, gpas map[string]float64) error {
	return s.write(ctx, registrationNumber, gpas, true)
}

func (s *FirestoreStore) write(ctx context.Context, registrationNumber string, gpas map[string]float64, replace bool) error {
	now := requestcontext.Now(ctx)
	ref := s.doc(registrationNumber)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		exists := err == nil && snap.Exists()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		if !exists {
			if gpas == nil {
				gpas = map[string]float64{}
			}
			return tx.Create(ref, firestoreRecord{
				RegistrationNumber: registrationNumber,
				Gpas:               gpas,
				CreatedAt:          now,
				UpdatedAt:          now,
			})
		}

		updates := []firestore.Update{{Path: "updatedAt", Value: now}}
		if replace {
			if gpas == nil {
				gpas = map[string]float64{}
			}
			updates = append(updates, firestore.Update{Path: "gpas", Value: gpas})
		} else {
			for semester, gpa := range gpas {
				updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{"gpas", semester}, Value: gpa})
			}
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("write gpa document: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("write gpa document: %w", err)
	}
	return nil
}

// Ping reads a non-existent document to check connectivity.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	_, err := s.client.Collection(s.collection).Doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// Close closes the client.
func (s *FirestoreStore) Close(context.Context) error {
	return s.client.Close()
}
