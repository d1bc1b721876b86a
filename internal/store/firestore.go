package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/ordering"
)

// FirestoreConfig identifies the remote collection.
type FirestoreConfig struct {
	ProjectID  string
	DatabaseID string
	Collection string
}

// FirestoreStore is a Backend over a Firestore collection, one document per
// deadline. Document IDs are the deadline IDs.
type FirestoreStore struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
}

var _ Backend = (*FirestoreStore)(nil)

// NewFirestoreStore connects to the configured collection. Client options
// carry credentials; FIRESTORE_EMULATOR_HOST is honoured by the client.
func NewFirestoreStore(
	ctx context.Context,
	cfg FirestoreConfig,
	opts ...option.ClientOption,
) (*FirestoreStore, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project id must not be empty")
	}
	if cfg.Collection == "" {
		cfg.Collection = "deadlines"
	}

	var (
		client *firestore.Client
		err    error
	)
	if cfg.DatabaseID == "" || cfg.DatabaseID == firestore.DefaultDatabaseID {
		client, err = firestore.NewClient(ctx, cfg.ProjectID, opts...)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, cfg.ProjectID, cfg.DatabaseID, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &FirestoreStore{
		client: client,
		coll:   client.Collection(cfg.Collection),
	}, nil
}

// Close releases the client's connections.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// LoadAll reads every document in the collection, including ones without a
// dueAt field, and returns them ordered by due instant.
func (s *FirestoreStore) LoadAll(ctx context.Context) ([]model.Deadline, error) {
	iter := s.coll.Documents(ctx)
	defer iter.Stop()

	ds := []model.Deadline{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing deadlines: %w", err)
		}
		ds = append(ds, decodeDocument(snap))
	}
	return ordering.Deadlines(ds), nil
}

// Insert adds d as a new document. A non-empty d.ID is used as the document
// ID; otherwise Firestore generates one.
func (s *FirestoreStore) Insert(ctx context.Context, d model.Deadline) (string, error) {
	if d.ID != "" {
		if _, err := s.coll.Doc(d.ID).Create(ctx, d); err != nil {
			return "", fmt.Errorf("creating deadline %s: %w", d.ID, err)
		}
		return d.ID, nil
	}

	ref, _, err := s.coll.Add(ctx, d)
	if err != nil {
		return "", fmt.Errorf("adding deadline: %w", err)
	}
	return ref.ID, nil
}

// Update writes only the fields set in p, so concurrent edits of different
// fields both survive.
func (s *FirestoreStore) Update(ctx context.Context, id string, p model.Patch) error {
	_, err := s.coll.Doc(id).Update(ctx, patchUpdates(p), firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return &NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("updating deadline %s: %w", id, err)
	}
	return nil
}

// Delete removes a document. Firestore treats deleting a missing document as
// success.
func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("deleting deadline %s: %w", id, err)
	}
	return nil
}

// ReplaceAll writes ds and deletes every other document in the collection.
// Writes are not atomic across documents.
func (s *FirestoreStore) ReplaceAll(ctx context.Context, ds []model.Deadline) error {
	keep := make(map[string]bool, len(ds))
	for _, d := range ds {
		if d.ID == "" {
			return errors.New("snapshot deadline without id")
		}
		keep[d.ID] = true
	}

	bw := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob

	refs := s.coll.DocumentRefs(ctx)
	for {
		ref, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("listing deadline documents: %w", err)
		}
		if keep[ref.ID] {
			continue
		}
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("queueing delete of %s: %w", ref.ID, err)
		}
		jobs = append(jobs, job)
	}

	for _, d := range ds {
		job, err := bw.Set(s.coll.Doc(d.ID), d)
		if err != nil {
			bw.End()
			return fmt.Errorf("queueing write of %s: %w", d.ID, err)
		}
		jobs = append(jobs, job)
	}

	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("replacing deadlines: %w", err)
		}
	}
	return nil
}

// decodeDocument reads fields leniently: a missing or mistyped field becomes
// the empty string instead of failing the whole load.
func decodeDocument(snap *firestore.DocumentSnapshot) model.Deadline {
	data := snap.Data()
	return model.Deadline{
		ID:             snap.Ref.ID,
		CourseName:     stringField(data, "courseName"),
		AssignmentName: stringField(data, "assignmentName"),
		DueDate:        stringField(data, "dueDate"),
		DueTime:        stringField(data, "dueTime"),
		DueAt:          stringField(data, "dueAt"),
		ColorStatus:    model.ColorStatus(stringField(data, "colorStatus")),
		CreatedAt:      stringField(data, "createdAt"),
		UpdatedAt:      stringField(data, "updatedAt"),
	}
}

func stringField(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func patchUpdates(p model.Patch) []firestore.Update {
	var ups []firestore.Update
	for _, f := range []struct {
		path string
		v    *string
	}{
		{"courseName", p.CourseName},
		{"assignmentName", p.AssignmentName},
		{"dueDate", p.DueDate},
		{"dueTime", p.DueTime},
		{"dueAt", p.DueAt},
	} {
		if f.v != nil {
			ups = append(ups, firestore.Update{Path: f.path, Value: *f.v})
		}
	}
	return append(ups,
		firestore.Update{Path: "colorStatus", Value: string(p.ColorStatus)},
		firestore.Update{Path: "updatedAt", Value: p.UpdatedAt},
	)
}
