package docstore

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore backs the Store contract with Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore initializes the Firebase app and opens a Firestore
// client. Credentials fall back to application-default when no service
// account file is configured.
func NewFirestoreStore(ctx context.Context, projectID, serviceAccountPath string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if serviceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, err
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("docstore: connected to Firestore project %s", projectID)
	return &FirestoreStore{client: client}, nil
}

func (f *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (f *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	_, err := f.client.Collection(collection).Doc(id).Set(ctx, data)
	return err
}

func (f *FirestoreStore) Update(ctx context.Context, collection, id string, data map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	_, err := f.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (f *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := f.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

func (f *FirestoreStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	q := f.query(collection, filters)
	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (f *FirestoreStore) Subscribe(ctx context.Context, collection string, filters ...Filter) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	iter := f.query(collection, filters).Snapshots(subCtx)

	updates := make(chan []Document, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(updates)
		for {
			qs, err := iter.Next()
			if err != nil {
				if subCtx.Err() == nil {
					errs <- err
				}
				return
			}
			var docs []Document
			docIter := qs.Documents
			for {
				snap, err := docIter.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					errs <- err
					return
				}
				docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
			}
			select {
			case updates <- docs:
			default:
			}
		}
	}()

	stop := func() {
		cancel()
		iter.Stop()
	}
	return &Subscription{Updates: updates, Errors: errs, stop: stop}, nil
}

func (f *FirestoreStore) Batch() Batch {
	return &firestoreBatch{client: f.client, batch: f.client.Batch()}
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

func (f *FirestoreStore) query(collection string, filters []Filter) firestore.Query {
	q := f.client.Collection(collection).Query
	for _, flt := range filters {
		q = q.Where(flt.Field, "==", flt.Value)
	}
	return q
}

type firestoreBatch struct {
	client *firestore.Client
	batch  *firestore.WriteBatch
}

func (b *firestoreBatch) Set(collection, id string, data map[string]interface{}) {
	b.batch.Set(b.client.Collection(collection).Doc(id), data)
}

func (b *firestoreBatch) Delete(collection, id string) {
	b.batch.Delete(b.client.Collection(collection).Doc(id))
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	_, err := b.batch.Commit(ctx)
	return err
}
