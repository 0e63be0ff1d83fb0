package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore implements interfaces.Repository on Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

var _ interfaces.Repository = (*Firestore)(nil)

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) userDoc(uid string) *firestore.DocumentRef {
	return r.client.Collection(collectionUsers).Doc(uid)
}

func (r *Firestore) memories(uid string) *firestore.CollectionRef {
	return r.userDoc(uid).Collection(collectionMemories)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (r *Firestore) PutMemory(ctx context.Context, memory *model.Memory) error {
	ref := r.memories(memory.UID).NewDoc()
	memory.ID = model.MemoryID(ref.ID)

	wr, err := ref.Create(ctx, memory)
	if err != nil {
		return goerr.Wrap(err, "failed to put memory",
			goerr.V("uid", memory.UID),
			goerr.V("memory_id", memory.ID))
	}

	// zero timestamps were written as server timestamps, which equal the commit time
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = wr.UpdateTime
	}
	if memory.UpdatedAt.IsZero() {
		memory.UpdatedAt = wr.UpdateTime
	}

	return nil
}

func (r *Firestore) ListRecentMemories(ctx context.Context, uid string, limit int) ([]*model.Memory, error) {
	q := r.memories(uid).OrderBy(fieldUpdatedAt, firestore.Desc).Limit(limit)
	return readMemories(q.Documents(ctx), uid)
}

func (r *Firestore) ListMemories(ctx context.Context, uid string, limit int) ([]*model.Memory, error) {
	q := r.memories(uid).Limit(limit)
	return readMemories(q.Documents(ctx), uid)
}

func readMemories(iter *firestore.DocumentIterator, uid string) ([]*model.Memory, error) {
	defer iter.Stop()

	var memories []*model.Memory
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories", goerr.V("uid", uid))
		}

		var memory model.Memory
		if err := doc.DataTo(&memory); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory", goerr.V("memory_id", doc.Ref.ID))
		}
		memory.ID = model.MemoryID(doc.Ref.ID)
		memories = append(memories, &memory)
	}

	return memories, nil
}

func (r *Firestore) UpdateMemoryDecayScore(ctx context.Context, uid string, id model.MemoryID, delta, ceiling float64) (bool, error) {
	ref := r.memories(uid).Doc(string(id))

	var found bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		found = false

		doc, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		found = true

		current := model.InitialDecayScore
		if v, err := doc.DataAt(fieldDecayScore); err == nil {
			switch n := v.(type) {
			case float64:
				current = n
			case int64:
				current = float64(n)
			}
		}

		return tx.Update(ref, []firestore.Update{
			{Path: fieldDecayScore, Value: nextDecayScore(current, delta, ceiling)},
			{Path: fieldUpdatedAt, Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to update decay score",
			goerr.V("uid", uid),
			goerr.V("memory_id", id))
	}

	return found, nil
}

func (r *Firestore) SetMemoryPinned(ctx context.Context, uid string, id model.MemoryID, pinned bool) error {
	ref := r.memories(uid).Doc(string(id))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if isNotFound(err) {
				return model.ErrMemoryNotFound
			}
			return err
		}

		return tx.Update(ref, []firestore.Update{
			{Path: fieldPinned, Value: pinned},
			{Path: fieldUpdatedAt, Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to set pinned",
			goerr.V("uid", uid),
			goerr.V("memory_id", id))
	}

	return nil
}

func (r *Firestore) rateLimitDoc(uid string) *firestore.DocumentRef {
	return r.client.Collection(collectionRateLimits).Doc(uid)
}

func readWindow(doc *firestore.DocumentSnapshot) (*model.RateLimitWindow, error) {
	var window model.RateLimitWindow
	if err := doc.DataTo(&window); err != nil {
		return nil, goerr.Wrap(err, "failed to decode rate limit window")
	}
	return &window, nil
}

// AppendRateLimitEvent is a plain merge write. Enforcement happens
// in UpdateRateLimitWindow.
func (r *Firestore) AppendRateLimitEvent(ctx context.Context, uid string, ts int64) error {
	ref := r.rateLimitDoc(uid)

	var events []int64
	doc, err := ref.Get(ctx)
	switch {
	case err == nil:
		window, err := readWindow(doc)
		if err != nil {
			return err
		}
		events = window.Events
	case isNotFound(err):
	default:
		return goerr.Wrap(err, "failed to get rate limit window", goerr.V("uid", uid))
	}

	events = append(events, ts)
	if _, err := ref.Set(ctx, map[string]any{fieldEvents: events}, firestore.MergeAll); err != nil {
		return goerr.Wrap(err, "failed to append rate limit event", goerr.V("uid", uid))
	}

	return nil
}

func (r *Firestore) UpdateRateLimitWindow(ctx context.Context, uid string, update interfaces.RateLimitUpdate) error {
	ref := r.rateLimitDoc(uid)

	// the update verdict is returned after commit so that a rejected call
	// still persists its pruned window
	var verdict error
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var events []int64
		doc, err := tx.Get(ref)
		switch {
		case err == nil:
			window, err := readWindow(doc)
			if err != nil {
				return err
			}
			events = window.Events
		case isNotFound(err):
		default:
			return err
		}

		next, uerr := update(events)
		verdict = uerr
		return tx.Set(ref, map[string]any{fieldEvents: next}, firestore.MergeAll)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to update rate limit window", goerr.V("uid", uid))
	}

	return verdict
}

func (r *Firestore) GetProfile(ctx context.Context, uid string) (*model.Profile, error) {
	doc, err := r.userDoc(uid).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return &model.Profile{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get profile", goerr.V("uid", uid))
	}

	var profile model.Profile
	if err := doc.DataTo(&profile); err != nil {
		return nil, goerr.Wrap(err, "failed to decode profile", goerr.V("uid", uid))
	}

	return &profile, nil
}

func (r *Firestore) ListOpenGoals(ctx context.Context, uid string, limit int) ([]*model.Goal, error) {
	// A status != done query drops goals without a status field, so done goals are skipped here
	// and iteration stops once limit open goals are read.
	iter := r.userDoc(uid).Collection(collectionGoals).Documents(ctx)
	defer iter.Stop()

	var goals []*model.Goal
	for len(goals) < limit {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate goals", goerr.V("uid", uid))
		}

		var goal model.Goal
		if err := doc.DataTo(&goal); err != nil {
			return nil, goerr.Wrap(err, "failed to decode goal", goerr.V("goal_id", doc.Ref.ID))
		}
		if goal.Status == model.GoalStatusDone {
			continue
		}
		goal.ID = doc.Ref.ID
		goals = append(goals, &goal)
	}

	return goals, nil
}

func (r *Firestore) GetLatestSessionSummary(ctx context.Context, uid string) (*model.SessionSummary, error) {
	iter := r.userDoc(uid).Collection(collectionSessionSummaries).
		OrderBy(fieldCreatedAt, firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session summary", goerr.V("uid", uid))
	}

	var summary model.SessionSummary
	if err := doc.DataTo(&summary); err != nil {
		return nil, goerr.Wrap(err, "failed to decode session summary", goerr.V("uid", uid))
	}

	return &summary, nil
}
