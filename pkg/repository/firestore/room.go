package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type roomDoc struct {
	ID        types.RoomID `firestore:"ID"`
	CreatedAt time.Time    `firestore:"CreatedAt"`
}

type participantDoc struct {
	ID        types.ParticipantID `firestore:"ID"`
	UserID    types.UserID        `firestore:"UserID"`
	RoomID    types.RoomID        `firestore:"RoomID"`
	UserState types.UserState     `firestore:"UserState,omitempty"`
	CreatedAt time.Time           `firestore:"CreatedAt"`
}

type roomRepository struct {
	client           *firestore.Client
	collectionPrefix string
	accounts         *accountRepository
}

func newRoomRepository(client *firestore.Client) *roomRepository {
	return &roomRepository{client: client}
}

func (r *roomRepository) rooms() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "rooms")
}

func (r *roomRepository) participants() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "participants")
}

// participantDocID gives a stable document ID so AddParticipant is a
// natural upsert.
func participantDocID(roomID types.RoomID, userID types.UserID) string {
	return types.DeterministicID(string(roomID) + ":" + string(userID))
}

func (r *roomRepository) Create(ctx context.Context, roomID types.RoomID) (types.RoomID, error) {
	if roomID == "" {
		roomID = types.NewRoomID()
	}

	docRef := r.rooms().Doc(string(roomID))
	if _, err := docRef.Get(ctx); err == nil {
		return roomID, nil
	} else if status.Code(err) != codes.NotFound {
		return "", wrapStorage(err, "failed to check room existence", goerr.V("roomID", roomID))
	}

	if _, err := docRef.Set(ctx, &roomDoc{ID: roomID, CreatedAt: time.Now().UTC()}); err != nil {
		return "", wrapStorage(err, "failed to create room", goerr.V("roomID", roomID))
	}
	return roomID, nil
}

func (r *roomRepository) Exists(ctx context.Context, roomID types.RoomID) (bool, error) {
	_, err := r.rooms().Doc(string(roomID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, wrapStorage(err, "failed to get room", goerr.V("roomID", roomID))
	}
	return true, nil
}

func (r *roomRepository) Remove(ctx context.Context, roomID types.RoomID) error {
	iter := r.participants().Where("RoomID", "==", roomID).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return wrapStorage(err, "failed to iterate participants for removal", goerr.V("roomID", roomID))
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return wrapStorage(err, "failed to delete participant", goerr.V("roomID", roomID))
		}
	}

	if _, err := r.rooms().Doc(string(roomID)).Delete(ctx); err != nil {
		return wrapStorage(err, "failed to delete room", goerr.V("roomID", roomID))
	}
	return nil
}

func (r *roomRepository) AddParticipant(ctx context.Context, userID types.UserID, roomID types.RoomID) error {
	docRef := r.participants().Doc(participantDocID(roomID, userID))
	if _, err := docRef.Get(ctx); err == nil {
		return nil
	} else if status.Code(err) != codes.NotFound {
		return wrapStorage(err, "failed to check participant", goerr.V("roomID", roomID), goerr.V("userID", userID))
	}

	doc := &participantDoc{
		ID:        types.NewParticipantID(),
		UserID:    userID,
		RoomID:    roomID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := docRef.Set(ctx, doc); err != nil {
		return wrapStorage(err, "failed to add participant", goerr.V("roomID", roomID), goerr.V("userID", userID))
	}
	return nil
}

func (r *roomRepository) RemoveParticipant(ctx context.Context, userID types.UserID, roomID types.RoomID) error {
	if _, err := r.participants().Doc(participantDocID(roomID, userID)).Delete(ctx); err != nil {
		return wrapStorage(err, "failed to remove participant", goerr.V("roomID", roomID), goerr.V("userID", userID))
	}
	return nil
}

func (r *roomRepository) ParticipantsForRoom(ctx context.Context, roomID types.RoomID) ([]types.UserID, error) {
	iter := r.participants().Where("RoomID", "==", roomID).Documents(ctx)
	defer iter.Stop()

	var ids []types.UserID
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStorage(err, "failed to iterate participants", goerr.V("roomID", roomID))
		}
		var d participantDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, wrapStorage(err, "failed to unmarshal participant", goerr.V("roomID", roomID))
		}
		ids = append(ids, d.UserID)
	}
	return ids, nil
}

func (r *roomRepository) RoomsForParticipant(ctx context.Context, userID types.UserID) ([]types.RoomID, error) {
	iter := r.participants().Where("UserID", "==", userID).Documents(ctx)
	defer iter.Stop()

	var ids []types.RoomID
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStorage(err, "failed to iterate rooms for participant", goerr.V("userID", userID))
		}
		var d participantDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, wrapStorage(err, "failed to unmarshal participant", goerr.V("userID", userID))
		}
		ids = append(ids, d.RoomID)
	}
	return ids, nil
}

func (r *roomRepository) RoomsForParticipants(ctx context.Context, userIDs []types.UserID) ([]types.RoomID, error) {
	seen := make(map[types.RoomID]bool)
	var ids []types.RoomID
	for _, userID := range userIDs {
		rooms, err := r.RoomsForParticipant(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, roomID := range rooms {
			if !seen[roomID] {
				seen[roomID] = true
				ids = append(ids, roomID)
			}
		}
	}
	return ids, nil
}

func (r *roomRepository) ParticipantUserState(ctx context.Context, roomID types.RoomID, userID types.UserID) (types.UserState, error) {
	doc, err := r.participants().Doc(participantDocID(roomID, userID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.UserStateNone, nil
		}
		return types.UserStateNone, wrapStorage(err, "failed to get participant state",
			goerr.V("roomID", roomID), goerr.V("userID", userID))
	}

	var d participantDoc
	if err := doc.DataTo(&d); err != nil {
		return types.UserStateNone, wrapStorage(err, "failed to unmarshal participant",
			goerr.V("roomID", roomID), goerr.V("userID", userID))
	}
	return d.UserState, nil
}

func (r *roomRepository) SetParticipantUserState(ctx context.Context, roomID types.RoomID, userID types.UserID, state types.UserState) error {
	docRef := r.participants().Doc(participantDocID(roomID, userID))

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return wrapStorage(err, "failed to get participant",
				goerr.V("roomID", roomID), goerr.V("userID", userID))
		}
		created := &participantDoc{
			ID:        types.NewParticipantID(),
			UserID:    userID,
			RoomID:    roomID,
			UserState: state,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := docRef.Set(ctx, created); err != nil {
			return wrapStorage(err, "failed to create participant",
				goerr.V("roomID", roomID), goerr.V("userID", userID))
		}
		return nil
	}

	var d participantDoc
	if err := doc.DataTo(&d); err != nil {
		return wrapStorage(err, "failed to unmarshal participant",
			goerr.V("roomID", roomID), goerr.V("userID", userID))
	}
	d.UserState = state
	if _, err := docRef.Set(ctx, &d); err != nil {
		return wrapStorage(err, "failed to update participant state",
			goerr.V("roomID", roomID), goerr.V("userID", userID))
	}
	return nil
}

func (r *roomRepository) ActorsForRoom(ctx context.Context, roomID types.RoomID) ([]*model.Account, error) {
	userIDs, err := r.ParticipantsForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	actors := make([]*model.Account, 0, len(userIDs))
	for _, userID := range userIDs {
		account, err := r.accounts.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if account != nil {
			actors = append(actors, account)
		}
	}
	return actors, nil
}
