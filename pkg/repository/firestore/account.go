package firestore

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type accountDoc struct {
	ID       types.UserID   `firestore:"ID"`
	Name     string         `firestore:"Name"`
	Username string         `firestore:"Username,omitempty"`
	Details  map[string]any `firestore:"Details,omitempty"`
}

type accountRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAccountRepository(client *firestore.Client) *accountRepository {
	return &accountRepository{client: client}
}

func (r *accountRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "accounts")
}

func (r *accountRepository) GetByID(ctx context.Context, userID types.UserID) (*model.Account, error) {
	doc, err := r.collection().Doc(string(userID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, wrapStorage(err, "failed to get account", goerr.V("userID", userID))
	}

	var d accountDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, wrapStorage(err, "failed to unmarshal account", goerr.V("userID", userID))
	}
	return &model.Account{ID: d.ID, Name: d.Name, Username: d.Username, Details: d.Details}, nil
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	a := *account
	if a.ID == "" {
		a.ID = types.NewUserID()
	}

	doc := &accountDoc{ID: a.ID, Name: a.Name, Username: a.Username, Details: a.Details}
	if _, err := r.collection().Doc(string(a.ID)).Set(ctx, doc); err != nil {
		return wrapStorage(err, "failed to create account", goerr.V("userID", a.ID))
	}
	return nil
}

type relationshipDoc struct {
	UserA  types.UserID         `firestore:"UserA"`
	UserB  types.UserID         `firestore:"UserB"`
	UserID types.UserID         `firestore:"UserID"`
	Status types.RelationStatus `firestore:"Status"`
}

type relationshipRepository struct {
	client           *firestore.Client
	collectionPrefix string
	rooms            *roomRepository
}

func newRelationshipRepository(client *firestore.Client, rooms *roomRepository) *relationshipRepository {
	return &relationshipRepository{client: client, rooms: rooms}
}

func (r *relationshipRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "relationships")
}

// relationshipDocID is direction-independent so an edge is stored once.
func relationshipDocID(userA, userB types.UserID) string {
	pair := []string{string(userA), string(userB)}
	sort.Strings(pair)
	return types.DeterministicID(pair[0] + ":" + pair[1])
}

func (r *relationshipRepository) Create(ctx context.Context, userA, userB types.UserID) error {
	existing, err := r.Get(ctx, userA, userB)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	roomID, err := r.rooms.Create(ctx, "")
	if err != nil {
		return err
	}
	if err := r.rooms.AddParticipant(ctx, userA, roomID); err != nil {
		return err
	}
	if err := r.rooms.AddParticipant(ctx, userB, roomID); err != nil {
		return err
	}

	doc := &relationshipDoc{
		UserA:  userA,
		UserB:  userB,
		UserID: userA,
		Status: types.RelationFriends,
	}
	if _, err := r.collection().Doc(relationshipDocID(userA, userB)).Set(ctx, doc); err != nil {
		return wrapStorage(err, "failed to create relationship",
			goerr.V("userA", userA), goerr.V("userB", userB))
	}
	return nil
}

func (r *relationshipRepository) Get(ctx context.Context, userA, userB types.UserID) (*model.Relationship, error) {
	doc, err := r.collection().Doc(relationshipDocID(userA, userB)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, wrapStorage(err, "failed to get relationship",
			goerr.V("userA", userA), goerr.V("userB", userB))
	}

	var d relationshipDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, wrapStorage(err, "failed to unmarshal relationship")
	}
	return &model.Relationship{UserA: d.UserA, UserB: d.UserB, UserID: d.UserID, Status: d.Status}, nil
}

func (r *relationshipRepository) ListForUser(ctx context.Context, userID types.UserID) ([]*model.Relationship, error) {
	var result []*model.Relationship
	for _, field := range []string{"UserA", "UserB"} {
		iter := r.collection().Where(field, "==", userID).Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, wrapStorage(err, "failed to list relationships", goerr.V("userID", userID))
			}
			var d relationshipDoc
			if err := doc.DataTo(&d); err != nil {
				iter.Stop()
				return nil, wrapStorage(err, "failed to unmarshal relationship", goerr.V("userID", userID))
			}
			result = append(result, &model.Relationship{UserA: d.UserA, UserB: d.UserB, UserID: d.UserID, Status: d.Status})
		}
		iter.Stop()
	}
	return result, nil
}
