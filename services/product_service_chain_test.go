package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"skyshelf/models"
)

// Chain-mutation behaviour is exercised against mongo-driver's mock
// deployment: responses are scripted per command and the issued
// commands are asserted through the command monitor, so the rollback
// and rewiring write sequences are verified without a server.

func productDoc(p *models.Product) bson.D {
	doc := bson.D{
		{Key: "_id", Value: p.ID},
		{Key: "name", Value: p.Name},
		{Key: "version", Value: p.Version},
		{Key: "current", Value: p.Current},
		{Key: "visibility", Value: string(p.Visibility)},
		{Key: "owner_name", Value: p.OwnerName},
	}
	if p.Replaces != nil {
		doc = append(doc, bson.E{Key: "replaces", Value: *p.Replaces})
	}
	return doc
}

func startedCommandNames(mt *mtest.T) []string {
	names := []string{}
	for _, evt := range mt.GetAllStartedEvents() {
		names = append(names, evt.CommandName)
	}
	return names
}

func commandID(t *mtest.T, index int, path ...string) primitive.ObjectID {
	t.Helper()
	events := t.GetAllStartedEvents()
	require.Greater(t, len(events), index)

	value, err := events[index].Command.LookupErr(path...)
	require.NoError(t, err)
	id, ok := value.ObjectIDOK()
	require.True(t, ok)
	return id
}

// A failed source update on a revision must delete the just-created
// head, restore the predecessor to current and surface the original
// error, leaving the lineage with exactly one current row.
func TestUpdateRollsBackFailedSourceUpdate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("source collision rolls back the new head", func(mt *mtest.T) {
		svc := NewProductService(mt.DB, nil)

		product := &models.Product{
			ID:         primitive.NewObjectID(),
			Name:       "demo",
			Version:    "1.0.0",
			Current:    true,
			Visibility: models.VisibilityPublic,
			Sources:    []models.File{{UUID: "u-a", Name: "a.fits"}},
		}

		demoted := *product
		demoted.Current = false

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(), // insert the revised head
			mtest.CreateSuccessResponse(), // demote the old head
			mtest.CreateCursorResponse(0, "catalog.products", mtest.FirstBatch, productDoc(&demoted)),
			mtest.CreateSuccessResponse(), // promote the predecessor back
			mtest.CreateSuccessResponse(), // delete the revised head
		)

		// The new source name collides with an existing one, which
		// fails the source update after the revision row exists.
		collision := []PreUploadFile{{Name: "a.fits", Size: 1, Checksum: "xxh64:00"}}

		updated, urls, err := svc.Update(context.Background(), product,
			UpdateMetadataOptions{Level: RevisionMinor}, collision, nil, nil)
		assert.ErrorIs(t, err, ErrFileExists)
		assert.Nil(t, updated)
		assert.Nil(t, urls)

		assert.Equal(t,
			[]string{"insert", "update", "find", "update", "delete"},
			startedCommandNames(mt))

		// The compensating delete targets the row the revision
		// inserted, not the original.
		insertedID := commandID(mt, 0, "documents", "0", "_id")
		deletedID := commandID(mt, 4, "deletes", "0", "q", "_id")
		assert.Equal(t, insertedID, deletedID)
		assert.NotEqual(t, product.ID, deletedID)

		// The predecessor becomes the single current row again.
		promotedID := commandID(mt, 3, "updates", "0", "q", "_id")
		assert.Equal(t, product.ID, promotedID)
		current, err := mt.GetAllStartedEvents()[3].Command.LookupErr("updates", "0", "u", "$set", "current")
		require.NoError(t, err)
		assert.True(t, current.Boolean())
	})
}

// If demoting the old head fails after the revised row was inserted,
// the revised row must be removed so the lineage never carries two
// current rows.
func TestUpdateMetadataCompensatesFailedDemote(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("failed demote deletes the inserted head", func(mt *mtest.T) {
		svc := NewProductService(mt.DB, nil)

		product := &models.Product{
			ID:         primitive.NewObjectID(),
			Name:       "demo",
			Version:    "1.0.0",
			Current:    true,
			Visibility: models.VisibilityPublic,
		}

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(), // insert the revised head
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    11600,
				Name:    "InterruptedAtShutdown",
				Message: "interrupted",
			}),
			mtest.CreateSuccessResponse(), // compensating delete
		)

		_, err := svc.UpdateMetadata(context.Background(), product,
			UpdateMetadataOptions{Level: RevisionMajor})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to demote")

		assert.Equal(t, []string{"insert", "update", "delete"}, startedCommandNames(mt))

		insertedID := commandID(mt, 0, "documents", "0", "_id")
		deletedID := commandID(mt, 2, "deletes", "0", "q", "_id")
		assert.Equal(t, insertedID, deletedID)
		assert.NotEqual(t, product.ID, deletedID)
	})
}

// Deleting a middle version must re-link its successor's replaces
// pointer to the deleted row's predecessor.
func TestDeleteOneMiddleRewiresSuccessor(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("successor skips over the deleted row", func(mt *mtest.T) {
		svc := NewProductService(mt.DB, nil)

		rootID := primitive.NewObjectID()
		root := &models.Product{ID: rootID, Name: "demo", Version: "1.0.0"}

		middle := &models.Product{
			ID:       primitive.NewObjectID(),
			Name:     "demo",
			Version:  "1.1.0",
			Current:  false,
			Replaces: &rootID,
		}

		head := &models.Product{
			ID:       primitive.NewObjectID(),
			Name:     "demo",
			Version:  "1.2.0",
			Current:  true,
			Replaces: &middle.ID,
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "catalog.products", mtest.FirstBatch, productDoc(root)),
			mtest.CreateCursorResponse(0, "catalog.products", mtest.FirstBatch, productDoc(head)),
			mtest.CreateSuccessResponse(), // re-link the successor
			mtest.CreateSuccessResponse(), // delete the middle row
		)

		require.NoError(t, svc.DeleteOne(context.Background(), middle, false))

		assert.Equal(t,
			[]string{"find", "find", "update", "delete"},
			startedCommandNames(mt))

		relinkedID := commandID(mt, 2, "updates", "0", "q", "_id")
		assert.Equal(t, head.ID, relinkedID)
		newReplaces := commandID(mt, 2, "updates", "0", "u", "$set", "replaces")
		assert.Equal(t, rootID, newReplaces)

		deletedID := commandID(mt, 3, "deletes", "0", "q", "_id")
		assert.Equal(t, middle.ID, deletedID)
	})
}

// Deleting the head must promote its predecessor to current.
func TestDeleteOneHeadPromotesPredecessor(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("predecessor becomes the head", func(mt *mtest.T) {
		svc := NewProductService(mt.DB, nil)

		rootID := primitive.NewObjectID()
		root := &models.Product{ID: rootID, Name: "demo", Version: "1.0.0"}

		head := &models.Product{
			ID:       primitive.NewObjectID(),
			Name:     "demo",
			Version:  "2.0.0",
			Current:  true,
			Replaces: &rootID,
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "catalog.products", mtest.FirstBatch, productDoc(root)),
			mtest.CreateSuccessResponse(), // promote the predecessor
			mtest.CreateSuccessResponse(), // delete the head row
		)

		require.NoError(t, svc.DeleteOne(context.Background(), head, false))

		assert.Equal(t, []string{"find", "update", "delete"}, startedCommandNames(mt))

		promotedID := commandID(mt, 1, "updates", "0", "q", "_id")
		assert.Equal(t, rootID, promotedID)
		current, err := mt.GetAllStartedEvents()[1].Command.LookupErr("updates", "0", "u", "$set", "current")
		require.NoError(t, err)
		assert.True(t, current.Boolean())

		deletedID := commandID(mt, 2, "deletes", "0", "q", "_id")
		assert.Equal(t, head.ID, deletedID)
	})
}

// Deleting the root of a chain must clear the successor's replaces
// pointer rather than leaving a dangling reference.
func TestDeleteOneRootUnlinksSuccessor(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("successor becomes the new root", func(mt *mtest.T) {
		svc := NewProductService(mt.DB, nil)

		root := &models.Product{
			ID:      primitive.NewObjectID(),
			Name:    "demo",
			Version: "1.0.0",
			Current: false,
		}

		head := &models.Product{
			ID:       primitive.NewObjectID(),
			Name:     "demo",
			Version:  "1.1.0",
			Current:  true,
			Replaces: &root.ID,
		}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "catalog.products", mtest.FirstBatch, productDoc(head)),
			mtest.CreateSuccessResponse(), // unset the successor's replaces
			mtest.CreateSuccessResponse(), // delete the root row
		)

		require.NoError(t, svc.DeleteOne(context.Background(), root, false))

		assert.Equal(t, []string{"find", "update", "delete"}, startedCommandNames(mt))

		unlinkedID := commandID(mt, 1, "updates", "0", "q", "_id")
		assert.Equal(t, head.ID, unlinkedID)
		_, err := mt.GetAllStartedEvents()[1].Command.LookupErr("updates", "0", "u", "$unset", "replaces")
		assert.NoError(t, err)

		deletedID := commandID(mt, 2, "deletes", "0", "q", "_id")
		assert.Equal(t, root.ID, deletedID)
	})
}
