package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"skyshelf/models"
)

func membership(id primitive.ObjectID, policy models.CollectionPolicy) models.CollectionMembership {
	return models.CollectionMembership{CollectionID: id, Policy: policy}
}

// NEW memberships stay on both rows across a revision; only CURRENT
// migrates exclusively forward and only FIXED stays exclusively behind.
func TestFilterMembershipsByPolicy(t *testing.T) {
	allID := primitive.NewObjectID()
	newID := primitive.NewObjectID()
	currentID := primitive.NewObjectID()
	fixedID := primitive.NewObjectID()

	memberships := []models.CollectionMembership{
		membership(allID, models.PolicyAll),
		membership(newID, models.PolicyNew),
		membership(currentID, models.PolicyCurrent),
		membership(fixedID, models.PolicyFixed),
	}

	head := filterMembershipsByPolicy(memberships, newHeadPolicies)
	require.Len(t, head, 3)
	assert.Equal(t, allID, head[0].CollectionID)
	assert.Equal(t, newID, head[1].CollectionID)
	assert.Equal(t, currentID, head[2].CollectionID)

	superseded := filterMembershipsByPolicy(memberships, supersededRowPolicies)
	require.Len(t, superseded, 3)
	assert.Equal(t, allID, superseded[0].CollectionID)
	assert.Equal(t, newID, superseded[1].CollectionID)
	assert.Equal(t, fixedID, superseded[2].CollectionID)
}

func TestFilterMembershipsByPolicyEmpty(t *testing.T) {
	assert.Empty(t, filterMembershipsByPolicy(nil, newHeadPolicies))
	assert.Empty(t, filterMembershipsByPolicy([]models.CollectionMembership{}, supersededRowPolicies))
}

func set(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func TestSymmetricDifference(t *testing.T) {
	tests := []struct {
		name string
		sets []map[string]struct{}
		want map[string]struct{}
	}{
		{
			"disjoint sets pass through",
			[]map[string]struct{}{set("a"), set("b")},
			set("a", "b"),
		},
		{
			"pairs cancel",
			[]map[string]struct{}{set("a", "b"), set("b")},
			set("a"),
		},
		{
			"triples survive",
			[]map[string]struct{}{set("a"), set("a"), set("a")},
			set("a"),
		},
		{
			"empty input",
			[]map[string]struct{}{},
			set(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, symmetricDifference(tt.sets...))
		})
	}
}

func sourceFiles(names ...string) []models.File {
	files := make([]models.File, 0, len(names))
	for _, n := range names {
		files = append(files, models.File{UUID: "uuid-" + n, Name: n})
	}
	return files
}

func TestRetainedSources(t *testing.T) {
	existing := sourceFiles("a.fits", "b.fits", "c.fits")

	t.Run("no changes keeps everything", func(t *testing.T) {
		kept := retainedSources(existing, set(), set())
		assert.Len(t, kept, 3)
	})

	t.Run("replacement removes the old row", func(t *testing.T) {
		kept := retainedSources(existing, set("b.fits"), set())
		require.Len(t, kept, 2)
		assert.Equal(t, "a.fits", kept[0].Name)
		assert.Equal(t, "c.fits", kept[1].Name)
	})

	t.Run("drop removes the row", func(t *testing.T) {
		kept := retainedSources(existing, set(), set("a.fits", "c.fits"))
		require.Len(t, kept, 1)
		assert.Equal(t, "b.fits", kept[0].Name)
	})

	t.Run("replace and drop combine", func(t *testing.T) {
		kept := retainedSources(existing, set("a.fits"), set("b.fits"))
		require.Len(t, kept, 1)
		assert.Equal(t, "c.fits", kept[0].Name)
	})
}

// The bookkeeping identity behind UpdateSources: kept + allocated slots
// must equal old - dropped + new.
func TestRetainedSourcesCountIdentity(t *testing.T) {
	existing := sourceFiles("a", "b", "c", "d")
	replace := set("b", "c")
	drop := set("d")
	newCount := 2

	kept := retainedSources(existing, replace, drop)
	allocated := len(replace) + newCount

	assert.Equal(t, len(existing)-1+newCount, len(kept)+allocated)
}

func TestIntersectionSize(t *testing.T) {
	assert.Equal(t, 0, intersectionSize(set("a"), set("b")))
	assert.Equal(t, 1, intersectionSize(set("a", "b"), set("b", "c")))
	assert.Equal(t, 2, intersectionSize(set("a", "b"), set("a", "b")))
	assert.Equal(t, 0, intersectionSize(set(), set("a")))
}

func TestDeletionCandidates(t *testing.T) {
	tests := []struct {
		name        string
		current     map[string]struct{}
		predecessor map[string]struct{}
		successor   map[string]struct{}
		want        map[string]struct{}
	}{
		{
			"no neighbours deletes everything",
			set("u1", "u2"), set(), set(),
			set("u1", "u2"),
		},
		{
			"shared with predecessor survives",
			set("u1", "u2"), set("u1"), set(),
			set("u2"),
		},
		{
			"shared with successor survives",
			set("u1", "u2"), set(), set("u2"),
			set("u1"),
		},
		{
			"shared with both survives",
			set("u1", "u2", "u3"), set("u1"), set("u1", "u3"),
			set("u2"),
		},
		{
			"all shared deletes nothing",
			set("u1"), set("u1"), set("u1"),
			set(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deletionCandidates(tt.current, tt.predecessor, tt.successor))
		})
	}
}

func TestCheckVisibilityAccess(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "owner"}
	stranger := &models.User{ID: primitive.NewObjectID(), Name: "stranger"}
	admin := &models.User{
		ID:         primitive.NewObjectID(),
		Name:       "admin",
		Privileges: []models.Privilege{models.PrivilegeReadProduct},
	}

	product := func(v models.Visibility) *models.Product {
		return &models.Product{OwnerID: owner.ID, OwnerName: owner.Name, Visibility: v}
	}

	tests := []struct {
		name       string
		visibility models.Visibility
		user       *models.User
		want       bool
	}{
		{"public anonymous", models.VisibilityPublic, nil, true},
		{"public stranger", models.VisibilityPublic, stranger, true},
		{"collaboration anonymous", models.VisibilityCollaboration, nil, false},
		{"collaboration stranger", models.VisibilityCollaboration, stranger, true},
		{"collaboration owner", models.VisibilityCollaboration, owner, true},
		{"private anonymous", models.VisibilityPrivate, nil, false},
		{"private stranger", models.VisibilityPrivate, stranger, false},
		{"private owner", models.VisibilityPrivate, owner, true},
		{"private privileged", models.VisibilityPrivate, admin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckVisibilityAccess(product(tt.visibility), tt.user))
		})
	}
}

func TestFilterVisible(t *testing.T) {
	owner := &models.User{ID: primitive.NewObjectID(), Name: "owner"}

	products := []models.Product{
		{Name: "public", Visibility: models.VisibilityPublic},
		{Name: "collab", Visibility: models.VisibilityCollaboration},
		{Name: "mine", Visibility: models.VisibilityPrivate, OwnerID: owner.ID},
		{Name: "theirs", Visibility: models.VisibilityPrivate, OwnerID: primitive.NewObjectID()},
	}

	anonymous := filterVisible(products, nil)
	require.Len(t, anonymous, 1)
	assert.Equal(t, "public", anonymous[0].Name)

	asOwner := filterVisible(products, owner)
	require.Len(t, asOwner, 3)
	assert.Equal(t, "public", asOwner[0].Name)
	assert.Equal(t, "collab", asOwner[1].Name)
	assert.Equal(t, "mine", asOwner[2].Name)
}
