package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDocumentConversion(t *testing.T) {
	exp := time.Date(2025, 1, 1, 0, 10, 0, 0, time.UTC)
	a := &models.Account{
		ID:           "u-1",
		Name:         "A",
		Email:        "a@x.com",
		PasswordHash: "hash",
		Role:         models.RoleAdministrator,
		IsVerified:   true,
		Version:      7,
	}
	a.SetMfa("mdigest", exp)

	doc := toDocument(a)
	assert.Nil(t, doc.VerificationToken)
	assert.Nil(t, doc.ResetToken)
	require.NotNil(t, doc.MfaCode)

	back, err := doc.toModel()
	require.NoError(t, err)
	assert.Equal(t, a, back)
}

func TestDocument_FieldNames(t *testing.T) {
	raw, err := bson.Marshal(toDocument(&models.Account{ID: "u-1", Email: "a@x.com", Role: models.RoleStandard}))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	for _, k := range []string{"_id", "email", "password", "role", "isVerified", "verificationToken", "mfaCode", "mfaCodeExpires", "version"} {
		assert.Contains(t, m, k)
	}
	assert.Nil(t, m["mfaCode"], "absent secrets are stored as null")
}

func TestDocument_UnknownRole(t *testing.T) {
	d := accountDocument{ID: "u-1", Role: "Root"}
	_, err := d.toModel()
	assert.Error(t, err)
}

func TestUpdateSet_ExcludesIdentity(t *testing.T) {
	set := updateSet(toDocument(&models.Account{ID: "u-1", Role: models.RoleStandard}))
	for _, e := range set {
		assert.NotEqual(t, "_id", e.Key)
		assert.NotEqual(t, "createdAt", e.Key)
		assert.NotEqual(t, "version", e.Key)
	}
}

func TestMongo_WritesRejectUnknownRole(t *testing.T) {
	// the role check runs before the collection is touched
	r := &MongoRepository{}
	ctx := context.Background()

	err := r.Insert(ctx, &models.Account{ID: "u-1", Email: "a@x.com", Role: "root"})
	assert.ErrorIs(t, err, common.ErrorValidation)

	err = r.Update(ctx, &models.Account{ID: "u-1", Email: "a@x.com", Role: "Root", Version: 1})
	assert.ErrorIs(t, err, common.ErrorValidation)
}
