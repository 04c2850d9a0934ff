package handler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
)

func TestCreateIdentityRequestValidate(t *testing.T) {
	certifiedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid request parses into an attribute set", func(t *testing.T) {
		req := CreateIdentityRequest{Attributes: map[string]AttributeWrite{
			" family_name ": {
				Value:         " DUPONT ",
				Certification: &CertificationWrite{Processus: "NUM1", CertifiedAt: certifiedAt},
			},
			"email": {Value: "a@b.fr"},
		}}
		require.NoError(t, req.Validate())

		attrs := req.ParsedAttributes()
		require.Len(t, attrs, 2)
		// Keys and values are trimmed.
		a, ok := attrs[id.AttrKey("family_name")]
		require.True(t, ok)
		assert.Equal(t, "DUPONT", a.Value)
		require.NotNil(t, a.Certification)
		assert.Equal(t, id.ProcessusCode("NUM1"), a.Certification.Processus)
		assert.Nil(t, attrs[id.AttrKey("email")].Certification)
	})

	t.Run("empty attribute map is refused", func(t *testing.T) {
		req := CreateIdentityRequest{}
		assert.Error(t, req.Validate())
	})

	t.Run("blank attribute key is refused", func(t *testing.T) {
		req := CreateIdentityRequest{Attributes: map[string]AttributeWrite{
			"  ": {Value: "x"},
		}}
		assert.Error(t, req.Validate())
	})

	t.Run("certification without processus is refused", func(t *testing.T) {
		req := CreateIdentityRequest{Attributes: map[string]AttributeWrite{
			"family_name": {Value: "DUPONT", Certification: &CertificationWrite{CertifiedAt: certifiedAt}},
		}}
		assert.Error(t, req.Validate())
	})

	t.Run("certification without certified_at is refused", func(t *testing.T) {
		req := CreateIdentityRequest{Attributes: map[string]AttributeWrite{
			"family_name": {Value: "DUPONT", Certification: &CertificationWrite{Processus: "NUM1"}},
		}}
		assert.Error(t, req.Validate())
	})

	t.Run("oversized request is refused", func(t *testing.T) {
		attrs := make(map[string]AttributeWrite, maxAttributesPerRequest+1)
		for i := range maxAttributesPerRequest + 1 {
			attrs[fmt.Sprintf("key_%d", i)] = AttributeWrite{Value: "x"}
		}
		req := CreateIdentityRequest{Attributes: attrs}
		assert.Error(t, req.Validate())
	})
}

func TestMergeRequestValidate(t *testing.T) {
	t.Run("valid secondary cuid", func(t *testing.T) {
		req := MergeRequest{SecondaryCUID: " cuid-2 "}
		require.NoError(t, req.Validate())
		assert.Equal(t, id.CUID("cuid-2"), req.ParsedSecondary())
	})

	t.Run("missing secondary cuid", func(t *testing.T) {
		req := MergeRequest{}
		assert.Error(t, req.Validate())
	})
}

func TestDuplicateCheckRequestValidate(t *testing.T) {
	t.Run("exclude cuid is optional", func(t *testing.T) {
		req := DuplicateCheckRequest{Attributes: map[string]AttributeWrite{
			"family_name": {Value: "DUPONT"},
		}}
		require.NoError(t, req.Validate())
		assert.True(t, req.ParsedExclude().IsZero())
		assert.Equal(t, identity.AttributeSet{
			id.AttrKey("family_name"): {Value: "DUPONT"},
		}, req.ParsedAttributes())
	})

	t.Run("exclude cuid is parsed when present", func(t *testing.T) {
		req := DuplicateCheckRequest{
			Attributes:  map[string]AttributeWrite{"family_name": {Value: "DUPONT"}},
			ExcludeCUID: "cuid-1",
		}
		require.NoError(t, req.Validate())
		assert.Equal(t, id.CUID("cuid-1"), req.ParsedExclude())
	})

	t.Run("attributes are still required", func(t *testing.T) {
		req := DuplicateCheckRequest{ExcludeCUID: "cuid-1"}
		assert.Error(t, req.Validate())
	})
}

func TestDecertifyRequestValidate(t *testing.T) {
	t.Run("key is trimmed", func(t *testing.T) {
		req := DecertifyRequest{Key: " family_name "}
		require.NoError(t, req.Validate())
		assert.Equal(t, id.AttrKey("family_name"), req.ParsedKey())
	})

	t.Run("blank key is refused", func(t *testing.T) {
		req := DecertifyRequest{Key: "   "}
		assert.Error(t, req.Validate())
	})
}
