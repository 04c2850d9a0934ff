package contract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	change "civreg/internal/change/models"
	"civreg/internal/contract/models"
	"civreg/internal/contract/store"
	identity "civreg/internal/identity/models"
	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

type GateSuite struct {
	suite.Suite

	ctx   context.Context
	now   time.Time
	store *store.InMemory
	gate  *Gate
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = store.NewInMemory()

	gate, err := NewGate(s.store)
	s.Require().NoError(err)
	s.gate = gate
}

func (s *GateSuite) seedContract(clientCode id.ClientCode) *models.ServiceContract {
	c, err := models.NewServiceContract(clientCode, "test contract", s.now.Add(-24*time.Hour), s.now)
	s.Require().NoError(err)
	c.Capabilities = []models.Capability{models.CapCreation, models.CapUpdate}
	c.Rights[identity.KeyFamilyName] = models.AttributeRight{
		Key: identity.KeyFamilyName, Readable: true, Writable: true, Certifiable: true,
	}
	c.Rights[identity.KeyEmail] = models.AttributeRight{
		Key: identity.KeyEmail, Readable: true, Writable: true, Searchable: true,
	}
	c.Rights[identity.KeyBirthDate] = models.AttributeRight{
		Key: identity.KeyBirthDate, Readable: true, Writable: true, Certifiable: true,
	}
	c.Requirements[identity.KeyBirthDate] = 200
	c.AllowedProcessus[identity.KeyFamilyName] = []id.ProcessusCode{"NUM1"}
	s.Require().NoError(s.store.Create(s.ctx, c))
	return c
}

func certifiedBy(processus id.ProcessusCode, level int) identity.Attribute {
	return identity.Attribute{
		Value: "value",
		Certification: &identity.Certification{
			Processus:   processus,
			CertifiedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Level:       level,
		},
	}
}

// ============================================================
// Contract resolution
// ============================================================

func (s *GateSuite) TestResolveActive() {
	s.Run("active contract resolves", func() {
		s.seedContract("SVC-A")
		c, code, err := s.gate.ResolveActive(s.ctx, "SVC-A")
		s.NoError(err)
		s.Equal(change.CodeOK, code)
		s.NotNil(c)
	})

	s.Run("unknown client is a business outcome, not an error", func() {
		c, code, err := s.gate.ResolveActive(s.ctx, "SVC-UNKNOWN")
		s.NoError(err)
		s.Equal(change.CodeNoActiveContract, code)
		s.Nil(c)
	})

	s.Run("expired contract does not resolve", func() {
		c := s.seedContract("SVC-B")
		closed, err := c.Closed(s.now.Add(-time.Hour), s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Replace(s.ctx, closed))

		_, code, err := s.gate.ResolveActive(s.ctx, "SVC-B")
		s.NoError(err)
		s.Equal(change.CodeNoActiveContract, code)
	})

	s.Run("empty client code never resolves", func() {
		_, code, err := s.gate.ResolveActive(s.ctx, "")
		s.NoError(err)
		s.Equal(change.CodeNoActiveContract, code)
	})
}

func (s *GateSuite) TestAuthorizeOperation() {
	c := s.seedContract("SVC-C")

	s.Run("granted capability passes", func() {
		s.Equal(change.CodeOK, s.gate.AuthorizeOperation(s.ctx, c, models.CapCreation))
	})

	s.Run("missing capability is refused", func() {
		s.Equal(change.CodeOperationNotAuthorized, s.gate.AuthorizeOperation(s.ctx, c, models.CapMerge))
	})
}

// ============================================================
// Attribute write checks
// ============================================================

func (s *GateSuite) TestCheckWrite() {
	c := s.seedContract("SVC-D")

	s.Run("plain write on writable key passes", func() {
		status := s.gate.CheckWrite(c, identity.KeyEmail, identity.Attribute{Value: "a@b.fr"})
		s.Equal(change.CodeOK, status.Code)
	})

	s.Run("key without a right is not writable", func() {
		status := s.gate.CheckWrite(c, identity.KeyPhone, identity.Attribute{Value: "0600000000"})
		s.Equal(change.CodeAttributeNotWritable, status.Code)
	})

	s.Run("certification needs the certifiable right", func() {
		status := s.gate.CheckWrite(c, identity.KeyEmail, certifiedBy("NUM1", 400))
		s.Equal(change.CodeAttributeNotCertifiable, status.Code)
	})

	s.Run("processus outside the allow-list is refused", func() {
		status := s.gate.CheckWrite(c, identity.KeyFamilyName, certifiedBy("DEC", 100))
		s.Equal(change.CodeProcessusNotAllowed, status.Code)
	})

	s.Run("allowed processus passes", func() {
		status := s.gate.CheckWrite(c, identity.KeyFamilyName, certifiedBy("NUM1", 400))
		s.Equal(change.CodeOK, status.Code)
	})

	s.Run("required level demands a certification", func() {
		status := s.gate.CheckWrite(c, identity.KeyBirthDate, identity.Attribute{Value: "1990-04-12"})
		s.Equal(change.CodeNotCertified, status.Code)
	})

	s.Run("certification below the required level is refused", func() {
		status := s.gate.CheckWrite(c, identity.KeyBirthDate, certifiedBy("DEC", 100))
		s.Equal(change.CodeLowerCertificationLevel, status.Code)
	})

	s.Run("certification at the required level passes", func() {
		status := s.gate.CheckWrite(c, identity.KeyBirthDate, certifiedBy("NUM1", 200))
		s.Equal(change.CodeOK, status.Code)
	})
}

func (s *GateSuite) TestReadAndSearchRights() {
	c := s.seedContract("SVC-E")

	s.Run("searchable right gates duplicate criteria", func() {
		s.True(s.gate.CheckSearchable(c, identity.KeyEmail))
		s.False(s.gate.CheckSearchable(c, identity.KeyFamilyName))
	})

	s.Run("readable right gates projections", func() {
		s.True(s.gate.CheckReadable(c, identity.KeyFamilyName))
		s.False(s.gate.CheckReadable(c, identity.KeyPhone))
	})
}
