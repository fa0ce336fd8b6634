package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/fundgateapp/fundgate/internal/database"
	"github.com/fundgateapp/fundgate/internal/model"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUserStoreCRUD(t *testing.T) {
	users := NewUserStore(testDB(t))

	u, err := users.Create("lp@fund.test", "Alex", model.RoleLP)
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == 0 || u.Email != "lp@fund.test" || u.Role != model.RoleLP {
		t.Errorf("created user = %+v", u)
	}

	byEmail, err := users.GetByEmail("lp@fund.test")
	if err != nil || byEmail == nil || byEmail.ID != u.ID {
		t.Errorf("GetByEmail = %+v, %v", byEmail, err)
	}

	missing, err := users.GetByEmail("nobody@fund.test")
	if err != nil || missing != nil {
		t.Errorf("missing user = %+v, %v (want nil, nil)", missing, err)
	}

	if err := users.Delete(u.ID); err != nil {
		t.Fatal(err)
	}
	gone, err := users.GetByID(u.ID)
	if err != nil || gone != nil {
		t.Errorf("deleted user = %+v, %v", gone, err)
	}
}

func TestUserStoreUpsertGP(t *testing.T) {
	users := NewUserStore(testDB(t))

	// Absent: created as GP.
	u, err := users.UpsertGP("new@fund.test")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != model.RoleGP {
		t.Errorf("role = %q, want GP", u.Role)
	}

	// Existing LP: promoted, same row.
	lp, err := users.Create("lp@fund.test", "", model.RoleLP)
	if err != nil {
		t.Fatal(err)
	}
	promoted, err := users.UpsertGP("lp@fund.test")
	if err != nil {
		t.Fatal(err)
	}
	if promoted.ID != lp.ID || promoted.Role != model.RoleGP {
		t.Errorf("promoted = %+v", promoted)
	}
}

func TestOrganizationStore(t *testing.T) {
	db := testDB(t)
	orgs := NewOrganizationStore(db)
	users := NewUserStore(db)

	org, err := orgs.Create("Acme Capital", "acme")
	if err != nil {
		t.Fatal(err)
	}
	bySlug, err := orgs.GetBySlug("acme")
	if err != nil || bySlug == nil || bySlug.ID != org.ID {
		t.Fatalf("GetBySlug = %+v, %v", bySlug, err)
	}

	d, err := orgs.AddDomain(org.ID, " Acme-Capital.COM ")
	if err != nil {
		t.Fatal(err)
	}
	if d.Host != "acme-capital.com" {
		t.Errorf("host = %q, want normalized", d.Host)
	}
	found, err := orgs.GetDomainByHost("acme-capital.com")
	if err != nil || found == nil || found.OrgID != org.ID {
		t.Errorf("GetDomainByHost = %+v, %v", found, err)
	}
	missing, err := orgs.GetDomainByHost("other.com")
	if err != nil || missing != nil {
		t.Errorf("unknown host = %+v, %v", missing, err)
	}

	gp, err := users.Create("gp@fund.test", "", model.RoleGP)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := orgs.AddMember(org.ID, gp.ID, model.RoleGP); err != nil {
		t.Fatal(err)
	}
	m, err := orgs.GetMember(org.ID, gp.ID)
	if err != nil || m == nil || m.Role != model.RoleGP {
		t.Errorf("GetMember = %+v, %v", m, err)
	}

	has, err := orgs.HasTeamRole("gp@fund.test", model.RoleGP)
	if err != nil || !has {
		t.Errorf("HasTeamRole(GP) = %v, %v", has, err)
	}
	has, err = orgs.HasTeamRole("gp@fund.test", model.RoleLP)
	if err != nil || has {
		t.Errorf("HasTeamRole(LP) = %v, %v, want false", has, err)
	}
	has, err = orgs.HasTeamRole("nobody@fund.test", model.RoleGP)
	if err != nil || has {
		t.Errorf("HasTeamRole(unknown) = %v, %v, want false", has, err)
	}
}

func TestMagicLinkStoreLifecycle(t *testing.T) {
	links := NewMagicLinkStore(testDB(t))

	ml, err := links.Create("admin:ops@fund.test", 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(ml.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(ml.Token))
	}

	// Reissue purges the previous row for the identifier.
	ml2, err := links.Create("admin:ops@fund.test", 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if old, err := links.GetByToken(ml.Token); err != nil || old != nil {
		t.Errorf("old link survived reissue: %+v, %v", old, err)
	}

	// Delete reports consumption exactly once.
	ok, err := links.Delete(ml2.ID)
	if err != nil || !ok {
		t.Fatalf("first delete = %v, %v", ok, err)
	}
	ok, err = links.Delete(ml2.ID)
	if err != nil || ok {
		t.Errorf("second delete = %v, %v, want false", ok, err)
	}
}

func TestMagicLinkStoreDeleteExpired(t *testing.T) {
	db := testDB(t)
	links := NewMagicLinkStore(db)

	if _, err := links.Create("login:live@fund.test", time.Hour); err != nil {
		t.Fatal(err)
	}
	stale, err := links.Create("login:stale@fund.test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE magic_links SET expires_at = datetime('now', '-1 minute') WHERE id = ?`, stale.ID); err != nil {
		t.Fatal(err)
	}

	n, err := links.DeleteExpired()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
}

func TestDocumentStoreOrgScoping(t *testing.T) {
	db := testDB(t)
	orgs := NewOrganizationStore(db)
	users := NewUserStore(db)
	docs := NewDocumentStore(db)

	orgA, _ := orgs.Create("A", "a")
	orgB, _ := orgs.Create("B", "b")
	gp, _ := users.Create("gp@fund.test", "", model.RoleGP)

	d, err := docs.Create(&model.Document{
		OrgID:       orgA.ID,
		Title:       "LPA",
		FileName:    "lpa.pdf",
		ObjectKey:   "orgs/1/docs/x/lpa.pdf",
		Size:        1024,
		ContentType: "application/pdf",
		UploadedBy:  gp.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Visible through its own org only.
	if got, err := docs.GetByID(d.ID, orgA.ID); err != nil || got == nil {
		t.Errorf("own-org lookup = %+v, %v", got, err)
	}
	if got, err := docs.GetByID(d.ID, orgB.ID); err != nil || got != nil {
		t.Errorf("cross-org lookup = %+v, %v, want nil", got, err)
	}

	listA, err := docs.ListByOrg(orgA.ID)
	if err != nil || len(listA) != 1 {
		t.Errorf("ListByOrg(A) = %d docs, %v", len(listA), err)
	}
	listB, err := docs.ListByOrg(orgB.ID)
	if err != nil || len(listB) != 0 {
		t.Errorf("ListByOrg(B) = %d docs, %v", len(listB), err)
	}
}

func TestCapitalCallStoreLifecycle(t *testing.T) {
	db := testDB(t)
	orgs := NewOrganizationStore(db)
	users := NewUserStore(db)
	calls := NewCapitalCallStore(db)

	org, _ := orgs.Create("Acme", "acme")
	lp, _ := users.Create("lp@fund.test", "", model.RoleLP)

	call, err := calls.Create(org.ID, lp.ID, 250_000_00, "usd", time.Now().Add(30*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if call.Status != model.CallStatusPending {
		t.Errorf("status = %q, want pending", call.Status)
	}

	if err := calls.SetPaymentIntent(call.ID, "pi_123"); err != nil {
		t.Fatal(err)
	}
	byIntent, err := calls.GetByPaymentIntent("pi_123")
	if err != nil || byIntent == nil || byIntent.ID != call.ID {
		t.Fatalf("GetByPaymentIntent = %+v, %v", byIntent, err)
	}
	if byIntent.Status != model.CallStatusProcessing {
		t.Errorf("status after intent = %q, want processing", byIntent.Status)
	}

	if err := calls.UpdateStatus(call.ID, model.CallStatusSettled); err != nil {
		t.Fatal(err)
	}
	settled, _ := calls.GetByID(call.ID)
	if settled.Status != model.CallStatusSettled {
		t.Errorf("status = %q, want settled", settled.Status)
	}

	mine, err := calls.ListByInvestor(lp.ID)
	if err != nil || len(mine) != 1 {
		t.Errorf("ListByInvestor = %d calls, %v", len(mine), err)
	}
	byOrg, err := calls.ListByOrg(org.ID)
	if err != nil || len(byOrg) != 1 {
		t.Errorf("ListByOrg = %d calls, %v", len(byOrg), err)
	}
}

func TestAuditStore(t *testing.T) {
	audit := NewAuditStore(testDB(t))

	if err := audit.Insert(&model.AuditLog{
		Actor:  "1.2.3.4",
		Kind:   model.AuditRateLimitExceeded,
		IP:     "1.2.3.4",
		Detail: "/api/auth/login",
	}); err != nil {
		t.Fatal(err)
	}
	if err := audit.Insert(&model.AuditLog{
		Actor: "gp@fund.test",
		Kind:  model.AuditAdminLogin,
	}); err != nil {
		t.Fatal(err)
	}

	recent, err := audit.ListRecent(10)
	if err != nil || len(recent) != 2 {
		t.Fatalf("ListRecent = %d rows, %v", len(recent), err)
	}
	// Defaults applied on insert.
	for _, row := range recent {
		if row.ID == "" || row.Severity == "" || row.CreatedAt.IsZero() {
			t.Errorf("row defaults missing: %+v", row)
		}
	}

	n, err := audit.CountByKind(model.AuditRateLimitExceeded)
	if err != nil || n != 1 {
		t.Errorf("CountByKind = %d, %v", n, err)
	}
}
