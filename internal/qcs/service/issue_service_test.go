package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
	"github.com/bitfantasy/qcs/internal/qcs/storage"
	"github.com/bitfantasy/qcs/internal/qcs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	repos   *repository.Repositories
	local   *storage.Local
	svc     *IssueService
	admin   *access.Principal
	user    *access.Principal
	adminID string
}

func principalOf(u *entity.User) *access.Principal {
	return &access.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func newTestEnv(t *testing.T) *testEnv {
	db := testutil.SetupTestDB(t)
	local, err := storage.NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	repos := repository.NewRepositories(db)
	admin := testutil.SeedUser(t, db, "admin", entity.RoleAdmin)
	user := testutil.SeedUser(t, db, "inspector", entity.RoleUser)

	return &testEnv{
		db:      db,
		repos:   repos,
		local:   local,
		svc:     NewIssueService(repos, local, access.DefaultGate(), DefaultUploadLimits(), zap.NewNop()),
		admin:   principalOf(admin),
		user:    principalOf(user),
		adminID: admin.ID,
	}
}

func pngUpload(name string) Upload {
	content := []byte("\x89PNG\r\n\x1a\n0000")
	return Upload{
		Filename:    name,
		Size:        int64(len(content)),
		ContentType: "image/png",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func (e *testEnv) create(t *testing.T, uploads ...Upload) *CreateResult {
	t.Helper()
	res, err := e.svc.Create(context.Background(), e.user, &CreateIssueInput{
		CheckType:   entity.CheckTypeVehicle,
		Haulier:     "Fast Freight",
		Description: "Broken seal",
	}, uploads)
	require.NoError(t, err)
	return res
}

func (e *testEnv) auditEntries(t *testing.T, issueID string) []entity.AuditTrailEntry {
	t.Helper()
	var entries []entity.AuditTrailEntry
	require.NoError(t, e.db.Where("issue_id = ?", issueID).Order("created_at ASC").Find(&entries).Error)
	return entries
}

func (e *testEnv) countFiles(t *testing.T) int {
	t.Helper()
	n := 0
	filepath.Walk(e.local.Root(), func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	e := newTestEnv(t)

	first := e.create(t)
	assert.Equal(t, "35001", first.IssueNumber)
	second := e.create(t)
	assert.Equal(t, "35002", second.IssueNumber)

	issue, err := e.repos.Issue.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.IssueStatusPending, issue.Status)
	assert.False(t, issue.IsComplete)
	assert.Equal(t, e.user.UserID, issue.CreatedBy)

	entries := e.auditEntries(t, first.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.AuditActionCreated, entries[0].Action)
	assert.Nil(t, entries[0].OldStatus)
	require.NotNil(t, entries[0].NewStatus)
	assert.Equal(t, entity.IssueStatusPending, *entries[0].NewStatus)
}

func TestCreateWithPhotos(t *testing.T) {
	e := newTestEnv(t)
	res := e.create(t, pngUpload("a.png"), pngUpload("b.PNG"))

	photos, err := e.repos.Photo.FindByIssue(context.Background(), res.ID)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.ElementsMatch(t, []string{"a.png", "b.PNG"}, []string{photos[0].FileName, photos[1].FileName})
	assert.Equal(t, e.user.UserID, photos[0].UploadedBy)
	assert.Equal(t, 2, e.countFiles(t))

	rc, err := e.local.Open(context.Background(), photos[0].FilePath)
	require.NoError(t, err)
	rc.Close()
}

func TestCreateRejectsInvalidInputBeforeWriting(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, e.user, &CreateIssueInput{CheckType: "truck"}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.Create(ctx, e.user, &CreateIssueInput{CheckType: "product", PalletsAffected: "lots"}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	bad := pngUpload("report.pdf")
	bad.ContentType = "application/pdf"
	_, err = e.svc.Create(ctx, e.user, &CreateIssueInput{CheckType: "vehicle"}, []Upload{pngUpload("ok.png"), bad})
	assert.ErrorIs(t, err, ErrValidation)

	big := pngUpload("big.png")
	big.Size = 11 << 20
	_, err = e.svc.Create(ctx, e.user, &CreateIssueInput{CheckType: "vehicle"}, []Upload{big})
	assert.ErrorIs(t, err, ErrValidation)

	many := make([]Upload, 11)
	for i := range many {
		many[i] = pngUpload("p.png")
	}
	_, err = e.svc.Create(ctx, e.user, &CreateIssueInput{CheckType: "vehicle"}, many)
	assert.ErrorIs(t, err, ErrValidation)

	var n int64
	e.db.Model(&entity.Issue{}).Count(&n)
	assert.Zero(t, n)
	assert.Zero(t, e.countFiles(t))
}

func TestCreateRollsBackAndRemovesFiles(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.db.Migrator().DropTable(&entity.Photo{}))

	_, err := e.svc.Create(context.Background(), e.user, &CreateIssueInput{CheckType: "vehicle"}, []Upload{pngUpload("a.png")})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrValidation))

	var n int64
	e.db.Model(&entity.Issue{}).Count(&n)
	assert.Zero(t, n)
	e.db.Model(&entity.AuditTrailEntry{}).Count(&n)
	assert.Zero(t, n)
	assert.Zero(t, e.countFiles(t))
}

func TestChangeStatusRecordsAudit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t)

	require.NoError(t, e.svc.ChangeStatus(ctx, e.admin, res.ID, entity.IssueStatusAwaitingConfirmation, ""))
	require.NoError(t, e.svc.ChangeStatus(ctx, e.admin, res.ID, entity.IssueStatusRejected, "Supplier disputes"))

	entries := e.auditEntries(t, res.ID)
	require.Len(t, entries, 3)

	first := entries[1]
	assert.Equal(t, entity.AuditActionStatusChange, first.Action)
	assert.Equal(t, entity.IssueStatusPending, *first.OldStatus)
	assert.Equal(t, entity.IssueStatusAwaitingConfirmation, *first.NewStatus)
	assert.Nil(t, first.Notes)

	second := entries[2]
	assert.Equal(t, entity.IssueStatusAwaitingConfirmation, *second.OldStatus)
	assert.Equal(t, entity.IssueStatusRejected, *second.NewStatus)
	require.NotNil(t, second.Notes)
	assert.Equal(t, "Supplier disputes", *second.Notes)

	comments, err := e.repos.Comment.FindByIssue(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Supplier disputes", comments[0].Body)
	assert.Equal(t, e.admin.UserID, comments[0].UserID)

	issue, err := e.repos.Issue.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.IssueStatusRejected, issue.Status)
}

func TestChangeStatusAllowsAnyEnumeratedTarget(t *testing.T) {
	e := newTestEnv(t)
	res := e.create(t)
	for _, s := range []string{"resolved", "pending", "accepted", "awaiting_confirmation", "rejected", "pending"} {
		require.NoError(t, e.svc.ChangeStatus(context.Background(), e.admin, res.ID, s, ""), s)
	}
	assert.Len(t, e.auditEntries(t, res.ID), 7)
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t)

	for _, s := range []string{"complete", "resolved_or_complete", "closed", ""} {
		err := e.svc.ChangeStatus(ctx, e.admin, res.ID, s, "note")
		assert.ErrorIs(t, err, ErrValidation, s)
	}

	assert.Len(t, e.auditEntries(t, res.ID), 1)
	issue, err := e.repos.Issue.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.IssueStatusPending, issue.Status)

	n, err := e.repos.Comment.CountByIssue(ctx, res.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChangeStatusErrors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t)

	err := e.svc.ChangeStatus(ctx, e.user, res.ID, entity.IssueStatusAccepted, "")
	assert.ErrorIs(t, err, access.ErrForbidden)

	err = e.svc.ChangeStatus(ctx, nil, res.ID, entity.IssueStatusAccepted, "")
	assert.ErrorIs(t, err, access.ErrUnauthenticated)

	err = e.svc.ChangeStatus(ctx, e.admin, "missing", entity.IssueStatusAccepted, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Len(t, e.auditEntries(t, res.ID), 1)
}

func TestMarkCompleteAuditsEveryCall(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, e.svc.MarkComplete(ctx, e.admin, res.ID))
		issue, err := e.repos.Issue.FindByID(ctx, res.ID)
		require.NoError(t, err)
		assert.True(t, issue.IsComplete)
		assert.Equal(t, entity.IssueStatusPending, issue.Status)
	}

	n, err := e.repos.Audit.CountByIssue(ctx, res.ID, entity.AuditActionMarkedComplete)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.ErrorIs(t, e.svc.MarkComplete(ctx, e.admin, "missing"), repository.ErrNotFound)
	assert.ErrorIs(t, e.svc.MarkComplete(ctx, e.user, res.ID), access.ErrForbidden)
}

func TestCompletedIssueHiddenFromDefaultList(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	done := e.create(t)
	open := e.create(t)
	require.NoError(t, e.svc.MarkComplete(ctx, e.admin, done.ID))

	q, err := ParseListQuery(url.Values{})
	require.NoError(t, err)
	page, err := e.svc.List(ctx, e.user, q)
	require.NoError(t, err)
	require.Len(t, page.Issues, 1)
	assert.Equal(t, open.ID, page.Issues[0].ID)

	q, err = ParseListQuery(url.Values{"status": {"complete"}})
	require.NoError(t, err)
	page, err = e.svc.List(ctx, e.user, q)
	require.NoError(t, err)
	require.Len(t, page.Issues, 1)
	assert.Equal(t, done.ID, page.Issues[0].ID)
}

func TestUpdateWritesFieldsAndAudit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	supplier := testutil.SeedSupplier(t, e.db, "SUP-9", "Green Farms")
	res := e.create(t)
	pallets := 4

	err := e.svc.Update(ctx, e.admin, res.ID, &UpdateIssueInput{
		SupplierID:      supplier.ID,
		LotNumber:       "LOT-77",
		PalletsAffected: &pallets,
		Description:     "Mould on top layer",
		AssignedTo:      e.adminID,
	})
	require.NoError(t, err)

	issue, err := e.repos.Issue.FindByID(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, issue.SupplierID)
	assert.Equal(t, supplier.ID, *issue.SupplierID)
	assert.Equal(t, "LOT-77", issue.LotNumber)
	require.NotNil(t, issue.PalletsAffected)
	assert.Equal(t, 4, *issue.PalletsAffected)
	assert.Equal(t, "Mould on top layer", issue.Description)
	require.NotNil(t, issue.AssignedTo)
	assert.Equal(t, e.adminID, *issue.AssignedTo)
	assert.Equal(t, entity.IssueStatusPending, issue.Status)

	entries := e.auditEntries(t, res.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.AuditActionUpdated, entries[1].Action)
	assert.Nil(t, entries[1].OldStatus)
	assert.Nil(t, entries[1].NewStatus)

	// 空值清空
	require.NoError(t, e.svc.Update(ctx, e.admin, res.ID, &UpdateIssueInput{}))
	issue, err = e.repos.Issue.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Nil(t, issue.SupplierID)
	assert.Nil(t, issue.PalletsAffected)
	assert.Nil(t, issue.AssignedTo)

	assert.ErrorIs(t, e.svc.Update(ctx, e.admin, "missing", &UpdateIssueInput{}), repository.ErrNotFound)
}

func TestAttachPhotos(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t)

	_, err := e.svc.AttachPhotos(ctx, e.user, "missing", []Upload{pngUpload("a.png")})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = e.svc.AttachPhotos(ctx, e.user, res.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	bad := pngUpload("notes.txt")
	bad.ContentType = "text/plain"
	_, err = e.svc.AttachPhotos(ctx, e.user, res.ID, []Upload{bad})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, e.countFiles(t))
}

func TestAttachPhotosStoresRows(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t)

	photos, err := e.svc.AttachPhotos(ctx, e.user, res.ID, []Upload{pngUpload("a.png"), pngUpload("b.jpg")})
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Contains(t, photos[0].URL, storage.PublicPrefix)

	detail, err := e.svc.Get(ctx, e.user, res.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Photos, 2)
	assert.Equal(t, 2, e.countFiles(t))
}

func TestAddComment(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t)

	_, err := e.svc.AddComment(ctx, e.user, res.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.AddComment(ctx, e.user, "missing", "hello")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	c, err := e.svc.AddComment(ctx, e.user, res.ID, "Photos uploaded")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	detail, err := e.svc.Get(ctx, e.admin, res.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "Photos uploaded", detail.Comments[0].Body)
	require.NotNil(t, detail.Comments[0].UserName)
	assert.Equal(t, "Test inspector", *detail.Comments[0].UserName)
	require.Len(t, detail.AuditTrail, 1)
}

func TestDeleteCascadesAndRemovesFiles(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t, pngUpload("a.png"), pngUpload("b.png"))
	_, err := e.svc.AddComment(ctx, e.user, res.ID, "note")
	require.NoError(t, err)
	require.NoError(t, e.svc.MarkComplete(ctx, e.admin, res.ID))
	require.Equal(t, 2, e.countFiles(t))

	assert.ErrorIs(t, e.svc.Delete(ctx, e.user, res.ID), access.ErrForbidden)
	require.NoError(t, e.svc.Delete(ctx, e.admin, res.ID))

	for _, model := range []interface{}{&entity.Photo{}, &entity.Comment{}, &entity.AuditTrailEntry{}} {
		var n int64
		e.db.Model(model).Where("issue_id = ?", res.ID).Count(&n)
		assert.Zero(t, n)
	}
	_, err = e.repos.Issue.FindByID(ctx, res.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Zero(t, e.countFiles(t))

	assert.ErrorIs(t, e.svc.Delete(ctx, e.admin, res.ID), repository.ErrNotFound)
}

type failingDeleteStorage struct {
	storage.Storage
	attempts []string
}

func (s *failingDeleteStorage) Delete(ctx context.Context, key string) error {
	s.attempts = append(s.attempts, key)
	return errors.New("disk unavailable")
}

func TestDeleteSucceedsWhenFileRemovalFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t, pngUpload("a.png"), pngUpload("b.png"))

	fs := &failingDeleteStorage{Storage: e.local}
	svc := NewIssueService(e.repos, fs, access.DefaultGate(), DefaultUploadLimits(), zap.NewNop())
	require.NoError(t, svc.Delete(ctx, e.admin, res.ID))
	assert.Len(t, fs.attempts, 2)

	_, err := e.repos.Issue.FindByID(ctx, res.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteSkipsAlreadyMissingFiles(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t, pngUpload("a.png"))
	testutil.SeedPhoto(t, e.db, res.ID, "2024/01/gone.png")

	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewIssueService(e.repos, e.local, access.DefaultGate(), DefaultUploadLimits(), zap.New(core))
	require.NoError(t, svc.Delete(ctx, e.admin, res.ID))

	assert.Zero(t, e.countFiles(t))
	assert.Zero(t, logs.Len(), "a missing file is not a cleanup failure")
}

func TestDeleteWarnsOnFileRemovalFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.create(t, pngUpload("a.png"))

	core, logs := observer.New(zapcore.WarnLevel)
	fs := &failingDeleteStorage{Storage: e.local}
	svc := NewIssueService(e.repos, fs, access.DefaultGate(), DefaultUploadLimits(), zap.New(core))
	require.NoError(t, svc.Delete(ctx, e.admin, res.ID))

	assert.Equal(t, 1, logs.FilterMessage("failed to delete photo file").Len())
}

type recordingNotifier struct {
	actions []string
}

func (n *recordingNotifier) PublishIssueUpdate(issueID, issueNumber, action string) {
	n.actions = append(n.actions, action)
}

func TestNotifierReceivesCommittedMutations(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	n := &recordingNotifier{}
	e.svc.SetNotifier(n)

	res := e.create(t)
	require.NoError(t, e.svc.ChangeStatus(ctx, e.admin, res.ID, entity.IssueStatusAccepted, ""))
	assert.Error(t, e.svc.ChangeStatus(ctx, e.admin, res.ID, "bogus", ""))
	require.NoError(t, e.svc.MarkComplete(ctx, e.admin, res.ID))
	require.NoError(t, e.svc.Delete(ctx, e.admin, res.ID))

	assert.Equal(t, []string{"created", "status_change", "marked_complete", "deleted"}, n.actions)
}

func TestStats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.create(t)
	b := e.create(t)
	e.create(t)
	require.NoError(t, e.svc.ChangeStatus(ctx, e.admin, a.ID, entity.IssueStatusAwaitingConfirmation, ""))
	require.NoError(t, e.svc.MarkComplete(ctx, e.admin, b.ID))

	stats, err := e.svc.Stats(ctx, e.user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Open)
	assert.Equal(t, int64(1), stats.AwaitingConfirmation)
	assert.Equal(t, int64(1), stats.ResolvedOrComplete)
}

func TestParseListQuery(t *testing.T) {
	q, err := ParseListQuery(url.Values{"page": {"abc"}, "limit": {"-3"}})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageLimit, q.Limit)
	assert.Equal(t, repository.DateFieldCreated, q.Filter.DateField)
	assert.False(t, q.Filter.ShowCompleted)

	q, err = ParseListQuery(url.Values{"page": {"3"}, "page_size": {"5000"}, "show_completed": {"YES"}, "date_field": {"Updated"}})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, MaxPageLimit, q.Limit)
	assert.True(t, q.Filter.ShowCompleted)
	assert.Equal(t, repository.DateFieldUpdated, q.Filter.DateField)

	for _, bad := range []url.Values{
		{"start_date": {"2024-13-01"}},
		{"end_date": {"yesterday"}},
		{"check_type": {"truck"}},
		{"date_field": {"deleted"}},
	} {
		_, err := ParseListQuery(bad)
		assert.ErrorIs(t, err, ErrValidation, "%v", bad)
	}
}

func TestParseExportFilter(t *testing.T) {
	f, err := ParseExportFilter(url.Values{})
	require.NoError(t, err)
	assert.True(t, f.ShowCompleted)

	f, err = ParseExportFilter(url.Values{"show_completed": {"false"}})
	require.NoError(t, err)
	assert.False(t, f.ShowCompleted)
}
