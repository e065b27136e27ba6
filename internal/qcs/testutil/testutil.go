package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret    = "qcs-test-jwt-secret"
	JWTIssuer    = "qcs"
	TestPassword = "password123"
)

// SetupTestDB 每个测试使用独立的sqlite临时文件
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "qcs_test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter 测试用gin引擎
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// GenerateTestToken 生成测试令牌
func GenerateTestToken(userID, username, role string) string {
	return signToken(userID, username, role, time.Now().Add(24*time.Hour))
}

// ExpiredTestToken 已过期的令牌
func ExpiredTestToken(userID string) string {
	return signToken(userID, "expired", entity.RoleUser, time.Now().Add(-time.Hour))
}

func signToken(userID, username, role string, exp time.Time) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"uid":      userID,
		"username": username,
		"role":     role,
		"iss":      JWTIssuer,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
		"jti":      fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// TokenFor 为已有用户生成令牌
func TokenFor(user *entity.User) string {
	return GenerateTestToken(user.ID, user.Username, user.Role)
}

// DoRequest 发送JSON请求
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// TestFile multipart上传的文件
type TestFile struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// PNG 一个最小的png文件
func PNG(name string) TestFile {
	return TestFile{
		Field:       "photos",
		Filename:    name,
		ContentType: "image/png",
		Content:     []byte("\x89PNG\r\n\x1a\n0000"),
	}
}

// DoMultipart 发送multipart请求
func DoMultipart(r *gin.Engine, method, path string, fields map[string]string, files []TestFile, token string) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.Field, f.Filename))
		h.Set("Content-Type", f.ContentType)
		part, _ := mw.CreatePart(h)
		io.Copy(part, bytes.NewReader(f.Content))
	}
	mw.Close()

	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse 解析响应JSON
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedUser 创建测试用户，密码为TestPassword
func SeedUser(t *testing.T, db *gorm.DB, username, role string) *entity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &entity.User{
		ID:       uuid.New().String()[:32],
		Username: username,
		Password: string(hash),
		Role:     role,
		FullName: "Test " + username,
		Email:    username + "@test.com",
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedSupplier 创建测试供应商
func SeedSupplier(t *testing.T, db *gorm.DB, code, name string) *entity.Supplier {
	t.Helper()
	supplier := &entity.Supplier{
		ID:       uuid.New().String()[:32],
		Name:     name,
		Code:     code,
		IsActive: true,
	}
	if err := db.Create(supplier).Error; err != nil {
		t.Fatalf("Failed to seed test supplier: %v", err)
	}
	return supplier
}

// SeedProduct 创建测试产品
func SeedProduct(t *testing.T, db *gorm.DB, itemNo, name string) *entity.Product {
	t.Helper()
	product := &entity.Product{
		ID:       uuid.New().String()[:32],
		Name:     name,
		ItemNo:   itemNo,
		IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("Failed to seed test product: %v", err)
	}
	return product
}

// SeedIssue 直接写入一条问题，mutate可修改默认值（vehicle/pending/未完成）
func SeedIssue(t *testing.T, db *gorm.DB, createdBy string, mutate func(*entity.Issue)) *entity.Issue {
	t.Helper()

	var maxSeq int
	db.Model(&entity.Issue{}).Select("COALESCE(MAX(issue_seq), ?)", entity.IssueNumberFloor).Scan(&maxSeq)

	issue := &entity.Issue{
		ID:        uuid.New().String()[:32],
		IssueSeq:  maxSeq + 1,
		CheckType: entity.CheckTypeVehicle,
		Status:    entity.IssueStatusPending,
		CreatedBy: createdBy,
	}
	if mutate != nil {
		mutate(issue)
	}
	if issue.IssueNumber == "" {
		issue.IssueNumber = fmt.Sprintf("%d", issue.IssueSeq)
	}
	if err := db.Create(issue).Error; err != nil {
		t.Fatalf("Failed to seed test issue: %v", err)
	}
	return issue
}

// SeedPhoto 登记一张照片
func SeedPhoto(t *testing.T, db *gorm.DB, issueID, path string) *entity.Photo {
	t.Helper()
	photo := &entity.Photo{
		ID:       uuid.New().String()[:32],
		IssueID:  issueID,
		FileName: filepath.Base(path),
		FilePath: path,
		FileSize: 4,
		MimeType: "image/png",
	}
	if err := db.Create(photo).Error; err != nil {
		t.Fatalf("Failed to seed test photo: %v", err)
	}
	return photo
}
