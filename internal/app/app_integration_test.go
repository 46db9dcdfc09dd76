package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadline-crm/apps/api/internal/auth"
	"github.com/leadline-crm/apps/api/internal/config"
	"github.com/leadline-crm/apps/api/internal/store"
)

func TestLogoutRevokesSession(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seedUser(t, ctx, env.pool, "session@example.com", "Password123!", "agent")

	cookie := login(t, env.router, "session@example.com", "Password123!")
	status, _ := request(t, env.router, http.MethodGet, "/api/auth/me", nil, cookie, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", status)
	}

	csrf := csrfToken(t, env.router, cookie)
	status, _ = request(t, env.router, http.MethodPost, "/api/auth/logout", nil, cookie, csrf)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 logout response, got %d", status)
	}

	status, _ = request(t, env.router, http.MethodGet, "/api/auth/me", nil, cookie, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", status)
	}
}

func TestPropertyImportPreviewCommitAndReplay(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seedUser(t, ctx, env.pool, "importer@example.com", "Password123!", "admin")
	cookie := login(t, env.router, "importer@example.com", "Password123!")
	csrf := csrfToken(t, env.router, cookie)

	fileCSV := "Address,City,State,Zip,Owner Name,Estimated Value\n" +
		"123 Maple St.,Orlando,FL,32801,John Smith,250000\n" +
		"456 Oak Ave,Tampa,FL,33601,Jane Doe,310000\n"

	status, body := importRequest(t, env.router, "/api/imports/properties/preview", fileCSV, "", cookie, csrf)
	if status != http.StatusOK {
		t.Fatalf("preview expected 200, got %d (%s)", status, string(body))
	}
	var preview struct {
		TotalRows int `json:"totalRows"`
		NewCount  int `json:"newCount"`
	}
	if err := json.Unmarshal(body, &preview); err != nil {
		t.Fatalf("parse preview: %v", err)
	}
	if preview.TotalRows != 2 || preview.NewCount != 2 {
		t.Fatalf("expected 2 new rows, got total=%d new=%d", preview.TotalRows, preview.NewCount)
	}

	selections := `{"newRows":[0,1],"updateRows":[]}`
	status, body = importRequest(t, env.router, "/api/imports/properties/commit", fileCSV, selections, cookie, csrf)
	if status != http.StatusOK {
		t.Fatalf("commit expected 200, got %d (%s)", status, string(body))
	}
	var commit struct {
		ImportRunID string `json:"importRunId"`
		Stats       struct {
			Created         int `json:"created"`
			SkippedUpToDate int `json:"skippedUpToDate"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(body, &commit); err != nil {
		t.Fatalf("parse commit: %v", err)
	}
	if commit.Stats.Created != 2 {
		t.Fatalf("expected 2 created, got %d", commit.Stats.Created)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/imports/"+commit.ImportRunID, nil, cookie, "")
	if status != http.StatusOK {
		t.Fatalf("run report expected 200, got %d (%s)", status, string(body))
	}
	status, body = request(t, env.router, http.MethodGet, "/api/imports/"+commit.ImportRunID+"/errors.csv", nil, cookie, "")
	if status != http.StatusOK {
		t.Fatalf("errors.csv expected 200, got %d (%s)", status, string(body))
	}
	if !strings.HasPrefix(string(body), "row_number,") {
		t.Fatalf("expected CSV header, got %s", string(body))
	}

	// Replaying the same file converges to no-ops.
	status, body = importRequest(t, env.router, "/api/imports/properties/commit", fileCSV, selections, cookie, csrf)
	if status != http.StatusOK {
		t.Fatalf("replay expected 200, got %d (%s)", status, string(body))
	}
	if err := json.Unmarshal(body, &commit); err != nil {
		t.Fatalf("parse replay: %v", err)
	}
	if commit.Stats.Created != 0 || commit.Stats.SkippedUpToDate != 2 {
		t.Fatalf("expected replay to skip both rows, got created=%d skipped=%d", commit.Stats.Created, commit.Stats.SkippedUpToDate)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/properties?q=maple", nil, cookie, "")
	if status != http.StatusOK {
		t.Fatalf("list expected 200, got %d (%s)", status, string(body))
	}
	var list struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected 1 search hit, got %d", list.Total)
	}
}

func TestContactImportAttachesChannels(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seedUser(t, ctx, env.pool, "skiptrace@example.com", "Password123!", "admin")
	propertyID := seedProperty(t, ctx, env.pool, "789 Pine Rd", "Miami")

	cookie := login(t, env.router, "skiptrace@example.com", "Password123!")
	csrf := csrfToken(t, env.router, cookie)

	fileCSV := "Property Address,City,Name,Phone 1,Email 1\n" +
		"789 Pine Rd,Miami,Carlos Rivera,(305) 555-0188,carlos@example.com\n"

	status, body := importRequest(t, env.router, "/api/imports/contacts/commit", fileCSV, "", cookie, csrf)
	if status != http.StatusOK {
		t.Fatalf("contact commit expected 200, got %d (%s)", status, string(body))
	}
	var commit struct {
		Stats struct {
			ContactsCreated int `json:"contactsCreated"`
			PhonesAdded     int `json:"phonesAdded"`
			EmailsAdded     int `json:"emailsAdded"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(body, &commit); err != nil {
		t.Fatalf("parse commit: %v", err)
	}
	if commit.Stats.ContactsCreated != 1 || commit.Stats.PhonesAdded != 1 || commit.Stats.EmailsAdded != 1 {
		t.Fatalf("unexpected stats: %+v", commit.Stats)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/properties/"+propertyID.String()+"/contacts", nil, cookie, "")
	if status != http.StatusOK {
		t.Fatalf("contacts expected 200, got %d (%s)", status, string(body))
	}
	var contacts struct {
		Items []struct {
			Name   string `json:"name"`
			Phones []struct {
				PhoneNumber string `json:"phoneNumber"`
			} `json:"phones"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &contacts); err != nil {
		t.Fatalf("parse contacts: %v", err)
	}
	if len(contacts.Items) != 1 || contacts.Items[0].Name != "Carlos Rivera" {
		t.Fatalf("expected one contact named Carlos Rivera, got %+v", contacts.Items)
	}
	if len(contacts.Items[0].Phones) != 1 || contacts.Items[0].Phones[0].PhoneNumber != "3055550188" {
		t.Fatalf("expected normalized phone, got %+v", contacts.Items[0].Phones)
	}
}

func TestMergeRequiresAdminRole(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seedUser(t, ctx, env.pool, "agent@example.com", "Password123!", "agent")
	seedUser(t, ctx, env.pool, "admin@example.com", "Password123!", "admin")
	primary := seedProperty(t, ctx, env.pool, "1 First St", "Austin")
	secondary := seedProperty(t, ctx, env.pool, "2 Second St", "Austin")

	payload, _ := json.Marshal(map[string]string{
		"primaryId":   primary.String(),
		"secondaryId": secondary.String(),
	})

	agentCookie := login(t, env.router, "agent@example.com", "Password123!")
	agentCsrf := csrfToken(t, env.router, agentCookie)
	status, _ := request(t, env.router, http.MethodPost, "/api/properties/merge", payload, agentCookie, agentCsrf)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for agent merge, got %d", status)
	}

	adminCookie := login(t, env.router, "admin@example.com", "Password123!")
	adminCsrf := csrfToken(t, env.router, adminCookie)
	status, body := request(t, env.router, http.MethodPost, "/api/properties/merge", payload, adminCookie, adminCsrf)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for admin merge, got %d (%s)", status, string(body))
	}

	status, _ = request(t, env.router, http.MethodGet, "/api/properties/"+secondary.String(), nil, adminCookie, "")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for merged property, got %d", status)
	}

	status, body = request(t, env.router, http.MethodGet, "/api/properties/"+primary.String()+"/merge-history", nil, adminCookie, "")
	if status != http.StatusOK {
		t.Fatalf("merge history expected 200, got %d (%s)", status, string(body))
	}
	var history struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("parse history: %v", err)
	}
	if len(history.Items) != 1 {
		t.Fatalf("expected one merge record, got %d", len(history.Items))
	}
}

func TestMergeFoldsCollidingContactChannels(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	seedUser(t, ctx, env.pool, "merger@example.com", "Password123!", "admin")
	primary := seedProperty(t, ctx, env.pool, "10 Oak Ave", "Tampa")
	secondary := seedProperty(t, ctx, env.pool, "12 Oak Ave", "Tampa")

	keeper := seedContact(t, ctx, env.pool, primary, "Jane Doe")
	seedContactPhone(t, ctx, env.pool, keeper, "8135550100", true)
	doomed := seedContact(t, ctx, env.pool, secondary, "jane doe")
	seedContactPhone(t, ctx, env.pool, doomed, "8135550100", true)
	seedContactPhone(t, ctx, env.pool, doomed, "8135550199", false)
	seedContactEmail(t, ctx, env.pool, doomed, "jane@example.com")
	mover := seedContact(t, ctx, env.pool, secondary, "Bob Roe")
	seedContactPhone(t, ctx, env.pool, mover, "8135550177", true)

	cookie := login(t, env.router, "merger@example.com", "Password123!")
	csrf := csrfToken(t, env.router, cookie)
	payload, _ := json.Marshal(map[string]string{
		"primaryId":   primary.String(),
		"secondaryId": secondary.String(),
	})
	status, body := request(t, env.router, http.MethodPost, "/api/properties/merge", payload, cookie, csrf)
	if status != http.StatusOK {
		t.Fatalf("merge expected 200, got %d (%s)", status, string(body))
	}

	status, body = request(t, env.router, http.MethodGet, "/api/properties/"+primary.String()+"/contacts", nil, cookie, "")
	if status != http.StatusOK {
		t.Fatalf("contacts expected 200, got %d (%s)", status, string(body))
	}
	var contacts struct {
		Items []struct {
			Name   string `json:"name"`
			Phones []struct {
				PhoneNumber string `json:"phoneNumber"`
				IsPrimary   bool   `json:"isPrimary"`
			} `json:"phones"`
			Emails []struct {
				Email string `json:"email"`
			} `json:"emails"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &contacts); err != nil {
		t.Fatalf("parse contacts: %v", err)
	}
	if len(contacts.Items) != 2 {
		t.Fatalf("expected 2 contacts after merge, got %d", len(contacts.Items))
	}

	var jane *struct {
		Name   string `json:"name"`
		Phones []struct {
			PhoneNumber string `json:"phoneNumber"`
			IsPrimary   bool   `json:"isPrimary"`
		} `json:"phones"`
		Emails []struct {
			Email string `json:"email"`
		} `json:"emails"`
	}
	for i := range contacts.Items {
		if strings.EqualFold(contacts.Items[i].Name, "Jane Doe") {
			jane = &contacts.Items[i]
		}
	}
	if jane == nil {
		t.Fatal("merged contact list is missing Jane Doe")
	}
	if len(jane.Phones) != 2 {
		t.Fatalf("expected Jane to keep 2 deduped phones, got %d", len(jane.Phones))
	}
	for _, p := range jane.Phones {
		if p.PhoneNumber == "8135550100" && !p.IsPrimary {
			t.Fatal("Jane's own phone lost its primary flag")
		}
		if p.PhoneNumber == "8135550199" && p.IsPrimary {
			t.Fatal("folded phone must not arrive primary")
		}
	}
	if len(jane.Emails) != 1 || jane.Emails[0].Email != "jane@example.com" {
		t.Fatalf("expected Jane to gain the folded email, got %+v", jane.Emails)
	}
}

type testEnv struct {
	pool   *pgxpool.Pool
	router http.Handler
}

func setupTestEnv(t *testing.T) testEnv {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	// The router loads openapi.yaml relative to the working directory.
	t.Chdir(repoRoot(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect test db: %v", err)
	}
	t.Cleanup(pool.Close)

	resetSchema(t, ctx, pool)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		Addr:               ":0",
		DatabaseURL:        databaseURL,
		SessionCookieName:  "ll_sess",
		SessionTTL:         12 * time.Hour,
		SecureCookies:      false,
		CSRFEnforce:        true,
		Env:                "test",
		APIMaxBodyBytes:    2 << 20,
		ImportMaxFileBytes: 25 << 20,
		ImportMaxRows:      5000,
		RateLimitMaxIPs:    1024,
	}

	router, err := NewRouter(cfg, store.New(pool), pool, logger)
	if err != nil {
		t.Fatalf("create router: %v", err)
	}

	return testEnv{pool: pool, router: router}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "openapi.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("openapi.yaml not found above test directory")
		}
		dir = parent
	}
}

func resetSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	if _, err := pool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	sqlBytes, err := os.ReadFile(filepath.Join("migrations", "00001_init.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	schema := string(sqlBytes)
	if idx := strings.Index(schema, "-- +goose Down"); idx >= 0 {
		schema = schema[:idx]
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func seedUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, email, password, role string) uuid.UUID {
	t.Helper()
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var userID uuid.UUID
	if err := pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id
	`, email, email, passwordHash, role).Scan(&userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return userID
}

func seedProperty(t *testing.T, ctx context.Context, pool *pgxpool.Pool, address, city string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	if err := pool.QueryRow(ctx, `
		INSERT INTO properties (address_line1, city, state, zipcode)
		VALUES ($1, $2, 'FL', '00000')
		RETURNING id
	`, address, city).Scan(&id); err != nil {
		t.Fatalf("seed property: %v", err)
	}
	return id
}

func seedContact(t *testing.T, ctx context.Context, pool *pgxpool.Pool, propertyID uuid.UUID, name string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	if err := pool.QueryRow(ctx, `
		INSERT INTO contacts (property_id, name)
		VALUES ($1, $2)
		RETURNING id
	`, propertyID, name).Scan(&id); err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	return id
}

func seedContactPhone(t *testing.T, ctx context.Context, pool *pgxpool.Pool, contactID uuid.UUID, number string, primary bool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
		INSERT INTO contact_phones (contact_id, phone_number, is_primary)
		VALUES ($1, $2, $3)
	`, contactID, number, primary); err != nil {
		t.Fatalf("seed contact phone: %v", err)
	}
}

func seedContactEmail(t *testing.T, ctx context.Context, pool *pgxpool.Pool, contactID uuid.UUID, email string) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
		INSERT INTO contact_emails (contact_id, email)
		VALUES ($1, $2)
	`, contactID, email); err != nil {
		t.Fatalf("seed contact email: %v", err)
	}
}

func login(t *testing.T, router http.Handler, email, password string) *http.Cookie {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:12345"
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		body, _ := io.ReadAll(rec.Result().Body)
		t.Fatalf("login expected 200, got %d with body: %s", rec.Code, string(body))
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == "ll_sess" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func csrfToken(t *testing.T, router http.Handler, session *http.Cookie) string {
	t.Helper()
	status, body := request(t, router, http.MethodGet, "/api/auth/csrf", nil, session, "")
	if status != http.StatusOK {
		t.Fatalf("csrf expected 200, got %d (%s)", status, string(body))
	}
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("parse csrf body: %v", err)
	}
	return payload["csrfToken"]
}

func importRequest(t *testing.T, router http.Handler, path, fileCSV, selections string, session *http.Cookie, csrf string) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(fileCSV)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if selections != "" {
		if err := mw.WriteField("selections", selections); err != nil {
			t.Fatalf("write selections: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "127.0.0.1:12345"
	req.AddCookie(session)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	resBody, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, resBody
}

func request(t *testing.T, router http.Handler, method, path string, body []byte, session *http.Cookie, csrf string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:12345"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != nil {
		req.AddCookie(session)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	resBody, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, resBody
}
