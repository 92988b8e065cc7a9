package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"autohaus/internal/app"
	"autohaus/internal/auth"
	"autohaus/pkg/domain"
	"autohaus/pkg/store"
)

func newTestServer(t *testing.T, verifier *auth.Verifier) *httptest.Server {
	t.Helper()
	st := store.NewMemoryStore()
	reader := app.NewReadService(st, nil)
	writer := app.NewWriteService(st, reader, nil, nil, nil)
	srv := New(Config{Reader: reader, Writer: writer, Verifier: verifier})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func autoBody(fgnr string) string {
	return `{
		"fahrgestellnummer": "` + fgnr + `",
		"marke": "VW",
		"modell": "Golf",
		"baujahr": 2020,
		"art": "KOMBI",
		"preis": "19999.99",
		"sicherheitsmerkmale": ["ABS"],
		"motor": {"name": "Beta", "ps": 150, "zylinder": 6, "drehzahl": "1500.8"},
		"reperaturen": [{"kosten": "78.90", "mechaniker": "Hans", "datum": "2024-01-31"}]
	}`
}

func doJSON(t *testing.T, method, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func createAuto(t *testing.T, ts *httptest.Server, fgnr string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/rest", autoBody(fgnr), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("create: status %d, body %s", resp.StatusCode, b)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		t.Fatal("create: Location header missing")
	}
	return location
}

func TestCreateThenGet(t *testing.T) {
	ts := newTestServer(t, nil)
	location := createAuto(t, ts, "WVWZZZ1JZXW000100")
	if !strings.Contains(location, "/rest/") {
		t.Fatalf("location: %q", location)
	}

	resp, err := http.Get(location)
	if err != nil {
		t.Fatalf("GET %s: %v", location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	if etag := resp.Header.Get("ETag"); etag != `"0"` {
		t.Fatalf("etag: got %q, want %q", etag, `"0"`)
	}
	var auto domain.Auto
	if err := json.NewDecoder(resp.Body).Decode(&auto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if auto.Marke != "VW" || auto.Motor == nil || auto.Motor.Name != "Beta" {
		t.Fatalf("payload: %+v", auto)
	}
}

func TestGetUnknownID(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/rest/4711")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("Es gibt kein Auto mit der ID 4711.")) {
		t.Fatalf("body: %s", body)
	}
}

func TestGetNotModified(t *testing.T) {
	ts := newTestServer(t, nil)
	location := createAuto(t, ts, "WVWZZZ1JZXW000101")

	resp := doJSON(t, http.MethodGet, location, "", map[string]string{"If-None-Match": `"0"`})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("status: got %d, want 304", resp.StatusCode)
	}
}

func TestCreateValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"fahrgestellnummer": "", "marke": "", "modell": "Golf", "baujahr": 2020,
		"art": "TRAKTOR", "preis": "-1",
		"motor": {"name": "Beta", "ps": 1200, "zylinder": 30, "drehzahl": "0"}}`

	resp := doJSON(t, http.MethodPost, ts.URL+"/rest", body, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Fahrgestellnummer", "Marke", "Autoart", "PS-Zahl", "Zylinderzahl", "Preis"} {
		if !bytes.Contains(raw, []byte(want)) {
			t.Fatalf("body %s missing %q", raw, want)
		}
	}
}

func TestCreateDuplicateFahrgestellnummer(t *testing.T) {
	ts := newTestServer(t, nil)
	createAuto(t, ts, "WVWZZZ1JZXW000102")

	resp := doJSON(t, http.MethodPost, ts.URL+"/rest", autoBody("WVWZZZ1JZXW000102"), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422", resp.StatusCode)
	}
}

func TestSearchByMarke(t *testing.T) {
	ts := newTestServer(t, nil)
	createAuto(t, ts, "WVWZZZ1JZXW000103")

	resp, err := http.Get(ts.URL + "/rest?marke=VW")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var page domain.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || len(page.Content) != 1 {
		t.Fatalf("page: %+v", page)
	}

	miss, err := http.Get(ts.URL + "/rest?marke=Tesla")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer miss.Body.Close()
	if miss.StatusCode != http.StatusNotFound {
		t.Fatalf("miss status: %d", miss.StatusCode)
	}
}

func TestUpdateLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	location := createAuto(t, ts, "WVWZZZ1JZXW000104")
	body := autoBody("ignored")

	// missing If-Match
	resp := doJSON(t, http.MethodPut, location, body, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionRequired {
		t.Fatalf("missing If-Match: got %d, want 428", resp.StatusCode)
	}

	// malformed token
	resp = doJSON(t, http.MethodPut, location, body, map[string]string{"If-Match": "0"})
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed || !bytes.Contains(raw, []byte("Versionsnummer")) {
		t.Fatalf("malformed token: status %d body %s", resp.StatusCode, raw)
	}

	// current token succeeds
	resp = doJSON(t, http.MethodPut, location, body, map[string]string{"If-Match": `"0"`})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update: got %d, want 204", resp.StatusCode)
	}
	if etag := resp.Header.Get("ETag"); etag != `"1"` {
		t.Fatalf("etag after update: %q", etag)
	}

	// replaying the old token is stale
	resp = doJSON(t, http.MethodPut, location, body, map[string]string{"If-Match": `"0"`})
	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed || !bytes.Contains(raw, []byte("Versionsnummer")) {
		t.Fatalf("stale token: status %d body %s", resp.StatusCode, raw)
	}
}

func TestUpdateUnknownIDAnswers404(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := doJSON(t, http.MethodPut, ts.URL+"/rest/999", autoBody("x"), map[string]string{"If-Match": `"0"`})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestDeleteLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	location := createAuto(t, ts, "WVWZZZ1JZXW000105")

	resp := doJSON(t, http.MethodDelete, location, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204", resp.StatusCode)
	}

	get, err := http.Get(location)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Fatalf("after delete: got %d, want 404", get.StatusCode)
	}
}

func TestFileUploadDownload(t *testing.T) {
	ts := newTestServer(t, nil)
	location := createAuto(t, ts, "WVWZZZ1JZXW000106")

	req, _ := http.NewRequest(http.MethodPut, location+"/file", bytes.NewReader([]byte{0x89, 0x50, 0x4e, 0x47}))
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("X-Filename", "bild.png")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("upload: got %d, want 204", resp.StatusCode)
	}

	get, err := http.Get(location + "/file")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("download: got %d, want 200", get.StatusCode)
	}
	if ct := get.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type: %q", ct)
	}
	data, _ := io.ReadAll(get.Body)
	if len(data) != 4 {
		t.Fatalf("payload length: %d", len(data))
	}
}

func TestFileDownloadWithoutAttachment(t *testing.T) {
	ts := newTestServer(t, nil)
	location := createAuto(t, ts, "WVWZZZ1JZXW000107")

	resp, err := http.Get(location + "/file")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
}

const testSecret = "test-secret-please-rotate"

func signToken(t *testing.T, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   "tester",
		"iss":   "autohaus",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestWriteEndpointsEnforceRoles(t *testing.T) {
	verifier := auth.NewVerifier(testSecret, "autohaus")
	ts := newTestServer(t, verifier)

	// no token
	resp := doJSON(t, http.MethodPost, ts.URL+"/rest", autoBody("WVWZZZ1JZXW000108"), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous create: got %d, want 401", resp.StatusCode)
	}

	// kunde may create
	kunde := map[string]string{"Authorization": "Bearer " + signToken(t, auth.RoleKunde)}
	resp = doJSON(t, http.MethodPost, ts.URL+"/rest", autoBody("WVWZZZ1JZXW000108"), kunde)
	location := resp.Header.Get("Location")
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("kunde create: got %d, want 201", resp.StatusCode)
	}

	// kunde must not delete
	resp = doJSON(t, http.MethodDelete, location, "", kunde)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("kunde delete: got %d, want 403", resp.StatusCode)
	}

	// admin deletes
	admin := map[string]string{"Authorization": "Bearer " + signToken(t, auth.RoleAdmin)}
	resp = doJSON(t, http.MethodDelete, location, "", admin)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete: got %d, want 204", resp.StatusCode)
	}

	// reads stay public
	get, err := http.Get(ts.URL + "/rest/999")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Fatalf("anonymous read: got %d, want 404", get.StatusCode)
	}
}
