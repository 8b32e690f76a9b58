//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("TRIAGEM_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

func TestScreeningJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	stamp := time.Now().UnixNano()
	email := fmt.Sprintf("integration_%d@example.com", stamp)
	password := "Secret123!"

	var registerResp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	doPost(t, client, base+"/api/auth/register", "", map[string]any{
		"email":     email,
		"password":  password,
		"full_name": "Integração",
		"role":      "especialista",
	}, &registerResp)
	if registerResp.Token == "" || registerResp.Role != "specialist" {
		t.Fatalf("unexpected register response: %+v", registerResp)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	doPost(t, client, base+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &loginResp)
	token := loginResp.Token
	if token == "" {
		t.Fatalf("login did not return token")
	}

	var subject struct {
		ID string `json:"id"`
	}
	doPost(t, client, base+"/api/subjects", token, map[string]any{
		"full_name":        "Criança Integração",
		"national_id":      fmt.Sprintf("%011d", stamp%100000000000),
		"region":           "Nordeste",
		"research_consent": true,
	}, &subject)
	if subject.ID == "" {
		t.Fatalf("expected subject id in response")
	}

	answers := map[string]int{}
	for i := 1; i <= 27; i++ {
		answers[strconv.Itoa(i)] = 1
	}
	submission := map[string]any{
		"subject_id": subject.ID,
		"answers":    answers,
		"age":        9,
		"respondent": "parents",
	}
	var result struct {
		RawScore int    `json:"raw_score"`
		Risk     string `json:"risk_category"`
	}
	doPost(t, client, base+"/api/screenings/assq", token, submission, &result)
	if result.RawScore != 27 || result.Risk != "high" {
		t.Fatalf("unexpected screening result: %+v", result)
	}

	if status := postStatus(t, client, base+"/api/screenings/assq", token, submission); status != http.StatusConflict {
		t.Fatalf("second submission status %d, want %d", status, http.StatusConflict)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/api/dashboard/export?risk=high", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("export request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("export status %d body %s", resp.StatusCode, string(body))
	}
	csvData, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read export data: %v", err)
	}
	if !strings.Contains(string(csvData), subject.ID) {
		t.Fatalf("export csv did not contain subject id; csv=%s", csvData)
	}
}

func newPost(t *testing.T, url, token string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func postStatus(t *testing.T, client *http.Client, url, token string, body any) int {
	t.Helper()
	resp, err := client.Do(newPost(t, url, token, body))
	if err != nil {
		t.Fatalf("http post %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func doPost(t *testing.T, client *http.Client, url, token string, body any, out any) {
	t.Helper()
	resp, err := client.Do(newPost(t, url, token, body))
	if err != nil {
		t.Fatalf("http post %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}
