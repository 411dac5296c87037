package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
	"github.com/groupbot-dev/groupbot/internal/data"
)

// MockPlatformRepo implements repo.PlatformRepo for testing
type MockPlatformRepo struct {
	groups    []domain.Group
	groupsErr error
}

func (m *MockPlatformRepo) Name() string                    { return "mock" }
func (m *MockPlatformRepo) Login(ctx context.Context) error { return nil }
func (m *MockPlatformRepo) Self(ctx context.Context) (domain.User, error) {
	return domain.User{ID: "bot", Name: "GroupBot"}, nil
}
func (m *MockPlatformRepo) Friends(ctx context.Context) ([]domain.User, error) { return nil, nil }
func (m *MockPlatformRepo) Groups(ctx context.Context, refresh bool) ([]domain.Group, error) {
	return m.groups, m.groupsErr
}
func (m *MockPlatformRepo) Members(ctx context.Context, groupID string) ([]domain.User, error) {
	return nil, nil
}
func (m *MockPlatformRepo) SendText(ctx context.Context, chatID, text string) error { return nil }
func (m *MockPlatformRepo) AddMember(ctx context.Context, groupID string, user domain.User) error {
	return nil
}
func (m *MockPlatformRepo) RemoveMember(ctx context.Context, groupID string, user domain.User) error {
	return nil
}
func (m *MockPlatformRepo) AcceptFriend(ctx context.Context, msg *domain.Message) (domain.User, error) {
	return domain.User{}, nil
}
func (m *MockPlatformRepo) DumpSession(ctx context.Context) error { return nil }
func (m *MockPlatformRepo) Run(ctx context.Context, handler repo.MessageHandler) error {
	return nil
}

func newTestServer(platform *MockPlatformRepo) (*Server, repo.HistoryRepo, *usecase.StatusUsecase) {
	history := data.NewHistoryRepo(10)
	statusUC := usecase.NewStatusUsecase(history)
	groupUC := usecase.NewGroupUsecase(platform, []string{"g2", "g1"})
	return NewServer(statusUC, groupUC, 0, zerolog.Nop()), history, statusUC
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(&MockPlatformRepo{})

	w := get(t, s, "/health")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("Expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	s, history, _ := newTestServer(&MockPlatformRepo{})
	history.Append(&domain.Message{ID: "1"})
	history.Append(&domain.Message{ID: "2"})

	w := get(t, s, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Messages != 2 {
		t.Errorf("Expected 2 messages, got %d", resp.Messages)
	}
	if resp.MemoryBytes == 0 || resp.Memory == "" {
		t.Errorf("Expected memory usage, got %d %q", resp.MemoryBytes, resp.Memory)
	}
	if !strings.HasPrefix(resp.Report, "[now] ") {
		t.Errorf("Unexpected report %q", resp.Report)
	}
}

func TestHandleGroups(t *testing.T) {
	s, _, _ := newTestServer(&MockPlatformRepo{
		groups: []domain.Group{
			{ID: "g1", Name: "Group 1", Size: 10},
			{ID: "g2", Name: "Group 2", Size: 20},
			{ID: "g3", Name: "Unmanaged", Size: 30},
		},
	})

	w := get(t, s, "/api/groups")
	var resp GroupsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if len(resp.Groups) != 2 {
		t.Fatalf("Expected 2 managed groups, got %d", len(resp.Groups))
	}
	if resp.Groups[0].ID != "g2" || resp.Groups[1].ID != "g1" {
		t.Errorf("Expected configured order g2, g1, got %+v", resp.Groups)
	}
}

func TestHandleGroups_Error(t *testing.T) {
	s, _, _ := newTestServer(&MockPlatformRepo{groupsErr: errors.New("offline")})

	w := get(t, s, "/api/groups")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestHandleLatency(t *testing.T) {
	s, _, statusUC := newTestServer(&MockPlatformRepo{})

	var resp LatencyResponse
	json.Unmarshal(get(t, s, "/api/latency").Body.Bytes(), &resp)
	if resp.Known {
		t.Error("Expected unknown latency before any message")
	}

	statusUC.MarkReceived(&domain.Message{ID: "1"})

	json.Unmarshal(get(t, s, "/api/latency").Body.Bytes(), &resp)
	if !resp.Known || resp.Formatted != "0.00" {
		t.Errorf("Expected known zero latency, got %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(&MockPlatformRepo{})

	w := get(t, s, "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}
