package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestChat_Disabled(t *testing.T) {
	uc := NewChatUsecase(nil, "GroupBot")

	if uc.IsEnabled() {
		t.Error("Expected chat to be disabled")
	}
	reply, err := uc.Reply(context.Background(), withText(directMsg("1", "alice", baseTime), "hi"))
	if reply != "" || err != nil {
		t.Errorf("Expected no reply, got (%q, %v)", reply, err)
	}
}

func TestChat_StripsMention(t *testing.T) {
	chatRepo := &mockChatRepo{reply: "hello"}
	uc := NewChatUsecase(chatRepo, "GroupBot")

	reply, err := uc.Reply(context.Background(), withText(groupMsg("1", "g1", "alice", baseTime, true), "@GroupBot"))
	if err != nil || reply != "" {
		t.Errorf("Expected no reply for a bare mention, got (%q, %v)", reply, err)
	}
	if chatRepo.calls != 0 {
		t.Error("Chatbot should not be called for empty text")
	}

	reply, err = uc.Reply(context.Background(), withText(groupMsg("2", "g1", "alice", baseTime, true), "@GroupBot hi"))
	if err != nil || reply != "hello" {
		t.Errorf("Expected hello, got (%q, %v)", reply, err)
	}
}

func TestChat_Error(t *testing.T) {
	uc := NewChatUsecase(&mockChatRepo{err: errors.New("quota")}, "GroupBot")

	if _, err := uc.Reply(context.Background(), withText(directMsg("1", "alice", baseTime), "hi")); err == nil {
		t.Error("Expected error")
	}
}
