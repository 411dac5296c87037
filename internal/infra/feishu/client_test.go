package feishu

import (
	"context"
	"testing"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
)

func strPtr(s string) *string { return &s }

func newTestClient() *Client {
	c := NewClient("app", "secret", zerolog.Nop())
	c.self = domain.User{ID: "ou_bot", Name: "GroupBot"}
	c.groups["oc_1"] = domain.Group{ID: "oc_1", Name: "Group 1", Size: 3}
	c.members["oc_1"] = []domain.User{{ID: "ou_alice", Name: "Alice"}}
	return c
}

func TestParseTextContent(t *testing.T) {
	text := parseTextContent(`{"text":"@_user_1 hello"}`, map[string]string{"@_user_1": "GroupBot"})
	if text != "@GroupBot hello" {
		t.Errorf("Expected mention replaced, got %q", text)
	}
	if parseTextContent("not json", nil) != "" {
		t.Error("Expected empty text for invalid JSON")
	}
}

func TestParsePostContent(t *testing.T) {
	content := `{"title":"Title","content":[[{"tag":"at","user_id":"@_user_1"},{"tag":"text","text":" hi"}],[{"tag":"img","image_key":"k"}]]}`
	text := parsePostContent(content, map[string]string{"@_user_1": "GroupBot"})
	if text != "Title\n@GroupBot hi" {
		t.Errorf("Unexpected post text %q", text)
	}
}

func TestReceiveIDType(t *testing.T) {
	if receiveIDType("ou_123") != larkim.ReceiveIdTypeOpenId {
		t.Error("Expected open_id for ou_ ids")
	}
	if receiveIDType("oc_123") != larkim.ReceiveIdTypeChatId {
		t.Error("Expected chat_id for oc_ ids")
	}
}

func TestConvertMessage_Group(t *testing.T) {
	c := newTestClient()

	event := &larkim.P2MessageReceiveV1{
		Event: &larkim.P2MessageReceiveV1Data{
			Sender: &larkim.EventSender{
				SenderId:   &larkim.UserId{OpenId: strPtr("ou_alice")},
				SenderType: strPtr("user"),
			},
			Message: &larkim.EventMessage{
				MessageId:   strPtr("om_1"),
				ChatId:      strPtr("oc_1"),
				ChatType:    strPtr("group"),
				MessageType: strPtr("text"),
				Content:     strPtr(`{"text":"@_user_1 help"}`),
				CreateTime:  strPtr("1714564800000"),
				Mentions: []*larkim.MentionEvent{
					{Key: strPtr("@_user_1"), Name: strPtr("GroupBot"), Id: &larkim.UserId{OpenId: strPtr("ou_bot")}},
				},
			},
		},
	}

	msg := c.convertMessage(context.Background(), event)
	if msg == nil {
		t.Fatal("Expected a message")
	}
	if !msg.IsGroup() || !msg.IsAt || msg.Type != domain.MsgText {
		t.Errorf("Unexpected message %+v", msg)
	}
	if msg.Sender.Name != "Group 1" || msg.Member == nil || msg.Member.Name != "Alice" {
		t.Errorf("Unexpected sender %+v member %+v", msg.Sender, msg.Member)
	}
	if msg.Text != "@GroupBot help" {
		t.Errorf("Unexpected text %q", msg.Text)
	}
	if msg.CreateTime.UnixMilli() != 1714564800000 {
		t.Errorf("Unexpected create time %v", msg.CreateTime)
	}
}

func TestConvertMessage_DropsAppMessages(t *testing.T) {
	c := newTestClient()

	event := &larkim.P2MessageReceiveV1{
		Event: &larkim.P2MessageReceiveV1Data{
			Sender:  &larkim.EventSender{SenderType: strPtr("app")},
			Message: &larkim.EventMessage{MessageId: strPtr("om_1"), ChatId: strPtr("oc_1")},
		},
	}
	if msg := c.convertMessage(context.Background(), event); msg != nil {
		t.Errorf("Expected app message to be dropped, got %+v", msg)
	}
}

func TestConvertMemberAdded(t *testing.T) {
	c := newTestClient()

	event := &larkim.P2ChatMemberUserAddedV1{
		Event: &larkim.P2ChatMemberUserAddedV1Data{
			ChatId: strPtr("oc_1"),
			Users:  []*larkim.ChatMemberUser{{Name: strPtr("小明")}, {Name: strPtr("小红")}},
		},
	}

	msgs := c.convertMemberAdded(event)
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 notes, got %d", len(msgs))
	}
	if msgs[0].ID == "" || msgs[0].ID == msgs[1].ID {
		t.Errorf("Expected distinct note IDs, got %q and %q", msgs[0].ID, msgs[1].ID)
	}
	if msgs[0].Type != domain.MsgNote || msgs[0].Text != `邀请"小明"加入了群聊` {
		t.Errorf("Unexpected note %+v", msgs[0])
	}
	if _, ok := c.members["oc_1"]; ok {
		t.Error("Expected member cache to be invalidated")
	}
}
