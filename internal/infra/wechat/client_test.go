package wechat

import (
	"testing"

	"github.com/eatmoreapple/openwechat"
)

func TestToUser_PrefersRemarkName(t *testing.T) {
	u := toUser(&openwechat.User{UserName: "@abc", NickName: "nick", RemarkName: "remark"})
	if u.ID != "@abc" || u.Name != "remark" {
		t.Errorf("Expected (@abc, remark), got %+v", u)
	}

	u = toUser(&openwechat.User{UserName: "@abc", NickName: "nick"})
	if u.Name != "nick" {
		t.Errorf("Expected nick, got %s", u.Name)
	}
}

func TestToMember_PrefersDisplayName(t *testing.T) {
	u := toMember(&openwechat.User{UserName: "@m", NickName: "nick", DisplayName: "in-group"})
	if u.Name != "in-group" {
		t.Errorf("Expected in-group, got %s", u.Name)
	}

	u = toMember(&openwechat.User{UserName: "@m", NickName: "nick", RemarkName: "remark"})
	if u.Name != "nick" {
		t.Errorf("Expected nick, got %s", u.Name)
	}
}
