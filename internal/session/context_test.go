package session

import (
	"testing"

	"ex-sniper/pkg/sniper"
)

func TestContextIdentity(t *testing.T) {
	t.Parallel()

	session := NewContext(" tok ", nil)
	if session.Token() != "tok" {
		t.Fatalf("Token = %q", session.Token())
	}
	if session.SelfID() != "" {
		t.Fatal("unvalidated context must not report an id")
	}

	session.SetSelf(sniper.User{ID: "42", Username: "me"})
	if session.SelfID() != "42" {
		t.Fatalf("SelfID = %q", session.SelfID())
	}

	session.SetToken("other")
	if _, ok := session.Self(); ok {
		t.Fatal("token change must forget the identity")
	}
	if session.Token() != "other" {
		t.Fatalf("Token = %q", session.Token())
	}

	session.SetSelf(sniper.User{ID: "43"})
	session.ClearSelf()
	if session.SelfID() != "" {
		t.Fatal("ClearSelf left an id behind")
	}
}
