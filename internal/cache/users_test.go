package cache

import (
	"fmt"
	"testing"

	"ex-sniper/pkg/sniper"
)

func TestUsersFIFOEviction(t *testing.T) {
	t.Parallel()

	users := NewUsers(2)
	users.Add(sniper.User{ID: "1", Username: "one"})
	users.Add(sniper.User{ID: "2", Username: "two"})
	users.Add(sniper.User{ID: "1", Username: "one renamed"})
	users.Add(sniper.User{ID: "3", Username: "three"})

	if _, ok := users.Get("1"); ok {
		t.Fatal("oldest inserted identity should be evicted despite overwrite")
	}
	for _, id := range []string{"2", "3"} {
		if _, ok := users.Get(id); !ok {
			t.Fatalf("identity %s missing", id)
		}
	}
	if users.Len() != 2 {
		t.Fatalf("len = %d, want 2", users.Len())
	}
}

func TestUsersIgnoresEmptyID(t *testing.T) {
	t.Parallel()

	users := NewUsers(0)
	users.Add(sniper.User{Username: "anonymous"})
	if users.Len() != 0 {
		t.Fatalf("len = %d, want 0", users.Len())
	}
	for index := 0; index < 3; index++ {
		users.Add(sniper.User{ID: fmt.Sprint(index)})
	}
	if users.Len() != 3 {
		t.Fatalf("len = %d, want 3", users.Len())
	}
}
