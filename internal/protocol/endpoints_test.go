package protocol_test

import (
	"context"
	"net/http"
	"testing"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
)

func TestListServersAnonymous(t *testing.T) {
	f := newFixture(t, interfaces.CredentialsCookie)
	ctx := context.Background()

	servers, err := f.client.ListServers(ctx, interfaces.ServerQuery{})
	if err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	if len(servers) != 3 {
		t.Fatalf("got %d servers, want 3", len(servers))
	}

	music, err := f.client.ListServers(ctx, interfaces.ServerQuery{Category: "music", WithNumMembers: true})
	if err != nil {
		t.Fatalf("ListServers(music): %v", err)
	}
	if len(music) != 1 || music[0].NumMembers == nil || *music[0].NumMembers != 1 {
		t.Errorf("music servers = %+v", music)
	}

	if _, err := f.client.ListServers(ctx, interfaces.ServerQuery{ByUser: true}); !apperrors.Is(err, apperrors.ErrLoginRequired) {
		t.Errorf("by_user without session: %v", err)
	}
}

func TestGetServer(t *testing.T) {
	f := newFixture(t, interfaces.CredentialsBearer)
	f.login(t)
	ctx := context.Background()

	want := f.backend.Servers()[0]
	got, err := f.client.GetServer(ctx, want.ID.String())
	if err != nil {
		t.Fatalf("GetServer: %v", err)
	}
	if got.Name != want.Name || len(got.Channels) != len(want.Channels) {
		t.Errorf("GetServer = %+v", got)
	}

	for _, id := range []string{"not-a-uuid", "00000000-0000-0000-0000-000000000000"} {
		_, err := f.client.GetServer(ctx, id)
		if apperrors.StatusCode(err) != http.StatusBadRequest || !apperrors.Is(err, apperrors.ErrValidation) {
			t.Errorf("GetServer(%s) error = %v, want 400", id, err)
		}
	}
}

func TestMembershipFlow(t *testing.T) {
	f := newFixture(t, interfaces.CredentialsBearer)
	f.login(t)
	ctx := context.Background()

	var foreign, owned interfaces.Server
	for _, s := range f.backend.Servers() {
		if s.Owner.String() == "1" {
			owned = s
		} else if foreign.ID == "" {
			foreign = s
		}
	}
	id := foreign.ID.String()

	member, err := f.client.IsMember(ctx, id)
	if err != nil || member {
		t.Fatalf("IsMember before join = %v, %v", member, err)
	}
	if err := f.client.LeaveServer(ctx, id); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("leave when not a member: %v", err)
	}
	if err := f.client.JoinServer(ctx, id); err != nil {
		t.Fatalf("JoinServer: %v", err)
	}
	if err := f.client.JoinServer(ctx, id); apperrors.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("second join: %v", err)
	}
	if member, _ := f.client.IsMember(ctx, id); !member {
		t.Error("IsMember after join = false")
	}

	mine, err := f.client.ListServers(ctx, interfaces.ServerQuery{ByUser: true})
	if err != nil || len(mine) != 2 {
		t.Errorf("by_user servers = %d, %v", len(mine), err)
	}

	if err := f.client.LeaveServer(ctx, id); err != nil {
		t.Errorf("LeaveServer: %v", err)
	}
	if err := f.client.LeaveServer(ctx, owned.ID.String()); apperrors.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("owner leaving: %v", err)
	}
}

func TestListMessages(t *testing.T) {
	f := newFixture(t, interfaces.CredentialsBearer)
	ctx := context.Background()

	var channelID string
	for _, s := range f.backend.Servers() {
		if s.Name == "Gophers" {
			channelID = s.Channels[0].ID.String()
		}
	}

	if _, err := f.client.ListMessages(ctx, channelID); !apperrors.Is(err, apperrors.ErrLoginRequired) {
		t.Errorf("ListMessages without session: %v", err)
	}

	f.login(t)
	msgs, err := f.client.ListMessages(ctx, channelID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Sender != "Ada Lovelace" || msgs[0].Created.IsZero() {
		t.Errorf("messages = %+v", msgs)
	}

	sent := f.backend.Broadcast(channelID, "Ada Lovelace", "third")
	msgs, _ = f.client.ListMessages(ctx, channelID)
	if len(msgs) != 3 || msgs[2].ID != sent.ID {
		t.Errorf("after broadcast: %+v", msgs)
	}
}
