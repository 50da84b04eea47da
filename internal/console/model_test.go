package console

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tw2kbot/tw2kbot/internal/swarm"
)

func TestBotItemRendersIDAndState(t *testing.T) {
	item := BotItem{Status: swarm.BotStatus{ID: "bot-1", State: "trading", Sector: 3, Credits: 400}}
	if item.FilterValue() != "bot-1" {
		t.Fatalf("FilterValue = %q", item.FilterValue())
	}
	if item.Title() != "bot-1  [trading]" {
		t.Fatalf("Title = %q", item.Title())
	}
}

func TestUpdateStatusMsgPopulatesList(t *testing.T) {
	m := NewModel(NewClient("http://unused.invalid", "alice"))

	next, _ := m.Update(statusMsg{statuses: []swarm.BotStatus{
		{ID: "bot-1", State: "idle"},
		{ID: "bot-2", State: "trading"},
	}})
	model := next.(Model)

	if len(model.list.Items()) != 2 {
		t.Fatalf("list items = %d, want 2", len(model.list.Items()))
	}
	if model.err != nil {
		t.Fatalf("err = %v, want nil", model.err)
	}
}

func TestUpdateStatusMsgErrorIsRecorded(t *testing.T) {
	m := NewModel(NewClient("http://unused.invalid", "alice"))

	next, _ := m.Update(statusMsg{err: errors.New("boom")})
	model := next.(Model)
	if model.err == nil {
		t.Fatal("expected err to be recorded")
	}
}

func TestEnterSelectsBotAndSwitchesToDetailMode(t *testing.T) {
	m := NewModel(NewClient("http://unused.invalid", "alice"))
	next, _ := m.Update(statusMsg{statuses: []swarm.BotStatus{{ID: "bot-1", State: "idle"}}})
	model := next.(Model)

	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = next.(Model)

	if model.mode != modeDetail {
		t.Fatalf("mode = %v, want modeDetail", model.mode)
	}
	if model.selected != "bot-1" {
		t.Fatalf("selected = %q, want bot-1", model.selected)
	}
	if cmd == nil {
		t.Fatal("expected a fetchTimeSeries command on entering detail mode")
	}
}

func TestEscReturnsToListModeWhenNoLeaseHeld(t *testing.T) {
	m := NewModel(NewClient("http://unused.invalid", "alice"))
	m.mode = modeDetail
	m.selected = "bot-1"
	m.leaseHeld = false

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	model := next.(Model)
	if model.mode != modeList {
		t.Fatalf("mode = %v, want modeList", model.mode)
	}
}

func TestEscReleasesHeldLeaseBeforeReturningToList(t *testing.T) {
	m := NewModel(NewClient("http://unused.invalid", "alice"))
	m.mode = modeDetail
	m.selected = "bot-1"
	m.leaseHeld = true

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	model := next.(Model)
	if model.mode != modeDetail {
		t.Fatal("expected mode to stay in detail until release completes")
	}
	if cmd == nil {
		t.Fatal("expected a release command")
	}
}

func TestLeaseMsgUpdatesHeldState(t *testing.T) {
	m := NewModel(NewClient("http://unused.invalid", "alice"))

	now := time.Now()
	next, _ := m.Update(leaseMsg{lease: swarm.HijackLease{Owner: "alice", ExpiresAt: now}, held: true})
	model := next.(Model)
	if !model.leaseHeld {
		t.Fatal("expected leaseHeld = true")
	}

	next, _ = model.Update(leaseMsg{held: false})
	model = next.(Model)
	if model.leaseHeld {
		t.Fatal("expected leaseHeld = false after release")
	}
}
