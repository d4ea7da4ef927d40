package debounce

import (
	"testing"
	"time"
)

func TestOnlyLatestTriggerFires(t *testing.T) {
	d := New(10 * time.Millisecond)

	first := d.Trigger("search")().(FiredMsg)
	second := d.Trigger("search")().(FiredMsg)

	if d.Fired(first) {
		t.Error("superseded trigger fired")
	}
	if !d.Fired(second) {
		t.Error("latest trigger did not fire")
	}
	if d.Fired(second) {
		t.Error("trigger fired twice")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	d := New(time.Millisecond)

	search := d.Trigger("search")().(FiredMsg)
	amount := d.Trigger("amount")().(FiredMsg)

	if !d.Fired(search) || !d.Fired(amount) {
		t.Error("independent keys should both fire")
	}
}

func TestCancel(t *testing.T) {
	d := New(time.Millisecond)
	msg := d.Trigger("amount")().(FiredMsg)
	if !d.Pending("amount") {
		t.Fatal("trigger not pending")
	}
	d.Cancel("amount")
	if d.Fired(msg) {
		t.Error("cancelled trigger fired")
	}
	if d.Pending("amount") {
		t.Error("still pending after cancel")
	}
}
