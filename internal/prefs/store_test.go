package prefs

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/order-desk/console/internal/filter"
	"github.com/order-desk/console/internal/order"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestTabRoundTrip(t *testing.T) {
	s, path := openTemp(t)

	if _, ok, err := s.LoadTab(); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := s.SaveTab(order.BucketConfirmed); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTab(order.BucketCancelled); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	b, ok, err := reopened.LoadTab()
	if err != nil || !ok || b != order.BucketCancelled {
		t.Errorf("LoadTab = %s %v %v", b, ok, err)
	}
}

func TestFilterRoundTrip(t *testing.T) {
	s, _ := openTemp(t)

	lo := decimal.RequireFromString("50.00")
	want := filter.State{
		Search:    "орфей",
		Location:  "София",
		MinAmount: &lo,
		Period:    filter.PeriodThisWeek,
		Sort:      filter.Sort{Field: filter.SortAmount, Desc: true},
		Page:      2,
	}
	if err := s.SaveFilter(want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.LoadFilter()
	if err != nil || !ok {
		t.Fatalf("LoadFilter ok=%v err=%v", ok, err)
	}
	if got.Search != want.Search || got.Location != want.Location || got.Period != want.Period ||
		got.Sort != want.Sort || got.Page != want.Page {
		t.Errorf("got %+v", got)
	}
	if got.MinAmount == nil || !got.MinAmount.Equal(lo) || got.MaxAmount != nil {
		t.Errorf("bounds = %v %v", got.MinAmount, got.MaxAmount)
	}

	if err := s.ResetFilter(); err != nil {
		t.Fatal(err)
	}
	got, ok, err = s.LoadFilter()
	if err != nil || ok {
		t.Fatalf("after reset ok=%v err=%v", ok, err)
	}
	if got.Sort != filter.DefaultState().Sort {
		t.Errorf("default sort = %+v", got.Sort)
	}
}

func TestCorruptFilterIgnored(t *testing.T) {
	s, _ := openTemp(t)
	if err := s.put(keyFilter, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.LoadFilter(); ok || err != nil {
		t.Errorf("ok=%v err=%v", ok, err)
	}
}
