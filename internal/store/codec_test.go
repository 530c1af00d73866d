package store

import (
	"errors"
	"testing"
	"time"

	"assetmirror/pkg/domain"
)

var errBoom = errors.New("boom")

func asNotFound(err error, target *domain.NotFoundError) bool {
	return errors.As(err, target)
}

func TestCodecRoundTrip(t *testing.T) {
	current := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	s := New(Config{TTL: 45 * time.Minute, NowFn: func() time.Time { return current }})
	s.UpsertMany([]domain.Asset{
		testAsset(10, "LAP-010", domain.TypeDevice, true),
		testAsset(11, "USR-011", domain.TypePerson, false),
		testAsset(12, "SW-012", domain.TypeSoftware, true),
	})

	encoded, err := Encode(s.Export())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	restored := New(Config{TTL: decoded.TTL, NowFn: func() time.Time { return current }})
	restored.Restore(decoded)
	checkInvariants(t, restored)

	if restored.Len() != s.Len() {
		t.Fatalf("record count %d, want %d", restored.Len(), s.Len())
	}
	orig, back := s.List(), restored.List()
	for i := range orig {
		if orig[i].ID != back[i].ID || orig[i].Identifier != back[i].Identifier {
			t.Fatalf("insertion order diverged at %d: %+v vs %+v", i, orig[i], back[i])
		}
	}
	for _, tag := range domain.AssetTypes() {
		if len(restored.ListByType(tag)) != len(s.ListByType(tag)) {
			t.Fatalf("type bucket %s diverged after round trip", tag)
		}
	}
	if len(restored.ListActive()) != len(s.ListActive()) {
		t.Fatal("active set diverged after round trip")
	}
	if !restored.LastRefreshed().Equal(s.LastRefreshed()) {
		t.Fatalf("lastRefreshed %v, want %v", restored.LastRefreshed(), s.LastRefreshed())
	}
}

func TestDecodeMalformedInput(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"truncated", []byte(`{"records":[`)},
		{"wrong shape", []byte(`{"records":"not-an-array"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.payload); !errors.Is(err, domain.ErrCorruptSnapshot) {
				t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
			}
		})
	}
}

func TestRestoreDropsEntriesIndexesDisagreeOn(t *testing.T) {
	snap := Snapshot{
		Records: []domain.Asset{
			testAsset(1, "DUP", domain.TypeDevice, true),
			testAsset(2, "DUP", domain.TypeDevice, true),
			{Identifier: "NO-ID", Type: domain.TypeDevice},
		},
		// Stale index data that disagrees with the records above.
		InsertionOrder: []int64{1, 2, 3},
		ActiveIDs:      []int64{99},
	}
	s := New(Config{})
	s.Restore(snap)
	checkInvariants(t, s)

	// Later record wins the duplicated identifier; the zero-ID record is dropped.
	a, ok := s.GetByIdentifier("DUP")
	if !ok || a.ID != 2 {
		t.Fatalf("DUP should resolve to id 2, got %+v ok=%v", a, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 surviving record, got %d", s.Len())
	}
}
