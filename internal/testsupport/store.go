package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"brandkit/internal/brand"
	"brandkit/internal/config"
	"brandkit/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewBrand inserts a pending brand for url.
func NewBrand(t testing.TB, st *store.Store, url string) *brand.Profile {
	t.Helper()

	p := brand.NewProfile(uuid.NewString(), "Test Brand", url)
	if err := st.CreateBrand(context.Background(), p); err != nil {
		t.Fatalf("CreateBrand: %v", err)
	}
	return p
}

// ReadyBrand inserts a complete, confirmed brand. When logo is non-nil it is
// attached as well.
func ReadyBrand(t testing.TB, st *store.Store, logo *brand.LogoSpec) *brand.Profile {
	t.Helper()

	ctx := context.Background()
	p := NewBrand(t, st, "https://acme.test")
	p.Tone = "friendly"
	p.Keywords = []string{"coffee", "roasters"}
	p.Industry = "food"
	if err := st.CompleteExtraction(ctx, p); err != nil {
		t.Fatalf("CompleteExtraction: %v", err)
	}
	if err := st.Confirm(ctx, p.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if logo != nil {
		if err := st.SetLogo(ctx, p.ID, logo); err != nil {
			t.Fatalf("SetLogo: %v", err)
		}
	}
	loaded, err := st.GetBrand(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetBrand: %v", err)
	}
	return loaded
}
