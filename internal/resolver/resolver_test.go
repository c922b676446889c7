package resolver

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/daimoniac/swaudit/internal/corpus"
	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/types"
	"github.com/daimoniac/swaudit/internal/worker"
)

func TestVariants(t *testing.T) {
	tests := []struct {
		entity string
		want   []string
	}{
		{entity: "chrome", want: []string{"chrome", "Chrome", "CHROME"}},
		{entity: "adobe reader", want: []string{"adobe reader", "Adobe reader", "ADOBE READER", "Adobe Reader"}},
		{entity: "visual_studio", want: []string{"visual_studio", "Visual_studio", "VISUAL_STUDIO", "Visual Studio"}},
		{entity: "VLC", want: []string{"VLC"}},
		{entity: "Adobe Reader", want: []string{"Adobe Reader", "ADOBE READER"}},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			var got []string
			for _, v := range Variants(tt.entity) {
				got = append(got, v.Text)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Variants(%q) = %q, want %q", tt.entity, got, tt.want)
			}
		})
	}
}

func TestResolveTitleCaseFallback(t *testing.T) {
	store := corpus.NewMemoryStore([]types.VulnerabilityRecord{
		{
			ID:          "CVE-2023-1111",
			Identifiers: []types.Identifier{{Vendor: "Adobe", Product: "Adobe Reader"}},
			Published:   "2023-06-01T10:00:00Z",
		},
	})
	r := New(store, worker.Config{Parallelism: 2}, observability.NewLogger("error"))

	got, failures, err := r.Resolve(context.Background(), []string{"adobe reader"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(failures) != 0 {
		t.Errorf("unexpected failures %v", failures)
	}
	if len(got) != 1 || len(got[0].Vulnerabilities) != 1 {
		t.Fatalf("expected one resolved entity with one vulnerability, got %+v", got)
	}
	if got[0].Name != "adobe reader" || got[0].Type != EntityTypeProduct {
		t.Errorf("unexpected entity %+v", got[0])
	}
	if got[0].Vulnerabilities[0].Published != "2023-06-01" {
		t.Errorf("Published = %q, want 2023-06-01", got[0].Vulnerabilities[0].Published)
	}
}

func TestResolveOrderCapAndDrop(t *testing.T) {
	var records []types.VulnerabilityRecord
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		records = append(records, types.VulnerabilityRecord{
			ID:          fmt.Sprintf("CVE-2024-%04d", i),
			Identifiers: []types.Identifier{{Vendor: "google", Product: "chrome"}},
			Published:   base.AddDate(0, 0, i),
		})
	}
	records = append(records, types.VulnerabilityRecord{
		ID:        "CVE-2022-0001",
		CPEs:      []string{"cpe:2.3:a:mozilla:firefox:100:*:*:*:*:*:*:*"},
		Published: map[string]any{"$date": "2022-02-03T00:00:00Z"},
	})

	r := New(corpus.NewMemoryStore(records), worker.Config{Parallelism: 3}, observability.NewLogger("error"))
	got, _, err := r.Resolve(context.Background(), []string{"firefox", "nothing-here", "chrome"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(got))
	}
	if got[0].Name != "firefox" || got[1].Name != "chrome" {
		t.Errorf("entity order = [%s %s], want [firefox chrome]", got[0].Name, got[1].Name)
	}
	if got[0].Vulnerabilities[0].Published != "2022-02-03" {
		t.Errorf("wrapped date = %q", got[0].Vulnerabilities[0].Published)
	}

	chrome := got[1].Vulnerabilities
	if len(chrome) != MaxDetails {
		t.Fatalf("expected %d chrome details, got %d", MaxDetails, len(chrome))
	}
	if chrome[0].ID != "CVE-2024-0024" {
		t.Errorf("newest first: got %s", chrome[0].ID)
	}
	for i := 1; i < len(chrome); i++ {
		if chrome[i-1].Published < chrome[i].Published {
			t.Fatalf("details not sorted newest first at %d", i)
		}
	}
}

func TestResolveEmpty(t *testing.T) {
	r := New(corpus.NewMemoryStore(nil), worker.Config{Parallelism: 2}, nil)
	got, failures, err := r.Resolve(context.Background(), nil)
	if err != nil || got != nil || failures != nil {
		t.Errorf("Resolve(nil) = %v, %v, %v", got, failures, err)
	}
}

type failingOpener struct{}

func (failingOpener) Open(context.Context) (corpus.Store, error) {
	return nil, errors.NewTransientf("connection refused")
}

func TestResolveAllBatchesFail(t *testing.T) {
	r := New(failingOpener{}, worker.Config{Parallelism: 2}, observability.NewLogger("error"))
	_, failures, err := r.Resolve(context.Background(), []string{"chrome", "firefox"})
	if err == nil {
		t.Fatal("expected an error when every batch fails")
	}
	if len(failures) != 2 {
		t.Errorf("expected 2 failures, got %d", len(failures))
	}
}

// stalledStore never answers entity lookups before ctx ends.
type stalledStore struct {
	corpus.Store
}

func (stalledStore) FindByEntity(ctx context.Context, _ string, _ int) ([]types.VulnerabilityRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledStore) Close() error { return nil }

type stalledOpener struct{}

func (stalledOpener) Open(context.Context) (corpus.Store, error) {
	return stalledStore{}, nil
}

func TestResolveBatchTimeout(t *testing.T) {
	r := New(stalledOpener{}, worker.Config{Parallelism: 1, BatchTimeout: 50 * time.Millisecond}, observability.NewLogger("error"))

	done := make(chan struct{})
	var (
		failures []types.BatchFailure
		err      error
	)
	go func() {
		defer close(done)
		_, failures, err = r.Resolve(context.Background(), []string{"chrome"})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Resolve() did not return after the batch timeout")
	}

	if err == nil {
		t.Fatal("expected an error when the only batch times out")
	}
	if len(failures) != 1 || !strings.Contains(failures[0].Error, errors.ErrTimeout.Error()) {
		t.Errorf("expected a timeout failure, got %+v", failures)
	}
}
